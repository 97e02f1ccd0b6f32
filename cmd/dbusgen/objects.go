package main

import (
	"cmp"
	"fmt"
	"path"

	"github.com/creachadair/mds/heapq"
	"go.uber.org/zap"

	"github.com/danderson/dbusgen"
	"github.com/danderson/dbusgen/marshal"
)

type object struct {
	path string
	desc *dbusgen.ObjectDescription
}

// collectInterfaces returns every interface described by desc and its
// inline child nodes, visiting objects in path order. When several
// objects describe the same interface, the first one visited wins.
func collectInterfaces(desc *dbusgen.ObjectDescription, log *zap.Logger) []*dbusgen.InterfaceDescription {
	var (
		ret  []*dbusgen.InterfaceDescription
		seen = map[string]string{}
	)
	objs := heapq.New(func(a, b object) int {
		return cmp.Compare(a.path, b.path)
	})
	root := "/"
	if path.IsAbs(desc.Name) {
		root = path.Clean(desc.Name)
	}
	objs.Add(object{root, desc})
	for !objs.IsEmpty() {
		obj, _ := objs.Pop()
		for _, iface := range obj.desc.SortedInterfaces() {
			if first, ok := seen[iface.Name]; ok {
				log.Debug("interface already collected",
					zap.String("interface", iface.Name),
					zap.String("path", obj.path),
					zap.String("first", first))
				continue
			}
			seen[iface.Name] = obj.path
			ret = append(ret, iface)
		}
		for _, child := range obj.desc.Nodes {
			objs.Add(object{path.Join(obj.path, child.Name), child})
		}
	}
	return ret
}

// skipped describes the members of iface that produce no code.
func skipped(iface *dbusgen.InterfaceDescription) []string {
	var ret []string
	check := func(kind, name string, args []dbusgen.ArgumentDescription) {
		for _, a := range args {
			if err := marshal.Check(a.Type); err != nil {
				ret = append(ret, fmt.Sprintf("skipped %s %s: %v", kind, name, err))
				return
			}
		}
	}
	for _, m := range iface.Methods {
		check("call", m.Name, m.In)
		if !m.NoReply {
			check("reply", m.Name, m.Out)
		}
	}
	for _, s := range iface.Signals {
		check("signal", s.Name, s.Args)
	}
	for _, p := range iface.Properties {
		ret = append(ret, fmt.Sprintf("skipped property %s", p.Name))
	}
	return ret
}
