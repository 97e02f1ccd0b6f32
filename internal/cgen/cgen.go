// Package cgen assembles complete C source files that marshal the
// arguments of DBus methods and signals with libdbus.
package cgen

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/creachadair/mds/mapset"
	"go.uber.org/zap"

	"github.com/danderson/dbusgen"
	"github.com/danderson/dbusgen/ctype"
	"github.com/danderson/dbusgen/marshal"
)

// Options configures code generation.
type Options struct {
	// Prefix is prepended to generated function names, joined with an
	// underscore, and to struct type names.
	Prefix string
	// Logger receives warnings about skipped members. If nil, nothing
	// is logged.
	Logger *zap.Logger
}

const recovery marshal.Recovery = "dbus_message_unref (message);\nreturn -1;\n"

// reserved are the names that generated variables must not take:
// C keywords, and the parameters and locals that every generated
// function declares.
var reserved = mapset.New(
	"auto", "break", "case", "char", "const", "continue", "default",
	"do", "double", "else", "enum", "extern", "float", "for", "goto",
	"if", "inline", "int", "long", "register", "restrict", "return",
	"short", "signed", "sizeof", "static", "struct", "switch",
	"typedef", "union", "unsigned", "void", "volatile", "while",
	"bool", "true", "false", "NULL",

	"connection", "call", "destination", "path", "message", "iter",
)

type generator struct {
	out     bytes.Buffer
	funcs   bytes.Buffer
	opts    Options
	log     *zap.Logger
	structs []*marshal.StructDef

	// funcNames and structNames are the C file's global names
	// emitted so far.
	funcNames   mapset.Set[string]
	structNames mapset.Set[string]
}

// File returns a C source file implementing marshalling functions for
// every method and signal of ifaces.
//
// Properties are not generated, since their values travel inside
// variants. Methods and signals with variant arguments are skipped.
func File(ifaces []*dbusgen.InterfaceDescription, opts Options) (string, error) {
	if len(ifaces) == 0 {
		return "", errors.New("no interfaces provided")
	}
	g := generator{
		opts:        opts,
		log:         opts.Logger,
		funcNames:   mapset.New[string](),
		structNames: mapset.New[string](),
	}
	if g.log == nil {
		g.log = zap.NewNop()
	}

	ifaces = slices.SortedFunc(slices.Values(ifaces), func(a, b *dbusgen.InterfaceDescription) int {
		return cmp.Compare(a.Name, b.Name)
	})
	var names []string
	for _, iface := range ifaces {
		if err := g.Interface(iface); err != nil {
			return "", err
		}
		names = append(names, iface.Name)
	}

	g.f("/* Code generated by dbusgen from %s. DO NOT EDIT. */\n", strings.Join(names, ", "))
	g.s("\n")
	g.s("#include <stddef.h>\n")
	g.s("#include <stdint.h>\n")
	g.s("\n")
	g.s("#include <dbus/dbus.h>\n")
	for _, def := range g.structs {
		g.s("\n")
		g.structDef(def)
	}
	g.out.Write(g.funcs.Bytes())
	return g.out.String(), nil
}

func (g *generator) s(s string) {
	g.out.WriteString(s)
}

func (g *generator) f(msg string, args ...any) {
	fmt.Fprintf(&g.out, msg, args...)
}

func (g *generator) fn(msg string, args ...any) {
	fmt.Fprintf(&g.funcs, msg, args...)
}

func (g *generator) structDef(def *marshal.StructDef) {
	g.s("typedef struct {\n")
	for _, f := range def.Fields {
		g.f("\t%s;\n", ctype.Declare(f.Type, f.Name))
	}
	g.f("} %s;\n", def.Name)
}

// Interface adds the functions for one interface.
func (g *generator) Interface(iface *dbusgen.InterfaceDescription) error {
	methods := slices.SortedFunc(slices.Values(iface.Methods), func(a, b *dbusgen.MethodDescription) int {
		return cmp.Compare(a.Name, b.Name)
	})
	signals := slices.SortedFunc(slices.Values(iface.Signals), func(a, b *dbusgen.SignalDescription) int {
		return cmp.Compare(a.Name, b.Name)
	})
	if len(iface.Properties) > 0 {
		g.log.Debug("skipping properties", zap.String("interface", iface.Name), zap.Int("count", len(iface.Properties)))
	}

	for _, m := range methods {
		call := function{
			iface:      iface.Name,
			member:     m.Name,
			kind:       kindCall,
			args:       m.In,
			deprecated: m.Deprecated,
			noReply:    m.NoReply,
		}
		if err := g.function(call); err != nil {
			return err
		}
		if m.NoReply {
			continue
		}
		reply := function{
			iface:      iface.Name,
			member:     m.Name,
			kind:       kindReply,
			args:       m.Out,
			deprecated: m.Deprecated,
		}
		if err := g.function(reply); err != nil {
			return err
		}
	}
	for _, s := range signals {
		emit := function{
			iface:      iface.Name,
			member:     s.Name,
			kind:       kindEmit,
			args:       s.Args,
			deprecated: s.Deprecated,
		}
		if err := g.function(emit); err != nil {
			return err
		}
	}
	return nil
}

type funcKind int

const (
	kindCall funcKind = iota
	kindReply
	kindEmit
)

func (k funcKind) suffix() string {
	switch k {
	case kindCall:
		return "call"
	case kindReply:
		return "reply"
	case kindEmit:
		return "emit"
	default:
		panic("unknown function kind")
	}
}

// function is one generated C function.
type function struct {
	iface      string
	member     string
	kind       funcKind
	args       []dbusgen.ArgumentDescription
	deprecated bool
	noReply    bool
}

// baseName returns the function name without the caller's prefix,
// for example "test_get_pair_reply".
func (f function) baseName() string {
	return snakeCase(lastElement(f.iface)) + "_" + snakeCase(f.member) + "_" + f.kind.suffix()
}

func (f function) comment() string {
	var ret string
	switch f.kind {
	case kindCall:
		ret = fmt.Sprintf("Call the %s.%s method.", f.iface, f.member)
	case kindReply:
		ret = fmt.Sprintf("Reply to a %s.%s method call.", f.iface, f.member)
	case kindEmit:
		ret = fmt.Sprintf("Emit the %s.%s signal.", f.iface, f.member)
	}
	if f.deprecated {
		ret += " Deprecated."
	}
	return ret
}

func (g *generator) function(f function) error {
	for _, a := range f.args {
		if err := marshal.Check(a.Type); err != nil {
			g.log.Warn("skipping member with unsupported argument",
				zap.String("interface", f.iface),
				zap.String("member", f.member),
				zap.Error(err))
			return nil
		}
	}

	name := f.baseName()
	if g.opts.Prefix != "" {
		name = g.opts.Prefix + "_" + name
	}
	if g.funcNames.Has(name) {
		return fmt.Errorf("%s.%s: function %s collides with another generated function", f.iface, f.member, name)
	}
	g.funcNames.Add(name)
	gen := marshal.Generator{
		Mapper: marshal.CMapper{Prefix: marshal.CamelCase(name)},
	}

	var (
		params []string
		locals []string
		code   []string
		seen   = mapset.New[string]()
	)
	switch f.kind {
	case kindCall:
		params = append(params, "DBusConnection *connection", "const char *destination", "const char *path")
	case kindReply:
		params = append(params, "DBusConnection *connection", "DBusMessage *call")
	case kindEmit:
		params = append(params, "DBusConnection *connection", "const char *path")
	}
	for i, a := range f.args {
		res := gen.Marshal(a.Type, "iter", argName(i, a), recovery)
		vars := append(res.Inputs.Vars(), res.Locals.Vars()...)
		for _, n := range append(varNames(vars), loopNames(res.Code)...) {
			if seen.Has(n) || reserved.Has(n) {
				return fmt.Errorf("%s.%s: variable %s for argument %d collides with another variable", f.iface, f.member, n, i)
			}
			seen.Add(n)
		}
		for _, def := range res.Structs {
			if g.structNames.Has(def.Name) {
				return fmt.Errorf("%s.%s: struct type %s for argument %d collides with another generated type", f.iface, f.member, def.Name, i)
			}
			g.structNames.Add(def.Name)
		}
		for _, v := range res.Inputs.Vars() {
			params = append(params, v.String())
		}
		for _, v := range res.Locals.Vars() {
			locals = append(locals, v.String())
		}
		code = append(code, marshal.Render(res.Code))
		g.structs = append(g.structs, res.Structs...)
	}

	g.fn("\n")
	g.fn("/* %s */\n", f.comment())
	g.fn("int\n")
	g.fn("%s (%s)\n", name, strings.Join(params, ", "))
	g.fn("{\n")
	g.fn("\tDBusMessage *message;\n")
	g.fn("\tDBusMessageIter iter;\n")
	for _, l := range locals {
		g.fn("\t%s;\n", l)
	}
	g.fn("\n")

	switch f.kind {
	case kindCall:
		g.fn("\tmessage = dbus_message_new_method_call (destination, path, %q, %q);\n", f.iface, f.member)
	case kindReply:
		g.fn("\tif (dbus_message_get_no_reply (call))\n")
		g.fn("\t\treturn 0;\n")
		g.fn("\n")
		g.fn("\tmessage = dbus_message_new_method_return (call);\n")
	case kindEmit:
		g.fn("\tmessage = dbus_message_new_signal (path, %q, %q);\n", f.iface, f.member)
	}
	g.fn("\tif (! message)\n")
	g.fn("\t\treturn -1;\n")
	g.fn("\n")
	if f.noReply {
		g.fn("\tdbus_message_set_no_reply (message, TRUE);\n")
		g.fn("\n")
	}
	g.fn("\tdbus_message_iter_init_append (message, &iter);\n")
	g.fn("\n")
	for _, c := range code {
		g.funcs.WriteString(marshal.Indent(c, 1))
		g.fn("\n")
	}
	g.fn("\tif (! dbus_connection_send (connection, message, NULL)) {\n")
	g.funcs.WriteString(marshal.Indent(string(recovery), 2))
	g.fn("\t}\n")
	g.fn("\n")
	g.fn("\tdbus_message_unref (message);\n")
	g.fn("\n")
	g.fn("\treturn 0;\n")
	g.fn("}\n")
	return nil
}

func varNames(vs []*marshal.Var) []string {
	ret := make([]string, len(vs))
	for i, v := range vs {
		ret[i] = v.Name.String()
	}
	return ret
}

// loopNames returns the names of the variables declared inside the
// loops of b, including loop indexes.
func loopNames(b *marshal.Block) []string {
	var ret []string
	for _, s := range b.Stmts {
		switch s := s.(type) {
		case *marshal.Container:
			ret = append(ret, loopNames(s.Body)...)
		case *marshal.Loop:
			ret = append(ret, s.Index.String())
			ret = append(ret, varNames(s.Locals.Vars())...)
			ret = append(ret, loopNames(s.Body)...)
		case *marshal.Member:
			ret = append(ret, loopNames(s.Body)...)
		}
	}
	return ret
}

// argName returns the C variable name for the n'th argument.
func argName(n int, arg dbusgen.ArgumentDescription) string {
	name := arg.Name
	if name == "" {
		name = fmt.Sprintf("arg%d", n)
	}
	name = strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}
		return '_'
	}, name)
	if unicode.IsDigit(rune(name[0])) {
		name = "_" + name
	}
	if reserved.Has(name) {
		name += "_"
	}
	return name
}

func lastElement(s string) string {
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// snakeCase converts a DBus member name such as "GetURLList" to
// "get_url_list".
func snakeCase(s string) string {
	rs := []rune(s)
	var ret strings.Builder
	for i, r := range rs {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			ret.WriteByte('_')
			continue
		}
		if unicode.IsUpper(r) && i > 0 {
			prev := rs[i-1]
			nextLower := i+1 < len(rs) && unicode.IsLower(rs[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				ret.WriteByte('_')
			}
		}
		ret.WriteRune(unicode.ToLower(r))
	}
	return ret.String()
}
