package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"

	"github.com/creachadair/mds/slice"
	"gopkg.in/yaml.v3"

	"github.com/danderson/dbusgen"
)

// config is the generate command's settings file.
type config struct {
	// Prefix is prepended to generated function and type names.
	Prefix string `yaml:"prefix"`
	// Out is the output file path. Empty means stdout.
	Out string `yaml:"out"`
	// Include, if non-empty, is a list of regular expressions. Only
	// interfaces whose name matches one of them are generated.
	Include []string `yaml:"include"`
	// Exclude is a list of regular expressions for interface names
	// that are never generated. Exclude wins over Include.
	Exclude []string `yaml:"exclude"`
}

// standardInterfaces are implemented by the bus library on every
// object, so callers rarely want code for them.
var standardInterfaces = []string{
	`^org\.freedesktop\.DBus\.Peer$`,
	`^org\.freedesktop\.DBus\.Properties$`,
	`^org\.freedesktop\.DBus\.Introspectable$`,
}

func defaultConfig() *config {
	return &config{Exclude: slices.Clone(standardInterfaces)}
}

func loadConfig(path string) (*config, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parseConfig(bs)
}

// parseConfig decodes a YAML config. Exclude defaults to the standard
// freedesktop interfaces when the document does not set it.
func parseConfig(bs []byte) (*config, error) {
	var ret config
	dec := yaml.NewDecoder(bytes.NewReader(bs))
	dec.KnownFields(true)
	if err := dec.Decode(&ret); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if ret.Exclude == nil {
		ret.Exclude = slices.Clone(standardInterfaces)
	}
	for _, re := range append(slices.Clone(ret.Include), ret.Exclude...) {
		if _, err := regexp.Compile(re); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}
	return &ret, nil
}

func compileAll(res []string) ([]*regexp.Regexp, error) {
	ret := make([]*regexp.Regexp, 0, len(res))
	for _, s := range res {
		re, err := regexp.Compile(s)
		if err != nil {
			return nil, err
		}
		ret = append(ret, re)
	}
	return ret, nil
}

func matchAny(res []*regexp.Regexp, s string) bool {
	return slices.ContainsFunc(res, func(re *regexp.Regexp) bool {
		return re.MatchString(s)
	})
}

// filter returns the interfaces selected by c, in their original order.
func (c *config) filter(ifaces []*dbusgen.InterfaceDescription) ([]*dbusgen.InterfaceDescription, error) {
	include, err := compileAll(c.Include)
	if err != nil {
		return nil, err
	}
	exclude, err := compileAll(c.Exclude)
	if err != nil {
		return nil, err
	}
	keep := func(iface *dbusgen.InterfaceDescription) bool {
		if matchAny(exclude, iface.Name) {
			return false
		}
		return len(include) == 0 || matchAny(include, iface.Name)
	}
	return slices.Collect(slice.Select(ifaces, keep)), nil
}
