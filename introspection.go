package dbusgen

import (
	"cmp"
	"encoding/xml"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Well-known annotations that change what gets generated.
const (
	annotationDeprecated   = "org.freedesktop.DBus.Deprecated"
	annotationNoReply      = "org.freedesktop.DBus.Method.NoReply"
	annotationEmitsChanged = "org.freedesktop.DBus.Property.EmitsChangedSignal"
)

// ParseIntrospection decodes a DBus introspection XML document, as
// returned by org.freedesktop.DBus.Introspectable.Introspect.
func ParseIntrospection(data []byte) (*ObjectDescription, error) {
	var ret ObjectDescription
	if err := xml.Unmarshal(data, &ret); err != nil {
		return nil, fmt.Errorf("parsing introspection data: %w", err)
	}
	return &ret, nil
}

// ObjectDescription describes a DBus object's exported interfaces and
// child objects.
type ObjectDescription struct {
	// Name is the object's path relative to its parent. It is empty
	// for the object that was introspected, unless the document
	// names it.
	Name string
	// Interfaces maps an interface name to a description of its API.
	Interfaces map[string]*InterfaceDescription
	// Children is the relative paths to child objects under this
	// object.
	Children []string
	// Nodes are the descriptions of child objects that the document
	// includes inline, in document order. Children with no
	// interfaces and no descendants are listed only in Children.
	Nodes []*ObjectDescription
}

func (o *ObjectDescription) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var raw struct {
		Name       string                  `xml:"name,attr"`
		Interfaces []*InterfaceDescription `xml:"interface"`
		Children   []*ObjectDescription    `xml:"node"`
	}
	if err := d.DecodeElement(&raw, &start); err != nil {
		return err
	}
	*o = ObjectDescription{
		Name:       raw.Name,
		Interfaces: make(map[string]*InterfaceDescription, len(raw.Interfaces)),
		Children:   make([]string, 0, len(raw.Children)),
	}
	for _, iface := range raw.Interfaces {
		if _, dup := o.Interfaces[iface.Name]; dup {
			return fmt.Errorf("interface %s described twice on object %q", iface.Name, raw.Name)
		}
		o.Interfaces[iface.Name] = iface
	}
	for _, v := range raw.Children {
		o.Children = append(o.Children, v.Name)
		if len(v.Interfaces) > 0 || len(v.Nodes) > 0 {
			o.Nodes = append(o.Nodes, v)
		}
	}
	return nil
}

// SortedInterfaces returns the object's interfaces ordered by name.
func (o *ObjectDescription) SortedInterfaces() []*InterfaceDescription {
	return slices.SortedFunc(maps.Values(o.Interfaces), func(a, b *InterfaceDescription) int {
		return cmp.Compare(a.Name, b.Name)
	})
}

// InterfaceDescription describes a DBus interface.
type InterfaceDescription struct {
	Name       string                 `xml:"name,attr"`
	Methods    []*MethodDescription   `xml:"method"`
	Signals    []*SignalDescription   `xml:"signal"`
	Properties []*PropertyDescription `xml:"property"`
}

// String summarizes the interface one member per line, with argument
// types as DBus signatures, for example:
//
//	com.example.Test
//	  method GetPair(u id) -> ((is) pair)
//	  signal Changed(as names)
//	  property Count x readwrite emits=invalidates
func (d InterfaceDescription) String() string {
	var ret strings.Builder
	ret.WriteString(d.Name)
	byName := func(a, b string) int { return cmp.Compare(a, b) }
	for _, m := range slices.SortedFunc(slices.Values(d.Methods), func(a, b *MethodDescription) int { return byName(a.Name, b.Name) }) {
		fmt.Fprintf(&ret, "\n  %s", m)
	}
	for _, s := range slices.SortedFunc(slices.Values(d.Signals), func(a, b *SignalDescription) int { return byName(a.Name, b.Name) }) {
		fmt.Fprintf(&ret, "\n  %s", s)
	}
	for _, p := range slices.SortedFunc(slices.Values(d.Properties), func(a, b *PropertyDescription) int { return byName(a.Name, b.Name) }) {
		fmt.Fprintf(&ret, "\n  %s", p)
	}
	return ret.String()
}

type rawAnnotation struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type annotations []rawAnnotation

// value returns the value of the last annotation called name.
func (as annotations) value(name string) (string, bool) {
	for i := len(as) - 1; i >= 0; i-- {
		if as[i].Name == name {
			return as[i].Value, true
		}
	}
	return "", false
}

func (as annotations) isTrue(name string) bool {
	v, _ := as.value(name)
	return v == "true"
}

type rawArg struct {
	Name      string `xml:"name,attr"`
	Type      string `xml:"type,attr"`
	Direction string `xml:"direction,attr"`
}

// rawMember is the common XML shape of methods and signals.
type rawMember struct {
	Name string      `xml:"name,attr"`
	Args []rawArg    `xml:"arg"`
	Meta annotations `xml:"annotation"`
}

// args splits a method's arguments by direction. Arguments with no
// direction are inputs.
func (m rawMember) args() (in, out []ArgumentDescription, err error) {
	for _, arg := range m.Args {
		ad, err := arg.parse("method " + m.Name)
		if err != nil {
			return nil, nil, err
		}
		switch arg.Direction {
		case "", "in":
			in = append(in, ad)
		case "out":
			out = append(out, ad)
		default:
			return nil, nil, fmt.Errorf("unknown direction %q for method %s arg %q", arg.Direction, m.Name, arg.Name)
		}
	}
	return in, out, nil
}

func (a rawArg) parse(owner string) (ArgumentDescription, error) {
	typ, err := ParseType(a.Type)
	if err != nil {
		return ArgumentDescription{}, fmt.Errorf("invalid type for %s arg %q: %w", owner, a.Name, err)
	}
	return ArgumentDescription{Name: a.Name, Type: typ}, nil
}

// MethodDescription describes a DBus method.
type MethodDescription struct {
	Name string
	In   []ArgumentDescription
	Out  []ArgumentDescription
	// Deprecated, if true, indicates that the method should be
	// avoided in new code.
	Deprecated bool
	// If true, NoReply indicates that callers do not wait for a
	// reply to this method, so no reply function is generated.
	NoReply bool
}

func (m MethodDescription) String() string {
	ret := "method " + m.Name + argList(m.In)
	if len(m.Out) > 0 {
		ret += " -> " + argList(m.Out)
	}
	if m.NoReply {
		ret += " noreply"
	}
	if m.Deprecated {
		ret += " deprecated"
	}
	return ret
}

func (m *MethodDescription) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var raw rawMember
	if err := d.DecodeElement(&raw, &start); err != nil {
		return err
	}
	in, out, err := raw.args()
	if err != nil {
		return err
	}
	*m = MethodDescription{
		Name:       raw.Name,
		In:         in,
		Out:        out,
		Deprecated: raw.Meta.isTrue(annotationDeprecated),
		NoReply:    raw.Meta.isTrue(annotationNoReply),
	}
	if m.NoReply && len(m.Out) > 0 {
		return fmt.Errorf("method %s is annotated NoReply but has output arguments", m.Name)
	}
	return nil
}

// SignalDescription describes a DBus signal.
type SignalDescription struct {
	Name string
	Args []ArgumentDescription
	// Deprecated, if true, indicates that the signal should be
	// avoided in new code.
	Deprecated bool
}

func (s SignalDescription) String() string {
	ret := "signal " + s.Name + argList(s.Args)
	if s.Deprecated {
		ret += " deprecated"
	}
	return ret
}

func (s *SignalDescription) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var raw rawMember
	if err := d.DecodeElement(&raw, &start); err != nil {
		return err
	}
	var args []ArgumentDescription
	for _, arg := range raw.Args {
		// Signal arguments only flow out, and documents may say so.
		if arg.Direction != "" && arg.Direction != "out" {
			return fmt.Errorf("invalid direction %q for signal %s arg %q", arg.Direction, raw.Name, arg.Name)
		}
		ad, err := arg.parse("signal " + raw.Name)
		if err != nil {
			return err
		}
		args = append(args, ad)
	}
	*s = SignalDescription{
		Name:       raw.Name,
		Args:       args,
		Deprecated: raw.Meta.isTrue(annotationDeprecated),
	}
	return nil
}

// Access is the set of operations a property allows.
type Access int

const (
	AccessRead Access = iota + 1
	AccessWrite
	AccessReadWrite
)

var accessNames = map[string]Access{
	"read":      AccessRead,
	"write":     AccessWrite,
	"readwrite": AccessReadWrite,
}

func (a Access) String() string {
	for k, v := range accessNames {
		if v == a {
			return k
		}
	}
	return fmt.Sprintf("Access(%d)", int(a))
}

// ChangeSignal is how a property announces changes through
// org.freedesktop.DBus.Properties.PropertiesChanged.
type ChangeSignal int

const (
	// ChangeSignalValue means the signal carries the new value.
	ChangeSignalValue ChangeSignal = iota
	// ChangeSignalInvalidates means the signal names the property
	// without its value.
	ChangeSignalInvalidates
	// ChangeSignalConst means the value never changes.
	ChangeSignalConst
	// ChangeSignalNone means changes are not announced.
	ChangeSignalNone
)

var changeSignalNames = []string{"true", "invalidates", "const", "false"}

func (c ChangeSignal) String() string {
	if int(c) < len(changeSignalNames) {
		return changeSignalNames[c]
	}
	return fmt.Sprintf("ChangeSignal(%d)", int(c))
}

// PropertyDescription describes a DBus property.
//
// Properties are read and written through variants, so generators
// only report them.
type PropertyDescription struct {
	Name   string
	Type   Type
	Access Access
	// EmitsChanged defaults to ChangeSignalValue when the document
	// does not annotate the property.
	EmitsChanged ChangeSignal
	// Deprecated, if true, indicates that the property should be
	// avoided in new code.
	Deprecated bool
}

func (p PropertyDescription) String() string {
	ret := fmt.Sprintf("property %s %s %s", p.Name, p.Type, p.Access)
	if p.EmitsChanged != ChangeSignalValue {
		ret += " emits=" + p.EmitsChanged.String()
	}
	if p.Deprecated {
		ret += " deprecated"
	}
	return ret
}

func (p *PropertyDescription) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var raw struct {
		Name   string      `xml:"name,attr"`
		Type   string      `xml:"type,attr"`
		Access string      `xml:"access,attr"`
		Meta   annotations `xml:"annotation"`
	}
	if err := d.DecodeElement(&raw, &start); err != nil {
		return err
	}
	typ, err := ParseType(raw.Type)
	if err != nil {
		return fmt.Errorf("invalid type for property %s: %w", raw.Name, err)
	}
	access, ok := accessNames[raw.Access]
	if !ok {
		return fmt.Errorf("unknown access %q for property %s", raw.Access, raw.Name)
	}
	emits := ChangeSignalValue
	if v, ok := raw.Meta.value(annotationEmitsChanged); ok {
		i := slices.Index(changeSignalNames, v)
		if i < 0 {
			return fmt.Errorf("unknown %s value %q for property %s", annotationEmitsChanged, v, raw.Name)
		}
		emits = ChangeSignal(i)
	}
	*p = PropertyDescription{
		Name:         raw.Name,
		Type:         typ,
		Access:       access,
		EmitsChanged: emits,
		Deprecated:   raw.Meta.isTrue(annotationDeprecated),
	}
	return nil
}

// ArgumentDescription describes a DBus method's input or output, or a
// signal's argument.
type ArgumentDescription struct {
	Name string // optional
	Type Type
}

// String returns the argument's signature, followed by its name if
// it has one.
func (a ArgumentDescription) String() string {
	if a.Name != "" {
		return a.Type.String() + " " + a.Name
	}
	return a.Type.String()
}

func argList(args []ArgumentDescription) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
