package dbusgen

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const testIntrospection = `<!DOCTYPE node PUBLIC "-//freedesktop//DTD D-BUS Object Introspection 1.0//EN"
 "http://www.freedesktop.org/standards/dbus/1.0/introspect.dtd">
<node>
  <interface name="com.example.Test">
    <method name="GetPair">
      <arg name="id" type="u" direction="in"/>
      <arg name="pair" type="(is)" direction="out"/>
    </method>
    <method name="Poke">
      <annotation name="org.freedesktop.DBus.Method.NoReply" value="true"/>
      <annotation name="org.freedesktop.DBus.Deprecated" value="true"/>
    </method>
    <signal name="Changed">
      <arg name="names" type="as"/>
    </signal>
    <property name="Count" type="x" access="readwrite">
      <annotation name="org.freedesktop.DBus.Property.EmitsChangedSignal" value="invalidates"/>
    </property>
  </interface>
  <interface name="com.example.Aaa"/>
  <node name="child"/>
</node>
`

func TestParseIntrospection(t *testing.T) {
	obj, err := ParseIntrospection([]byte(testIntrospection))
	if err != nil {
		t.Fatalf("ParseIntrospection: %v", err)
	}

	if diff := cmp.Diff(obj.Children, []string{"child"}); diff != "" {
		t.Errorf("wrong children (-got+want):\n%s", diff)
	}

	var names []string
	for _, iface := range obj.SortedInterfaces() {
		names = append(names, iface.Name)
	}
	if diff := cmp.Diff(names, []string{"com.example.Aaa", "com.example.Test"}); diff != "" {
		t.Errorf("wrong interfaces (-got+want):\n%s", diff)
	}

	iface := obj.Interfaces["com.example.Test"]
	want := `com.example.Test
  method GetPair(u id) -> ((is) pair)
  method Poke() noreply deprecated
  signal Changed(as names)
  property Count x readwrite emits=invalidates`
	if diff := cmp.Diff(iface.String(), want); diff != "" {
		t.Errorf("wrong interface description (-got+want):\n%s", diff)
	}

	prop := iface.Properties[0]
	if prop.Access != AccessReadWrite || prop.EmitsChanged != ChangeSignalInvalidates {
		t.Errorf("Count property = %v/%v, want readwrite/invalidates", prop.Access, prop.EmitsChanged)
	}

	out := iface.Methods[0].Out[0]
	if out.Type.Category() != CategoryStruct {
		t.Errorf("GetPair out arg category = %v, want struct", out.Type.Category())
	}
}

func TestParseIntrospectionErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"bad arg type", `<node><interface name="a.b"><method name="M"><arg type="a{" direction="in"/></method></interface></node>`},
		{"two types in arg", `<node><interface name="a.b"><signal name="S"><arg type="ii"/></signal></interface></node>`},
		{"bad direction", `<node><interface name="a.b"><method name="M"><arg type="i" direction="sideways"/></method></interface></node>`},
		{"bad access", `<node><interface name="a.b"><property name="P" type="i" access="maybe"/></interface></node>`},
		{"bad emits", `<node><interface name="a.b"><property name="P" type="i" access="read"><annotation name="org.freedesktop.DBus.Property.EmitsChangedSignal" value="sometimes"/></property></interface></node>`},
		{"noreply with outputs", `<node><interface name="a.b"><method name="M"><arg type="i" direction="out"/><annotation name="org.freedesktop.DBus.Method.NoReply" value="true"/></method></interface></node>`},
		{"signal input", `<node><interface name="a.b"><signal name="S"><arg type="i" direction="in"/></signal></interface></node>`},
		{"duplicate interface", `<node><interface name="a.b"/><interface name="a.b"/></node>`},
		{"not xml", `{"node": 1}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseIntrospection([]byte(tc.in)); err == nil {
				t.Error("ParseIntrospection succeeded, want error")
			}
		})
	}

	_, err := ParseIntrospection([]byte(`<node><interface name="a.b"><method name="M"><arg type="(" direction="in"/></method></interface></node>`))
	var serr *SignatureError
	if !errors.As(err, &serr) {
		t.Errorf("bad arg type error %v does not wrap a *SignatureError", err)
	}
}

func TestParseIntrospectionNested(t *testing.T) {
	const doc = `<node name="/com/example">
  <interface name="com.example.Root"/>
  <node name="a">
    <interface name="com.example.A"/>
    <node name="deep">
      <interface name="com.example.Deep"/>
    </node>
  </node>
  <node name="empty"/>
</node>`
	obj, err := ParseIntrospection([]byte(doc))
	if err != nil {
		t.Fatalf("ParseIntrospection: %v", err)
	}
	if obj.Name != "/com/example" {
		t.Errorf("root name = %q, want /com/example", obj.Name)
	}
	if diff := cmp.Diff(obj.Children, []string{"a", "empty"}); diff != "" {
		t.Errorf("wrong children (-got+want):\n%s", diff)
	}
	if len(obj.Nodes) != 1 {
		t.Fatalf("got %d inline nodes, want 1", len(obj.Nodes))
	}
	a := obj.Nodes[0]
	if a.Name != "a" || a.Interfaces["com.example.A"] == nil {
		t.Errorf("wrong inline node %q with interfaces %v", a.Name, a.Interfaces)
	}
	if len(a.Nodes) != 1 || a.Nodes[0].Interfaces["com.example.Deep"] == nil {
		t.Errorf("nested inline node not parsed")
	}
}

func TestParseIntrospectionDefaults(t *testing.T) {
	const doc = `<node>
  <interface name="a.b">
    <method name="M">
      <arg type="s"/>
      <annotation name="org.freedesktop.DBus.Deprecated" value="false"/>
    </method>
    <signal name="S">
      <arg name="x" type="i" direction="out"/>
      <arg type="s"/>
    </signal>
    <property name="C" type="s" access="read">
      <annotation name="org.freedesktop.DBus.Property.EmitsChangedSignal" value="const"/>
    </property>
    <property name="P" type="ai" access="write"/>
  </interface>
</node>`
	obj, err := ParseIntrospection([]byte(doc))
	if err != nil {
		t.Fatalf("ParseIntrospection: %v", err)
	}
	want := `a.b
  method M(s)
  signal S(i x, s)
  property C s read emits=const
  property P ai write`
	if diff := cmp.Diff(obj.Interfaces["a.b"].String(), want); diff != "" {
		t.Errorf("wrong interface description (-got+want):\n%s", diff)
	}
	if p := obj.Interfaces["a.b"].Properties[1]; p.EmitsChanged != ChangeSignalValue {
		t.Errorf("unannotated property emits %v, want %v", p.EmitsChanged, ChangeSignalValue)
	}
}
