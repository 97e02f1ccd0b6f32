// Package ctype models the C types that generated code declares and
// passes around, so that qualifiers can be added structurally rather
// than by editing type strings.
package ctype

import "strings"

// A Type is a C type: a [Named] base type, or a [Pointer] to another
// Type.
type Type interface {
	// String renders the type as C source, for example
	// "const char * const *".
	String() string

	isType()
}

// Named is a C base type, such as "int32_t" or a typedef name.
type Named struct {
	Name string
	// Const marks the type read-only.
	Const bool
}

func (Named) isType() {}

func (n Named) String() string {
	if n.Const {
		return "const " + n.Name
	}
	return n.Name
}

// Pointer is a pointer to Elem.
type Pointer struct {
	Elem Type
	// Const marks the pointer itself read-only.
	Const bool
}

func (Pointer) isType() {}

func (p Pointer) String() string {
	var ret strings.Builder
	ret.WriteString(p.Elem.String())
	ret.WriteString(" *")
	if p.Const {
		ret.WriteString(" const")
	}
	return ret.String()
}

// Common base types.
var (
	Size = Named{Name: "size_t"}
	Iter = Named{Name: "DBusMessageIter"}
)

// Of returns the named type n.
func Of(n string) Type {
	return Named{Name: n}
}

// PointerTo returns a pointer to t.
func PointerTo(t Type) Type {
	return Pointer{Elem: t}
}

// ToConst returns t with the value it points to marked read-only, as
// a promise that generated code never modifies it. Non-pointer types
// are passed by value and are returned unchanged.
func ToConst(t Type) Type {
	p, ok := t.(Pointer)
	if !ok {
		return t
	}
	p.Elem = withConst(p.Elem)
	return p
}

func withConst(t Type) Type {
	switch v := t.(type) {
	case Named:
		v.Const = true
		return v
	case Pointer:
		v.Const = true
		return v
	default:
		panic("unknown ctype.Type")
	}
}

// Declare renders a declaration of a variable called name with type
// t, for example "const char *name" or "int32_t name".
func Declare(t Type, name string) string {
	s := t.String()
	if strings.HasSuffix(s, "*") {
		return s + name
	}
	return s + " " + name
}
