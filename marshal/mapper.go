package marshal

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/danderson/dbusgen"
	"github.com/danderson/dbusgen/ctype"
)

// A TypeMapper maps DBus types to the native types and constants that
// generated code uses.
type TypeMapper interface {
	// TypeOf returns the native type of a variable called name that
	// holds a value of type t.
	TypeOf(t dbusgen.Type, name Ident) ctype.Type
	// Tag returns the constant identifying t's wire type.
	Tag(t dbusgen.Type) string
	// ToConst returns the read-only form of t.
	ToConst(t ctype.Type) ctype.Type
	// ToPointer returns a pointer to t.
	ToPointer(t ctype.Type) ctype.Type
	// StructName returns the name of the struct type that the
	// variable called name points to.
	StructName(name Ident) string
}

// CMapper is the [TypeMapper] for C code using libdbus.
type CMapper struct {
	// Prefix is prepended to the names of generated struct types.
	Prefix string
}

var basicCTypes = map[byte]ctype.Type{
	'y': ctype.Of("uint8_t"),
	'b': ctype.Of("int"),
	'n': ctype.Of("int16_t"),
	'q': ctype.Of("uint16_t"),
	'i': ctype.Of("int32_t"),
	'u': ctype.Of("uint32_t"),
	'x': ctype.Of("int64_t"),
	't': ctype.Of("uint64_t"),
	'd': ctype.Of("double"),
	'h': ctype.Of("int"),
	's': ctype.PointerTo(ctype.Of("char")),
	'o': ctype.PointerTo(ctype.Of("char")),
	'g': ctype.PointerTo(ctype.Of("char")),
}

func (m CMapper) TypeOf(t dbusgen.Type, name Ident) ctype.Type {
	switch v := t.(type) {
	case *dbusgen.Basic:
		ret, ok := basicCTypes[v.Code]
		if !ok {
			panic(fmt.Sprintf("no C type for basic type %s", v))
		}
		return ret
	case *dbusgen.Array:
		return ctype.PointerTo(m.TypeOf(v.Elem, name.Element()))
	case dbusgen.Aggregate:
		return ctype.PointerTo(ctype.Of(m.StructName(name)))
	default:
		panic(fmt.Sprintf("no C type for %s", t))
	}
}

func (CMapper) Tag(t dbusgen.Type) string {
	switch v := t.(type) {
	case *dbusgen.Basic:
		return "DBUS_TYPE_" + v.Name()
	case *dbusgen.Array:
		return "DBUS_TYPE_ARRAY"
	case *dbusgen.Struct:
		return "DBUS_TYPE_STRUCT"
	case *dbusgen.DictEntry:
		return "DBUS_TYPE_DICT_ENTRY"
	case *dbusgen.Variant:
		return "DBUS_TYPE_VARIANT"
	default:
		panic(fmt.Sprintf("no type constant for %s", t))
	}
}

func (CMapper) ToConst(t ctype.Type) ctype.Type   { return ctype.ToConst(t) }
func (CMapper) ToPointer(t ctype.Type) ctype.Type { return ctype.PointerTo(t) }

func (m CMapper) StructName(name Ident) string {
	var ret strings.Builder
	ret.WriteString(m.Prefix)
	ret.WriteString(CamelCase(name.Root))
	for _, s := range name.Path {
		ret.WriteString(CamelCase(s.String()))
	}
	return ret.String()
}

// CamelCase converts a snake_case C identifier to CamelCase, as used
// for generated type names.
func CamelCase(s string) string {
	var ret strings.Builder
	for _, word := range strings.Split(s, "_") {
		if word == "" {
			continue
		}
		r, n := utf8.DecodeRuneInString(word)
		ret.WriteRune(unicode.ToUpper(r))
		ret.WriteString(word[n:])
	}
	return ret.String()
}
