package dbusgen

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Limits imposed on signatures by the DBus specification.
const (
	maxSignatureLen = 255
	maxArrayDepth   = 32
	maxStructDepth  = 32
)

// A Category is the broad shape of a [Type].
type Category int

const (
	CategoryBasic Category = iota + 1
	CategoryArray
	CategoryStruct
	CategoryDictEntry
	CategoryVariant
)

func (c Category) String() string {
	switch c {
	case CategoryBasic:
		return "basic"
	case CategoryArray:
		return "array"
	case CategoryStruct:
		return "struct"
	case CategoryDictEntry:
		return "dict entry"
	case CategoryVariant:
		return "variant"
	default:
		return fmt.Sprintf("Category(%d)", int(c))
	}
}

// A Type is one complete DBus type.
//
// The concrete type is always one of [*Basic], [*Array], [*Struct],
// [*DictEntry] or [*Variant].
type Type interface {
	// String returns the canonical signature of the type.
	String() string
	// Category returns the shape of the type.
	Category() Category
	// Align returns the wire alignment of the type, in bytes.
	Align() int

	isType()
}

// An Aggregate is a [Type] made of an ordered, fixed list of member
// types: a [*Struct] or a [*DictEntry].
type Aggregate interface {
	Type
	Members() []Type
}

// Basic is a scalar or string-like type.
type Basic struct {
	// Code is the type's signature character.
	Code byte
}

func (*Basic) isType() {}
func (b *Basic) String() string { return string(b.Code) }
func (b *Basic) Category() Category { return CategoryBasic }
func (b *Basic) Align() int { return codeToAlign[b.Code] }

// Fixed reports whether the type's wire encoding has a fixed size.
func (b *Basic) Fixed() bool { return fixedCodes.Has(b.Code) }

// Name returns the DBus specification's name for the type, for
// example "INT32" or "OBJECT_PATH".
func (b *Basic) Name() string { return codeToName[b.Code] }

// Array is a sequence of zero or more values of one element type.
type Array struct {
	Elem Type
}

func (*Array) isType() {}
func (a *Array) String() string { return "a" + a.Elem.String() }
func (a *Array) Category() Category { return CategoryArray }
func (a *Array) Align() int { return codeToAlign['a'] }

// Struct is an ordered sequence of one or more heterogeneous fields.
type Struct struct {
	Fields []Type
}

func (*Struct) isType() {}
func (s *Struct) Category() Category { return CategoryStruct }
func (s *Struct) Align() int { return codeToAlign['('] }
func (s *Struct) Members() []Type { return s.Fields }

func (s *Struct) String() string {
	var ret strings.Builder
	ret.WriteByte('(')
	for _, f := range s.Fields {
		ret.WriteString(f.String())
	}
	ret.WriteByte(')')
	return ret.String()
}

// DictEntry is a key/value pair. DictEntry only appears as the
// element type of an [Array], which together form a dictionary.
type DictEntry struct {
	Key   *Basic
	Value Type
}

func (*DictEntry) isType() {}
func (d *DictEntry) String() string { return "{" + d.Key.String() + d.Value.String() + "}" }
func (d *DictEntry) Category() Category { return CategoryDictEntry }
func (d *DictEntry) Align() int { return codeToAlign['{'] }
func (d *DictEntry) Members() []Type { return []Type{d.Key, d.Value} }

// Variant is a value that carries its own type signature.
type Variant struct{}

func (*Variant) isType() {}
func (*Variant) String() string { return "v" }
func (*Variant) Category() Category { return CategoryVariant }
func (*Variant) Align() int { return codeToAlign['v'] }

// IsFixed reports whether t is a basic type with a fixed size wire
// encoding.
func IsFixed(t Type) bool {
	b, ok := t.(*Basic)
	return ok && b.Fixed()
}

// Walk calls fn for t and all the types nested within it, in
// depth-first order. If fn returns false, Walk does not descend into
// that type's children.
func Walk(t Type, fn func(Type) bool) {
	if !fn(t) {
		return
	}
	switch v := t.(type) {
	case *Array:
		Walk(v.Elem, fn)
	case Aggregate:
		for _, m := range v.Members() {
			Walk(m, fn)
		}
	}
}

// A Signature is a sequence of zero or more complete types, such as
// the types of a method's arguments.
type Signature struct {
	types []Type
	str   string
}

// String returns the signature string.
func (s Signature) String() string {
	return s.str
}

// IsZero reports whether the signature contains no types.
func (s Signature) IsZero() bool {
	return len(s.types) == 0
}

// Types returns the complete types making up the signature.
func (s Signature) Types() []Type {
	return slices.Clone(s.types)
}

// Single returns the signature's type, if the signature consists of
// exactly one complete type.
func (s Signature) Single() (Type, bool) {
	if len(s.types) != 1 {
		return nil, false
	}
	return s.types[0], true
}

var strToSignature cache[string, Signature]

// ParseSignature parses a DBus type signature string.
func ParseSignature(sig string) (Signature, error) {
	if ret, err := strToSignature.Get(sig); err == nil {
		return ret, nil
	} else if !errors.Is(err, errNotFound) {
		return Signature{}, err
	}

	ret, err := parseSignature(sig)
	if err != nil {
		strToSignature.SetErr(sig, err)
		return Signature{}, err
	}
	strToSignature.Set(sig, ret)
	return ret, nil
}

// ParseType parses a signature string that must contain exactly one
// complete type.
func ParseType(sig string) (Type, error) {
	s, err := ParseSignature(sig)
	if err != nil {
		return nil, err
	}
	ret, ok := s.Single()
	if !ok {
		return nil, sigErr(sig, "want exactly one complete type, found %d", len(s.types))
	}
	return ret, nil
}

// MustParseType is like [ParseType], but panics if sig is invalid.
func MustParseType(sig string) Type {
	ret, err := ParseType(sig)
	if err != nil {
		panic(err)
	}
	return ret
}

func parseSignature(sig string) (Signature, error) {
	if len(sig) > maxSignatureLen {
		return Signature{}, sigErr(sig, "signature is %d bytes, maximum is %d", len(sig), maxSignatureLen)
	}
	p := parser{sig: sig}
	var types []Type
	for p.pos < len(sig) {
		t, err := p.one(false)
		if err != nil {
			return Signature{}, err
		}
		types = append(types, t)
	}
	return Signature{types, sig}, nil
}

// parser consumes complete types off the front of sig, tracking the
// container nesting depth.
type parser struct {
	sig     string
	pos     int
	arrays  int
	structs int
}

func (p *parser) fail(reason string, args ...any) error {
	return sigErr(p.sig, "offset %d: %s", p.pos, fmt.Sprintf(reason, args...))
}

func (p *parser) one(inArray bool) (Type, error) {
	if p.pos >= len(p.sig) {
		return nil, p.fail("missing type")
	}

	c := p.sig[p.pos]
	if basicCodes.Has(c) {
		p.pos++
		return &Basic{c}, nil
	}

	switch c {
	case 'v':
		p.pos++
		return &Variant{}, nil
	case 'a':
		p.pos++
		p.arrays++
		defer func() { p.arrays-- }()
		if p.arrays > maxArrayDepth {
			return nil, p.fail("arrays nested more than %d deep", maxArrayDepth)
		}
		elem, err := p.one(true)
		if err != nil {
			return nil, err
		}
		return &Array{elem}, nil
	case '(':
		start := p.pos
		p.pos++
		p.structs++
		defer func() { p.structs-- }()
		if p.structs > maxStructDepth {
			return nil, p.fail("structs nested more than %d deep", maxStructDepth)
		}
		var fields []Type
		for p.pos < len(p.sig) && p.sig[p.pos] != ')' {
			f, err := p.one(false)
			if err != nil {
				return nil, err
			}
			fields = append(fields, f)
		}
		if p.pos >= len(p.sig) {
			p.pos = start
			return nil, p.fail("missing closing ) in struct definition")
		}
		if len(fields) == 0 {
			return nil, p.fail("struct must have at least one field")
		}
		p.pos++
		return &Struct{fields}, nil
	case '{':
		if !inArray {
			return nil, p.fail("dict entry type found outside array")
		}
		p.pos++
		p.structs++
		defer func() { p.structs-- }()
		if p.structs > maxStructDepth {
			return nil, p.fail("structs nested more than %d deep", maxStructDepth)
		}
		key, err := p.one(false)
		if err != nil {
			return nil, err
		}
		kb, ok := key.(*Basic)
		if !ok {
			return nil, p.fail("invalid dict entry key type %s, must be a basic type", key)
		}
		val, err := p.one(false)
		if err != nil {
			return nil, err
		}
		if p.pos >= len(p.sig) || p.sig[p.pos] != '}' {
			return nil, p.fail("dict entry must have exactly two members and a closing }")
		}
		p.pos++
		return &DictEntry{kb, val}, nil
	case ')', '}':
		return nil, p.fail("unexpected %q", c)
	default:
		return nil, p.fail("unknown type code %q", c)
	}
}
