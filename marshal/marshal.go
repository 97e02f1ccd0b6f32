package marshal

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/danderson/dbusgen"
	"github.com/danderson/dbusgen/ctype"
)

// Generator generates code that appends values to a DBus message.
//
// The zero Generator generates C for libdbus, with unprefixed struct
// type names.
type Generator struct {
	// Mapper maps DBus types to native types. If nil, CMapper{} is
	// used.
	Mapper TypeMapper
}

func (g *Generator) mapper() TypeMapper {
	if g.Mapper == nil {
		return CMapper{}
	}
	return g.Mapper
}

// Check reports whether Marshal can generate code for values of type
// t. It returns a [*dbusgen.TypeError] if it cannot.
func Check(t dbusgen.Type) error {
	if t == nil {
		return errors.New("no type given")
	}
	var err error
	dbusgen.Walk(t, func(sub dbusgen.Type) bool {
		if err != nil {
			return false
		}
		if sub.Category() == dbusgen.CategoryVariant {
			err = &dbusgen.TypeError{Type: t.String(), Reason: dbusgen.ErrVariant}
			return false
		}
		return true
	})
	return err
}

// Marshal generates code that appends the value held in the variable
// name, of DBus type t, to the message iterator iter. If the
// iterator runs out of memory, the generated code runs recovery.
//
// Marshal panics if t is not supported, see [Check].
func (g *Generator) Marshal(t dbusgen.Type, iter, name string, recovery Recovery) *Result {
	if t == nil {
		panic("no type given")
	}
	if iter == "" || name == "" {
		panic("iterator and variable names must not be empty")
	}
	return g.marshal(t, Name(iter), Name(name), recovery)
}

func (g *Generator) marshal(t dbusgen.Type, iter, name Ident, recovery Recovery) *Result {
	Logger().Debug("generating marshal code",
		zap.Stringer("type", t),
		zap.Stringer("name", name),
		zap.Stringer("iter", iter))

	switch v := t.(type) {
	case *dbusgen.Basic:
		return g.marshalBasic(v, iter, name, recovery)
	case *dbusgen.Array:
		return g.marshalArray(v, iter, name, recovery)
	case *dbusgen.Struct:
		return g.marshalStruct(v, iter, name, recovery)
	case *dbusgen.DictEntry:
		return g.marshalStruct(v, iter, name, recovery)
	default:
		panic(fmt.Sprintf("cannot marshal values of type %s", t))
	}
}

func (g *Generator) marshalBasic(t *dbusgen.Basic, iter, name Ident, recovery Recovery) *Result {
	m := g.mapper()
	typ := m.ToConst(m.TypeOf(t, name))

	ret := newResult()
	ret.Code.add(&Append{
		Iter:     iter,
		Tag:      m.Tag(t),
		Type:     typ,
		Value:    name,
		Recovery: recovery,
	})
	ret.Inputs.Add(NewVar(typ, name))
	return ret
}

// marshalArray generates a loop that marshals each element of an
// array. The element's inputs become per-iteration locals, assigned
// from correspondingly named arrays that become the array's inputs.
func (g *Generator) marshalArray(t *dbusgen.Array, iter, name Ident, recovery Recovery) *Result {
	m := g.mapper()
	var (
		sub      = name.Iter()
		index    = name.Index()
		elemName = name.Element()
	)

	ret := newResult()
	ret.Locals.Add(NewVar(ctype.Iter, sub))

	elem := g.marshal(t.Elem, sub, elemName, recovery)

	loop := &Loop{Index: index}
	elem.Locals.TransferAll(&loop.Locals)
	for _, in := range elem.Inputs.Vars() {
		arr := in.Name.Rebase(elemName, name)
		ret.Inputs.Add(NewVar(m.ToConst(m.ToPointer(in.Type)), arr))
		loop.Assigns = append(loop.Assigns, &Assign{
			Dst: in.Name,
			Src: IndexExpr{Array: arr, Index: index},
		})
		elem.Inputs.Transfer(in, &loop.Locals)
	}
	loop.Body = elem.Code.adopt()

	fixed := dbusgen.IsFixed(t.Elem)
	if fixed {
		loop.Bound = Counted{Len: name.Len()}
	} else {
		loop.Bound = Sentinel{Array: name}
	}

	body := &Block{}
	body.add(loop)
	ret.Code.add(&Container{
		Kind:      dbusgen.CategoryArray,
		Iter:      iter,
		Tag:       m.Tag(t),
		Signature: t.Elem.String(),
		Sub:       sub,
		Body:      body.adopt(),
		Recovery:  recovery,
	})

	if fixed {
		ret.Inputs.Add(NewVar(ctype.Size, name.Len()))
	}
	ret.Structs = append(ret.Structs, elem.Structs...)
	return ret
}

// marshalStruct generates code that marshals each member of a struct
// or dict entry in turn. Member inputs become locals of the struct
// code, assigned from fields of the struct that name points to.
func (g *Generator) marshalStruct(t dbusgen.Aggregate, iter, name Ident, recovery Recovery) *Result {
	m := g.mapper()
	sub := name.Iter()
	typ := m.ToConst(m.TypeOf(t, name))

	ret := newResult()
	ret.Locals.Add(NewVar(ctype.Iter, sub))

	def := &StructDef{Name: m.StructName(name)}
	body := &Block{}
	for k, mt := range t.Members() {
		itemName := name.Item(k)
		item := g.marshal(mt, sub, itemName, recovery)

		member := &Member{N: k}
		item.Locals.TransferAll(&ret.Locals)
		for _, in := range item.Inputs.Vars() {
			if _, ok := in.Name.TrimPrefix(itemName); !ok {
				panic(fmt.Sprintf("member input %s is not derived from %s", in.Name, itemName))
			}
			field, _ := in.Name.TrimPrefix(name)
			member.Assigns = append(member.Assigns, &Assign{
				Dst: in.Name,
				Src: FieldExpr{Record: name, Field: field},
			})
			def.Fields = append(def.Fields, Field{Type: in.Type, Name: fieldName(field)})
			item.Inputs.Transfer(in, &ret.Locals)
		}
		member.Body = item.Code.adopt()
		body.add(member)
		ret.Structs = append(ret.Structs, item.Structs...)
	}

	ret.Code.add(&Container{
		Kind:     t.Category(),
		Iter:     iter,
		Tag:      m.Tag(t),
		Sub:      sub,
		Body:     body.adopt(),
		Recovery: recovery,
	})
	ret.Inputs.Add(NewVar(typ, name))
	ret.Structs = append(ret.Structs, def)
	return ret
}
