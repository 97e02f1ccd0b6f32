package marshaltest

import (
	"fmt"

	"github.com/danderson/dbusgen"
	"github.com/danderson/dbusgen/marshal"
)

// Bind returns the variable bindings that code generated by
// [marshal.Generator.Marshal] for type t and variable name reads, to
// marshal the value v.
func Bind(t dbusgen.Type, name string, v any) (Env, error) {
	bs, err := bind(t, marshal.Name(name), v)
	if err != nil {
		return nil, err
	}
	ret := Env{}
	for _, b := range bs {
		ret[b.name.String()] = b.val
	}
	return ret, nil
}

type binding struct {
	name marshal.Ident
	val  any
}

// inputs returns the names of the variables that code marshalling a
// value of type t called name reads, in order.
func inputs(t dbusgen.Type, name marshal.Ident) []marshal.Ident {
	arr, ok := t.(*dbusgen.Array)
	if !ok {
		return []marshal.Ident{name}
	}
	elemName := name.Element()
	var ret []marshal.Ident
	for _, in := range inputs(arr.Elem, elemName) {
		ret = append(ret, in.Rebase(elemName, name))
	}
	if dbusgen.IsFixed(arr.Elem) {
		ret = append(ret, name.Len())
	}
	return ret
}

func bind(t dbusgen.Type, name marshal.Ident, v any) ([]binding, error) {
	switch tt := t.(type) {
	case *dbusgen.Basic:
		if !isBasic(tt, v) {
			return nil, fmt.Errorf("cannot bind %T value to %s of type %s", v, name, t)
		}
		return []binding{{name, v}}, nil

	case *dbusgen.Array:
		elems, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("cannot bind %T value to %s of type %s", v, name, t)
		}
		elemName := name.Element()
		names := inputs(tt.Elem, elemName)
		cols := make([][]any, len(names))
		for i := range cols {
			cols[i] = make([]any, 0, len(elems)+1)
		}
		for _, e := range elems {
			bs, err := bind(tt.Elem, elemName, e)
			if err != nil {
				return nil, err
			}
			if len(bs) != len(names) {
				return nil, fmt.Errorf("element of %s bound %d variables, want %d", name, len(bs), len(names))
			}
			for i, b := range bs {
				cols[i] = append(cols[i], b.val)
			}
		}
		if dbusgen.IsFixed(tt.Elem) {
			return []binding{{name, cols[0]}, {name.Len(), len(elems)}}, nil
		}
		ret := make([]binding, 0, len(names))
		for i, n := range names {
			ret = append(ret, binding{n.Rebase(elemName, name), append(cols[i], nil)})
		}
		return ret, nil

	case dbusgen.Aggregate:
		members, ok := v.([]any)
		if !ok || len(members) != len(tt.Members()) {
			return nil, fmt.Errorf("cannot bind %T value to %s of type %s", v, name, t)
		}
		rec := map[string]any{}
		for k, mt := range tt.Members() {
			bs, err := bind(mt, name.Item(k), members[k])
			if err != nil {
				return nil, err
			}
			for _, b := range bs {
				suffix, _ := b.name.TrimPrefix(name)
				rec[marshal.FieldExpr{Field: suffix}.FieldName()] = b.val
			}
		}
		return []binding{{name, rec}}, nil

	default:
		return nil, fmt.Errorf("cannot bind values of type %s", t)
	}
}

func isBasic(t *dbusgen.Basic, v any) bool {
	var ok bool
	switch t.Code {
	case 'y':
		_, ok = v.(uint8)
	case 'b':
		_, ok = v.(bool)
	case 'n':
		_, ok = v.(int16)
	case 'q':
		_, ok = v.(uint16)
	case 'i':
		_, ok = v.(int32)
	case 'u', 'h':
		_, ok = v.(uint32)
	case 'x':
		_, ok = v.(int64)
	case 't':
		_, ok = v.(uint64)
	case 'd':
		_, ok = v.(float64)
	case 's', 'o', 'g':
		_, ok = v.(string)
	}
	return ok
}
