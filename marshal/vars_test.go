package marshal

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/danderson/dbusgen/ctype"
)

func TestVarList(t *testing.T) {
	var a, b VarList
	x := NewVar(ctype.Of("int32_t"), Name("x"))
	y := NewVar(ctype.ToConst(ctype.PointerTo(ctype.Of("char"))), Name("y"))
	z := NewVar(ctype.Size, Name("y").Len())

	a.Add(x)
	a.Add(y)
	a.Add(z)
	if diff := cmp.Diff(decls(&a), []string{"int32_t x", "const char *y", "size_t y_len"}); diff != "" {
		t.Errorf("wrong list (-got+want):\n%s", diff)
	}

	a.Transfer(y, &b)
	if a.Owns(y) || !b.Owns(y) {
		t.Error("Transfer did not move ownership")
	}
	if diff := cmp.Diff(decls(&a), []string{"int32_t x", "size_t y_len"}); diff != "" {
		t.Errorf("wrong source list after Transfer (-got+want):\n%s", diff)
	}

	a.TransferAll(&b)
	if a.Len() != 0 {
		t.Errorf("source list has %d vars after TransferAll, want 0", a.Len())
	}
	if diff := cmp.Diff(decls(&b), []string{"const char *y", "int32_t x", "size_t y_len"}); diff != "" {
		t.Errorf("wrong destination list (-got+want):\n%s", diff)
	}

	if v, ok := b.Lookup(Name("y").Len()); !ok || v != z {
		t.Errorf("Lookup(y_len) = %v, %v, want %v", v, ok, z)
	}
	if _, ok := b.Lookup(Name("nope")); ok {
		t.Error("Lookup of unknown name succeeded")
	}
}

func TestVarListVarsIsCopy(t *testing.T) {
	var l VarList
	l.Add(NewVar(ctype.Of("int"), Name("a")))
	vs := l.Vars()
	vs[0] = nil
	if l.Vars()[0] == nil {
		t.Error("modifying Vars result changed the list")
	}
}

func TestVarListPanics(t *testing.T) {
	tests := []struct {
		name string
		fn   func()
	}{
		{"add owned", func() {
			var a, b VarList
			v := NewVar(ctype.Of("int"), Name("v"))
			a.Add(v)
			b.Add(v)
		}},
		{"add twice", func() {
			var a VarList
			v := NewVar(ctype.Of("int"), Name("v"))
			a.Add(v)
			a.Add(v)
		}},
		{"duplicate name", func() {
			var a VarList
			a.Add(NewVar(ctype.Of("int"), Name("v")))
			a.Add(NewVar(ctype.Of("double"), Name("v")))
		}},
		{"transfer unowned", func() {
			var a, b VarList
			a.Transfer(NewVar(ctype.Of("int"), Name("v")), &b)
		}},
		{"transfer from wrong list", func() {
			var a, b, c VarList
			v := NewVar(ctype.Of("int"), Name("v"))
			a.Add(v)
			b.Transfer(v, &c)
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("did not panic")
				}
			}()
			tc.fn()
		})
	}
}
