package marshal

import (
	"fmt"
	"slices"

	"github.com/danderson/dbusgen/ctype"
)

// A Var is a variable in generated code, either one that the code
// expects to already be in scope (an input) or one that the code
// declares itself (a local).
type Var struct {
	Type ctype.Type
	Name Ident

	owner *VarList
}

// NewVar returns a Var that does not yet belong to any list.
func NewVar(typ ctype.Type, name Ident) *Var {
	return &Var{Type: typ, Name: name}
}

// String returns the C declaration of the variable, without a
// trailing semicolon.
func (v *Var) String() string {
	return ctype.Declare(v.Type, v.Name.String())
}

// A VarList is an ordered list of variables with distinct names.
//
// A Var belongs to at most one VarList at a time. Moving a Var
// between lists must go through [VarList.Transfer], which keeps the
// single owner invariant. Violations are programming errors and
// panic.
//
// The zero value is an empty list ready to use.
type VarList struct {
	vars []*Var
}

// Add appends v to the list. v must not belong to any list, and its
// name must not already be in use in l.
func (l *VarList) Add(v *Var) {
	if v.owner != nil {
		panic(fmt.Sprintf("variable %s already belongs to a list", v.Name))
	}
	if _, ok := l.Lookup(v.Name); ok {
		panic(fmt.Sprintf("duplicate variable %s", v.Name))
	}
	v.owner = l
	l.vars = append(l.vars, v)
}

// Transfer moves v, which must belong to l, to the end of dst.
func (l *VarList) Transfer(v *Var, dst *VarList) {
	if v.owner != l {
		panic(fmt.Sprintf("variable %s does not belong to this list", v.Name))
	}
	l.vars = slices.DeleteFunc(l.vars, func(o *Var) bool { return o == v })
	v.owner = nil
	dst.Add(v)
}

// TransferAll moves every variable in l to the end of dst,
// preserving order.
func (l *VarList) TransferAll(dst *VarList) {
	for _, v := range l.Vars() {
		l.Transfer(v, dst)
	}
}

// Len returns the number of variables in the list.
func (l *VarList) Len() int {
	return len(l.vars)
}

// Vars returns the variables in the list, in order.
func (l *VarList) Vars() []*Var {
	return slices.Clone(l.vars)
}

// Lookup returns the variable called name, if it is in the list.
func (l *VarList) Lookup(name Ident) (*Var, bool) {
	for _, v := range l.vars {
		if v.Name.Equal(name) {
			return v, true
		}
	}
	return nil, false
}

// Owns reports whether v belongs to l.
func (l *VarList) Owns(v *Var) bool {
	return v.owner == l
}
