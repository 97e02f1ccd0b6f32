package marshal

import (
	"github.com/danderson/dbusgen"
	"github.com/danderson/dbusgen/ctype"
)

// A Stmt is one node of generated code.
//
// The concrete type is always one of [*Append], [*Container],
// [*Loop] or [*Member].
type Stmt interface {
	stmt()
}

// A Block is a sequence of statements.
//
// Once a Block has been placed inside another node it belongs to
// that node, and placing it anywhere else is a programming error.
type Block struct {
	Stmts []Stmt

	adopted bool
}

func (b *Block) add(s Stmt) {
	b.Stmts = append(b.Stmts, s)
}

// adopt marks b as belonging to a parent node, and returns b.
func (b *Block) adopt() *Block {
	if b.adopted {
		panic("code block already belongs to another node")
	}
	b.adopted = true
	return b
}

// Recovery is caller-provided C code that runs when the message
// iterator fails to allocate memory. It must not fall through: it
// has to return, jump or abort.
type Recovery string

// Append appends the basic value Value to the iterator Iter.
type Append struct {
	Iter Ident
	// Tag is the DBus type constant of the value, such as
	// "DBUS_TYPE_INT32".
	Tag string
	// Type is the C type of Value.
	Type     ctype.Type
	Value    Ident
	Recovery Recovery
}

// Container opens a container of kind Kind in Iter, runs Body
// against the container's own iterator Sub, and closes the container
// again.
type Container struct {
	// Kind is one of CategoryArray, CategoryStruct or
	// CategoryDictEntry.
	Kind dbusgen.Category
	Iter Ident
	Tag  string
	// Signature is the element signature of an array, and empty for
	// other containers.
	Signature string
	Sub       Ident
	Body      *Block
	Recovery  Recovery
}

// A Bound is the termination condition of a [Loop].
//
// The concrete type is always [Counted] or [Sentinel].
type Bound interface {
	bound()
}

// Counted loops while the index is less than the value of Len.
type Counted struct {
	Len Ident
}

// Sentinel loops until Array holds a NULL at the index.
type Sentinel struct {
	Array Ident
}

func (Counted) bound()  {}
func (Sentinel) bound() {}

// Loop runs Body once per array element. At the top of each
// iteration Locals are declared and Assigns copy the current
// element's values into them.
type Loop struct {
	Index   Ident
	Bound   Bound
	Locals  VarList
	Assigns []*Assign
	Body    *Block
}

// Member marshals the N'th member of a struct or dict entry: Assigns
// read the member's values out of the struct, then Body appends
// them.
type Member struct {
	N       int
	Assigns []*Assign
	Body    *Block
}

func (*Append) stmt()    {}
func (*Container) stmt() {}
func (*Loop) stmt()      {}
func (*Member) stmt()    {}

// Assign copies the value of Src into the variable Dst.
type Assign struct {
	Dst Ident
	Src Expr
}

// An Expr is a value read by an [Assign].
//
// The concrete type is always [IndexExpr] or [FieldExpr].
type Expr interface {
	expr()
}

// IndexExpr reads Array[Index].
type IndexExpr struct {
	Array Ident
	Index Ident
}

// FieldExpr reads a field of the struct that Record points to.
type FieldExpr struct {
	Record Ident
	Field  []Segment
}

// FieldName returns the C name of the field.
func (f FieldExpr) FieldName() string {
	return fieldName(f.Field)
}

func (IndexExpr) expr() {}
func (FieldExpr) expr() {}

// StructDef describes the C struct type that generated code reads a
// struct or dict entry from.
type StructDef struct {
	// Name is the typedef name.
	Name   string
	Fields []Field
}

// Field is one field of a [StructDef].
type Field struct {
	Type ctype.Type
	Name string
}

// Result is the output of a marshal code generator.
//
// A Result must not be copied once created: the variable lists track
// ownership by address.
type Result struct {
	// Code is the generated code.
	Code *Block
	// Inputs are the variables Code expects to be in scope. The
	// first input is always the value being marshalled.
	Inputs VarList
	// Locals are the variables Code expects its enclosing function
	// to declare.
	Locals VarList
	// Structs are the struct types that Inputs refer to, in an order
	// where every struct follows the structs it contains.
	Structs []*StructDef
}

func newResult() *Result {
	return &Result{Code: &Block{}}
}
