package marshal

import (
	"fmt"
	"slices"
	"strings"
)

// A SegmentKind identifies how a generated variable name was derived
// from its parent.
type SegmentKind uint8

const (
	// SegElement is one element of an array.
	SegElement SegmentKind = iota + 1
	// SegLen is the element count of an array.
	SegLen
	// SegItem is the N'th member of a struct or dict entry.
	SegItem
	// SegIter is the message iterator of a container.
	SegIter
	// SegIndex is the loop counter over an array.
	SegIndex
)

// A Segment is one derivation step in an [Ident].
type Segment struct {
	Kind SegmentKind
	// N is the member number, for SegItem.
	N int
}

func (s Segment) String() string {
	switch s.Kind {
	case SegElement:
		return "element"
	case SegLen:
		return "len"
	case SegItem:
		return fmt.Sprintf("item%d", s.N)
	case SegIter:
		return "iter"
	case SegIndex:
		return "i"
	default:
		panic(fmt.Sprintf("unknown segment kind %d", s.Kind))
	}
}

// An Ident is the name of a variable in generated code: a root name
// chosen by the caller, followed by segments appended by the
// generators as they descend into a type.
//
// Idents are values; methods never modify the receiver.
type Ident struct {
	Root string
	Path []Segment
}

// Name returns the Ident for a caller-chosen variable name.
func Name(root string) Ident {
	return Ident{Root: root}
}

func (id Ident) with(s Segment) Ident {
	path := make([]Segment, 0, len(id.Path)+1)
	path = append(path, id.Path...)
	return Ident{id.Root, append(path, s)}
}

// Element returns the Ident of one element of the array id.
func (id Ident) Element() Ident { return id.with(Segment{Kind: SegElement}) }

// Len returns the Ident of the element count of the array id.
func (id Ident) Len() Ident { return id.with(Segment{Kind: SegLen}) }

// Item returns the Ident of the n'th member of the struct id.
func (id Ident) Item(n int) Ident { return id.with(Segment{Kind: SegItem, N: n}) }

// Iter returns the Ident of the container iterator for id.
func (id Ident) Iter() Ident { return id.with(Segment{Kind: SegIter}) }

// Index returns the Ident of the loop counter over the array id.
func (id Ident) Index() Ident { return id.with(Segment{Kind: SegIndex}) }

// String returns the C variable name, with segments joined to the
// root by underscores.
func (id Ident) String() string {
	var ret strings.Builder
	ret.WriteString(id.Root)
	for _, s := range id.Path {
		ret.WriteByte('_')
		ret.WriteString(s.String())
	}
	return ret.String()
}

// Equal reports whether id and other name the same variable.
func (id Ident) Equal(other Ident) bool {
	return id.Root == other.Root && slices.Equal(id.Path, other.Path)
}

// TrimPrefix returns the segments that follow prefix in id. ok is
// false if id is not derived from prefix.
func (id Ident) TrimPrefix(prefix Ident) (suffix []Segment, ok bool) {
	if id.Root != prefix.Root || len(id.Path) < len(prefix.Path) {
		return nil, false
	}
	if !slices.Equal(id.Path[:len(prefix.Path)], prefix.Path) {
		return nil, false
	}
	return slices.Clone(id.Path[len(prefix.Path):]), true
}

// Rebase returns id with its prefix from replaced by to. Rebase
// panics if id is not derived from from.
func (id Ident) Rebase(from, to Ident) Ident {
	suffix, ok := id.TrimPrefix(from)
	if !ok {
		panic(fmt.Sprintf("variable %s is not derived from %s", id, from))
	}
	if len(to.Path)+len(suffix) == 0 {
		return Ident{Root: to.Root}
	}
	path := make([]Segment, 0, len(to.Path)+len(suffix))
	path = append(path, to.Path...)
	return Ident{to.Root, append(path, suffix...)}
}

// fieldName renders a segment path as a struct field name, for
// example "item1_len".
func fieldName(path []Segment) string {
	parts := make([]string, len(path))
	for i, s := range path {
		parts[i] = s.String()
	}
	return strings.Join(parts, "_")
}
