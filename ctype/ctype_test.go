package ctype

import "testing"

func TestString(t *testing.T) {
	str := PointerTo(Of("char"))
	tests := []struct {
		in   Type
		want string
	}{
		{Of("int32_t"), "int32_t"},
		{ToConst(Of("int32_t")), "int32_t"},
		{str, "char *"},
		{ToConst(str), "const char *"},
		{ToConst(PointerTo(ToConst(str))), "const char * const *"},
		{ToConst(PointerTo(ToConst(PointerTo(ToConst(str))))), "const char * const * const *"},
		{ToConst(PointerTo(Of("int32_t"))), "const int32_t *"},
		{ToConst(PointerTo(ToConst(PointerTo(Of("int32_t"))))), "const int32_t * const *"},
		{ToConst(PointerTo(Size)), "const size_t *"},
		{ToConst(PointerTo(Of("MyPair"))), "const MyPair *"},
		{ToConst(ToConst(str)), "const char *"},
		{Iter, "DBusMessageIter"},
	}

	for _, tc := range tests {
		if got := tc.in.String(); got != tc.want {
			t.Errorf("%#v.String() = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDeclare(t *testing.T) {
	tests := []struct {
		typ  Type
		name string
		want string
	}{
		{Of("int32_t"), "foo", "int32_t foo"},
		{ToConst(PointerTo(Of("char"))), "foo", "const char *foo"},
		{ToConst(PointerTo(ToConst(PointerTo(Of("char"))))), "foo", "const char * const *foo"},
		{Iter, "foo_iter", "DBusMessageIter foo_iter"},
	}
	for _, tc := range tests {
		if got := Declare(tc.typ, tc.name); got != tc.want {
			t.Errorf("Declare(%q, %q) = %q, want %q", tc.typ, tc.name, got, tc.want)
		}
	}
}
