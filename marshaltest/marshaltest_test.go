package marshaltest_test

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/danderson/dbusgen"
	"github.com/danderson/dbusgen/fragments"
	"github.com/danderson/dbusgen/marshal"
	"github.com/danderson/dbusgen/marshaltest"
)

const oom marshal.Recovery = "return -1;\n"

type roundTripCase struct {
	sig string
	val any
}

var roundTripCases = []roundTripCase{
	{"y", uint8(42)},
	{"b", true},
	{"b", false},
	{"n", int16(-3)},
	{"q", uint16(65535)},
	{"i", int32(-5)},
	{"u", uint32(7)},
	{"x", int64(-1 << 40)},
	{"t", uint64(1 << 63)},
	{"d", 3.25},
	{"h", uint32(5)},
	{"s", "hello"},
	{"s", ""},
	{"o", "/org/freedesktop/DBus"},
	{"g", "a{sv}"},

	{"ai", []any{}},
	{"ai", []any{int32(1)}},
	{"ai", []any{int32(1), int32(2), int32(3)}},
	{"ay", []any{uint8(1), uint8(2), uint8(3)}},
	{"at", []any{}},
	{"at", []any{uint64(1), uint64(2)}},
	{"ab", []any{true, false}},
	{"ad", []any{0.5}},
	{"as", []any{}},
	{"as", []any{"a"}},
	{"as", []any{"a", "", "bc"}},
	{"ao", []any{"/", "/a/b"}},
	{"ah", []any{uint32(7), uint32(9), uint32(7)}},

	{"(i)", []any{int32(4)}},
	{"(is)", []any{int32(1), "x"}},
	{"(yt)", []any{uint8(1), uint64(2)}},
	{"((ii)s)", []any{[]any{int32(1), int32(2)}, "three"}},
	{"(iai)", []any{int32(1), []any{}}},
	{"(iai)", []any{int32(1), []any{int32(2), int32(3)}}},
	{"(sas)", []any{"x", []any{"y", "z"}}},

	{"a(is)", []any{}},
	{"a(is)", []any{[]any{int32(1), "one"}}},
	{"a(is)", []any{[]any{int32(1), "one"}, []any{int32(2), "two"}}},
	{"a{sx}", []any{}},
	{"a{sx}", []any{[]any{"a", int64(1)}}},
	{"a{sx}", []any{[]any{"a", int64(1)}, []any{"b", int64(2)}}},
	{"a{ys}", []any{[]any{uint8(1), "x"}, []any{uint8(2), "y"}}},

	{"aai", []any{}},
	{"aai", []any{[]any{}}},
	{"aai", []any{[]any{int32(1), int32(2)}, []any{}, []any{int32(3)}}},
	{"aas", []any{[]any{"a"}, []any{}, []any{"b", "c"}}},
	{"a(iai)", []any{[]any{int32(1), []any{int32(2)}}, []any{int32(3), []any{}}}},
	{"a{s(aiu)}", []any{
		[]any{"k1", []any{[]any{int32(1), int32(2)}, uint32(3)}},
		[]any{"k2", []any{[]any{}, uint32(4)}},
	}},
	{"a{sa{sb}}", []any{
		[]any{"outer", []any{[]any{"inner", true}}},
	}},
}

func TestRoundTrip(t *testing.T) {
	var g marshal.Generator
	for _, tc := range roundTripCases {
		typ := dbusgen.MustParseType(tc.sig)
		require.NoError(t, marshal.Check(typ), "Check(%q)", tc.sig)

		res := g.Marshal(typ, "iter", "value", oom)
		env, err := marshaltest.Bind(typ, "value", tc.val)
		require.NoError(t, err, "Bind(%q, %#v)", tc.sig, tc.val)

		var m marshaltest.Machine
		msg, err := m.RunResult(res, "iter", env)
		require.NoError(t, err, "running code for %q", tc.sig)

		got, err := msg.Decode(typ)
		require.NoError(t, err, "decoding %q", tc.sig)
		if diff := cmp.Diff(got, tc.val); diff != "" {
			t.Errorf("round trip of %q changed value (-got+want):\n%s", tc.sig, diff)
		}
	}
}

func TestWireFormat(t *testing.T) {
	tests := []struct {
		sig  string
		val  any
		want []byte
	}{
		{
			"ai",
			[]any{int32(1), int32(2)},
			[]byte{
				0x08, 0x00, 0x00, 0x00, // length
				0x01, 0x00, 0x00, 0x00,
				0x02, 0x00, 0x00, 0x00,
			},
		},
		{
			"a(ys)",
			[]any{[]any{uint8(1), "a"}},
			[]byte{
				0x0a, 0x00, 0x00, 0x00, // length
				0x00, 0x00, 0x00, 0x00, // pad to struct
				0x01,
				0x00, 0x00, 0x00, // pad to string
				0x01, 0x00, 0x00, 0x00, 'a', 0x00,
			},
		},
		{
			"(ss)",
			[]any{"", "b"},
			[]byte{
				0x00, 0x00, 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, // pad
				0x01, 0x00, 0x00, 0x00, 'b', 0x00,
			},
		},
	}

	var g marshal.Generator
	for _, tc := range tests {
		typ := dbusgen.MustParseType(tc.sig)
		res := g.Marshal(typ, "iter", "value", oom)
		env, err := marshaltest.Bind(typ, "value", tc.val)
		require.NoError(t, err)

		m := marshaltest.Machine{Order: fragments.LittleEndian}
		msg, err := m.RunResult(res, "iter", env)
		require.NoError(t, err)
		if !bytes.Equal(msg.Body, tc.want) {
			t.Errorf("%q: wrong wire encoding:\n  got: % x\n want: % x", tc.sig, msg.Body, tc.want)
		}
	}
}

func TestUnixFDs(t *testing.T) {
	var g marshal.Generator
	typ := dbusgen.MustParseType("(hah)")
	res := g.Marshal(typ, "iter", "value", oom)
	env, err := marshaltest.Bind(typ, "value", []any{uint32(3), []any{uint32(10), uint32(11)}})
	require.NoError(t, err)

	m := marshaltest.Machine{Order: fragments.LittleEndian}
	msg, err := m.RunResult(res, "iter", env)
	require.NoError(t, err)
	require.Equal(t, []uint32{3, 10, 11}, msg.FDs)

	raw, err := marshaltest.Decode(typ, msg.Bytes())
	require.NoError(t, err)
	want := []any{uint32(0), []any{uint32(1), uint32(2)}}
	if diff := cmp.Diff(raw, want); diff != "" {
		t.Errorf("wrong fd indexes (-got+want):\n%s", diff)
	}

	// A reused Machine starts each message with no fds.
	msg, err = m.RunResult(res, "iter", env)
	require.NoError(t, err)
	require.Equal(t, []uint32{3, 10, 11}, msg.FDs)
}

func TestCallCount(t *testing.T) {
	tests := []struct {
		sig  string
		val  any
		want int
	}{
		{"i", int32(1), 1},
		{"ai", []any{}, 2},
		{"ai", []any{int32(1), int32(2)}, 4},
		{"(is)", []any{int32(1), "x"}, 4},
		{"a{sx}", []any{[]any{"a", int64(1)}}, 6},
	}
	var g marshal.Generator
	for _, tc := range tests {
		typ := dbusgen.MustParseType(tc.sig)
		res := g.Marshal(typ, "iter", "value", oom)
		env, err := marshaltest.Bind(typ, "value", tc.val)
		require.NoError(t, err)

		var m marshaltest.Machine
		_, err = m.RunResult(res, "iter", env)
		require.NoError(t, err)
		require.Equal(t, tc.want, m.Calls, "libdbus calls for %q", tc.sig)
	}
}

func TestOutOfMemory(t *testing.T) {
	const rec marshal.Recovery = "nih_error_raise_no_memory ();\nreturn -1;\n"
	var g marshal.Generator
	for _, tc := range roundTripCases {
		typ := dbusgen.MustParseType(tc.sig)
		res := g.Marshal(typ, "iter", "value", rec)
		env, err := marshaltest.Bind(typ, "value", tc.val)
		require.NoError(t, err)

		var m marshaltest.Machine
		_, err = m.RunResult(res, "iter", env)
		require.NoError(t, err)
		total := m.Calls

		for k := 1; k <= total; k++ {
			m := marshaltest.Machine{FailAt: k}
			msg, err := m.RunResult(res, "iter", env)
			require.Nil(t, msg)
			var oomErr *marshaltest.OOMError
			require.ErrorAs(t, err, &oomErr, "%q failing call %d", tc.sig, k)
			require.Equal(t, k, oomErr.Call)
			require.Equal(t, rec, oomErr.Recovery)
			// Nothing runs after the recovery code.
			require.Equal(t, k, m.Calls)
		}
	}
}

func TestLogging(t *testing.T) {
	var g marshal.Generator
	typ := dbusgen.MustParseType("as")
	res := g.Marshal(typ, "iter", "names", oom)
	env, err := marshaltest.Bind(typ, "names", []any{"a", "b"})
	require.NoError(t, err)

	m := marshaltest.Machine{Logger: zaptest.NewLogger(t)}
	_, err = m.RunResult(res, "iter", env)
	require.NoError(t, err)
}

func TestBindings(t *testing.T) {
	env, err := marshaltest.Bind(dbusgen.MustParseType("a(iai)"), "v", []any{
		[]any{int32(1), []any{int32(2), int32(3)}},
	})
	require.NoError(t, err)
	want := marshaltest.Env{
		"v": []any{
			map[string]any{
				"item0":     int32(1),
				"item1":     []any{int32(2), int32(3)},
				"item1_len": 2,
			},
			nil,
		},
	}
	if diff := cmp.Diff(env, want); diff != "" {
		t.Errorf("wrong bindings (-got+want):\n%s", diff)
	}

	env, err = marshaltest.Bind(dbusgen.MustParseType("aai"), "v", []any{
		[]any{int32(1)},
		[]any{},
	})
	require.NoError(t, err)
	want = marshaltest.Env{
		"v":     []any{[]any{int32(1)}, []any{}, nil},
		"v_len": []any{1, 0, nil},
	}
	if diff := cmp.Diff(env, want); diff != "" {
		t.Errorf("wrong bindings (-got+want):\n%s", diff)
	}
}

func TestBindErrors(t *testing.T) {
	tests := []struct {
		sig string
		val any
	}{
		{"i", 1},
		{"s", []byte("x")},
		{"ai", []int32{1}},
		{"(is)", []any{int32(1)}},
		{"a(is)", []any{[]any{"x", int32(1)}}},
		{"v", "x"},
	}
	for _, tc := range tests {
		_, err := marshaltest.Bind(dbusgen.MustParseType(tc.sig), "v", tc.val)
		require.Error(t, err, "Bind(%q, %#v)", tc.sig, tc.val)
	}
}

func TestMachineErrors(t *testing.T) {
	var g marshal.Generator

	t.Run("unbound input", func(t *testing.T) {
		res := g.Marshal(dbusgen.MustParseType("ai"), "iter", "v", oom)
		var m marshaltest.Machine
		_, err := m.RunResult(res, "iter", marshaltest.Env{"v": []any{}})
		require.ErrorContains(t, err, "v_len")
	})

	t.Run("missing terminator", func(t *testing.T) {
		res := g.Marshal(dbusgen.MustParseType("as"), "iter", "v", oom)
		var m marshaltest.Machine
		_, err := m.RunResult(res, "iter", marshaltest.Env{"v": []any{"a"}})
		require.ErrorContains(t, err, "NULL terminator")
	})

	t.Run("wrong value type", func(t *testing.T) {
		res := g.Marshal(dbusgen.MustParseType("i"), "iter", "v", oom)
		var m marshaltest.Machine
		_, err := m.RunResult(res, "iter", marshaltest.Env{"v": "nope"})
		require.Error(t, err)
	})

	t.Run("wrong iterator", func(t *testing.T) {
		res := g.Marshal(dbusgen.MustParseType("i"), "iter", "v", oom)
		var m marshaltest.Machine
		_, err := m.Run(res.Code, "other", marshaltest.Env{"v": int32(1)})
		require.ErrorContains(t, err, "uninitialized iterator")
	})
}

func TestDecodeErrors(t *testing.T) {
	_, err := marshaltest.Decode(dbusgen.MustParseType("y"), []byte{'l', 0, 0, 0, 0, 0, 0, 0, 1, 2})
	require.ErrorContains(t, err, "trailing")

	_, err = marshaltest.Decode(dbusgen.MustParseType("u"), []byte{'l', 0, 0, 0, 0, 0, 0, 0, 1})
	require.Error(t, err)

	_, err = marshaltest.Decode(dbusgen.MustParseType("v"), []byte{'l', 0, 0, 0, 0, 0, 0, 0})
	require.Error(t, err)
}
