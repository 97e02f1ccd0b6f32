// Package marshaltest executes generated marshal code against a
// simulated libdbus message iterator, so that tests can check what
// the code would append to a real message.
//
// Values are represented as follows:
//
//   - basic values are Go values of the matching type: uint8, bool,
//     int16, uint16, int32, uint32, int64, uint64, float64 or string.
//     Unix fds are uint32 descriptor numbers. On the wire they become
//     indexes into the message's fd list.
//   - arrays are []any.
//   - structs and dict entries are []any with one entry per member.
//
// The C variables that generated code reads are bound by name in an
// [Env]. [Bind] computes those bindings from a natural Go value, with
// NULL-terminated C arrays represented as []any ending in nil and C
// structs as map[string]any keyed by field name.
package marshaltest

import (
	"fmt"

	"github.com/creachadair/mds/queue"
	"go.uber.org/zap"

	"github.com/danderson/dbusgen"
	"github.com/danderson/dbusgen/fragments"
	"github.com/danderson/dbusgen/marshal"
)

// Env maps C variable names to their values.
type Env map[string]any

// OOMError is returned by [Machine.Run] when a simulated allocation
// failure triggered the generated code's recovery path.
type OOMError struct {
	// Call is the 1-based number of the libdbus call that failed.
	Call int
	// Recovery is the recovery code that the generated code ran.
	Recovery marshal.Recovery
}

func (e *OOMError) Error() string {
	return fmt.Sprintf("simulated out of memory in libdbus call %d", e.Call)
}

// Machine executes generated code.
//
// A Machine may be reused, but not concurrently.
type Machine struct {
	// Order is the byte order of built messages. If nil,
	// fragments.NativeEndian is used.
	Order fragments.ByteOrder
	// FailAt makes the FailAt'th libdbus call (counting from 1) fail
	// as if it ran out of memory. Zero disables failure injection.
	FailAt int
	// Logger, if non-nil, receives a debug log of every simulated
	// libdbus call.
	Logger *zap.Logger

	// Calls is the number of libdbus calls made by the last Run.
	Calls int

	env   Env
	enc   *fragments.Encoder
	iters map[string]*iterator
	fds   queue.Queue[uint32]
}

// iterator is a simulated DBusMessageIter.
type iterator struct {
	name string
	// child is the name of the container iterator currently open on
	// this iterator, if any.
	child string
	// closed is set once the iterator's container has been closed.
	closed bool
}

// Message is the output of a successful [Machine.Run].
type Message struct {
	Order fragments.ByteOrder
	// Body is the message body, aligned as if it started at offset 0
	// of the message.
	Body []byte
	// FDs are the unix fds attached to the message. Fd values in Body
	// are indexes into FDs.
	FDs []uint32
}

// Bytes returns a byte order flag followed by padding and the body,
// which is the framing [Decode] expects.
func (m *Message) Bytes() []byte {
	e := fragments.Encoder{Order: m.Order}
	e.ByteOrderFlag()
	e.Pad(8)
	return append(e.Out, m.Body...)
}

// Run executes code, which appends values to the message iterator
// named iter. env binds the code's inputs.
//
// If a simulated libdbus call fails, Run stops at the failing call
// and returns an [*OOMError].
func (m *Machine) Run(code *marshal.Block, iter string, env Env) (*Message, error) {
	order := m.Order
	if order == nil {
		order = fragments.NativeEndian
	}
	m.Calls = 0
	m.env = Env{}
	for k, v := range env {
		m.env[k] = v
	}
	m.enc = &fragments.Encoder{Order: order}
	m.iters = map[string]*iterator{iter: {name: iter}}
	m.fds.Clear()

	if err := m.block(code); err != nil {
		return nil, err
	}
	if child := m.iters[iter].child; child != "" {
		return nil, fmt.Errorf("container iterator %s was never closed", child)
	}
	ret := &Message{Order: order, Body: m.enc.Out}
	for {
		fd, ok := m.fds.Pop()
		if !ok {
			break
		}
		ret.FDs = append(ret.FDs, fd)
	}
	return ret, nil
}

// RunResult checks that env binds every input of res, then runs
// res.Code like [Machine.Run].
func (m *Machine) RunResult(res *marshal.Result, iter string, env Env) (*Message, error) {
	for _, in := range res.Inputs.Vars() {
		if _, ok := env[in.Name.String()]; !ok {
			return nil, fmt.Errorf("input %s is not bound", in)
		}
	}
	for _, l := range res.Locals.Vars() {
		if _, ok := env[l.Name.String()]; ok {
			return nil, fmt.Errorf("local %s is shadowed by a binding", l)
		}
	}
	return m.Run(res.Code, iter, env)
}

// call simulates one fallible libdbus call.
func (m *Machine) call(what string, rec marshal.Recovery) error {
	m.Calls++
	if m.Logger != nil {
		m.Logger.Debug("libdbus call", zap.Int("n", m.Calls), zap.String("call", what))
	}
	if m.Calls == m.FailAt {
		return &OOMError{Call: m.Calls, Recovery: rec}
	}
	return nil
}

func (m *Machine) lookup(name marshal.Ident) (any, error) {
	v, ok := m.env[name.String()]
	if !ok {
		return nil, fmt.Errorf("read of unassigned variable %s", name)
	}
	return v, nil
}

// iter returns the iterator called name, checking that values can be
// appended to it.
func (m *Machine) iter(name marshal.Ident) (*iterator, error) {
	it, ok := m.iters[name.String()]
	if !ok {
		return nil, fmt.Errorf("use of uninitialized iterator %s", name)
	}
	if it.closed {
		return nil, fmt.Errorf("use of closed iterator %s", name)
	}
	if it.child != "" {
		return nil, fmt.Errorf("iterator %s used while container %s is open", name, it.child)
	}
	return it, nil
}

func (m *Machine) block(b *marshal.Block) error {
	for _, s := range b.Stmts {
		if err := m.stmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (m *Machine) stmt(s marshal.Stmt) error {
	switch v := s.(type) {
	case *marshal.Append:
		return m.append(v)
	case *marshal.Container:
		return m.container(v)
	case *marshal.Loop:
		return m.loop(v)
	case *marshal.Member:
		if err := m.assign(v.Assigns); err != nil {
			return err
		}
		return m.block(v.Body)
	default:
		return fmt.Errorf("unknown statement %T", s)
	}
}

func (m *Machine) append(a *marshal.Append) error {
	if _, err := m.iter(a.Iter); err != nil {
		return err
	}
	val, err := m.lookup(a.Value)
	if err != nil {
		return err
	}
	if err := m.call("dbus_message_iter_append_basic "+a.Tag, a.Recovery); err != nil {
		return err
	}
	code, ok := tagCodes[a.Tag]
	if !ok {
		return fmt.Errorf("unknown basic type %s", a.Tag)
	}
	if code == 'h' {
		fd, ok := val.(uint32)
		if !ok {
			return fmt.Errorf("cannot append %T value as %s", val, a.Tag)
		}
		val = uint32(m.fds.Len())
		m.fds.Add(fd)
	}
	if err := m.enc.Basic(code, val); err != nil {
		return fmt.Errorf("appending %s: %w", a.Tag, err)
	}
	return nil
}

func (m *Machine) container(c *marshal.Container) error {
	parent, err := m.iter(c.Iter)
	if err != nil {
		return err
	}
	if err := m.call("dbus_message_iter_open_container "+c.Tag, c.Recovery); err != nil {
		return err
	}
	sub := &iterator{name: c.Sub.String()}
	parent.child = sub.name
	m.iters[sub.name] = sub

	body := func() error {
		return m.block(c.Body)
	}
	switch c.Kind {
	case dbusgen.CategoryArray:
		// Dict entries only parse as array elements.
		arr, err := dbusgen.ParseType("a" + c.Signature)
		if err != nil {
			return fmt.Errorf("opening array: %w", err)
		}
		if err := m.enc.Array(arr.(*dbusgen.Array).Elem.Align(), body); err != nil {
			return err
		}
	case dbusgen.CategoryStruct, dbusgen.CategoryDictEntry:
		if err := m.enc.Struct(body); err != nil {
			return err
		}
	default:
		return fmt.Errorf("cannot open container of kind %s", c.Kind)
	}

	if sub.child != "" {
		return fmt.Errorf("closing %s while container %s is still open", sub.name, sub.child)
	}
	parent.child = ""
	sub.closed = true
	return m.call("dbus_message_iter_close_container "+c.Tag, c.Recovery)
}

func (m *Machine) loop(l *marshal.Loop) error {
	for i := 0; ; i++ {
		m.env[l.Index.String()] = i

		done, err := m.loopDone(l.Bound, i)
		if err != nil {
			return err
		}
		if done {
			break
		}

		for _, v := range l.Locals.Vars() {
			delete(m.env, v.Name.String())
		}
		if err := m.assign(l.Assigns); err != nil {
			return err
		}
		if err := m.block(l.Body); err != nil {
			return err
		}
	}
	for _, v := range l.Locals.Vars() {
		delete(m.env, v.Name.String())
	}
	delete(m.env, l.Index.String())
	return nil
}

func (m *Machine) loopDone(b marshal.Bound, i int) (bool, error) {
	switch v := b.(type) {
	case marshal.Counted:
		n, err := m.lookup(v.Len)
		if err != nil {
			return false, err
		}
		ln, ok := n.(int)
		if !ok {
			return false, fmt.Errorf("array length %s is %T, want int", v.Len, n)
		}
		return i >= ln, nil
	case marshal.Sentinel:
		arr, err := m.lookupArray(v.Array)
		if err != nil {
			return false, err
		}
		if i >= len(arr) {
			return false, fmt.Errorf("read past the end of %s, missing NULL terminator", v.Array)
		}
		return arr[i] == nil, nil
	default:
		return false, fmt.Errorf("unknown loop bound %T", b)
	}
}

func (m *Machine) lookupArray(name marshal.Ident) ([]any, error) {
	v, err := m.lookup(name)
	if err != nil {
		return nil, err
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%s is %T, not an array", name, v)
	}
	return arr, nil
}

func (m *Machine) assign(as []*marshal.Assign) error {
	for _, a := range as {
		var val any
		switch src := a.Src.(type) {
		case marshal.IndexExpr:
			arr, err := m.lookupArray(src.Array)
			if err != nil {
				return err
			}
			idx, err := m.lookup(src.Index)
			if err != nil {
				return err
			}
			n, ok := idx.(int)
			if !ok || n < 0 || n >= len(arr) {
				return fmt.Errorf("index %v out of range for %s", idx, src.Array)
			}
			val = arr[n]
		case marshal.FieldExpr:
			rec, err := m.lookup(src.Record)
			if err != nil {
				return err
			}
			fields, ok := rec.(map[string]any)
			if !ok {
				return fmt.Errorf("%s is %T, not a struct", src.Record, rec)
			}
			val, ok = fields[src.FieldName()]
			if !ok {
				return fmt.Errorf("struct %s has no field %s", src.Record, src.FieldName())
			}
		default:
			return fmt.Errorf("unknown expression %T", a.Src)
		}
		m.env[a.Dst.String()] = val
	}
	return nil
}

// tagCodes maps libdbus type constants to DBus type codes.
var tagCodes = func() map[string]byte {
	var m marshal.CMapper
	ret := map[string]byte{}
	for _, c := range []byte("ybnqiuxtdhsog") {
		ret[m.Tag(dbusgen.MustParseType(string(c)))] = c
	}
	return ret
}()
