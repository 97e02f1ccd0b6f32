package marshaltest

import (
	"fmt"

	"github.com/danderson/dbusgen"
	"github.com/danderson/dbusgen/fragments"
)

// Decode reads one value of type t from msg, which must be framed as
// by [Message.Bytes]. It returns an error if msg holds anything after
// the value. Unix fds are returned as their index in the message's fd
// list.
func Decode(t dbusgen.Type, msg []byte) (any, error) {
	return decodeMessage(t, msg, nil)
}

// Decode reads one value of type t from m, resolving unix fd indexes
// against m.FDs.
func (m *Message) Decode(t dbusgen.Type) (any, error) {
	fds := m.FDs
	if fds == nil {
		fds = []uint32{}
	}
	return decodeMessage(t, m.Bytes(), fds)
}

// decodeMessage decodes a framed message. If fds is nil, unix fds are
// left as indexes.
func decodeMessage(t dbusgen.Type, msg []byte, fds []uint32) (any, error) {
	dec := &decoder{fds: fds}
	d := &fragments.Decoder{In: msg}
	dec.Decoder = d
	if err := d.ByteOrderFlag(); err != nil {
		return nil, err
	}
	if err := d.Pad(8); err != nil {
		return nil, err
	}
	ret, err := dec.decode(t)
	if err != nil {
		return nil, err
	}
	if n := d.Remaining(); n != 0 {
		return nil, fmt.Errorf("%d trailing bytes after %s value", n, t)
	}
	return ret, nil
}

type decoder struct {
	*fragments.Decoder
	fds []uint32
}

func (d *decoder) decode(t dbusgen.Type) (any, error) {
	switch tt := t.(type) {
	case *dbusgen.Basic:
		return d.basic(tt)
	case *dbusgen.Array:
		ret := []any{}
		_, err := d.Array(tt.Elem.Align(), func(int) error {
			v, err := d.decode(tt.Elem)
			if err != nil {
				return err
			}
			ret = append(ret, v)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return ret, nil
	case dbusgen.Aggregate:
		var ret []any
		err := d.Struct(func() error {
			for _, mt := range tt.Members() {
				v, err := d.decode(mt)
				if err != nil {
					return err
				}
				ret = append(ret, v)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return ret, nil
	default:
		return nil, fmt.Errorf("cannot decode values of type %s", t)
	}
}

func (d *decoder) basic(t *dbusgen.Basic) (any, error) {
	v, err := d.Basic(t.Code)
	if err != nil || t.Code != 'h' || d.fds == nil {
		return v, err
	}
	idx := v.(uint32)
	if int(idx) >= len(d.fds) {
		return nil, fmt.Errorf("unix fd index %d out of range, message has %d fds", idx, len(d.fds))
	}
	return d.fds[idx], nil
}
