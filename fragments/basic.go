package fragments

import "fmt"

// Basic writes v as a value of the DBus basic type with the given
// type code. v must have the Go type that [Decoder.Basic] returns for
// code. Unix fds ('h') are written as their uint32 index into the
// message's fd list. If v has the wrong type, nothing is written.
func (e *Encoder) Basic(code byte, v any) error {
	start, ok := len(e.Out), true
	switch code {
	case 'y':
		var u uint8
		u, ok = v.(uint8)
		e.Uint8(u)
	case 'b':
		var b bool
		b, ok = v.(bool)
		e.Bool(b)
	case 'n':
		var i int16
		i, ok = v.(int16)
		e.Uint16(uint16(i))
	case 'q':
		var u uint16
		u, ok = v.(uint16)
		e.Uint16(u)
	case 'i':
		var i int32
		i, ok = v.(int32)
		e.Uint32(uint32(i))
	case 'u', 'h':
		var u uint32
		u, ok = v.(uint32)
		e.Uint32(u)
	case 'x':
		var i int64
		i, ok = v.(int64)
		e.Uint64(uint64(i))
	case 't':
		var u uint64
		u, ok = v.(uint64)
		e.Uint64(u)
	case 'd':
		var f float64
		f, ok = v.(float64)
		e.Double(f)
	case 's', 'o':
		var s string
		s, ok = v.(string)
		e.String(s)
	case 'g':
		var s string
		if s, ok = v.(string); ok {
			return e.Signature(s)
		}
	default:
		return fmt.Errorf("unknown basic type code %q", code)
	}
	if !ok {
		e.Out = e.Out[:start]
		return fmt.Errorf("cannot encode %T value as DBus type %q", v, code)
	}
	return nil
}

// Basic reads a value of the DBus basic type with the given type
// code, returning uint8, bool, int16, uint16, int32, uint32, int64,
// uint64, float64 or string. Unix fds ('h') are returned as their
// uint32 index into the message's fd list.
func (d *Decoder) Basic(code byte) (any, error) {
	switch code {
	case 'y':
		return d.Uint8()
	case 'b':
		return d.Bool()
	case 'n':
		u, err := d.Uint16()
		return int16(u), err
	case 'q':
		return d.Uint16()
	case 'i':
		u, err := d.Uint32()
		return int32(u), err
	case 'u', 'h':
		return d.Uint32()
	case 'x':
		u, err := d.Uint64()
		return int64(u), err
	case 't':
		return d.Uint64()
	case 'd':
		return d.Double()
	case 's', 'o':
		return d.String()
	case 'g':
		return d.Signature()
	default:
		return nil, fmt.Errorf("unknown basic type code %q", code)
	}
}
