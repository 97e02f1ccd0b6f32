package fragments

import (
	"errors"
	"fmt"
	"io"
	"math"
)

// A Decoder reads DBus wire format values from a byte slice.
//
// Methods skip over the padding required by DBus alignment rules,
// except for [Decoder.Read] which reads bytes verbatim. Padding bytes
// must be zero.
type Decoder struct {
	// Order is the byte order to use when reading multi-byte values.
	Order ByteOrder
	// In is the message to read. Alignment is relative to the start
	// of In.
	In []byte

	// offset is the read cursor into In.
	offset int
	// limit, if non-zero, is the offset of the end of the innermost
	// array being read.
	limit int
}

// Offset returns the number of bytes consumed so far.
func (d *Decoder) Offset() int {
	return d.offset
}

// Remaining returns the number of unread bytes in the innermost array
// being read, or in the whole input outside of arrays.
func (d *Decoder) Remaining() int {
	return d.end() - d.offset
}

func (d *Decoder) end() int {
	if d.limit > 0 {
		return d.limit
	}
	return len(d.In)
}

// Pad consumes padding bytes as needed to make the next read happen
// at a multiple of align bytes. If the decoder is already correctly
// aligned, no bytes are consumed.
func (d *Decoder) Pad(align int) error {
	extra := d.offset % align
	if extra == 0 {
		return nil
	}
	pad, err := d.Read(align - extra)
	if err != nil {
		return err
	}
	for _, b := range pad {
		if b != 0 {
			return fmt.Errorf("non-zero padding byte at offset %d", d.offset-len(pad))
		}
	}
	return nil
}

// Read reads n bytes, with no framing or padding.
func (d *Decoder) Read(n int) ([]byte, error) {
	if n > d.end()-d.offset {
		return nil, io.ErrUnexpectedEOF
	}
	ret := d.In[d.offset : d.offset+n]
	d.offset += n
	return ret, nil
}

// String reads a DBus string or object path.
func (d *Decoder) String() (string, error) {
	ln, err := d.Uint32()
	if err != nil {
		return "", err
	}
	bs, err := d.Read(int(ln) + 1)
	if err != nil {
		return "", err
	}
	if bs[ln] != 0 {
		return "", errors.New("string is not NUL terminated")
	}
	return string(bs[:ln]), nil
}

// Signature reads a DBus signature.
func (d *Decoder) Signature() (string, error) {
	ln, err := d.Uint8()
	if err != nil {
		return "", err
	}
	bs, err := d.Read(int(ln) + 1)
	if err != nil {
		return "", err
	}
	if bs[ln] != 0 {
		return "", errors.New("signature is not NUL terminated")
	}
	return string(bs[:ln]), nil
}

// Uint8 reads a uint8.
func (d *Decoder) Uint8() (uint8, error) {
	bs, err := d.Read(1)
	if err != nil {
		return 0, err
	}
	return bs[0], nil
}

// Uint16 reads a uint16.
func (d *Decoder) Uint16() (uint16, error) {
	if err := d.Pad(2); err != nil {
		return 0, err
	}
	bs, err := d.Read(2)
	if err != nil {
		return 0, err
	}
	return d.Order.Uint16(bs), nil
}

// Uint32 reads a uint32.
func (d *Decoder) Uint32() (uint32, error) {
	if err := d.Pad(4); err != nil {
		return 0, err
	}
	bs, err := d.Read(4)
	if err != nil {
		return 0, err
	}
	return d.Order.Uint32(bs), nil
}

// Uint64 reads a uint64.
func (d *Decoder) Uint64() (uint64, error) {
	if err := d.Pad(8); err != nil {
		return 0, err
	}
	bs, err := d.Read(8)
	if err != nil {
		return 0, err
	}
	return d.Order.Uint64(bs), nil
}

// Bool reads a DBus boolean.
func (d *Decoder) Bool() (bool, error) {
	v, err := d.Uint32()
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("invalid boolean value %d", v)
	}
}

// Double reads a float64.
func (d *Decoder) Double() (float64, error) {
	v, err := d.Uint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// Array reads an array.
//
// readElement is called repeatedly while there is array data
// remaining, passing in the index of the element to be decoded.
// readElement must consume whole elements, and must not read beyond
// the end of the array data. elemAlign is the alignment of the
// element type.
//
// Array returns the number of elements read.
func (d *Decoder) Array(elemAlign int, readElement func(int) error) (int, error) {
	ln, err := d.Uint32()
	if err != nil {
		return 0, err
	}
	if ln > MaxArrayLen {
		return 0, fmt.Errorf("array length %d exceeds maximum of %d", ln, MaxArrayLen)
	}
	if err := d.Pad(elemAlign); err != nil {
		return 0, err
	}
	if int(ln) > d.Remaining() {
		return 0, io.ErrUnexpectedEOF
	}

	outer := d.limit
	d.limit = d.offset + int(ln)
	defer func() { d.limit = outer }()

	n := 0
	for d.offset < d.limit {
		if err := readElement(n); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Struct reads a struct or dict entry.
//
// Struct fields must be read within the provided fields function.
func (d *Decoder) Struct(fields func() error) error {
	if err := d.Pad(8); err != nil {
		return err
	}
	return fields()
}

// ByteOrderFlag reads a DBus byte order flag byte, and sets
// [Decoder.Order] to match it.
func (d *Decoder) ByteOrderFlag() error {
	v, err := d.Uint8()
	if err != nil {
		return err
	}
	order, ok := OrderForFlag(v)
	if !ok {
		return fmt.Errorf("unknown byte order flag %q", v)
	}
	d.Order = order
	return nil
}
