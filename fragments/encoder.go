package fragments

import (
	"fmt"
	"math"
)

// MaxArrayLen is the largest number of bytes an array may hold.
const MaxArrayLen = 64 << 20

// An Encoder writes DBus wire format values to a byte slice.
//
// Methods insert padding as needed to conform to DBus alignment
// rules, except for [Encoder.Write] which outputs bytes verbatim.
// Alignment is relative to the start of Out, which must therefore be
// the start of the message.
type Encoder struct {
	// Order is the byte order to use when encoding multi-byte values.
	Order ByteOrder
	// Out is the encoded output.
	Out []byte
}

// Pad inserts padding bytes as needed to make the message a multiple
// of align bytes. If the message is already correctly aligned, no
// padding is inserted.
func (e *Encoder) Pad(align int) {
	extra := len(e.Out) % align
	if extra == 0 {
		return
	}
	var pad [8]byte
	e.Out = append(e.Out, pad[:align-extra]...)
}

// Write writes bs as-is to the output. It is the caller's
// responsibility to ensure correct padding and encoding.
func (e *Encoder) Write(bs []byte) {
	e.Out = append(e.Out, bs...)
}

// String writes s as a DBus string or object path.
func (e *Encoder) String(s string) {
	e.Uint32(uint32(len(s)))
	e.Out = append(e.Out, s...)
	e.Out = append(e.Out, 0)
}

// Signature writes s as a DBus signature, which unlike a string has a
// single byte length prefix.
func (e *Encoder) Signature(s string) error {
	if len(s) > 255 {
		return fmt.Errorf("signature %q is too long", s)
	}
	e.Uint8(uint8(len(s)))
	e.Out = append(e.Out, s...)
	e.Out = append(e.Out, 0)
	return nil
}

// Uint8 writes a uint8.
func (e *Encoder) Uint8(u8 uint8) {
	e.Out = append(e.Out, u8)
}

// Uint16 writes a uint16.
func (e *Encoder) Uint16(u16 uint16) {
	e.Pad(2)
	e.Out = e.Order.AppendUint16(e.Out, u16)
}

// Uint32 writes a uint32.
func (e *Encoder) Uint32(u32 uint32) {
	e.Pad(4)
	e.Out = e.Order.AppendUint32(e.Out, u32)
}

// Uint64 writes a uint64.
func (e *Encoder) Uint64(u64 uint64) {
	e.Pad(8)
	e.Out = e.Order.AppendUint64(e.Out, u64)
}

// Bool writes a DBus boolean.
func (e *Encoder) Bool(b bool) {
	if b {
		e.Uint32(1)
	} else {
		e.Uint32(0)
	}
}

// Double writes a float64.
func (e *Encoder) Double(f float64) {
	e.Uint64(math.Float64bits(f))
}

// Array writes an array to the output.
//
// Array elements must be added within the provided elements
// function. elemAlign is the alignment of the element type: the
// padding between the array length and the first element is not
// counted in the length, and is present even if the array is empty.
func (e *Encoder) Array(elemAlign int, elements func() error) error {
	e.Uint32(0)
	offset := len(e.Out) - 4
	e.Pad(elemAlign)

	start := len(e.Out)
	err := elements()
	ln := len(e.Out) - start
	e.Order.PutUint32(e.Out[offset:], uint32(ln))
	if err != nil {
		return err
	}
	if ln > MaxArrayLen {
		return fmt.Errorf("array of %d bytes exceeds maximum of %d", ln, MaxArrayLen)
	}
	return nil
}

// Struct writes a struct or dict entry to the output.
//
// Struct fields must be added within the provided elements function.
func (e *Encoder) Struct(elements func() error) error {
	e.Pad(8)
	return elements()
}

// ByteOrderFlag writes the DBus byte order flag byte ('l' or 'B')
// that matches [Encoder.Order].
func (e *Encoder) ByteOrderFlag() {
	e.Write([]byte{e.Order.Flag()})
}
