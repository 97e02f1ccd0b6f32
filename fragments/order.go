package fragments

import (
	"encoding/binary"

	"golang.org/x/sys/cpu"
)

// ByteOrder is a byte order that DBus messages can be encoded in.
type ByteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
	// Flag is the byte that announces the order at the start of a
	// message.
	Flag() byte
}

type flaggedOrder struct {
	binary.ByteOrder
	binary.AppendByteOrder
	flag byte
}

func (o flaggedOrder) Flag() byte     { return o.flag }
func (o flaggedOrder) String() string { return o.ByteOrder.String() }

var (
	BigEndian    ByteOrder = flaggedOrder{binary.BigEndian, binary.BigEndian, 'B'}
	LittleEndian ByteOrder = flaggedOrder{binary.LittleEndian, binary.LittleEndian, 'l'}
	// NativeEndian is the byte order of the local machine, which is
	// what libdbus uses for the messages it builds.
	NativeEndian = nativeEndian()
)

func nativeEndian() ByteOrder {
	if cpu.IsBigEndian {
		return BigEndian
	}
	return LittleEndian
}

// OrderForFlag returns the byte order announced by flag.
func OrderForFlag(flag byte) (ByteOrder, bool) {
	switch flag {
	case BigEndian.Flag():
		return BigEndian, true
	case LittleEndian.Flag():
		return LittleEndian, true
	default:
		return nil, false
	}
}
