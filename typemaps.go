package dbusgen

import (
	"github.com/creachadair/mds/mapset"
)

var (
	// basicCodes is the set of DBus type codes that denote basic
	// types.
	basicCodes = mapset.New[byte](
		'y', 'b', 'n', 'q', 'i', 'u', 'x', 't', 'd', 'h',
		's', 'o', 'g',
	)

	// fixedCodes is the subset of basicCodes whose wire encoding has
	// a fixed size.
	fixedCodes = mapset.New[byte](
		'y', 'b', 'n', 'q', 'i', 'u', 'x', 't', 'd', 'h',
	)

	// codeToName maps the DBus type code of a basic type to the
	// name the DBus specification uses for it.
	codeToName = map[byte]string{
		'y': "BYTE",
		'b': "BOOLEAN",
		'n': "INT16",
		'q': "UINT16",
		'i': "INT32",
		'u': "UINT32",
		'x': "INT64",
		't': "UINT64",
		'd': "DOUBLE",
		'h': "UNIX_FD",
		's': "STRING",
		'o': "OBJECT_PATH",
		'g': "SIGNATURE",
	}

	// codeToAlign maps the DBus type code of every type to its wire
	// alignment in bytes.
	codeToAlign = map[byte]int{
		'y': 1,
		'b': 4,
		'n': 2,
		'q': 2,
		'i': 4,
		'u': 4,
		'x': 8,
		't': 8,
		'd': 8,
		'h': 4,
		's': 4,
		'o': 4,
		'g': 1,
		'a': 4,
		'(': 8,
		'{': 8,
		'v': 1,
	}
)
