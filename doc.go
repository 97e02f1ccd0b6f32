// Package dbusgen describes DBus types for code generation.
//
// A DBus type signature is a string such as "a(sx)" that describes
// the shape of a value on the wire. [ParseSignature] and [ParseType]
// turn signature strings into a tree of [Type] values:
//
//	'y', 'b', 'n', 'q', 'i', 'u', 'x', 't', 'd', 'h'  fixed size [Basic] types
//	's', 'o', 'g'                                     string-like [Basic] types
//	'a' followed by one complete type                 [Array]
//	'(' one or more complete types ')'                [Struct]
//	'{' basic type, complete type '}'                 [DictEntry], only as an array element
//	'v'                                               [Variant]
//
// The tree is immutable and safe to share between goroutines. Parsed
// signatures are cached, so repeatedly parsing the same signature is
// cheap.
//
// [ParseIntrospection] decodes the XML introspection format that
// DBus peers use to describe their interfaces, producing the method,
// signal and property descriptions that code generators consume.
//
// The marshal subpackage turns a [Type] into C code that appends a
// value of that type to a libdbus message iterator.
package dbusgen
