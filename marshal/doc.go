// Package marshal generates code that appends values to a DBus
// message, driven by the value's type signature.
//
// Code is produced as a small tree of statements ([Append],
// [Container], [Loop], [Member]) and turned into C source by
// [Render]. Alongside the code, generators report which variables
// the code reads from its caller (inputs) and which it expects its
// enclosing function to declare (locals).
//
// Names of generated variables are derived from a caller-chosen root
// name by appending suffixes as the generator descends into the type:
//
//	_element  one element of an array
//	_len      the element count of an array of fixed size values
//	_item<N>  the N'th member of a struct or dict entry
//	_iter     the message iterator of a container
//	_i        the loop counter over an array
//
// Arrays of fixed size values (integers, doubles, booleans, file
// descriptors) are passed as a pointer and a _len count. All other
// arrays are passed as NULL-terminated arrays of pointers. Structs
// and dict entries are passed as a pointer to a struct whose fields
// are named after the member suffixes, for example item0 and
// item1_len.
package marshal
