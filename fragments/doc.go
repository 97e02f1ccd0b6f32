// Package fragments provides low-level helpers to write and read
// values in the DBus wire format.
//
// The encoder and decoder only know about alignment and framing. They
// do not check that a sequence of calls forms a valid message for any
// particular signature: that is the caller's job.
package fragments
