package main

import (
	"bytes"
	"io"
	"os"
)

// indenter writes to stdout, prefixing every line with prefix.
type indenter struct {
	prefix  string
	out     io.Writer
	midLine bool
}

func (i *indenter) s(msg string) {
	io.WriteString(i, msg+"\n")
}

func (i *indenter) Write(bs []byte) (int, error) {
	w := i.out
	if w == nil {
		w = os.Stdout
	}
	ret := 0
	for len(bs) > 0 {
		if !i.midLine {
			if _, err := io.WriteString(w, i.prefix); err != nil {
				return ret, err
			}
			i.midLine = true
		}

		wr := bs
		if idx := bytes.IndexByte(bs, '\n'); idx >= 0 {
			i.midLine = false
			wr = bs[:idx+1]
		}
		bs = bs[len(wr):]

		n, err := w.Write(wr)
		ret += n
		if err != nil {
			return ret, err
		}
	}
	return ret, nil
}
