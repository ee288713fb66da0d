package transform

import (
	"bytes"
	"io"
	"strings"
)

// Body is a request body produced from a literal, a transformer or a file.
type Body struct {
	Reader io.Reader
	Size   int64 // -1 when unknown
	closer io.Closer
}

func StringBody(s string) Body {
	return Body{Reader: strings.NewReader(s), Size: int64(len(s))}
}

func BytesBody(b []byte) Body {
	return Body{Reader: bytes.NewReader(b), Size: int64(len(b))}
}

// StreamBody wraps an open stream. The stream is released by Close.
func StreamBody(rc io.ReadCloser, size int64) Body {
	return Body{Reader: rc, Size: size, closer: rc}
}

// Close releases the underlying stream, if any. It is safe to call on every
// body and more than once.
func (b Body) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}
