package tap

import (
	"bytes"
	"runtime"
	"strconv"
)

// goroutineID returns the ID of the calling goroutine, read from the header
// line of its stack trace ("goroutine 18 [running]:"). Only used to tell a
// re-entrant flush request from a concurrent one.
func goroutineID() int64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return -1
	}
	return id
}
