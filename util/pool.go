package util

import "sync"

// DefaultBufSize is the initial scratch buffer size (4 KiB).
const DefaultBufSize = 4 * 1024

// BufPool provides reusable byte buffers for rendering multi-line
// command output, so listings do not allocate a fresh slice each time.
// Callers append to (*buf)[:0] and store the grown slice back before
// returning it.
var BufPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, 0, DefaultBufSize)
		return &buf
	},
}

// GetBuf retrieves a buffer from the pool.  Callers must return it
// with [PutBuf] when finished.
func GetBuf() *[]byte {
	return BufPool.Get().(*[]byte)
}

// PutBuf returns a buffer to the pool for reuse.
func PutBuf(buf *[]byte) {
	if buf == nil {
		return
	}
	BufPool.Put(buf)
}
