package table

import "sync"

const initialBufferSize = 512

var bufferPool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, initialBufferSize)
		return &b
	},
}

func getBuffer() *[]byte {
	return bufferPool.Get().(*[]byte)
}

// putBuffer returns bp to the pool unless it grew past limit.
func putBuffer(bp *[]byte, limit int) {
	if cap(*bp) > limit {
		return
	}
	*bp = (*bp)[:0]
	bufferPool.Put(bp)
}
