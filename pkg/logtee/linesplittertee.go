package logtee

import (
	"bytes"
	"io"
	"sync"
)

type lineSplitterTee struct {
	buf           []byte // accumulates until \n
	lineCompleted func(string)
	mu            sync.Mutex
}

// returns io.Writer that tees full lines to the lineCompleted callback.
// used to relay a worker subprocess's stderr into the supervisor's logger,
// one line at a time.
func NewLineSplitterTee(sink io.Writer, lineCompleted func(string)) io.Writer {
	return io.MultiWriter(sink, &lineSplitterTee{
		lineCompleted: lineCompleted,
	})
}

func (l *lineSplitterTee) Write(data []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buf = append(l.buf, data...)

	// chop buffer down for as long as we have full lines
	for {
		idx := bytes.IndexByte(l.buf, '\n')
		if idx == -1 {
			break
		}

		l.lineCompleted(string(l.buf[:idx]))

		l.buf = l.buf[idx+1:]
	}

	return len(data), nil
}
