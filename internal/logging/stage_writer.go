package logging

import (
	"bytes"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/backmassage/reelrunner/internal/term"
)

// maxPartialLine bounds buffered output without a newline; longer runs are
// emitted as their own line.
const maxPartialLine = 64 * 1024

// StageWriter turns a child process's byte stream into log lines tagged with
// the stage name. Each complete line becomes one logger write.
type StageWriter struct {
	mu  sync.Mutex
	l   *Logger
	tag string
	buf []byte
}

// StageWriter returns an io.Writer for a child's stdout and stderr. Call
// Flush after the child exits to emit a trailing line without a newline.
func (l *Logger) StageWriter(tag string) *StageWriter {
	return &StageWriter{l: l, tag: strings.ToUpper(tag)}
}

// Write implements io.Writer. It never fails.
func (w *StageWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emit(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	if len(w.buf) >= maxPartialLine {
		cut := runeBoundary(w.buf)
		w.emit(w.buf[:cut])
		w.buf = append([]byte(nil), w.buf[cut:]...)
	}
	return len(p), nil
}

// Flush emits any buffered partial line.
func (w *StageWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.buf) > 0 {
		w.emit(w.buf)
		w.buf = nil
	}
}

func (w *StageWriter) emit(b []byte) {
	text := strings.TrimRight(string(b), "\r")
	w.l.line(w.tag, term.Stage, text)
}

// runeBoundary returns the length of the longest prefix of b that does not
// end inside a multi-byte UTF-8 sequence.
func runeBoundary(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if utf8.FullRune(b[i:]) || i == 0 {
			return len(b)
		}
		return i
	}
	return len(b)
}
