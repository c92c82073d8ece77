package output

import (
	"io"
	"os"
	"reflect"
	"sync"
)

// syncWriter serialises writes to an underlying writer.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.w.Write(p)
}

// SyncWriter returns a writer that is safe for concurrent use. Files are
// returned unchanged since the kernel already serialises their writes, and
// so are writers that are already synchronised.
func SyncWriter(w io.Writer) io.Writer {
	switch w.(type) {
	case nil, *os.File, *syncWriter:
		return w
	}

	return &syncWriter{w: w}
}

// SyncWriters wraps stdout and stderr with SyncWriter. When both are the
// same writer they share one lock.
func SyncWriters(stdout, stderr io.Writer) (io.Writer, io.Writer) {
	out := SyncWriter(stdout)

	if sameWriter(stdout, stderr) {
		return out, out
	}

	return out, SyncWriter(stderr)
}

func sameWriter(a, b io.Writer) bool {
	if a == nil || b == nil {
		return false
	}

	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}

	return a == b
}
