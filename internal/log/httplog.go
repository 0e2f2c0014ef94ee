package log

import (
	"net/http"
	"sync"
	"time"
)

// HTTP log buffer is separate from the main log output
var httpLogBuffer *RequestBuffer
var httpLogBufferOnce sync.Once

// HTTPLogEntry represents an HTTP request/response log entry
type HTTPLogEntry struct {
	Timestamp  time.Time     `json:"timestamp"`
	Method     string        `json:"method"`
	Path       string        `json:"path"`
	Status     int           `json:"status"`
	Duration   time.Duration `json:"duration"`
	Size       int           `json:"size"`
	RemoteAddr string        `json:"remote_addr"`
	UserAgent  string        `json:"user_agent"`
}

// RequestBuffer keeps the most recent HTTP log entries
type RequestBuffer struct {
	mu      sync.Mutex
	entries []HTTPLogEntry
	next    int
	full    bool
}

// NewRequestBuffer returns a ring buffer holding up to size entries
func NewRequestBuffer(size int) *RequestBuffer {
	return &RequestBuffer{entries: make([]HTTPLogEntry, size)}
}

// Add stores an entry, dropping the oldest when full
func (b *RequestBuffer) Add(e HTTPLogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entries) == 0 {
		return
	}
	b.entries[b.next] = e
	b.next = (b.next + 1) % len(b.entries)
	if b.next == 0 {
		b.full = true
	}
}

// Entries returns the buffered entries, oldest first
func (b *RequestBuffer) Entries() []HTTPLogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.full {
		return append([]HTTPLogEntry(nil), b.entries[:b.next]...)
	}
	out := make([]HTTPLogEntry, 0, len(b.entries))
	out = append(out, b.entries[b.next:]...)
	return append(out, b.entries[:b.next]...)
}

// GetHTTPLogBuffer returns the HTTP log buffer instance, creating it if necessary
func GetHTTPLogBuffer() *RequestBuffer {
	httpLogBufferOnce.Do(func() {
		httpLogBuffer = NewRequestBuffer(1000) // Keep last 1000 HTTP log entries
	})
	return httpLogBuffer
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(p)
	r.size += n
	return n, err
}

// HTTPMiddleware logs every request at debug level and records it in the
// HTTP log buffer
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, req)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}

		entry := HTTPLogEntry{
			Timestamp:  start,
			Method:     req.Method,
			Path:       req.URL.Path,
			Status:     rec.status,
			Duration:   time.Since(start),
			Size:       rec.size,
			RemoteAddr: req.RemoteAddr,
			UserAgent:  req.UserAgent(),
		}
		GetHTTPLogBuffer().Add(entry)
		GetSugaredLogger().Debugw("http request",
			"method", entry.Method,
			"path", entry.Path,
			"status", entry.Status,
			"duration_ms", entry.Duration.Milliseconds(),
			"size", entry.Size,
		)
	})
}
