package middleware

import (
	"bytes"
	"net/http"
)

// responseRecorder captures the status code and, when buffer is set, a copy
// of the body written through it.
type responseRecorder struct {
	http.ResponseWriter
	status int
	buffer *bytes.Buffer
}

func newResponseRecorder(w http.ResponseWriter) *responseRecorder {
	return &responseRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.buffer != nil {
		r.buffer.Write(b)
	}
	return r.ResponseWriter.Write(b)
}
