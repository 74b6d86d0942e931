package httpstate

import (
	"net/http"
)

// sessionResponseWriter runs a commit function once, right before the
// response header is written, so the session can still set its cookie.
type sessionResponseWriter struct {
	http.ResponseWriter
	onCommit    func()
	isCommitted bool
}

var _ http.ResponseWriter = &sessionResponseWriter{}

func newSessionResponseWriter(w http.ResponseWriter, onCommit func()) *sessionResponseWriter {
	return &sessionResponseWriter{
		ResponseWriter: w,
		onCommit:       onCommit,
	}
}

func (w *sessionResponseWriter) Write(b []byte) (int, error) {
	w.commit()
	return w.ResponseWriter.Write(b)
}

func (w *sessionResponseWriter) WriteHeader(statusCode int) {
	w.commit()
	w.ResponseWriter.WriteHeader(statusCode)
}

// Flush commits the session before flushing buffered data.
func (w *sessionResponseWriter) Flush() {
	w.commit()
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying ResponseWriter to http.ResponseController.
func (w *sessionResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *sessionResponseWriter) commit() {
	if w.isCommitted {
		return
	}
	w.isCommitted = true
	w.onCommit()
}
