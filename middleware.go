package httpstate

import "net/http"

// Middleware defines the interface for HTTP middleware such as Manager.
type Middleware interface {
	Handler(http.Handler) http.Handler
}
