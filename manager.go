// Package httpstate provides a middleware-based session management system
// for HTTP servers in Go. Sessions are loaded lazily from a pluggable
// session.Handler, saved before the response is committed and tracked
// with a cookie.
//
// Usage:
//
//	package main
//
//	import (
//		"fmt"
//		"net/http"
//
//		"github.com/bluescreen10/httpstate"
//		"github.com/bluescreen10/httpstate/memstore"
//	)
//
//	func main() {
//		mgr := httpstate.NewManager(memstore.New())
//
//		mux := http.NewServeMux()
//		mux.Handle("/", mgr.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//			sess := mgr.Get(r)
//			count := sess.GetInt("count")
//			count++
//			sess.Set("count", count)
//			fmt.Fprintf(w, "You have visited %d times\n", count)
//		})))
//
//		http.ListenAndServe(":8080", mux)
//	}
package httpstate

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/bluescreen10/httpstate/header"
	"github.com/bluescreen10/httpstate/session"
)

type contextKey struct{}

// Manager loads a session for every request it handles and saves it
// before the response is written.
type Manager struct {
	proxy       *session.HandlerProxy
	config      session.Config
	codec       session.Codec
	cookie      CookieConfig
	logger      *slog.Logger
	storageOpts []session.StorageOption
	key         *contextKey
}

var _ Middleware = (*Manager)(nil)

// CookieConfig holds the attributes of the session cookie. The cookie
// name is the session name.
type CookieConfig struct {
	Path        string
	Domain      string
	Secure      bool
	HttpOnly    bool
	Partitioned bool
	SameSite    http.SameSite
}

// Option is a functional option for configuring a Manager
type Option func(*Manager)

// WithConfig sets the session configuration. (default session.DefaultConfig())
func WithConfig(cfg session.Config) Option {
	return func(m *Manager) {
		m.config = cfg
	}
}

// WithCodec sets the codec used to serialize session data. (default session.GobCodec)
func WithCodec(codec session.Codec) Option {
	return func(m *Manager) {
		m.codec = codec
	}
}

// WithCookieConfig sets the session cookie attributes.
func WithCookieConfig(cfg CookieConfig) Option {
	return func(m *Manager) {
		m.cookie = cfg
	}
}

// WithLogger sets the logger used by the manager and its sessions.
// (default slog.Default())
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithStorageOptions adds options applied to the Storage of every session.
func WithStorageOptions(opts ...session.StorageOption) Option {
	return func(m *Manager) {
		m.storageOpts = append(m.storageOpts, opts...)
	}
}

// NewManager returns a Manager persisting sessions through handler.
func NewManager(handler session.Handler, opts ...Option) *Manager {
	m := &Manager{
		proxy:  session.NewHandlerProxy(handler),
		config: session.DefaultConfig(),
		codec:  session.GobCodec{},
		cookie: CookieConfig{
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		},
		logger: slog.Default(),
		key:    &contextKey{},
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Handler method is a middleware that provides load-and-save session functionality.
// The session is saved right before the response header is written, or
// after next returns if it wrote nothing.
func (m *Manager) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Cookie")

		var id string
		cookie, err := r.Cookie(m.config.Name)
		if err == nil {
			id = cookie.Value
		}

		sess := m.Load(id)
		sr := r.WithContext(context.WithValue(r.Context(), m.key, sess))
		sw := newSessionResponseWriter(w, func() {
			m.commit(w, sess, id != "")
		})
		next.ServeHTTP(sw, sr)
		sw.commit()
	})
}

// Get retrieves the current session from the request context. This
// should be used only when using the middleware (Handler method).
// Outside of it a new, unsaved session is returned.
func (m *Manager) Get(r *http.Request) *session.Session {
	sess, ok := r.Context().Value(m.key).(*session.Session)
	if !ok {
		return m.Load("")
	}
	return sess
}

// Load returns a session for id. Nothing is read until the session is
// first used.
func (m *Manager) Load(id string) *session.Session {
	opts := append([]session.StorageOption{
		session.WithConfig(m.config),
		session.WithCodec(m.codec),
		session.WithStorageLogger(m.logger),
	}, m.storageOpts...)

	sess := session.New(session.NewStorage(m.proxy, opts...), session.WithLogger(m.logger))
	if id != "" {
		_ = sess.SetID(id)
	}
	return sess
}

// commit saves the session and updates the response headers. Once the
// response is being written its status can no longer change, so save
// failures are only logged.
func (m *Manager) commit(w http.ResponseWriter, sess *session.Session, hadCookie bool) {
	used := sess.UsageIndex() > 0
	started := sess.IsStarted()

	if err := sess.Save(); err != nil {
		m.logger.Error("session save failed",
			slog.String("session_name", sess.Name()),
			slog.Any("error", err))
		started = false
	}

	if started {
		switch {
		case !sess.IsEmpty():
			m.writeCookie(w, sess.ID(), sess.CookieLifetime())
		case hadCookie:
			m.expireCookie(w)
		}
	}

	if used {
		markPrivate(w.Header())
	}
}

// markPrivate prevents shared caches from storing a response that
// depends on session data.
func markPrivate(h http.Header) {
	b := header.FromHTTP(h)
	b.RemoveCacheControlDirective("public")
	b.RemoveCacheControlDirective("s-maxage")
	b.AddCacheControlDirective("private", true)
	b.AddCacheControlDirective("max-age", 0)
	b.AddCacheControlDirective("must-revalidate", true)
	b.Apply(h)
}

func (m *Manager) writeCookie(w http.ResponseWriter, id string, lifetime time.Duration) {
	cookie := m.newCookie(id)
	if lifetime > 0 {
		cookie.Expires = time.Now().Add(lifetime).Truncate(time.Second)
		cookie.MaxAge = int(lifetime.Seconds())
	}
	http.SetCookie(w, cookie)
}

func (m *Manager) expireCookie(w http.ResponseWriter) {
	cookie := m.newCookie("")
	cookie.Expires = time.Unix(1, 0)
	cookie.MaxAge = -1
	http.SetCookie(w, cookie)
}

func (m *Manager) newCookie(value string) *http.Cookie {
	return &http.Cookie{
		Value:       value,
		Name:        m.config.Name,
		Domain:      m.cookie.Domain,
		HttpOnly:    m.cookie.HttpOnly,
		Path:        m.cookie.Path,
		SameSite:    m.cookie.SameSite,
		Secure:      m.cookie.Secure,
		Partitioned: m.cookie.Partitioned,
	}
}
