package httpstate_test

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bluescreen10/httpstate"
	"github.com/bluescreen10/httpstate/session"
)

type mockhandler struct {
	records  map[string][]byte
	destroys []string

	readErr  error
	writeErr error
}

func newMockhandler() *mockhandler {
	return &mockhandler{records: make(map[string][]byte)}
}

func (h *mockhandler) Open(string, string) error { return nil }
func (h *mockhandler) Close() error { return nil }
func (h *mockhandler) GC(time.Duration) (int, error) { return 0, nil }

func (h *mockhandler) Read(id string) ([]byte, error) {
	if h.readErr != nil {
		return nil, h.readErr
	}
	return h.records[id], nil
}

func (h *mockhandler) Write(id string, data []byte) error {
	if h.writeErr != nil {
		return h.writeErr
	}
	h.records[id] = data
	return nil
}

func (h *mockhandler) Destroy(id string) error {
	h.destroys = append(h.destroys, id)
	delete(h.records, id)
	return nil
}

var _ session.Handler = &mockhandler{}

// validatingMockhandler only accepts ids it has a record for.
type validatingMockhandler struct {
	*mockhandler
}

func (h validatingMockhandler) ValidateID(id string) (bool, error) {
	_, ok := h.records[id]
	return ok, nil
}

func testConfig() session.Config {
	cfg := session.DefaultConfig()
	cfg.GCProbability = 0
	return cfg
}

func serve(h http.Handler, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	r := httptest.NewRequest("POST", "/", &bytes.Buffer{})
	for _, c := range cookies {
		r.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == "SESSID" {
			return c
		}
	}
	t.Fatal("expected a session cookie but got none")
	return nil
}

func TestCreateSession(t *testing.T) {
	store := newMockhandler()
	sm := httpstate.NewManager(store, httpstate.WithConfig(testConfig()))

	expectedId := 123

	h1 := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := sm.Get(r)
		sess.Set("user_id", expectedId)
	})

	w1 := serve(sm.Handler(h1))
	cookie := sessionCookie(t, w1)

	if _, ok := store.records[cookie.Value]; !ok {
		t.Fatalf("expected a record for '%s'", cookie.Value)
	}

	h2 := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := sm.Get(r)
		if id := sess.GetInt("user_id"); id != expectedId {
			t.Fatalf("expected value '%d' got '%d'", expectedId, id)
		}
	})

	serve(sm.Handler(h2), cookie)
}

func TestCreateSessionWithCookie(t *testing.T) {
	store := newMockhandler()
	sm := httpstate.NewManager(store, httpstate.WithConfig(testConfig()))

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := sm.Get(r)
		if u := sess.GetInt("user_id"); u != 0 {
			t.Fatalf("expected '0' session but got '%d'", u)
		}
		sess.Set("user_id", 123)
	})

	w := serve(sm.Handler(h), &http.Cookie{Name: "SESSID", Value: "abc123"})

	// a handler that cannot validate ids keeps the id it was given
	if cookie := sessionCookie(t, w); cookie.Value != "abc123" {
		t.Fatalf("expected 'abc123' got '%s'", cookie.Value)
	}
}

func TestUnknownCookieGetsNewID(t *testing.T) {
	store := newMockhandler()
	sm := httpstate.NewManager(validatingMockhandler{store}, httpstate.WithConfig(testConfig()))

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sm.Get(r).Set("user_id", 123)
	})

	w := serve(sm.Handler(h), &http.Cookie{Name: "SESSID", Value: "forged"})

	cookie := sessionCookie(t, w)
	if cookie.Value == "forged" || cookie.Value == "" {
		t.Fatalf("expected a new id got '%s'", cookie.Value)
	}
}

func TestUnusedSession(t *testing.T) {
	store := newMockhandler()
	sm := httpstate.NewManager(store, httpstate.WithConfig(testConfig()))

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello world"))
	})

	w := serve(sm.Handler(h))

	if cookie := w.Result().Header.Get("Set-Cookie"); cookie != "" {
		t.Fatalf("expected no cookie but got '%s'", cookie)
	}

	if cc := w.Result().Header.Get("Cache-Control"); cc != "" {
		t.Fatalf("expected no Cache-Control but got '%s'", cc)
	}

	if len(store.records) != 0 {
		t.Fatalf("expected no records but got %d", len(store.records))
	}
}

func TestErrorLoadingSession(t *testing.T) {
	store := newMockhandler()
	store.readErr = errors.New("test")

	logs := &bytes.Buffer{}
	sm := httpstate.NewManager(store,
		httpstate.WithConfig(testConfig()),
		httpstate.WithLogger(slog.New(slog.NewTextHandler(logs, nil))))

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sm.Get(r).Set("hello", "world")
		w.Write([]byte("hello world"))
	})

	w := serve(sm.Handler(h), &http.Cookie{Name: "SESSID", Value: "abc123"})

	if status := w.Result().StatusCode; status != http.StatusOK {
		t.Fatalf("expected status '200' got '%d'", status)
	}

	if cookie := w.Result().Header.Get("Set-Cookie"); cookie != "" {
		t.Fatal("expected no cookie but got one")
	}

	if !bytes.Contains(logs.Bytes(), []byte("session.start_failed")) {
		t.Fatalf("expected start failure to be logged, got '%s'", logs.String())
	}
}

func TestErrorSaveSession(t *testing.T) {
	store := newMockhandler()
	store.writeErr = errors.New("test")

	logs := &bytes.Buffer{}
	sm := httpstate.NewManager(store,
		httpstate.WithConfig(testConfig()),
		httpstate.WithLogger(slog.New(slog.NewTextHandler(logs, nil))))

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := sm.Get(r)
		sess.Set("hello", "world")
		w.Write([]byte("hello world"))
	})

	w := serve(sm.Handler(h), &http.Cookie{Name: "SESSID", Value: "abc123"})

	if cookie := w.Result().Header.Get("Set-Cookie"); cookie != "" {
		t.Fatal("expected no cookie but got one")
	}

	if !bytes.Contains(logs.Bytes(), []byte("session save failed")) {
		t.Fatalf("expected save failure to be logged, got '%s'", logs.String())
	}
}

func TestInvalidateSession(t *testing.T) {
	store := newMockhandler()
	sm := httpstate.NewManager(store, httpstate.WithConfig(testConfig()))

	login := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sm.Get(r).Set("user_id", 1)
	})
	cookie := sessionCookie(t, serve(sm.Handler(login)))

	logout := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := sm.Get(r)
		if err := sess.Start(); err != nil {
			t.Fatal(err)
		}
		if err := sess.Invalidate(0); err != nil {
			t.Fatal(err)
		}
		w.Write([]byte("bye"))
	})
	w := serve(sm.Handler(logout), cookie)

	if len(store.destroys) != 1 || store.destroys[0] != cookie.Value {
		t.Fatalf("expected '%s' to be destroyed, got %v", cookie.Value, store.destroys)
	}

	expired := sessionCookie(t, w)
	if expired.MaxAge >= 0 || expired.Value != "" {
		t.Fatalf("expected an expired cookie got '%s'", expired.String())
	}
}

func TestMigrateSession(t *testing.T) {
	store := newMockhandler()
	sm := httpstate.NewManager(store, httpstate.WithConfig(testConfig()))

	h1 := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sm.Get(r).Set("cart", "3 items")
	})
	cookie := sessionCookie(t, serve(sm.Handler(h1)))

	login := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := sm.Get(r)
		if err := sess.Start(); err != nil {
			t.Fatal(err)
		}
		if err := sess.Migrate(true, 0); err != nil {
			t.Fatal(err)
		}
		sess.Set("user_id", 1)
	})
	migrated := sessionCookie(t, serve(sm.Handler(login), cookie))

	if migrated.Value == cookie.Value {
		t.Fatal("expected a new session id")
	}

	h3 := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := sm.Get(r)
		if v := sess.GetString("cart"); v != "3 items" {
			t.Fatalf("expected '3 items' got '%s'", v)
		}
	})
	serve(sm.Handler(h3), migrated)
}

func TestEmptySessionExpiresCookie(t *testing.T) {
	store := newMockhandler()
	sm := httpstate.NewManager(store, httpstate.WithConfig(testConfig()))

	h1 := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sm.Get(r).Set("hello", "world")
	})
	cookie := sessionCookie(t, serve(sm.Handler(h1)))

	h2 := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sm.Get(r).Remove("hello")
	})
	w := serve(sm.Handler(h2), cookie)

	if expired := sessionCookie(t, w); expired.MaxAge >= 0 {
		t.Fatalf("expected an expired cookie got '%s'", expired.String())
	}
}

func TestCookieLifetime(t *testing.T) {
	cfg := testConfig()
	cfg.CookieLifetime = 10 * time.Minute
	sm := httpstate.NewManager(newMockhandler(), httpstate.WithConfig(cfg))

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sm.Get(r).Set("hello", "world")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("hello world"))
	})

	cookie := sessionCookie(t, serve(sm.Handler(h)))

	if cookie.MaxAge != 600 {
		t.Fatalf("expected max age '600' got '%d'", cookie.MaxAge)
	}

	expected := time.Now().Add(11 * time.Minute)
	if cookie.Expires.IsZero() || cookie.Expires.After(expected) {
		t.Fatalf("expected cookie expiration '%s' to be before '%s'", cookie.Expires.UTC(), expected.UTC())
	}
}

func TestSessionCookieAttributes(t *testing.T) {
	sm := httpstate.NewManager(newMockhandler(),
		httpstate.WithConfig(testConfig()),
		httpstate.WithCookieConfig(httpstate.CookieConfig{
			Path:     "/app",
			Secure:   true,
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
		}))

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sm.Get(r).Set("hello", "world")
	})

	cookie := sessionCookie(t, serve(sm.Handler(h)))

	if cookie.Path != "/app" || !cookie.Secure || !cookie.HttpOnly || cookie.SameSite != http.SameSiteStrictMode {
		t.Fatalf("unexpected cookie attributes '%s'", cookie.String())
	}

	if cookie.MaxAge != 0 {
		t.Fatalf("expected a browser session cookie got max age '%d'", cookie.MaxAge)
	}
}

func TestSessionSavedBeforeWrite(t *testing.T) {
	store := newMockhandler()
	sm := httpstate.NewManager(store, httpstate.WithConfig(testConfig()))

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sm.Get(r).Set("hello", "world")
		w.Write([]byte("hello world"))

		if len(store.records) != 1 {
			t.Fatalf("expected the session to be saved before the body, got %d records", len(store.records))
		}
	})

	w := serve(sm.Handler(h))
	sessionCookie(t, w)
}

func TestUsedSessionIsPrivate(t *testing.T) {
	sm := httpstate.NewManager(newMockhandler(), httpstate.WithConfig(testConfig()))

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		_ = sm.Get(r).GetString("user")
	})

	w := serve(sm.Handler(h))

	expected := "max-age=0, must-revalidate, private"
	if cc := w.Result().Header.Get("Cache-Control"); cc != expected {
		t.Fatalf("expected '%s' got '%s'", expected, cc)
	}

	if vary := w.Result().Header.Get("Vary"); vary != "Cookie" {
		t.Fatalf("expected 'Cookie' got '%s'", vary)
	}
}

func TestFlashMessages(t *testing.T) {
	sm := httpstate.NewManager(newMockhandler(), httpstate.WithConfig(testConfig()))

	h1 := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flashes, err := sm.Get(r).FlashBag()
		if err != nil {
			t.Fatal(err)
		}
		flashes.Add("notice", "saved")
	})
	cookie := sessionCookie(t, serve(sm.Handler(h1)))

	var got []string
	h2 := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flashes, err := sm.Get(r).FlashBag()
		if err != nil {
			t.Fatal(err)
		}
		got = flashes.Get("notice")
	})
	serve(sm.Handler(h2), cookie)

	if len(got) != 1 || got[0] != "saved" {
		t.Fatalf("expected '[saved]' got '%v'", got)
	}
}

func TestGetOutsideMiddleware(t *testing.T) {
	sm := httpstate.NewManager(newMockhandler(), httpstate.WithConfig(testConfig()))

	sess := sm.Get(httptest.NewRequest("GET", "/", nil))
	if sess == nil {
		t.Fatal("expected a session")
	}

	if sess.IsStarted() {
		t.Fatal("expected an unstarted session")
	}
}

func TestSessionValues(t *testing.T) {
	sm := httpstate.NewManager(newMockhandler(), httpstate.WithConfig(testConfig()))

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := sm.Get(r)
		if v := sess.Get("key"); v != nil {
			t.Fatalf("expected 'nil' got '%v'", v)
		}

		if v := sess.GetInt("int"); v != 0 {
			t.Fatalf("expected '0' got '%d'", v)
		}

		if v := sess.GetUint("uint"); v != 0 {
			t.Fatalf("expected '0' got '%d'", v)
		}

		if v := sess.GetFloat32("float32"); v != 0 {
			t.Fatalf("expected '0' got '%f'", v)
		}

		if v := sess.GetFloat64("float64"); v != 0 {
			t.Fatalf("expected '0' got '%f'", v)
		}

		if v := sess.GetString("string"); v != "" {
			t.Fatalf("expected '' got '%s'", v)
		}

		if v := sess.GetBool("bool"); v != false {
			t.Fatalf("expected 'false' got '%v'", v)
		}

		sess.Set("int", 1)
		sess.Set("uint", uint(2))
		sess.Set("float32", float32(3))
		sess.Set("float64", float64(4))
		sess.Set("string", "hello")
		sess.Set("bool", true)

		if v := sess.GetInt("int"); v != 1 {
			t.Fatalf("expected '1' got '%d'", v)
		}

		if v := sess.GetUint("uint"); v != 2 {
			t.Fatalf("expected '2' got '%d'", v)
		}

		if v := sess.GetFloat32("float32"); v != 3 {
			t.Fatalf("expected '3' got '%f'", v)
		}

		if v := sess.GetFloat64("float64"); v != 4 {
			t.Fatalf("expected '4' got '%f'", v)
		}

		if v := sess.GetString("string"); v != "hello" {
			t.Fatalf("expected 'hello' got '%s'", v)
		}

		if v := sess.GetBool("bool"); v != true {
			t.Fatalf("expected 'true' got '%v'", v)
		}

		sess.Remove("bool")
		if v := sess.GetBool("bool"); v != false {
			t.Fatalf("expected 'false' got '%v'", v)
		}
	})

	serve(sm.Handler(h))
}
