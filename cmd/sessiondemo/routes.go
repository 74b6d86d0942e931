package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bluescreen10/httpstate"
	"github.com/bluescreen10/httpstate/logger"
	"github.com/bluescreen10/httpstate/metrics"
)

func newRouter(mgr *httpstate.Manager, g prometheus.Gatherer, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(logger.Requests(log))

	r.Handle("/metrics", metrics.Handler(g))

	r.Group(func(r chi.Router) {
		r.Use(mgr.Handler)

		r.Get("/", home(mgr))
		r.Post("/login", login(mgr, log))
		r.Post("/logout", logout(mgr, log))
	})

	return r
}

func home(mgr *httpstate.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := mgr.Get(r)

		visits := sess.GetInt("visits") + 1
		sess.Set("visits", visits)

		var notices []string
		if flashes, err := sess.FlashBag(); err == nil {
			notices = flashes.Get("notice")
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if len(notices) > 0 {
			fmt.Fprintln(w, strings.Join(notices, "\n"))
		}
		if user := sess.GetString("user"); user != "" {
			fmt.Fprintf(w, "Hello %s\n", user)
		}
		fmt.Fprintf(w, "You have visited %d times\n", visits)
	}
}

func login(mgr *httpstate.Manager, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := strings.TrimSpace(r.PostFormValue("user"))
		if user == "" {
			http.Error(w, "user is required", http.StatusBadRequest)
			return
		}

		sess := mgr.Get(r)
		if err := sess.Start(); err != nil {
			log.Error("login failed", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		// new id on login
		if err := sess.Migrate(true, 0); err != nil {
			log.Error("login failed", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		sess.Set("user", user)

		if flashes, err := sess.FlashBag(); err == nil {
			flashes.Add("notice", "Welcome back, "+user)
		}

		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func logout(mgr *httpstate.Manager, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := mgr.Get(r)
		if err := sess.Start(); err == nil {
			if err := sess.Invalidate(0); err != nil {
				log.Error("logout failed", slog.Any("error", err))
			}
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}
