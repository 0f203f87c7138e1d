package web

import (
	"fmt"
	"net/http"

	"github.com/agroisync/gateway/pkg/httpx"
)

// page renders a minimal placeholder for a marketplace screen. The real
// front end lives elsewhere; these exist so the guard chain has something to
// protect and so end-to-end tests can assert on rendered content.
func (rt *Router) page(title, blurb string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<!doctype html><title>%s — AgroiSync</title><h1>%s</h1><p>%s</p>", title, title, blurb)
	})
}

// handleMessages is the messaging surface, additionally gated on an active
// paid plan.
func (rt *Router) handleMessages(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if sess == nil || !sess.CanUseMessaging() {
		httpx.NoCache(w)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("<!doctype html><title>Messages — AgroiSync</title><p>Messaging requires an active plan.</p>"))
		return
	}

	rt.page("Messages", "Buyer and seller conversations").ServeHTTP(w, r)
}
