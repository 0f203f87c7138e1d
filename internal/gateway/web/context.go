package web

import (
	"context"

	"github.com/agroisync/gateway/internal/gateway/session"
	"github.com/agroisync/gateway/pkg/idx"
)

type ctxKey int

const (
	ctxKeySession ctxKey = iota
	ctxKeySessionID
)

func withSession(ctx context.Context, id idx.ID, m *session.Manager) context.Context {
	ctx = context.WithValue(ctx, ctxKeySession, m)
	return context.WithValue(ctx, ctxKeySessionID, id)
}

// sessionFrom returns the request's session manager, or nil when the session
// middleware did not run. Guards treat nil as a deny.
func sessionFrom(ctx context.Context) *session.Manager {
	m, _ := ctx.Value(ctxKeySession).(*session.Manager)
	return m
}

func sessionIDFrom(ctx context.Context) idx.ID {
	id, _ := ctx.Value(ctxKeySessionID).(idx.ID)
	return id
}
