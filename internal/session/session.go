// Package session manages visitor sessions backed by SQLite.
package session

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"
)

// VisitorKey is the session key holding the visitor id.
const VisitorKey = "visitor_id"

// New creates a new session manager configured with SQLite store.
func New(db *sql.DB, isDev bool) *scs.SessionManager {
	sm := scs.New()

	sm.Store = sqlite3store.New(db)

	sm.Lifetime = 24 * time.Hour
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Path = "/"
	sm.Cookie.Secure = !isDev
	if !isDev {
		// __Host- requires Secure, Path=/ and no Domain.
		sm.Cookie.Name = "__Host-session"
	}

	return sm
}

// VisitorID returns the visitor id stored in the session, creating and
// storing a new one on first use. The request must pass through
// sm.LoadAndSave.
func VisitorID(ctx context.Context, sm *scs.SessionManager) string {
	if id := sm.GetString(ctx, VisitorKey); id != "" {
		return id
	}
	id := uuid.NewString()
	sm.Put(ctx, VisitorKey, id)
	return id
}
