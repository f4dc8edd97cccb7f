// Package session derives the authentication state from the stored
// bearer token. The token signature is never verified here (that is the
// server's job); the client only reads claims and enforces expiry.
package session

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/and161185/studyshare/internal/model"
)

// Claims is the expected token payload. Only Exp is required; identity
// claims are optional and default to zero values. Any decode anomaly
// fails closed to unauthenticated.
type Claims struct {
	UserID string `json:"id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenStore is the slice of the token store the deriver needs.
type TokenStore interface {
	Get() (string, bool)
	Clear() error
}

// ProfileFetcher fetches the authoritative user profile from the backend.
type ProfileFetcher interface {
	Me(ctx context.Context) (*model.User, error)
}

// Deriver computes session state from the token store. It holds no
// session state of its own: every call re-reads the store, so token
// mutations (including external ones) take effect immediately.
type Deriver struct {
	store   TokenStore
	profile ProfileFetcher // may be nil (no backend available)
	log     *zap.Logger

	now func() time.Time // test hook
}

// New constructs a Deriver. profile may be nil; the logger may be nil.
func New(store TokenStore, profile ProfileFetcher, log *zap.Logger) *Deriver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Deriver{store: store, profile: profile, log: log, now: time.Now}
}

// decode parses the stored token without signature verification.
func (d *Deriver) decode() (*Claims, bool) {
	tok, ok := d.store.Get()
	if !ok {
		return nil, false
	}
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(tok, &claims); err != nil {
		d.log.Debug("token decode failed", zap.Error(err))
		return nil, false
	}
	return &claims, true
}

// IsAuthenticated reports whether a structurally valid, unexpired token
// is stored. A malformed token, a token without exp, or a token past its
// exp is purged from the store and reported as unauthenticated; no error
// ever reaches the caller.
func (d *Deriver) IsAuthenticated() bool {
	if _, ok := d.store.Get(); !ok {
		return false
	}
	claims, ok := d.decode()
	if !ok || claims.ExpiresAt == nil {
		_ = d.store.Clear()
		return false
	}
	if !claims.ExpiresAt.Time.After(d.now()) {
		d.log.Debug("token expired", zap.Time("exp", claims.ExpiresAt.Time))
		_ = d.store.Clear()
		return false
	}
	return true
}

// Identity returns the token-derived user, or nil if no usable identity
// claims are stored. This is the fallback identity source; prefer
// Resolve.
func (d *Deriver) Identity() *model.User {
	claims, ok := d.decode()
	if !ok || claims.UserID == "" {
		return nil
	}
	return &model.User{ID: claims.UserID, Name: claims.Name, Role: claims.Role}
}

// Resolve returns the authoritative user from the profile endpoint,
// degrading silently to the token-derived identity when the fetch fails.
// Callers never block on profile availability and never see an error;
// with both sources unavailable the result is nil (anonymous).
func (d *Deriver) Resolve(ctx context.Context) *model.User {
	fallback := d.Identity()
	if d.profile == nil {
		return fallback
	}
	u, err := d.profile.Me(ctx)
	if err != nil {
		d.log.Debug("profile fetch failed, using token identity", zap.Error(err))
		return fallback
	}
	return u
}

// Current composes the full session view: authentication check first
// (which purges an expired token), then identity resolution.
func (d *Deriver) Current(ctx context.Context) model.Session {
	if !d.IsAuthenticated() {
		return model.Session{}
	}
	return model.Session{Authenticated: true, User: d.Resolve(ctx)}
}
