// Package tokenstore persists the bearer credential and builds the auth header.
package tokenstore

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Key is the fixed name the credential is stored under.
const Key = "auth.accessToken"

// Store reads and writes the credential through a Storage.
//
// Reads never fail: any storage error reads as "no credential". Writes report
// their error, but this process keeps seeing what it wrote: a value that could
// not be persisted is served until Clear, and a failed Clear still reads as
// absent.
type Store struct {
	storage Storage
	log     *zap.Logger
	now     func() time.Time

	// mem overrides storage while pinned, after a failed write or delete.
	mu     sync.Mutex
	mem    string
	pinned bool
}

// New constructs a Store. A nil logger is replaced with a no-op logger.
func New(storage Storage, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{storage: storage, log: log, now: time.Now}
}

// Get returns the credential, or false when none is usable.
func (s *Store) Get(ctx context.Context) (string, bool) {
	s.mu.Lock()
	if s.pinned {
		tok := s.mem
		s.mu.Unlock()
		return s.usable(tok)
	}
	s.mu.Unlock()

	tok, err := s.storage.Load(ctx)
	if err != nil {
		s.log.Debug("token read failed", zap.Error(err))
		return "", false
	}
	return s.usable(tok)
}

func (s *Store) usable(tok string) (string, bool) {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return "", false
	}
	if expired(tok, s.now()) {
		s.log.Debug("stored token expired")
		return "", false
	}
	return tok, true
}

// Set trims and stores token. Empty input is ignored.
func (s *Store) Set(ctx context.Context, token string) error {
	clean := strings.TrimSpace(token)
	if clean == "" {
		return nil
	}
	err := s.storage.Save(ctx, clean)

	s.mu.Lock()
	s.mem = clean
	s.pinned = err != nil
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("token write failed; keeping it for this process only", zap.Error(err))
	}
	return err
}

// Clear removes the stored credential. If the delete fails the credential
// still reads as absent for the rest of the process.
func (s *Store) Clear(ctx context.Context) error {
	err := s.storage.Delete(ctx)

	s.mu.Lock()
	s.mem = ""
	s.pinned = err != nil
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("token delete failed; treating it as cleared for this process", zap.Error(err))
	}
	return err
}

// AuthHeader returns an Authorization header, or an empty header without a credential.
func (s *Store) AuthHeader(ctx context.Context) http.Header {
	h := http.Header{}
	if tok, ok := s.Get(ctx); ok {
		h.Set("Authorization", "Bearer "+tok)
	}
	return h
}

// expired reports whether tok is a JWT whose exp claim has passed.
// Opaque tokens never expire client-side.
func expired(tok string, now time.Time) bool {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tok, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !now.Before(claims.ExpiresAt.Time)
}
