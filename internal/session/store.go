// Package session holds the authentication state and its transitions.
package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/and161185/feedwall/internal/model"
	"github.com/and161185/feedwall/internal/pubsub"
	"github.com/and161185/feedwall/internal/tokenstore"
)

// AuthAPI is the subset of the backend the session needs.
type AuthAPI interface {
	Login(ctx context.Context, creds model.Credentials) (model.Tokens, error)
	Me(ctx context.Context) (model.User, error)
}

// TokenStore persists the credential between runs.
type TokenStore interface {
	Get(ctx context.Context) (string, bool)
	Set(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// Store owns the session state. It is safe for concurrent use; network calls
// run without holding the lock, and overlapping Login/Bootstrap calls resolve
// as last write wins.
type Store struct {
	api    AuthAPI
	tokens TokenStore
	log    *zap.Logger

	mu    sync.Mutex
	state State

	hub pubsub.Hub[State]
}

// New constructs a Store in the Uninitialized state.
func New(api AuthAPI, tokens TokenStore, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{api: api, tokens: tokens, log: log}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Subscribe registers fn and delivers the current snapshot to it at once.
// fn must not call mutating Store methods synchronously.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	return s.hub.Subscribe(fn, s.Snapshot)
}

func (s *Store) set(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	s.hub.Publish(s.Snapshot)
}

// Bootstrap restores the session from the stored credential. Without one it
// settles in Unauthenticated without touching the network. A credential the
// backend rejects, or any other failure verifying it, is cleared.
func (s *Store) Bootstrap(ctx context.Context) {
	tok, ok := s.tokens.Get(ctx)
	if !ok {
		s.set(State{Status: Unauthenticated})
		return
	}
	s.set(State{Status: Loading, Token: tok})

	u, err := s.api.Me(ctx)
	if err != nil {
		s.log.Info("stored credential rejected", zap.Error(err))
		s.fail(ctx, err)
		return
	}
	s.set(State{Status: Authenticated, Token: tok, User: &u})
}

// Login exchanges creds for a credential, stores it and verifies it.
// On failure the credential is cleared and the error returned.
func (s *Store) Login(ctx context.Context, creds model.Credentials) error {
	s.set(State{Status: Loading})

	tok, err := s.api.Login(ctx, creds)
	if err != nil {
		s.fail(ctx, err)
		return err
	}
	if err := s.tokens.Set(ctx, tok.AccessToken); err != nil {
		// kept in memory for this process
		s.log.Warn("credential not persisted", zap.Error(err))
	}
	s.set(State{Status: Loading, Token: tok.AccessToken})

	u, err := s.api.Me(ctx)
	if err != nil {
		s.fail(ctx, err)
		return err
	}
	s.set(State{Status: Authenticated, Token: tok.AccessToken, User: &u})
	return nil
}

// Logout forgets the credential. It makes no network call.
func (s *Store) Logout(ctx context.Context) {
	s.clearTokens(ctx)
	s.set(State{Status: Unauthenticated})
}

// Expire is a forced logout after the backend rejected the credential.
// err is kept as the session's last error.
func (s *Store) Expire(err error) {
	s.log.Info("session expired", zap.Error(err))
	s.fail(context.Background(), err)
}

// WatchCredential re-bootstraps whenever the credential file at path changes,
// for example after a login from another process, until ctx is done.
func (s *Store) WatchCredential(ctx context.Context, path string) error {
	return tokenstore.Watch(ctx, path, s.log, func() {
		if ctx.Err() != nil {
			return
		}
		tok, ok := s.tokens.Get(ctx)
		cur := s.Snapshot()
		switch {
		case !ok && cur.Status == Unauthenticated:
			return
		case ok && tok == cur.Token && cur.Status != Unauthenticated:
			return
		}
		s.Bootstrap(ctx)
	})
}

func (s *Store) fail(ctx context.Context, err error) {
	s.clearTokens(ctx)
	s.set(State{Status: Unauthenticated, Err: err})
}

func (s *Store) clearTokens(ctx context.Context) {
	if err := s.tokens.Clear(context.WithoutCancel(ctx)); err != nil {
		s.log.Warn("credential not cleared", zap.Error(err))
	}
}
