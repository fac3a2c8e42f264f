// Package feed loads paginated feed and wall items into an observable view state.
package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/and161185/feedwall/internal/api"
	"github.com/and161185/feedwall/internal/errs"
	"github.com/and161185/feedwall/internal/model"
	"github.com/and161185/feedwall/internal/pubsub"
)

// MaxPostLength is the longest post, in runes, the backend accepts.
const MaxPostLength = 1000

const (
	defaultPageSize = 10
	maxPageSize     = 50

	sessionExpired = "Your session expired. Please sign in again."
)

var (
	ErrEmptyPost    = errors.New("post is empty")
	ErrPostTooLong  = errors.New("post is too long")
	ErrNotSupported = errors.New("posting is not supported here")
)

// FeedSource serves pages of the global feed.
type FeedSource interface {
	Feed(ctx context.Context, page, limit int) (model.FeedPage, error)
}

// WallSource serves pages of one user's wall and accepts new posts.
type WallSource interface {
	Wall(ctx context.Context, userID string, page, limit int) (model.FeedPage, error)
	CreatePost(ctx context.Context, content string) (model.FeedItem, error)
}

type fetchFunc func(ctx context.Context, page, limit int) (model.FeedPage, error)

// Store owns one feed or wall view. It is safe for concurrent use.
//
// Every fetch is numbered; a result is applied only while its number is the
// latest, so a Refresh supersedes an outstanding LoadMore.
type Store struct {
	noun  string
	fetch fetchFunc
	post  func(ctx context.Context, content string) (model.FeedItem, error)
	limit int
	log   *zap.Logger
	lazy  bool

	mu       sync.Mutex
	state    State
	seq      uint64
	inFlight bool
	pending  int
	idle     chan struct{}

	hub pubsub.Hub[State]
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store's logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithPageSize sets the page limit, clamped to [1, 50].
func WithPageSize(n int) Option {
	return func(s *Store) {
		s.limit = min(max(n, 1), maxPageSize)
	}
}

// WithoutInitialLoad leaves the store in Loading until Refresh is called.
func WithoutInitialLoad() Option {
	return func(s *Store) { s.lazy = true }
}

// NewFeed constructs the global feed store and starts loading its first page.
func NewFeed(ctx context.Context, src FeedSource, opts ...Option) *Store {
	return newStore(ctx, "Feed", src.Feed, nil, opts)
}

// NewWall constructs userID's wall store and starts loading its first page.
func NewWall(ctx context.Context, src WallSource, userID string, opts ...Option) *Store {
	fetch := func(ctx context.Context, page, limit int) (model.FeedPage, error) {
		return src.Wall(ctx, userID, page, limit)
	}
	return newStore(ctx, "Wall", fetch, src.CreatePost, opts)
}

func newStore(ctx context.Context, noun string, fetch fetchFunc, post func(context.Context, string) (model.FeedItem, error), opts []Option) *Store {
	idle := make(chan struct{})
	close(idle)
	s := &Store{
		noun:  noun,
		fetch: fetch,
		post:  post,
		limit: defaultPageSize,
		log:   zap.NewNop(),
		state: Loading{},
		idle:  idle,
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With(zap.String("view", strings.ToLower(noun)))
	if !s.lazy {
		if seq, ok := s.startRefresh(); ok {
			go s.finishRefresh(ctx, seq)
		}
	}
	return s
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.state)
}

// Subscribe registers fn and delivers the current snapshot to it at once.
// fn must not call mutating Store methods synchronously.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	return s.hub.Subscribe(fn, s.Snapshot)
}

// Wait blocks until no fetch is pending and returns the resulting state.
func (s *Store) Wait(ctx context.Context) (State, error) {
	s.mu.Lock()
	idle := s.idle
	s.mu.Unlock()
	select {
	case <-idle:
		return s.Snapshot(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Refresh reloads the first page. It is dropped while another first-page
// load is in flight.
func (s *Store) Refresh(ctx context.Context) {
	if seq, ok := s.startRefresh(); ok {
		s.finishRefresh(ctx, seq)
	}
}

func (s *Store) startRefresh() (uint64, bool) {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		s.log.Debug("refresh dropped, already loading")
		return 0, false
	}
	s.inFlight = true
	s.seq++
	seq := s.seq
	s.begin()
	s.state = reduce(s.state, refreshStarted{})
	s.mu.Unlock()

	s.publish()
	return seq, true
}

func (s *Store) finishRefresh(ctx context.Context, seq uint64) {
	page, err := s.fetch(ctx, 1, s.limit)

	var ev event
	if err != nil {
		s.log.Info("first page failed", zap.Error(err))
		ev = refreshFailed{message: s.message(err), err: err}
	} else {
		ev = refreshSucceeded{page: page}
	}

	s.mu.Lock()
	s.inFlight = false
	s.apply(seq, ev)
}

// LoadMore fetches the next page and appends it. It does nothing unless the
// state is Ready with more pages and no LoadMore pending.
func (s *Store) LoadMore(ctx context.Context) {
	s.mu.Lock()
	r, ok := s.state.(Ready)
	if !ok || !r.CanLoadMore() {
		s.mu.Unlock()
		return
	}
	next, limit := r.PageInfo.Page+1, r.PageInfo.Limit
	if limit <= 0 {
		limit = s.limit
	}
	s.seq++
	seq := s.seq
	s.begin()
	s.state = reduce(s.state, moreStarted{})
	s.mu.Unlock()
	s.publish()

	page, err := s.fetch(ctx, next, limit)

	var ev event
	switch {
	case err == nil:
		ev = moreSucceeded{page: page}
	case errors.Is(err, errs.ErrUnauthorized):
		ev = refreshFailed{message: sessionExpired, err: err}
	default:
		s.log.Info("next page failed", zap.Int("page", next), zap.Error(err))
		ev = moreFailed{message: s.message(err)}
	}

	s.mu.Lock()
	s.apply(seq, ev)
}

// CreatePost publishes content and then reloads the first page. The new
// item appears only once the backend returns it. A first-page load already in
// flight may predate the post, so CreatePost waits for it and reloads anyway.
func (s *Store) CreatePost(ctx context.Context, content string) error {
	if s.post == nil {
		return ErrNotSupported
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyPost
	}
	if utf8.RuneCountInString(content) > MaxPostLength {
		return ErrPostTooLong
	}
	if _, err := s.post(ctx, content); err != nil {
		return err
	}
	for {
		if seq, ok := s.startRefresh(); ok {
			s.finishRefresh(ctx, seq)
			return nil
		}
		if _, err := s.Wait(ctx); err != nil {
			return fmt.Errorf("reload after post: %w", err)
		}
	}
}

// apply must be called with mu held; it releases it.
func (s *Store) apply(seq uint64, ev event) {
	stale := seq != s.seq
	if !stale {
		s.state = reduce(s.state, ev)
	}
	s.end()
	s.mu.Unlock()

	if stale {
		s.log.Debug("stale result dropped", zap.Uint64("seq", seq))
		return
	}
	s.publish()
}

func (s *Store) begin() {
	if s.pending == 0 {
		s.idle = make(chan struct{})
	}
	s.pending++
}

func (s *Store) end() {
	s.pending--
	if s.pending == 0 {
		close(s.idle)
	}
}

func (s *Store) publish() {
	s.hub.Publish(s.Snapshot)
}

func (s *Store) message(err error) string {
	switch {
	case errors.Is(err, errs.ErrUnauthorized):
		return sessionExpired
	case errors.Is(err, errs.ErrNotImplemented):
		return s.noun + " is not available yet."
	default:
		return api.UserMessage(err)
	}
}
