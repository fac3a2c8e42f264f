package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/and161185/feedwall/internal/feed"
	"github.com/and161185/feedwall/internal/model"
)

const testToken = "cli-token"

type fakeBackend struct {
	mu    sync.Mutex
	posts []model.FeedItem
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if r.URL.Path == "/api/auth/login" {
		var c model.Credentials
		_ = json.NewDecoder(r.Body).Decode(&c)
		if c.Password != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(model.Tokens{AccessToken: testToken, TokenType: "Bearer"})
		return
	}
	if r.Header.Get("Authorization") != "Bearer "+testToken {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	switch {
	case r.URL.Path == "/api/auth/me":
		_, _ = w.Write([]byte(`{"id":"u1","subject":"ann@example.com","displayName":"Ann"}`))
	case r.Method == http.MethodPost && r.URL.Path == "/api/feed":
		var p model.NewPost
		_ = json.NewDecoder(r.Body).Decode(&p)
		it := model.FeedItem{Kind: "post", ID: model.ID(strconv.Itoa(len(b.posts) + 1)), Content: p.Content,
			CreatedAt: "2024-03-01T10:00:00Z", Author: model.Author{ID: "u1", DisplayName: "Ann"}}
		b.posts = append([]model.FeedItem{it}, b.posts...)
		_ = json.NewEncoder(w).Encode(it)
	case r.URL.Path == "/api/feed" || r.URL.Path == "/api/feed/user/u1":
		pg, _ := strconv.Atoi(r.URL.Query().Get("page"))
		lim, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		from := min((pg-1)*lim, len(b.posts))
		to := min(from+lim, len(b.posts))
		_ = json.NewEncoder(w).Encode(model.FeedPage{
			Items:    b.posts[from:to],
			PageInfo: model.PageInfo{Page: pg, Limit: lim, HasMore: to < len(b.posts)},
		})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func setup(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{}
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("FEEDWALL_API_BASE_URL", srv.URL)
	t.Setenv("FEEDWALL_PAGE_SIZE", "2")
	t.Setenv("FEEDWALL_TOKEN_BACKEND", "file")
	return b
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCLI_LoginWhoamiLogout(t *testing.T) {
	setup(t)

	_, err := run(t, "whoami")
	require.ErrorIs(t, err, errNotSignedIn)

	_, err = run(t, "login", "-e", "ann@example.com", "-p", "wrong")
	require.EqualError(t, err, "Invalid credentials.")

	out, err := run(t, "login", "-e", "ann@example.com", "-p", "pw")
	require.NoError(t, err)
	require.Contains(t, out, "Signed in as Ann")

	out, err = run(t, "whoami")
	require.NoError(t, err)
	require.Contains(t, out, "Ann")
	require.Contains(t, out, "ann@example.com")

	_, err = run(t, "logout")
	require.NoError(t, err)
	_, err = run(t, "whoami")
	require.ErrorIs(t, err, errNotSignedIn)
}

// lockedBuffer is written by session listeners while the test reads it.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestCLI_Status(t *testing.T) {
	setup(t)

	out, err := run(t, "status")
	require.NoError(t, err)
	require.Contains(t, out, "Signed out")

	_, err = run(t, "login", "-e", "ann@example.com", "-p", "pw")
	require.NoError(t, err)
	out, err = run(t, "status")
	require.NoError(t, err)
	require.Contains(t, out, "Signed in as Ann")
}

func TestCLI_StatusFollowSeesOtherProcesses(t *testing.T) {
	setup(t)

	var out lockedBuffer
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"status", "--follow"})
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	seen := func(s string, n int) func() bool {
		return func() bool { return strings.Count(out.String(), s) == n }
	}
	require.Eventually(t, seen("Signed out", 1), 3*time.Second, 10*time.Millisecond)

	_, err := run(t, "login", "-e", "ann@example.com", "-p", "pw")
	require.NoError(t, err)
	require.Eventually(t, seen("Signed in as Ann", 1), 3*time.Second, 10*time.Millisecond)

	_, err = run(t, "logout")
	require.NoError(t, err)
	require.Eventually(t, seen("Signed out", 2), 3*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("status --follow did not stop")
	}
}

func TestCLI_StatusFollowNeedsFileBackend(t *testing.T) {
	setup(t)
	t.Setenv("FEEDWALL_TOKEN_BACKEND", "memory")

	_, err := run(t, "status", "--follow")
	require.ErrorContains(t, err, "--follow needs the file credential backend")
}

func TestCLI_PostAndPaginate(t *testing.T) {
	setup(t)
	_, err := run(t, "login", "-e", "ann@example.com", "-p", "pw")
	require.NoError(t, err)

	out, err := run(t, "feed")
	require.NoError(t, err)
	require.Contains(t, out, "Nothing here yet.")

	for i := 1; i <= 3; i++ {
		out, err = run(t, "post", "hello", fmt.Sprint(i))
		require.NoError(t, err)
		require.Contains(t, out, "Posted")
	}
	require.Contains(t, out, "hello 3")

	out, err = run(t, "wall")
	require.NoError(t, err)
	require.Contains(t, out, "hello 3")
	require.Contains(t, out, "hello 2")
	require.NotContains(t, out, "hello 1")
	require.Contains(t, out, "more with --pages 2")

	out, err = run(t, "feed", "--pages", "2")
	require.NoError(t, err)
	require.Contains(t, out, "hello 1")
	require.Contains(t, out, "page 2 · 3 items")
}

func TestCLI_PostValidation(t *testing.T) {
	setup(t)
	_, err := run(t, "login", "-e", "a@b.c", "-p", "pw")
	require.NoError(t, err)

	_, err = run(t, "post", "   ")
	require.EqualError(t, err, "Post cannot be empty.")

	_, err = run(t, "post", strings.Repeat("x", feed.MaxPostLength+1))
	require.EqualError(t, err, "Post is longer than 1000 characters.")
}

func TestCLI_OtherWallNotAvailable(t *testing.T) {
	setup(t)
	_, err := run(t, "login", "-e", "a@b.c", "-p", "pw")
	require.NoError(t, err)

	out, err := run(t, "wall", "someone-else")
	require.NoError(t, err)
	require.Contains(t, out, "Wall is not available yet.")
}

func TestRenderItem(t *testing.T) {
	out := renderItem(model.FeedItem{Author: model.Author{ID: "9"}, Content: "body", CreatedAt: "garbage"})
	require.Contains(t, out, "user 9")
	require.Contains(t, out, "body")
}
