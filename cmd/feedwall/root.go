package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/and161185/feedwall/internal/api"
	"github.com/and161185/feedwall/internal/app"
	"github.com/and161185/feedwall/internal/config"
	"github.com/and161185/feedwall/internal/feed"
	"github.com/and161185/feedwall/internal/logging"
	"github.com/and161185/feedwall/internal/model"
	"github.com/and161185/feedwall/internal/session"
)

var errNotSignedIn = errors.New("not signed in, run `feedwall login` first")

type globals struct {
	configPath string
	apiURL     string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:   "feedwall",
		Short: "Read the feed and post to your wall",
		Long: `feedwall signs in to the feed backend, shows the global feed and
user walls page by page, and posts to your own wall.

Environment Variables:
  FEEDWALL_API_BASE_URL  Backend URL (default: ` + config.DefaultBaseURL + `)
  FEEDWALL_TOKEN_BACKEND Credential storage: file, memory or postgres
  FEEDWALL_LOG_LEVEL     debug, info, warn or error
  FEEDWALL_TRACE         true to print a trace span per backend request`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/feedwall/config.yaml)")
	root.PersistentFlags().StringVar(&g.apiURL, "api-url", "", "backend URL (overrides FEEDWALL_API_BASE_URL)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level (overrides FEEDWALL_LOG_LEVEL)")

	root.AddCommand(
		loginCmd(g),
		logoutCmd(g),
		whoamiCmd(g),
		statusCmd(g),
		feedCmd(g),
		wallCmd(g),
		postCmd(g),
		versionCmd(),
	)
	return root
}

// open loads configuration, builds the app and restores the session.
func (g *globals) open(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	if g.apiURL != "" {
		cfg.BaseURL = config.NormalizeBaseURL(g.apiURL)
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}
	a.Session.Bootstrap(ctx)
	return a, nil
}

func closeApp(a *app.App) {
	a.Close()
	_ = a.Log.Sync()
}

func loginCmd(g *globals) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			email = strings.TrimSpace(email)
			if email == "" || password == "" {
				return errors.New("email and password are required")
			}
			a, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeApp(a)

			if err := a.Session.Login(cmd.Context(), model.Credentials{Email: email, Password: password}); err != nil {
				return errors.New(api.UserMessage(err))
			}
			success(cmd.OutOrStdout(), "Signed in as %s", a.Session.Snapshot().User.Name())
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	return cmd
}

func logoutCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeApp(a)

			a.Session.Logout(cmd.Context())
			success(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func whoamiCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeApp(a)

			st := a.Session.Snapshot()
			if !st.IsAuthenticated() {
				return errNotSignedIn
			}
			renderUser(cmd.OutOrStdout(), *st.User)
			return nil
		},
	}
}

func statusCmd(g *globals) *cobra.Command {
	var follow bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether you are signed in",
		Long: `Show whether you are signed in.

With --follow, keep running and report every login and logout, including
those made by other feedwall processes, until interrupted. Following needs
the file credential backend.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeApp(a)

			out := cmd.OutOrStdout()
			if !follow {
				renderSession(out, a.Session.Snapshot())
				return nil
			}
			if a.Config.TokenBackend != config.BackendFile {
				return fmt.Errorf("--follow needs the %s credential backend", config.BackendFile)
			}

			ctx := cmd.Context()
			if err := a.WatchCredential(ctx); err != nil {
				return fmt.Errorf("watch credential: %w", err)
			}
			var last session.Status
			unsubscribe := a.Session.Subscribe(func(st session.State) {
				if st.Status == last || st.Status == session.Loading || st.Status == session.Uninitialized {
					return
				}
				last = st.Status
				renderSession(out, st)
			})
			defer unsubscribe()

			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep reporting session changes")
	return cmd
}

func feedCmd(g *globals) *cobra.Command {
	var pages int
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Show the global feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeApp(a)
			if !a.Session.Snapshot().IsAuthenticated() {
				return errNotSignedIn
			}

			st, err := load(cmd.Context(), a.Feed(cmd.Context()), pages)
			if err != nil {
				return err
			}
			renderState(cmd.OutOrStdout(), "Feed", st)
			return nil
		},
	}
	cmd.Flags().IntVar(&pages, "pages", 1, "number of pages to load")
	return cmd
}

func wallCmd(g *globals) *cobra.Command {
	var pages int
	cmd := &cobra.Command{
		Use:   "wall [user-id]",
		Short: "Show a user's wall (yours by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeApp(a)
			if !a.Session.Snapshot().IsAuthenticated() {
				return errNotSignedIn
			}

			var userID string
			if len(args) == 1 {
				userID = args[0]
			}
			w, err := a.Wall(cmd.Context(), userID)
			if err != nil {
				return err
			}
			st, err := load(cmd.Context(), w, pages)
			if err != nil {
				return err
			}
			renderState(cmd.OutOrStdout(), "Wall", st)
			return nil
		},
	}
	cmd.Flags().IntVar(&pages, "pages", 1, "number of pages to load")
	return cmd
}

func postCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "post <text>",
		Short: "Post to your wall",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeApp(a)
			if !a.Session.Snapshot().IsAuthenticated() {
				return errNotSignedIn
			}

			w, err := a.Wall(cmd.Context(), "", feed.WithoutInitialLoad())
			if err != nil {
				return err
			}
			if err := w.CreatePost(cmd.Context(), strings.Join(args, " ")); err != nil {
				return errors.New(postMessage(err))
			}
			success(cmd.OutOrStdout(), "Posted")
			renderState(cmd.OutOrStdout(), "Wall", w.Snapshot())
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "feedwall %s (%s)\n", version, commit)
		},
	}
}

// load waits for the first page and then pulls up to pages-1 more.
func load(ctx context.Context, s *feed.Store, pages int) (feed.State, error) {
	st, err := s.Wait(ctx)
	if err != nil {
		return nil, err
	}
	for i := 1; i < pages; i++ {
		r, ok := st.(feed.Ready)
		if !ok || !r.CanLoadMore() {
			break
		}
		s.LoadMore(ctx)
		st = s.Snapshot()
	}
	return st, nil
}

func postMessage(err error) string {
	switch {
	case errors.Is(err, feed.ErrEmptyPost):
		return "Post cannot be empty."
	case errors.Is(err, feed.ErrPostTooLong):
		return fmt.Sprintf("Post is longer than %d characters.", feed.MaxPostLength)
	default:
		return api.UserMessage(err)
	}
}
