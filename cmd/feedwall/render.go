package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/and161185/feedwall/internal/feed"
	"github.com/and161185/feedwall/internal/model"
	"github.com/and161185/feedwall/internal/session"
)

var (
	primary = lipgloss.Color("#7C3AED")
	green   = lipgloss.Color("#10B981")
	red     = lipgloss.Color("#EF4444")
	muted   = lipgloss.Color("#6B7280")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(primary)
	authorStyle  = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	successStyle = lipgloss.NewStyle().Foreground(green).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(red).Bold(true)

	itemStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(muted).
			Padding(0, 1).
			Width(72)
)

const timeLayout = "2006-01-02 15:04"

func success(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, successStyle.Render("✓"), fmt.Sprintf(format, args...))
}

func renderUser(w io.Writer, u model.User) {
	fmt.Fprintln(w, titleStyle.Render(u.Name()))
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("%s · id %s", u.Subject, u.ID)))
}

func renderSession(w io.Writer, st session.State) {
	if st.IsAuthenticated() {
		success(w, "Signed in as %s", st.User.Name())
		return
	}
	fmt.Fprintln(w, mutedStyle.Render("Signed out"))
}

func renderState(w io.Writer, title string, st feed.State) {
	fmt.Fprintln(w, titleStyle.Render(title))
	switch st := st.(type) {
	case feed.Loading:
		fmt.Fprintln(w, mutedStyle.Render("Loading…"))
	case feed.Empty:
		fmt.Fprintln(w, mutedStyle.Render("Nothing here yet."))
	case feed.Failed:
		fmt.Fprintln(w, errorStyle.Render(st.Message))
	case feed.Ready:
		for _, it := range st.Items {
			fmt.Fprintln(w, renderItem(it))
		}
		if st.MoreError != "" {
			fmt.Fprintln(w, errorStyle.Render(st.MoreError))
		}
		footer := fmt.Sprintf("page %d · %d items", st.PageInfo.Page, len(st.Items))
		if st.PageInfo.HasMore {
			footer += fmt.Sprintf(" · more with --pages %d", st.PageInfo.Page+1)
		}
		fmt.Fprintln(w, mutedStyle.Render(footer))
	}
}

func renderItem(it model.FeedItem) string {
	author := strings.TrimSpace(it.Author.DisplayName)
	if author == "" {
		author = "user " + it.Author.ID.String()
	}
	header := authorStyle.Render(author)
	if ts, ok := it.CreatedTime(); ok {
		header += " " + mutedStyle.Render(ts.Local().Format(timeLayout))
	}
	return itemStyle.Render(header + "\n" + it.Content)
}
