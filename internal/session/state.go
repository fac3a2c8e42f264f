package session

import "github.com/and161185/feedwall/internal/model"

// Status is the authentication phase.
type Status int

const (
	Uninitialized Status = iota
	Loading
	Authenticated
	Unauthenticated
)

func (s Status) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	}
	return "unknown"
}

// State is a snapshot of the session. User is set only when Authenticated;
// Err holds the last failure, if any.
type State struct {
	Status Status
	Token  string
	User   *model.User
	Err    error
}

// IsAuthenticated reports whether a verified user is present.
func (s State) IsAuthenticated() bool {
	return s.Status == Authenticated && s.User != nil
}

func (s State) clone() State {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}
