// Package model defines domain entities exchanged with the feed backend.
package model

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// KindPost is the only feed item kind the backend currently emits.
const KindPost = "post"

// ID is an identifier the backend may encode either as a JSON string or a number.
type ID string

// UnmarshalJSON accepts both `"42"` and `42`.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// String returns the normalized identifier.
func (id ID) String() string { return string(id) }

// Credentials are exchanged for a bearer token at login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Tokens is the login response.
type Tokens struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	ExpiresIn   int64  `json:"expiresIn"` // seconds
}

// User is the identity returned by the "who am I" endpoint.
type User struct {
	ID          ID     `json:"id"`
	Subject     string `json:"subject"`
	DisplayName string `json:"displayName,omitempty"`
}

// Name returns the display name, falling back to the subject.
func (u User) Name() string {
	if n := strings.TrimSpace(u.DisplayName); n != "" {
		return n
	}
	return u.Subject
}

// Author identifies who wrote a feed item.
type Author struct {
	ID          ID     `json:"id"`
	DisplayName string `json:"displayName"`
}

// FeedItem is a single post as served by the backend.
type FeedItem struct {
	Kind      string `json:"kind"`
	ID        ID     `json:"id"`
	CreatedAt string `json:"createdAt"` // ISO-8601
	Author    Author `json:"author"`
	Content   string `json:"content"`
}

// CreatedTime parses CreatedAt; ok is false when the backend sent something else.
func (it FeedItem) CreatedTime() (time.Time, bool) {
	t, err := time.Parse(time.RFC3339Nano, it.CreatedAt)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// PageInfo is the pagination cursor. HasMore is the only authority for further pages.
type PageInfo struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	HasMore bool `json:"hasMore"`
}

// FeedPage is one page of feed or wall items.
type FeedPage struct {
	Items    []FeedItem `json:"items"`
	PageInfo PageInfo   `json:"pageInfo"`
}

// NewPost is the create-post request body.
type NewPost struct {
	Content string `json:"content"`
}
