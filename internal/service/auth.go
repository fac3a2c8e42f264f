// Package service contains typed calls for the authentication and feed endpoints.
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/and161185/feedwall/internal/api"
	"github.com/and161185/feedwall/internal/errs"
	"github.com/and161185/feedwall/internal/model"
)

const (
	loginPath = "/api/auth/login"
	mePath    = "/api/auth/me"
)

// AuthService defines the login and identity operations.
type AuthService interface {
	// Login exchanges credentials for a bearer token. It never sends a credential.
	Login(ctx context.Context, creds model.Credentials) (model.Tokens, error)
	// Me returns the user the stored credential belongs to.
	Me(ctx context.Context) (model.User, error)
}

type AuthServiceImpl struct {
	c *api.Client
}

// NewAuthService constructs AuthService over c.
func NewAuthService(c *api.Client) *AuthServiceImpl {
	return &AuthServiceImpl{c: c}
}

func (s *AuthServiceImpl) Login(ctx context.Context, creds model.Credentials) (model.Tokens, error) {
	tok, err := api.PostPublic[model.Tokens](ctx, s.c, loginPath, creds)
	if err != nil {
		return model.Tokens{}, err
	}
	tok.AccessToken = strings.TrimSpace(tok.AccessToken)
	if tok.AccessToken == "" {
		return model.Tokens{}, fmt.Errorf("login: %w: empty access token", errs.ErrParse)
	}
	return tok, nil
}

func (s *AuthServiceImpl) Me(ctx context.Context) (model.User, error) {
	return api.Get[model.User](ctx, s.c, mePath, nil)
}
