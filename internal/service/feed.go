package service

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/and161185/feedwall/internal/api"
	"github.com/and161185/feedwall/internal/model"
)

const (
	feedPath = "/api/feed"
	wallPath = "/api/feed/user/"

	defaultPage  = 1
	defaultLimit = 10
)

// FeedService defines the feed, wall and post operations.
type FeedService interface {
	Feed(ctx context.Context, page, limit int) (model.FeedPage, error)
	Wall(ctx context.Context, userID string, page, limit int) (model.FeedPage, error)
	CreatePost(ctx context.Context, content string) (model.FeedItem, error)
}

type FeedServiceImpl struct {
	c *api.Client
}

// NewFeedService constructs FeedService over c.
func NewFeedService(c *api.Client) *FeedServiceImpl {
	return &FeedServiceImpl{c: c}
}

// Feed fetches one page of the global feed.
func (s *FeedServiceImpl) Feed(ctx context.Context, page, limit int) (model.FeedPage, error) {
	return s.page(ctx, feedPath, page, limit)
}

// Wall fetches one page of userID's posts.
func (s *FeedServiceImpl) Wall(ctx context.Context, userID string, page, limit int) (model.FeedPage, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return model.FeedPage{}, errors.New("wall: empty user id")
	}
	return s.page(ctx, wallPath+url.PathEscape(userID), page, limit)
}

// CreatePost publishes content as the current user.
func (s *FeedServiceImpl) CreatePost(ctx context.Context, content string) (model.FeedItem, error) {
	it, err := api.Post[model.FeedItem](ctx, s.c, feedPath, model.NewPost{Content: content})
	if err != nil {
		return model.FeedItem{}, err
	}
	if it.Kind == "" {
		it.Kind = model.KindPost
	}
	return it, nil
}

func (s *FeedServiceImpl) page(ctx context.Context, path string, page, limit int) (model.FeedPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	w, err := api.Get[pageWire](ctx, s.c, path, q)
	if err != nil {
		return model.FeedPage{}, err
	}
	return w.normalize(), nil
}

// pageWire tells absent pagination fields apart from zero values.
type pageWire struct {
	Items    []model.FeedItem `json:"items"`
	PageInfo *struct {
		Page    *int  `json:"page"`
		Limit   *int  `json:"limit"`
		HasMore *bool `json:"hasMore"`
	} `json:"pageInfo"`
}

func (w pageWire) normalize() model.FeedPage {
	p := model.FeedPage{
		Items:    make([]model.FeedItem, 0, len(w.Items)),
		PageInfo: model.PageInfo{Page: defaultPage, Limit: defaultLimit},
	}
	for _, it := range w.Items {
		if it.Kind == "" {
			it.Kind = model.KindPost
		}
		p.Items = append(p.Items, it)
	}
	if pi := w.PageInfo; pi != nil {
		if pi.Page != nil {
			p.PageInfo.Page = *pi.Page
		}
		if pi.Limit != nil {
			p.PageInfo.Limit = *pi.Limit
		}
		if pi.HasMore != nil {
			p.PageInfo.HasMore = *pi.HasMore
		}
	}
	return p
}
