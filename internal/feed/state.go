package feed

import "github.com/and161185/feedwall/internal/model"

// State is the view state of a feed or wall. It is one of Loading, Empty,
// Failed or Ready.
type State interface {
	isState()
}

// Loading means the first page is being fetched.
type Loading struct{}

// Empty means the first page came back with no items.
type Empty struct{}

// Failed means the first page could not be loaded.
type Failed struct {
	Message string
	Err     error
}

// Ready holds every item loaded so far and the cursor of the last page.
// MoreError is the message of the last failed LoadMore, cleared by the next one.
type Ready struct {
	Items       []model.FeedItem
	PageInfo    model.PageInfo
	LoadingMore bool
	MoreError   string
}

func (Loading) isState() {}
func (Empty) isState()   {}
func (Failed) isState()  {}
func (Ready) isState()   {}

// CanLoadMore reports whether LoadMore would start a fetch.
func (r Ready) CanLoadMore() bool {
	return r.PageInfo.HasMore && !r.LoadingMore
}

type event interface {
	isEvent()
}

type (
	refreshStarted   struct{}
	refreshSucceeded struct{ page model.FeedPage }
	refreshFailed    struct {
		message string
		err     error
	}
	moreStarted   struct{}
	moreSucceeded struct{ page model.FeedPage }
	moreFailed    struct{ message string }
)

func (refreshStarted) isEvent()   {}
func (refreshSucceeded) isEvent() {}
func (refreshFailed) isEvent()    {}
func (moreStarted) isEvent()      {}
func (moreSucceeded) isEvent()    {}
func (moreFailed) isEvent()       {}

// reduce is the only place states change. It never mutates its input.
func reduce(st State, ev event) State {
	switch ev := ev.(type) {
	case refreshStarted:
		return Loading{}
	case refreshSucceeded:
		if len(ev.page.Items) == 0 {
			return Empty{}
		}
		return Ready{Items: cloneItems(ev.page.Items), PageInfo: ev.page.PageInfo}
	case refreshFailed:
		return Failed{Message: ev.message, Err: ev.err}
	case moreStarted:
		r, ok := st.(Ready)
		if !ok || !r.CanLoadMore() {
			return st
		}
		r.LoadingMore = true
		r.MoreError = ""
		return r
	case moreSucceeded:
		r, ok := st.(Ready)
		if !ok || !r.LoadingMore {
			return st
		}
		items := make([]model.FeedItem, 0, len(r.Items)+len(ev.page.Items))
		items = append(items, r.Items...)
		items = append(items, ev.page.Items...)
		return Ready{Items: items, PageInfo: ev.page.PageInfo}
	case moreFailed:
		r, ok := st.(Ready)
		if !ok || !r.LoadingMore {
			return st
		}
		r.LoadingMore = false
		r.MoreError = ev.message
		return r
	}
	return st
}

func cloneItems(items []model.FeedItem) []model.FeedItem {
	if items == nil {
		return nil
	}
	return append(make([]model.FeedItem, 0, len(items)), items...)
}

func clone(st State) State {
	if r, ok := st.(Ready); ok {
		r.Items = cloneItems(r.Items)
		return r
	}
	return st
}
