// Package fetcher retrieves and parses pages from the source site. Every
// outcome is reported as a Page status; fetch failures are values, not
// errors, so one bad page never stops a crawl.
package fetcher

import (
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/roundtable-cli/internal/model"
)

// Status classifies a fetch outcome.
type Status int

const (
	StatusOK Status = iota
	StatusNotFound
	StatusSoftRedirect
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotFound:
		return "not_found"
	case StatusSoftRedirect:
		return "soft_redirect"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Page is the result of one fetch. Doc is set only when Status is StatusOK.
type Page struct {
	URL        string
	FinalURL   string
	Status     Status
	StatusCode int
	Doc        *goquery.Document
	Err        error
	Cached     bool
}

// OK reports whether the page was fetched and parsed.
func (p *Page) OK() bool {
	return p != nil && p.Status == StatusOK && p.Doc != nil
}

// Fetcher retrieves pages.
type Fetcher interface {
	Fetch(ctx context.Context, url string) *Page
}

// PageCache stores successfully fetched pages. GetPage returns nil, nil on a
// miss or an expired entry.
type PageCache interface {
	GetPage(ctx context.Context, url string, now time.Time) (*model.CachedPage, error)
	PutPage(ctx context.Context, page model.CachedPage) error
}
