package fetcher

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/roundtable-cli/internal/model"
	"github.com/sells-group/roundtable-cli/internal/resilience"
)

const maxBodyBytes = 10 << 20

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	// SiteURL is the site root. A response landing on it for a non-root
	// request is a soft redirect.
	SiteURL   string
	UserAgent string
	Timeout   time.Duration

	// MinDelay is the minimum spacing between consecutive network requests
	// across all callers. Zero disables the limiter.
	MinDelay time.Duration

	Retry resilience.RetryConfig

	// Cache is optional. Cache hits bypass the network and the limiter.
	Cache    PageCache
	CacheTTL time.Duration
}

// HTTPFetcher implements Fetcher using net/http, a shared politeness limiter
// and resilience retries.
type HTTPFetcher struct {
	client   *http.Client
	opts     HTTPOptions
	limiter  *rate.Limiter
	siteHost string
	now      func() time.Time
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "roundtable-cli/1.0"
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry.MaxAttempts = 1
	}

	limit := rate.Inf
	if opts.MinDelay > 0 {
		limit = rate.Every(opts.MinDelay)
	}

	var siteHost string
	if u, err := url.Parse(opts.SiteURL); err == nil {
		siteHost = u.Host
	}

	transport := &http.Transport{
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:     opts,
		limiter:  rate.NewLimiter(limit, 1),
		siteHost: siteHost,
		now:      time.Now,
	}
}

// Fetch retrieves rawURL and classifies the outcome. It never returns nil.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) *Page {
	start := f.now()
	page := f.fetch(ctx, rawURL)

	fields := []zap.Field{
		zap.String("url", rawURL),
		zap.String("status", page.Status.String()),
		zap.Int("status_code", page.StatusCode),
		zap.Bool("cached", page.Cached),
		zap.Duration("duration", f.now().Sub(start)),
	}
	if page.Err != nil {
		fields = append(fields, zap.Error(page.Err))
	}
	if page.Status == StatusError {
		zap.L().Warn("fetcher: fetch failed", fields...)
	} else {
		zap.L().Debug("fetcher: fetched page", fields...)
	}
	return page
}

func (f *HTTPFetcher) fetch(ctx context.Context, rawURL string) *Page {
	if page := f.fromCache(ctx, rawURL); page != nil {
		return page
	}

	resp, err := resilience.DoVal(ctx, f.opts.Retry, func(ctx context.Context) (*response, error) {
		return f.get(ctx, rawURL)
	})
	if err != nil {
		return &Page{URL: rawURL, Status: StatusError, StatusCode: statusOf(err), Err: err}
	}

	page := &Page{URL: rawURL, FinalURL: resp.finalURL, StatusCode: resp.statusCode}
	switch {
	case resp.statusCode == http.StatusNotFound || resp.statusCode == http.StatusGone:
		page.Status = StatusNotFound
		return page
	case f.isSoftRedirect(rawURL, resp.finalURL):
		page.Status = StatusSoftRedirect
		return page
	}

	doc, err := parse(resp.body, resp.finalURL)
	if err != nil {
		page.Status = StatusError
		page.Err = err
		return page
	}
	page.Status = StatusOK
	page.Doc = doc

	f.toCache(ctx, rawURL, resp)
	return page
}

type response struct {
	finalURL   string
	statusCode int
	body       []byte
}

// get performs one rate-limited request. 404 and 410 are returned as
// responses so they are not retried; other non-2xx codes are errors.
func (f *HTTPFetcher) get(ctx context.Context, rawURL string) (*response, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "fetcher: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: get %s", rawURL)
	}
	defer resp.Body.Close() //nolint:errcheck

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return &response{finalURL: finalURL, statusCode: resp.StatusCode}, nil
	}
	if kind := detectBlock(resp.StatusCode, resp.Header, nil); kind != BlockNone {
		return nil, resilience.NewTransientError(&BlockedError{URL: rawURL, Kind: kind}, resp.StatusCode)
	}
	if err := resilience.CheckStatus(rawURL, resp.StatusCode); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrapf(err, "fetcher: read body %s", rawURL), 0)
	}
	if kind := detectBlock(resp.StatusCode, resp.Header, body); kind != BlockNone {
		return nil, resilience.NewTransientError(&BlockedError{URL: rawURL, Kind: kind}, resp.StatusCode)
	}
	return &response{finalURL: finalURL, statusCode: resp.StatusCode, body: body}, nil
}

// isSoftRedirect reports whether a request for a non-root page ended on the
// site root.
func (f *HTTPFetcher) isSoftRedirect(requested, final string) bool {
	fu, err := url.Parse(final)
	if err != nil || !isRoot(fu) {
		return false
	}
	ru, err := url.Parse(requested)
	if err != nil || isRoot(ru) {
		return false
	}
	host := f.siteHost
	if host == "" {
		host = ru.Host
	}
	return fu.Host == host
}

func isRoot(u *url.URL) bool {
	return (u.Path == "" || u.Path == "/") && u.RawQuery == ""
}

func (f *HTTPFetcher) fromCache(ctx context.Context, rawURL string) *Page {
	if f.opts.Cache == nil {
		return nil
	}
	cached, err := f.opts.Cache.GetPage(ctx, rawURL, f.now())
	if err != nil {
		zap.L().Warn("fetcher: cache lookup failed", zap.String("url", rawURL), zap.Error(err))
		return nil
	}
	if cached == nil {
		return nil
	}
	doc, err := parse(cached.Body, cached.FinalURL)
	if err != nil {
		return nil
	}
	return &Page{
		URL:        rawURL,
		FinalURL:   cached.FinalURL,
		Status:     StatusOK,
		StatusCode: cached.StatusCode,
		Doc:        doc,
		Cached:     true,
	}
}

func (f *HTTPFetcher) toCache(ctx context.Context, rawURL string, resp *response) {
	if f.opts.Cache == nil || f.opts.CacheTTL <= 0 {
		return
	}
	now := f.now()
	err := f.opts.Cache.PutPage(ctx, model.CachedPage{
		URL:        rawURL,
		FinalURL:   resp.finalURL,
		StatusCode: resp.statusCode,
		Body:       resp.body,
		FetchedAt:  now,
		ExpiresAt:  now.Add(f.opts.CacheTTL),
	})
	if err != nil {
		zap.L().Warn("fetcher: cache store failed", zap.String("url", rawURL), zap.Error(err))
	}
}

func parse(body []byte, finalURL string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: parse html")
	}
	if u, err := url.Parse(finalURL); err == nil {
		doc.Url = u
	}
	return doc, nil
}

func statusOf(err error) int {
	var se *resilience.StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	var te *resilience.TransientError
	if errors.As(err, &te) {
		return te.StatusCode
	}
	return 0
}
