// Package crawl walks the per-period listing pages and assembles the corpus.
package crawl

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/roundtable-cli/internal/fetcher"
	"github.com/sells-group/roundtable-cli/internal/model"
	"github.com/sells-group/roundtable-cli/internal/selector"
)

// Extractor builds a record from one detail page.
type Extractor interface {
	Extract(ctx context.Context, pageURL string, period int) (*model.EventRecord, bool)
}

// Options configures an Aggregator.
type Options struct {
	// ListingURLTemplate has one %d verb for the period.
	ListingURLTemplate string
	// Workers bounds how many periods are crawled at once.
	Workers int
}

// Aggregator collects records across periods and owns id assignment.
type Aggregator struct {
	fetcher   fetcher.Fetcher
	resolver  *selector.Resolver
	extractor Extractor
	opts      Options

	mu     sync.Mutex
	lastID int
}

// NewAggregator creates an Aggregator.
func NewAggregator(f fetcher.Fetcher, r *selector.Resolver, ex Extractor, opts Options) *Aggregator {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Aggregator{fetcher: f, resolver: r, extractor: ex, opts: opts}
}

// PeriodResult summarizes one period of a crawl.
type PeriodResult struct {
	Period  int
	Listing string
	Links   int
	Skipped int
	Records []model.EventRecord
	// Unavailable is set when the listing page could not be fetched.
	Unavailable bool
}

// Collect crawls every period and returns the records with ids 1..n in
// ascending period order, then page order. Unreachable periods and pages are
// skipped. The only error is cancellation, in which case nothing is returned.
func (a *Aggregator) Collect(ctx context.Context, periods []int) ([]model.EventRecord, error) {
	results, err := a.CollectPeriods(ctx, periods)
	if err != nil {
		return nil, err
	}

	var out []model.EventRecord
	for _, r := range results {
		out = append(out, r.Records...)
	}
	if out == nil {
		out = []model.EventRecord{}
	}
	return out, nil
}

// CollectPeriods is Collect with per-period detail. Results are in ascending
// period order and ids are already assigned.
func (a *Aggregator) CollectPeriods(ctx context.Context, periods []int) ([]PeriodResult, error) {
	sorted := slices.Clone(periods)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	results := make([]PeriodResult, len(sorted))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Workers)

	for i, period := range sorted {
		g.Go(func() error {
			res, err := a.crawlPeriod(gctx, period)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "crawl: collect")
	}

	a.assignIDs(results)
	return results, nil
}

func (a *Aggregator) assignIDs(results []PeriodResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range results {
		for j := range results[i].Records {
			a.lastID++
			results[i].Records[j].ID = a.lastID
		}
	}
}

func (a *Aggregator) crawlPeriod(ctx context.Context, period int) (PeriodResult, error) {
	listing := fmt.Sprintf(a.opts.ListingURLTemplate, period)
	res := PeriodResult{Period: period, Listing: listing}
	log := zap.L().With(zap.Int("period", period), zap.String("listing", listing))

	page := a.fetcher.Fetch(ctx, listing)
	if err := ctx.Err(); err != nil {
		return res, err
	}
	if !page.OK() {
		log.Warn("crawl: listing unavailable, skipping period", zap.String("status", page.Status.String()))
		res.Unavailable = true
		return res, nil
	}

	links := a.links(page)
	res.Links = len(links)
	log.Info("crawl: found detail links", zap.Int("links", len(links)))

	for _, link := range links {
		rec, ok := a.extractor.Extract(ctx, link, period)
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if !ok {
			res.Skipped++
			continue
		}
		res.Records = append(res.Records, *rec)
	}

	log.Info("crawl: period complete",
		zap.Int("records", len(res.Records)),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

// links resolves listing hrefs against the listing URL, dropping duplicates
// and keeping first-seen order.
func (a *Aggregator) links(page *fetcher.Page) []string {
	base := page.Doc.Url
	seen := make(map[string]bool)
	var out []string
	for _, href := range a.resolver.List(page.Doc.Selection, selector.FieldListingLinks) {
		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		abs := ref
		if base != nil {
			abs = base.ResolveReference(ref)
		}
		abs.Fragment = ""
		s := abs.String()
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
