// Package extract builds event records from detail pages.
package extract

import (
	"context"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/sells-group/roundtable-cli/internal/fetcher"
	"github.com/sells-group/roundtable-cli/internal/model"
	"github.com/sells-group/roundtable-cli/internal/selector"
)

// Options tunes extraction.
type Options struct {
	// AppendYear adds the listing period to extracted dates.
	AppendYear bool
}

// Extractor turns one detail page into one EventRecord.
type Extractor struct {
	fetcher  fetcher.Fetcher
	resolver *selector.Resolver
	bios     *BioResolver
	opts     Options
}

// New creates an Extractor.
func New(f fetcher.Fetcher, r *selector.Resolver, opts Options) *Extractor {
	return &Extractor{
		fetcher:  f,
		resolver: r,
		bios:     NewBioResolver(f, r),
		opts:     opts,
	}
}

// Extract fetches pageURL and extracts a record. The bool is false when the
// page was not found, soft-redirected, or failed. The record has no ID.
func (e *Extractor) Extract(ctx context.Context, pageURL string, period int) (*model.EventRecord, bool) {
	page := e.fetcher.Fetch(ctx, pageURL)
	if !page.OK() {
		zap.L().Info("extract: skipping detail page",
			zap.String("url", pageURL),
			zap.String("status", page.Status.String()),
		)
		return nil, false
	}

	rec := e.FromDocument(ctx, page.Doc, period)
	return &rec, true
}

// FromDocument extracts a record from an already parsed page. Missing
// structure yields empty fields, never an error.
func (e *Extractor) FromDocument(ctx context.Context, doc *goquery.Document, period int) model.EventRecord {
	root := doc.Selection

	date, timeRange := SplitDateTime(e.resolver.Text(root, selector.FieldDateTime))
	if e.opts.AppendYear {
		date = WithYear(date, period)
	}

	rec := model.EventRecord{
		Title:       e.resolver.Text(root, selector.FieldTitle),
		Date:        date,
		Time:        timeRange,
		Description: e.resolver.Text(root, selector.FieldDescription),
		Panelists:   []model.Panelist{},
	}

	// Panelists resolve one at a time in document order.
	for _, block := range e.resolver.Blocks(root, selector.FieldPanelists) {
		shortBio := e.resolver.Text(block, selector.FieldPanelistBio)
		rec.Panelists = append(rec.Panelists, model.Panelist{
			Name:  e.resolver.Text(block, selector.FieldPanelistName),
			Title: e.resolver.Text(block, selector.FieldPanelistTitle),
			Bio:   e.bios.Resolve(ctx, block, doc.Url, shortBio),
		})
	}
	return rec
}
