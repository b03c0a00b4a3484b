package extract

import (
	"context"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/sells-group/roundtable-cli/internal/fetcher"
	"github.com/sells-group/roundtable-cli/internal/selector"
)

// BioResolver replaces a panelist's inline bio with the full biography from
// the panelist's own page when one is linked.
type BioResolver struct {
	fetcher  fetcher.Fetcher
	resolver *selector.Resolver
}

// NewBioResolver creates a BioResolver.
func NewBioResolver(f fetcher.Fetcher, r *selector.Resolver) *BioResolver {
	return &BioResolver{fetcher: f, resolver: r}
}

// Resolve returns the full bio linked from block, or shortBio unchanged when
// there is no link or any step fails. base resolves relative links.
func (b *BioResolver) Resolve(ctx context.Context, block *goquery.Selection, base *url.URL, shortBio string) string {
	href := b.resolver.Text(block, selector.FieldReadMore)
	if href == "" {
		return shortBio
	}

	target, err := resolveURL(base, href)
	if err != nil {
		zap.L().Debug("extract: bad read-more link", zap.String("href", href), zap.Error(err))
		return shortBio
	}

	page := b.fetcher.Fetch(ctx, target)
	if !page.OK() {
		zap.L().Debug("extract: bio page unavailable, keeping short bio",
			zap.String("url", target),
			zap.String("status", page.Status.String()),
		)
		return shortBio
	}

	full := b.resolver.Text(page.Doc.Selection, selector.FieldBioPage)
	if full == "" {
		return shortBio
	}
	return full
}

func resolveURL(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	if base == nil {
		return ref.String(), nil
	}
	return base.ResolveReference(ref).String(), nil
}
