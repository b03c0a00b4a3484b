package fetcher

import (
	"bytes"
	"fmt"
	"net/http"
)

// BlockKind names the anti-bot response a page was served instead of content.
type BlockKind string

const (
	BlockNone      BlockKind = ""
	BlockChallenge BlockKind = "challenge"
	BlockCaptcha   BlockKind = "captcha"
	BlockJSShell   BlockKind = "js_shell"
)

// Captcha and JS-shell markers are only trusted on short bodies. A full
// event page may mention either in a footer widget.
const shortBody = 4096

var challengeMarkers = [][]byte{
	[]byte("checking your browser"),
	[]byte("cf-browser-verification"),
	[]byte("cf-challenge"),
}

var captchaMarkers = [][]byte{
	[]byte("g-recaptcha"),
	[]byte("h-captcha"),
	[]byte("captcha"),
}

// BlockedError reports that the site served an interstitial instead of the
// requested page.
type BlockedError struct {
	URL  string
	Kind BlockKind
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("GET %s: blocked (%s)", e.URL, e.Kind)
}

// detectBlock inspects a response for signs of anti-bot protection.
func detectBlock(statusCode int, header http.Header, body []byte) BlockKind {
	if statusCode == http.StatusForbidden || statusCode == http.StatusServiceUnavailable {
		if header.Get("Cf-Ray") != "" || header.Get("Cf-Mitigated") != "" {
			return BlockChallenge
		}
	}

	lower := bytes.ToLower(body)
	for _, m := range challengeMarkers {
		if bytes.Contains(lower, m) {
			return BlockChallenge
		}
	}
	if len(body) >= shortBody {
		return BlockNone
	}
	for _, m := range captchaMarkers {
		if bytes.Contains(lower, m) {
			return BlockCaptcha
		}
	}
	if bytes.Contains(lower, []byte("<noscript")) && bytes.Contains(lower, []byte("enable javascript")) {
		return BlockJSShell
	}
	return BlockNone
}
