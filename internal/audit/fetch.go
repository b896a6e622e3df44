package audit

import (
	"context"
	"net/http"
	"time"
)

// FetchRequest describes a page load.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the page content returned by a Fetcher.
type FetchResponse struct {
	URL          string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
}

// Fetcher loads a page, either statically or through a browser.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (FetchResponse, error)
}

// HeadlessDetector decides whether a static response needs JavaScript rendering.
type HeadlessDetector interface {
	ShouldPromote(resp FetchResponse) bool
}
