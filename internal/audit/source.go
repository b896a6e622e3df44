package audit

// Source names one analysis dimension of a combined report.
type Source string

// Source names used as keys of a combined report.
const (
	SourceOnPage       Source = "onpage"
	SourceCrawlability Source = "crawlability"
	SourcePerformance  Source = "performance"
)

// Sources lists every source in report order.
var Sources = []Source{SourceOnPage, SourceCrawlability, SourcePerformance}

// Result is the outcome of a single probe call: a value or an error, never both.
type Result[T any] struct {
	Value T
	Err   error
}

// Success wraps a successful probe value.
func Success[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Failure wraps a probe error.
func Failure[T any](err error) Result[T] {
	return Result[T]{Err: err}
}

// OK reports whether the result holds a value.
func (r Result[T]) OK() bool {
	return r.Err == nil
}
