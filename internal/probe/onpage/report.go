package onpage

// Title length classifications.
const (
	TitleTooShort = "Too short"
	TitleTooLong  = "Too long"
	TitleGood     = "Good length"
)

// DefaultRobotsMeta is reported when the page declares no robots meta tag.
const DefaultRobotsMeta = "index, follow"

// Headings holds deduplicated heading text by level.
type Headings struct {
	H1 []string `json:"h1"`
	H2 []string `json:"h2"`
	H3 []string `json:"h3"`
}

func (h Headings) all() []string {
	out := make([]string, 0, len(h.H1)+len(h.H2)+len(h.H3))
	out = append(out, h.H1...)
	out = append(out, h.H2...)
	return append(out, h.H3...)
}

// AltAudit counts images whose alt text is missing.
type AltAudit struct {
	TotalImages       int     `json:"total_images"`
	MissingAltCount   int     `json:"missing_alt_count"`
	MissingAltPercent float64 `json:"missing_alt_percent"`
}

// Report is the on-page analysis of one rendered page.
type Report struct {
	URL             string          `json:"url"`
	Title           *string         `json:"title"`
	TitleStatus     *string         `json:"title_status"`
	MetaDescription *string         `json:"meta_description"`
	Headings        Headings        `json:"headings"`
	Canonical       *string         `json:"canonical"`
	RobotsMeta      string          `json:"robots_meta"`
	AltAudit        AltAudit        `json:"alt_audit"`
	WordCount       int             `json:"word_count"`
	InternalLinks   int             `json:"internal_links"`
	ExternalLinks   int             `json:"external_links"`
	KeywordAnalysis KeywordAnalysis `json:"keyword_analysis"`
	StatusCode      int             `json:"status_code,omitempty"`
	RenderedWith    string          `json:"rendered_with"`
}

// KeywordAnalysis is either a KeywordFocus or a TopTerms result.
type KeywordAnalysis interface {
	Mode() string
}

// KeywordFocus describes how a requested keyword is used on the page.
type KeywordFocus struct {
	Keyword        string  `json:"keyword"`
	InTitle        bool    `json:"in_title"`
	InMetaDesc     bool    `json:"in_meta_desc"`
	InHeadings     bool    `json:"in_headings"`
	CountInBody    int     `json:"count_in_body"`
	DensityPercent float64 `json:"density_percent"`
}

// Mode implements KeywordAnalysis.
func (KeywordFocus) Mode() string { return "keyword" }

// Term is one frequent word on the page.
type Term struct {
	Term       string `json:"term"`
	Count      int    `json:"count"`
	InTitle    bool   `json:"in_title"`
	InMetaDesc bool   `json:"in_meta_desc"`
	InHeadings bool   `json:"in_headings"`
}

// TopTerms lists the most frequent non-stopword terms when no keyword was given.
type TopTerms struct {
	Terms []Term `json:"top_terms"`
}

// Mode implements KeywordAnalysis.
func (TopTerms) Mode() string { return "top_terms" }
