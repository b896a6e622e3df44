package crawlability

import (
	"bytes"
	"compress/gzip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// maxSitemapBytes bounds a decompressed sitemap document.
const maxSitemapBytes = 50 << 20

type sitemapKind int

const (
	sitemapUnknown sitemapKind = iota
	sitemapIndex
	sitemapURLSet
)

type sitemapLoc struct {
	Loc string `xml:"loc"`
}

type sitemapDocument struct {
	XMLName  xml.Name
	Sitemaps []sitemapLoc `xml:"sitemap"`
	URLs     []sitemapLoc `xml:"url"`
}

// parseSitemap decodes a sitemap or sitemap index, gunzipping when the body is gzip-compressed.
func parseSitemap(body []byte) (sitemapKind, []string, error) {
	data, err := maybeGunzip(body)
	if err != nil {
		return sitemapUnknown, nil, err
	}
	var doc sitemapDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return sitemapUnknown, nil, fmt.Errorf("decode sitemap: %w", err)
	}
	switch doc.XMLName.Local {
	case "sitemapindex":
		return sitemapIndex, locs(doc.Sitemaps), nil
	case "urlset":
		return sitemapURLSet, locs(doc.URLs), nil
	default:
		return sitemapUnknown, nil, fmt.Errorf("unexpected sitemap root <%s>", doc.XMLName.Local)
	}
}

func locs(entries []sitemapLoc) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if loc := strings.TrimSpace(e.Loc); loc != "" {
			out = append(out, loc)
		}
	}
	return out
}

// maybeGunzip detects gzip by its magic bytes rather than trusting the URL suffix.
func maybeGunzip(body []byte) ([]byte, error) {
	if len(body) < 2 || body[0] != 0x1f || body[1] != 0x8b {
		return body, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("open gzip sitemap: %w", err)
	}
	defer func() {
		_ = zr.Close()
	}()
	data, err := io.ReadAll(io.LimitReader(zr, maxSitemapBytes))
	if err != nil {
		return nil, fmt.Errorf("gunzip sitemap: %w", err)
	}
	return data, nil
}
