package crawlability

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
)

// RobotsRules is the parsed subset of robots.txt the audit reports on.
type RobotsRules struct {
	// Disallows applies to the requested agent's group when one exists, else to the wildcard group.
	Disallows []string
	// Sitemaps are the raw sitemap directive values, in file order.
	Sitemaps []string
}

// utf8BOM is stripped from the start of robots.txt before parsing.
var utf8BOM = []byte("\xef\xbb\xbf")

// maxRobotsLine bounds a single robots.txt line.
const maxRobotsLine = 1024 * 1024

// ParseRobots reads robots.txt line by line, tracking the active user-agent group.
// Consecutive user-agent lines share one group; the first rule line closes the
// group header. Agent matching is case-insensitive. When a line cannot be read
// the rules gathered so far are returned with the error.
func ParseRobots(body []byte, agent string) (RobotsRules, error) {
	agent = strings.ToLower(strings.TrimSpace(agent))
	if agent == "" {
		agent = "*"
	}

	var (
		rules         RobotsRules
		wildcard      []string
		specific      []string
		specificFound bool
		groupAgents   []string
		inHeader      bool
	)
	scanner := bufio.NewScanner(bytes.NewReader(bytes.TrimPrefix(body, utf8BOM)))
	scanner.Buffer(make([]byte, 0, 64*1024), maxRobotsLine)
	for scanner.Scan() {
		field, value, ok := splitDirective(scanner.Text())
		if !ok {
			continue
		}
		switch field {
		case "user-agent":
			if !inHeader {
				groupAgents = groupAgents[:0]
				inHeader = true
			}
			ua := strings.ToLower(value)
			groupAgents = append(groupAgents, ua)
			if agent != "*" && ua == agent {
				specificFound = true
			}
		case "sitemap":
			// Sitemap directives are global and do not close a group header.
			if value != "" {
				rules.Sitemaps = append(rules.Sitemaps, value)
			}
		case "disallow":
			inHeader = false
			if value == "" {
				continue
			}
			for _, ua := range groupAgents {
				switch {
				case ua == "*":
					wildcard = append(wildcard, value)
				case agent != "*" && ua == agent:
					specific = append(specific, value)
				}
			}
		default:
			inHeader = false
		}
	}

	if specificFound {
		rules.Disallows = dedupe(specific)
	} else {
		rules.Disallows = dedupe(wildcard)
	}
	if err := scanner.Err(); err != nil {
		return rules, fmt.Errorf("scan robots.txt: %w", err)
	}
	return rules, nil
}

// splitDirective splits "Field: value # comment" into a lower-cased field and trimmed value.
func splitDirective(line string) (string, string, bool) {
	if idx := strings.IndexByte(line, '#'); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", "", false
	}
	field, value, found := strings.Cut(line, ":")
	if !found {
		return "", "", false
	}
	return strings.ToLower(strings.TrimSpace(field)), strings.TrimSpace(value), true
}

func dedupe(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
