package format

import (
	"html"
	"net/url"
	"regexp"
	"strings"
)

var (
	boldRule      = regexp.MustCompile(`\*\*(.+?)\*\*`)
	underlineRule = regexp.MustCompile(`__(.+?)__`)
	italicRule    = regexp.MustCompile(`\*([^*]+?)\*`)
	directiveRule = regexp.MustCompile(`(^|\s)/([stn])(\s|$)`)
	bareURL       = regexp.MustCompile(`https?://[^\s<>"\x00]+`)
)

var directives = map[string]string{
	"s": `<span class="spacer-small"></span>`,
	"t": `<span class="spacer-large"></span>`,
	"n": `<br>`,
}

// inline applies emphasis and spacing rules to one escaped line.
func inline(line string) string {
	line = boldRule.ReplaceAllString(line, "<strong>$1</strong>")
	line = underlineRule.ReplaceAllString(line, "<u>$1</u>")
	line = italicRule.ReplaceAllString(line, "<em>$1</em>")
	// directives can be adjacent ("/s /s"), which a single pass would skip.
	for directiveRule.MatchString(line) {
		line = directiveRule.ReplaceAllStringFunc(line, func(m string) string {
			sub := directiveRule.FindStringSubmatch(m)
			return sub[1] + directives[sub[2]] + sub[3]
		})
	}
	return line
}

var alignmentRules = []struct {
	pattern *regexp.Regexp
	class   string
}{
	{regexp.MustCompile(`\{c\}([\s\S]*?)\{c\}`), "align-center"},
	{regexp.MustCompile(`\{/r\}([\s\S]*?)\{/r\}`), "align-right"},
	{regexp.MustCompile(`\{/l\}([\s\S]*?)\{/l\}`), "align-left"},
	{regexp.MustCompile(`\{b\}([\s\S]*?)\{b\}`), "bordered"},
}

// applyAlignment wraps paired alignment markers. Unpaired markers are
// left as written.
func applyAlignment(s string) string {
	for _, rule := range alignmentRules {
		s = rule.pattern.ReplaceAllString(s, `<div class="`+rule.class+`">$1</div>`)
	}
	return s
}

// autolink links bare URLs in escaped text. Anchors produced by links
// are still protected tokens at this point, so their hrefs never match.
func autolink(line string) string {
	return bareURL.ReplaceAllStringFunc(line, func(m string) string {
		trimmed := strings.TrimRight(m, ".,;:!?)")
		tail := m[len(trimmed):]
		// the text is already escaped; unescape once to rebuild the href.
		target := html.UnescapeString(trimmed)
		if !safeURL(target) {
			return m
		}
		return `<a href="` + html.EscapeString(target) + `" target="_blank" rel="noopener noreferrer">` + trimmed + `</a>` + tail
	})
}

func renderLink(text, target string) string {
	if !safeURL(target) {
		return html.EscapeString(text)
	}
	return `<a href="` + html.EscapeString(target) + `" target="_blank" rel="noopener noreferrer">` + html.EscapeString(text) + `</a>`
}

func safeURL(target string) bool {
	if strings.HasPrefix(target, "/") || strings.HasPrefix(target, "#") {
		return !strings.HasPrefix(target, "//")
	}
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "mailto":
		return true
	default:
		return false
	}
}
