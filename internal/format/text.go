package format

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"

	"inkpad/api/internal/mathrender"
)

// Protected spans are swapped for \x00<kind><n>\x00 tokens so later rules
// cannot rewrite them.
type protector struct {
	kind   byte
	values []string
}

func (p *protector) put(value string) string {
	p.values = append(p.values, value)
	return fmt.Sprintf("\x00%c%d\x00", p.kind, len(p.values)-1)
}

func (p *protector) pattern() *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf("\x00%c(\\d+)\x00", p.kind))
}

func (p *protector) restore(s string, render func(i int, value string) string) string {
	return p.pattern().ReplaceAllStringFunc(s, func(token string) string {
		i, err := strconv.Atoi(token[2 : len(token)-1])
		if err != nil || i >= len(p.values) {
			return ""
		}
		return render(i, p.values[i])
	})
}

type mathSpan struct {
	raw     string
	latex   string
	display bool
}

var (
	displayMath  = regexp.MustCompile(`\$\$([^\x00]+?)\$\$`)
	inlineMath   = regexp.MustCompile(`\$([^$\n\x00]+?)\$`)
	markdownLink = regexp.MustCompile(`\[([^\]\n]+)\]\(([^)\s\x00]+)\)`)
	inlineCode   = regexp.MustCompile("`([^`\n]+)`")
	mathOrRef    = regexp.MustCompile(`\x00M(\d+)\x00|\{r\d+\}`)
)

// formatText protects inline code, then links, then math. Code and link
// text keep their dollars literally; math cannot span a protected token.
func (f *Formatter) formatText(text string, pass *mathrender.Pass) string {
	codes := &protector{kind: 'C'}
	text = inlineCode.ReplaceAllStringFunc(text, func(m string) string {
		return codes.put(`<code class="inline-code">` + html.EscapeString(m[1:len(m)-1]) + `</code>`)
	})

	links := &protector{kind: 'L'}
	text = markdownLink.ReplaceAllStringFunc(text, func(m string) string {
		parts := markdownLink.FindStringSubmatch(m)
		return links.put(renderLink(parts[1], parts[2]))
	})

	var spans []mathSpan
	maths := &protector{kind: 'M'}
	text = displayMath.ReplaceAllStringFunc(text, func(m string) string {
		spans = append(spans, mathSpan{raw: m, latex: strings.TrimSpace(m[2 : len(m)-2]), display: true})
		return maths.put(m)
	})
	text = inlineMath.ReplaceAllStringFunc(text, func(m string) string {
		spans = append(spans, mathSpan{raw: m, latex: strings.TrimSpace(m[1 : len(m)-1])})
		return maths.put(m)
	})

	rendered := make([]string, len(spans))
	done := make([]bool, len(spans))
	// Equations and references are handled in reading order so a
	// reference only sees equations numbered before it.
	finish := func(line string) string {
		line = autolink(line)
		return mathOrRef.ReplaceAllStringFunc(line, func(token string) string {
			m := mathOrRef.FindStringSubmatch(token)
			if m[1] == "" {
				return pass.ResolveRef(token)
			}
			i, err := strconv.Atoi(m[1])
			if err == nil && i < len(spans) && !done[i] {
				s := spans[i]
				rendered[i] = pass.Render(s.raw, s.latex, s.display)
				done[i] = true
			}
			return token
		})
	}

	out := applyAlignment(renderLines(html.EscapeString(text), finish))
	out = maths.restore(out, func(i int, raw string) string {
		if !done[i] {
			return html.EscapeString(raw)
		}
		return rendered[i]
	})
	out = links.restore(out, func(_ int, v string) string { return v })
	return codes.restore(out, func(_ int, v string) string { return v })
}
