package format

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	headingLine    = regexp.MustCompile(`^(#+)\s+(.+)$`)
	bulletLine     = regexp.MustCompile(`^-\s+(.+)$`)
	orderedLine    = regexp.MustCompile(`^(\d+)\.\s+(.+)$`)
	blockquoteLine = regexp.MustCompile(`^&gt;\s?(.*)$`)
)

// MaxHeadingLevel clamps deeper headings.
const MaxHeadingLevel = 6

var headingClasses = [MaxHeadingLevel + 1]string{
	1: "heading text-4xl",
	2: "heading text-3xl",
	3: "heading text-2xl",
	4: "heading text-xl",
	5: "heading text-lg",
	6: "heading text-base",
}

type lineKind int

const (
	linePlain lineKind = iota
	lineHeading
	lineBullet
	lineOrdered
	lineQuote
)

// renderLines groups escaped lines into blocks. finish is applied to the
// inline content of each line in document order.
func renderLines(text string, finish func(string) string) string {
	lines := strings.Split(text, "\n")

	var out []string
	var plain []string
	flushPlain := func() {
		if len(plain) > 0 {
			out = append(out, strings.Join(plain, "<br>"))
			plain = nil
		}
	}

	for i := 0; i < len(lines); {
		kind := classify(lines[i])
		switch kind {
		case lineHeading:
			flushPlain()
			m := headingLine.FindStringSubmatch(lines[i])
			level := len(m[1])
			if level > MaxHeadingLevel {
				level = MaxHeadingLevel
			}
			out = append(out, fmt.Sprintf(`<h%d class="%s">%s</h%d>`, level, headingClasses[level], finish(inline(m[2])), level))
			i++
		case lineBullet, lineOrdered, lineQuote:
			flushPlain()
			j := i
			var items []string
			for j < len(lines) && classify(lines[j]) == kind {
				items = append(items, renderItem(kind, lines[j], finish))
				j++
			}
			out = append(out, wrapGroup(kind, items))
			i = j
		default:
			plain = append(plain, finish(inline(lines[i])))
			i++
		}
	}
	flushPlain()
	return strings.Join(out, "")
}

func classify(line string) lineKind {
	switch {
	case headingLine.MatchString(line):
		return lineHeading
	case bulletLine.MatchString(line):
		return lineBullet
	case orderedLine.MatchString(line):
		return lineOrdered
	case blockquoteLine.MatchString(line):
		return lineQuote
	default:
		return linePlain
	}
}

func renderItem(kind lineKind, line string, finish func(string) string) string {
	switch kind {
	case lineBullet:
		return "<li>" + finish(inline(bulletLine.FindStringSubmatch(line)[1])) + "</li>"
	case lineOrdered:
		m := orderedLine.FindStringSubmatch(line)
		return fmt.Sprintf(`<li value="%s">%s</li>`, m[1], finish(inline(m[2])))
	default:
		return finish(inline(blockquoteLine.FindStringSubmatch(line)[1]))
	}
}

func wrapGroup(kind lineKind, items []string) string {
	switch kind {
	case lineBullet:
		return `<ul class="list-disc">` + strings.Join(items, "") + `</ul>`
	case lineOrdered:
		return `<ol class="list-decimal">` + strings.Join(items, "") + `</ol>`
	default:
		return `<blockquote class="blockquote">` + strings.Join(items, "<br>") + `</blockquote>`
	}
}
