// Package format renders the lightweight markup dialect used by documents
// into escaped display markup.
package format

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"inkpad/api/internal/mathrender"
)

// CopiedStateMillis is how long a code block's copy button reports "copied".
const CopiedStateMillis = 2000

type Formatter struct {
	math *mathrender.Adapter
}

func New(math *mathrender.Adapter) *Formatter {
	return &Formatter{math: math}
}

// Segment is either a fenced code block or formatted text.
type Segment struct {
	Code     bool
	Language string
	Text     string
}

var codeFence = regexp.MustCompile("```([A-Za-z0-9_+-]*)[ \\t]*\\n?([\\s\\S]*?)```")

// Segments splits raw text around triple-backtick fences. An unclosed
// fence stays in the surrounding text.
func Segments(raw string) []Segment {
	segments := make([]Segment, 0)
	last := 0
	for _, m := range codeFence.FindAllStringSubmatchIndex(raw, -1) {
		if m[0] > last {
			segments = append(segments, Segment{Text: raw[last:m[0]]})
		}
		segments = append(segments, Segment{
			Code:     true,
			Language: raw[m[2]:m[3]],
			Text:     strings.Trim(raw[m[4]:m[5]], "\n"),
		})
		last = m[1]
	}
	if last < len(raw) {
		segments = append(segments, Segment{Text: raw[last:]})
	}
	return segments
}

// Format renders raw into markup. Equation numbering restarts on every call.
func (f *Formatter) Format(raw string) string {
	raw = strings.ReplaceAll(raw, "\x00", "")
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	pass := f.math.NewPass()

	var b strings.Builder
	codeIndex := 0
	for _, seg := range Segments(raw) {
		if seg.Code {
			b.WriteString(renderCode(seg, codeIndex))
			codeIndex++
			continue
		}
		b.WriteString(f.formatText(seg.Text, pass))
	}
	return b.String()
}

func renderCode(seg Segment, index int) string {
	id := fmt.Sprintf("code-%d", index)
	lang := ""
	if seg.Language != "" {
		lang = fmt.Sprintf(` class="language-%s"`, html.EscapeString(seg.Language))
	}
	return fmt.Sprintf(
		`<div class="code-block"><button type="button" class="copy-button" data-copy-target="%s" data-copied-ms="%d">Copy</button><pre><code id="%s"%s>%s</code></pre></div>`,
		id, CopiedStateMillis, id, lang, html.EscapeString(seg.Text),
	)
}
