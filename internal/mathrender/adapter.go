package mathrender

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

const textMacro = `\normaltext`

var textCommand = regexp.MustCompile(`\\text\s*\{`)

// Adapter wraps an Engine with the document conventions: the \text
// macro at a configured scale, fail-soft rendering and equation numbering.
type Adapter struct {
	engine Engine
	macros map[string]string
	logger zerolog.Logger
}

func NewAdapter(engine Engine, textScale string, logger zerolog.Logger) *Adapter {
	if engine == nil {
		engine = MarkupEngine{}
	}
	if strings.TrimSpace(textScale) == "" {
		textScale = "size"
	}
	return &Adapter{
		engine: engine,
		macros: map[string]string{textMacro: `\htmlClass{` + textScale + `}{\text{#1}}`},
		logger: logger,
	}
}

// RenderMath renders one span. raw is the span as written, delimiters
// included, and is what the caller gets back (escaped) on failure.
func (a *Adapter) RenderMath(raw, latex string, displayMode bool) string {
	source := textCommand.ReplaceAllString(latex, textMacro+"{")
	out, err := a.engine.Render(source, Options{DisplayMode: displayMode, Macros: a.macros})
	if err != nil {
		a.logger.Debug().Err(err).Str("latex", latex).Msg("math render failed")
		return html.EscapeString(raw)
	}
	return out
}

// Pass numbers equations across one formatting run.
type Pass struct {
	adapter *Adapter
	count   int
}

func (a *Adapter) NewPass() *Pass {
	return &Pass{adapter: a}
}

func (p *Pass) Count() int {
	return p.count
}

func IsNumbered(latex string, displayMode bool) bool {
	return displayMode && strings.Contains(latex, `\begin{equation}`) && strings.Contains(latex, `\end{equation}`)
}

// Render renders a span; numbered display equations get the next label
// and an anchor that references can target.
func (p *Pass) Render(raw, latex string, displayMode bool) string {
	markup := p.adapter.RenderMath(raw, latex, displayMode)
	if !IsNumbered(latex, displayMode) {
		return markup
	}
	p.count++
	return fmt.Sprintf(
		`<div class="equation" id="eq-%d" data-equation-number="%d">%s<span class="equation-number">(%d)</span></div>`,
		p.count, p.count, markup, p.count,
	)
}

var refToken = regexp.MustCompile(`\{r(\d+)\}`)

// ResolveRef links one {rN} token to an equation already numbered in
// this pass. Tokens beyond the current count stay literal.
func (p *Pass) ResolveRef(token string) string {
	m := refToken.FindStringSubmatch(token)
	if m == nil || m[0] != token {
		return token
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 || n > p.count {
		return token
	}
	return fmt.Sprintf(
		`<a class="equation-ref" href="#eq-%d" data-ref="%d" data-scroll="smooth-center">(%d)</a>`,
		n, n, n,
	)
}

// ResolveRefs applies ResolveRef to every token in markup against the
// current count.
func (p *Pass) ResolveRefs(markup string) string {
	return refToken.ReplaceAllStringFunc(markup, p.ResolveRef)
}
