// Package mathrender turns LaTeX spans into display markup. Rendering
// never fails past the adapter: a span the engine rejects is emitted as
// its escaped source text.
package mathrender

import (
	"errors"
	"fmt"
	"html"
	"strings"
)

var ErrRender = errors.New("math render error")

type Options struct {
	DisplayMode bool
	// Macros maps a command (with leading backslash) to its body; #1 is
	// replaced by the command's first braced argument.
	Macros map[string]string
}

type Engine interface {
	Render(latex string, opts Options) (string, error)
}

// MarkupEngine checks structure and emits KaTeX-compatible markup that
// carries the expanded source for client-side typesetting.
type MarkupEngine struct{}

func (MarkupEngine) Render(latex string, opts Options) (string, error) {
	if err := validate(latex); err != nil {
		return "", err
	}
	expanded, err := expandMacros(latex, opts.Macros)
	if err != nil {
		return "", err
	}
	mode := "inline"
	if opts.DisplayMode {
		mode = "display"
	}
	escaped := html.EscapeString(expanded)
	markup := fmt.Sprintf(
		`<span class="katex" data-mode="%s" data-latex="%s"><span class="katex-mathml"><math><semantics><annotation encoding="application/x-tex">%s</annotation></semantics></math></span></span>`,
		mode, escaped, escaped,
	)
	if opts.DisplayMode {
		markup = `<span class="katex-display">` + markup + `</span>`
	}
	return markup, nil
}

func validate(latex string) error {
	depth := 0
	var envs []string
	for i := 0; i < len(latex); i++ {
		switch latex[i] {
		case '\\':
			if i == len(latex)-1 {
				return fmt.Errorf("%w: trailing backslash", ErrRender)
			}
			next := latex[i+1]
			if next == '{' || next == '}' || next == '\\' || next == '$' {
				i++
				continue
			}
			name, end := readCommand(latex, i)
			if name == "begin" || name == "end" {
				env, after, ok := readGroup(latex, end)
				if !ok {
					return fmt.Errorf("%w: \\%s without environment", ErrRender, name)
				}
				if name == "begin" {
					envs = append(envs, env)
				} else {
					if len(envs) == 0 || envs[len(envs)-1] != env {
						return fmt.Errorf("%w: unexpected \\end{%s}", ErrRender, env)
					}
					envs = envs[:len(envs)-1]
				}
				i = after - 1
				continue
			}
			i = end - 1
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return fmt.Errorf("%w: unbalanced '}'", ErrRender)
			}
		}
	}
	if depth != 0 {
		return fmt.Errorf("%w: unbalanced '{'", ErrRender)
	}
	if len(envs) > 0 {
		return fmt.Errorf("%w: unterminated \\begin{%s}", ErrRender, envs[len(envs)-1])
	}
	if strings.Count(latex, `\left`) != strings.Count(latex, `\right`) {
		return fmt.Errorf("%w: unmatched \\left/\\right", ErrRender)
	}
	return nil
}

// readCommand reads the letters after the backslash at i.
func readCommand(s string, i int) (string, int) {
	j := i + 1
	for j < len(s) && isLetter(s[j]) {
		j++
	}
	if j == i+1 {
		return "", i + 2
	}
	return s[i+1 : j], j
}

// readGroup reads a braced group starting at i, skipping leading spaces.
func readGroup(s string, i int) (string, int, bool) {
	for i < len(s) && s[i] == ' ' {
		i++
	}
	if i >= len(s) || s[i] != '{' {
		return "", i, false
	}
	depth := 0
	for j := i; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[i+1 : j], j + 1, true
			}
		}
	}
	return "", i, false
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func expandMacros(latex string, macros map[string]string) (string, error) {
	if len(macros) == 0 {
		return latex, nil
	}
	var b strings.Builder
	for i := 0; i < len(latex); {
		if latex[i] != '\\' {
			b.WriteByte(latex[i])
			i++
			continue
		}
		name, end := readCommand(latex, i)
		body, ok := macros[`\`+name]
		if name == "" || !ok {
			b.WriteString(latex[i:end])
			i = end
			continue
		}
		if strings.Contains(body, "#1") {
			arg, after, found := readGroup(latex, end)
			if !found {
				return "", fmt.Errorf("%w: \\%s expects an argument", ErrRender, name)
			}
			body = strings.ReplaceAll(body, "#1", arg)
			end = after
		}
		b.WriteString(body)
		i = end
	}
	return b.String(), nil
}
