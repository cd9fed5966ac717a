package format

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkpad/api/internal/mathrender"
)

func newFormatter() *Formatter {
	return New(mathrender.NewAdapter(nil, "text-base", zerolog.Nop()))
}

func TestFormatBlocksAndInline(t *testing.T) {
	f := newFormatter()
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "Hello", want: "Hello"},
		{name: "line breaks", in: "a\nb", want: "a<br>b"},
		{name: "heading", in: "# Title", want: `<h1 class="heading text-4xl">Title</h1>`},
		{name: "deep heading clamps", in: "######## Deep", want: `<h6 class="heading text-base">Deep</h6>`},
		{name: "bullets", in: "- a\n- b", want: `<ul class="list-disc"><li>a</li><li>b</li></ul>`},
		{name: "ordered", in: "1. a\n3. b", want: `<ol class="list-decimal"><li value="1">a</li><li value="3">b</li></ol>`},
		{name: "quote", in: "> q", want: `<blockquote class="blockquote">q</blockquote>`},
		{name: "emphasis", in: "**b** *i* __u__", want: "<strong>b</strong> <em>i</em> <u>u</u>"},
		{name: "escapes markup", in: "<script>alert(1)</script>", want: "&lt;script&gt;alert(1)&lt;/script&gt;"},
		{name: "alignment", in: "{c}mid{c}", want: `<div class="align-center">mid</div>`},
		{name: "bordered", in: "{b}box{b}", want: `<div class="bordered">box</div>`},
		{name: "unmatched alignment", in: "{c}open", want: "{c}open"},
		{name: "spacer", in: "a /t b", want: `a <span class="spacer-large"></span> b`},
		{name: "adjacent spacers", in: "a /s /s b", want: `a <span class="spacer-small"></span> <span class="spacer-small"></span> b`},
		{name: "inline code is literal", in: "`a*b*c`", want: `<code class="inline-code">a*b*c</code>`},
		{name: "unclosed fence", in: "```abc", want: "```abc"},
		{name: "empty", in: "", want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, f.Format(tc.in))
		})
	}
}

func TestFormatCodeBlocks(t *testing.T) {
	f := newFormatter()
	out := f.Format("before\n```go\nfmt.Println(\"<\")\n```\n```\nsecond\n```")

	assert.Contains(t, out, `<code id="code-0" class="language-go">fmt.Println(&#34;&lt;&#34;)</code>`)
	assert.Contains(t, out, `data-copy-target="code-0" data-copied-ms="2000"`)
	assert.Contains(t, out, `<code id="code-1">second</code>`)
	assert.True(t, strings.HasPrefix(out, "before"))
}

func TestFormatLinks(t *testing.T) {
	f := newFormatter()

	out := f.Format("[site](https://example.com)")
	assert.Equal(t, `<a href="https://example.com" target="_blank" rel="noopener noreferrer">site</a>`, out)

	out = f.Format("[x](javascript:alert(1))")
	assert.NotContains(t, out, `href="javascript`)

	out = f.Format("go to https://a.com/x.")
	assert.Equal(t, `go to <a href="https://a.com/x" target="_blank" rel="noopener noreferrer">https://a.com/x</a>.`, out)
}

func TestFormatDollarsInCodeAndLinks(t *testing.T) {
	f := newFormatter()

	out := f.Format("run `echo $HOME and $PATH` now")
	assert.Equal(t, `run <code class="inline-code">echo $HOME and $PATH</code> now`, out)
	assert.NotContains(t, out, "katex")

	out = f.Format("see [the $x$ term](https://example.com)")
	assert.Contains(t, out, `rel="noopener noreferrer">the $x$ term</a>`)

	out = f.Format("`$a$` then $b$")
	assert.Contains(t, out, `<code class="inline-code">$a$</code>`)
	assert.Equal(t, 1, strings.Count(out, `class="katex"`))
}

func TestFormatEquations(t *testing.T) {
	f := newFormatter()

	t.Run("numbered equation and reference", func(t *testing.T) {
		out := f.Format("$$\\begin{equation}E=mc^2\\end{equation}$$\nsee {r1} and {r2}")
		assert.Contains(t, out, `id="eq-1" data-equation-number="1"`)
		assert.Contains(t, out, `href="#eq-1"`)
		assert.Contains(t, out, "{r2}")
	})

	t.Run("reference before its equation stays literal", func(t *testing.T) {
		out := f.Format("{r1}\n$$\\begin{equation}x\\end{equation}$$")
		assert.True(t, strings.HasPrefix(out, "{r1}"))
		assert.Contains(t, out, `data-equation-number="1"`)
	})

	t.Run("reference earlier on the same line stays literal", func(t *testing.T) {
		out := f.Format("{r1} $$\\begin{equation}a\\end{equation}$$ {r1}")
		assert.True(t, strings.HasPrefix(out, "{r1} "))
		assert.Equal(t, 1, strings.Count(out, `class="equation-ref"`))
		assert.Less(t, strings.Index(out, `data-equation-number="1"`), strings.Index(out, `class="equation-ref"`))
	})

	t.Run("numbering restarts per call", func(t *testing.T) {
		src := "$$\\begin{equation}a\\end{equation}$$\n$$\\begin{equation}b\\end{equation}$$"
		first := f.Format(src)
		second := f.Format(src)
		assert.Equal(t, first, second)
		assert.Contains(t, second, `data-equation-number="2"`)
		assert.NotContains(t, second, `data-equation-number="3"`)
	})

	t.Run("unnumbered display and inline math", func(t *testing.T) {
		out := f.Format("$$x^2$$ and $y$")
		assert.NotContains(t, out, "data-equation-number")
		assert.Equal(t, 2, strings.Count(out, `class="katex"`))
	})

	t.Run("broken math falls back to source", func(t *testing.T) {
		out := f.Format("$\\frac{a$")
		assert.Contains(t, out, `$\frac{a$`)
		assert.NotContains(t, out, "katex")
	})

	t.Run("array columns are not alignment", func(t *testing.T) {
		out := f.Format("$$\\begin{array}{c}1\\end{array}$$ {c}")
		assert.NotContains(t, out, "align-center")
	})
}

func TestSegments(t *testing.T) {
	segs := Segments("a```py\nx```b")
	require.Len(t, segs, 3)
	assert.Equal(t, Segment{Text: "a"}, segs[0])
	assert.Equal(t, Segment{Code: true, Language: "py", Text: "x"}, segs[1])
	assert.Equal(t, Segment{Text: "b"}, segs[2])
}
