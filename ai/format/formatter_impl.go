package format

import (
	"context"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// markdownMarkers are the characters whose absence lets plain text skip parsing.
const markdownMarkers = "*_`#[]>|~<"

type speechFormatter struct {
	md goldmark.Markdown
}

// NewSpeechFormatter returns a Formatter that drops Markdown syntax, links'
// targets, code blocks and HTML, keeping the words a listener needs.
func NewSpeechFormatter() Formatter {
	return &speechFormatter{md: goldmark.New()}
}

func (f *speechFormatter) Format(_ context.Context, req *FormatRequest) (*FormatResponse, error) {
	start := time.Now()
	if isPlain(req.Content) {
		return &FormatResponse{
			Formatted: req.Content,
			Source:    "passthrough",
			Latency:   time.Since(start),
		}, nil
	}

	out := f.render([]byte(req.Content))
	return &FormatResponse{
		Formatted: out,
		Changed:   out != req.Content,
		Source:    "markdown",
		Latency:   time.Since(start),
	}, nil
}

var defaultFormatter = &speechFormatter{md: goldmark.New()}

// ToSpeech is NewSpeechFormatter().Format for callers that only need the text.
func ToSpeech(content string) string {
	resp, _ := defaultFormatter.Format(context.Background(), &FormatRequest{Content: content})
	return resp.Formatted
}

func isPlain(content string) bool {
	if strings.ContainsAny(content, markdownMarkers) {
		return false
	}
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "+ ") || isOrderedMarker(trimmed) {
			return false
		}
	}
	return true
}

func isOrderedMarker(line string) bool {
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	return i > 0 && i+1 < len(line) && (line[i] == '.' || line[i] == ')') && line[i+1] == ' '
}

func (f *speechFormatter) render(source []byte) string {
	doc := f.md.Parser().Parse(text.NewReader(source))

	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock, *ast.RawHTML, *ast.ThematicBreak:
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			if entering {
				b.Write(node.Segment.Value(source))
				if node.SoftLineBreak() || node.HardLineBreak() {
					b.WriteByte(' ')
				}
			}
		case *ast.String:
			if entering {
				b.Write(node.Value)
			}
		case *ast.AutoLink:
			if entering {
				b.Write(node.Label(source))
			}
			return ast.WalkSkipChildren, nil
		case *ast.Heading:
			if !entering {
				endSentence(&b)
				b.WriteByte('\n')
			}
		case *ast.Paragraph, *ast.TextBlock:
			if !entering {
				b.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})

	var lines []string
	for _, line := range strings.Split(b.String(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// endSentence closes a heading with a period so speech pauses after it.
func endSentence(b *strings.Builder) {
	s := strings.TrimRight(b.String(), " ")
	if s == "" || strings.ContainsAny(s[len(s)-1:], ".!?:") {
		return
	}
	b.WriteByte('.')
}
