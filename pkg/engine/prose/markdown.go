package prose

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gtext "github.com/yuin/goldmark/text"

	"github.com/proselab/lintd/pkg/engine"
)

type lineInfo struct {
	start int
	text  string // without line terminator
}

// ruleContext carries the shared per-run state: the raw text, a line index
// for offset/position conversion, and the lazily parsed Markdown document.
type ruleContext struct {
	src      []byte
	markdown bool
	lines    []lineInfo
	doc      ast.Node
}

func newRuleContext(text string, markdown bool) *ruleContext {
	rc := &ruleContext{src: []byte(text), markdown: markdown}
	start := 0
	for {
		nl := strings.IndexByte(text[start:], '\n')
		if nl < 0 {
			rc.lines = append(rc.lines, lineInfo{start: start, text: strings.TrimSuffix(text[start:], "\r")})
			break
		}
		rc.lines = append(rc.lines, lineInfo{start: start, text: strings.TrimSuffix(text[start:start+nl], "\r")})
		start += nl + 1
	}
	return rc
}

// document parses the text as Markdown on first use.
func (rc *ruleContext) document() ast.Node {
	if rc.doc == nil {
		rc.doc = goldmark.New().Parser().Parse(gtext.NewReader(rc.src))
	}
	return rc.doc
}

// position converts a byte offset into a 1-based line/column pair.
func (rc *ruleContext) position(offset int) (line, column int) {
	idx := sort.Search(len(rc.lines), func(i int) bool {
		return rc.lines[i].start > offset
	}) - 1
	if idx < 0 {
		idx = 0
	}
	return idx + 1, offset - rc.lines[idx].start + 1
}

func checkEmptyLink(rc *ruleContext) []engine.Finding {
	var findings []engine.Finding
	_ = ast.Walk(rc.document(), func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Kind() != ast.KindLink {
			return ast.WalkContinue, nil
		}
		link := n.(*ast.Link)
		if len(link.Destination) != 0 {
			return ast.WalkContinue, nil
		}
		label, offset, ok := linkText(link, rc.src)
		if !ok {
			return ast.WalkContinue, nil
		}
		line, column := rc.position(offset)
		findings = append(findings, engine.Finding{
			Message: fmt.Sprintf("Empty link destination for %q", label),
			Line:    line,
			Column:  column,
		})
		return ast.WalkContinue, nil
	})
	return findings
}

// linkText collects the literal text of a link's children and the byte
// offset where it starts.
func linkText(link *ast.Link, src []byte) (string, int, bool) {
	var (
		builder strings.Builder
		offset  = -1
	)
	for child := link.FirstChild(); child != nil; child = child.NextSibling() {
		if t, ok := child.(*ast.Text); ok {
			if offset < 0 {
				offset = t.Segment.Start
			}
			builder.Write(t.Segment.Value(src))
		}
	}
	if offset < 0 {
		return "", 0, false
	}
	return builder.String(), offset, true
}

func checkHeadingPunctuation(rc *ruleContext) []engine.Finding {
	var findings []engine.Finding
	_ = ast.Walk(rc.document(), func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Kind() != ast.KindHeading {
			return ast.WalkContinue, nil
		}
		lines := n.Lines()
		if lines.Len() == 0 {
			return ast.WalkContinue, nil
		}
		seg := lines.At(lines.Len() - 1)
		content := strings.TrimRight(string(rc.src[seg.Start:seg.Stop]), " \t")
		if content == "" {
			return ast.WalkContinue, nil
		}
		last := content[len(content)-1]
		if !strings.ContainsRune(".,:;", rune(last)) {
			return ast.WalkContinue, nil
		}
		offset := seg.Start + len(content) - 1
		line, column := rc.position(offset)
		findings = append(findings, engine.Finding{
			Message: fmt.Sprintf("Heading ends with punctuation %q", string(last)),
			Line:    line,
			Column:  column,
			Fix: &engine.FixEdit{
				Range: [2]int{offset, offset + 1},
			},
		})
		return ast.WalkContinue, nil
	})
	return findings
}
