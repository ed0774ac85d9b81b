package markdown

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"

	"github.com/mwtmurphy/go-playbook/pkg/interfaces"
)

// Scanner extracts the queryable structure of a standards document: heading
// outline, hyperlinks, fenced code blocks, and pipe tables. The scanner never
// renders HTML; it shares the parser configuration with GoldmarkParser so
// heading anchors match the rendered output.
type Scanner struct {
	md goldmark.Markdown
}

// NewScanner constructs a scanner. Auto heading IDs are always enabled so the
// extracted anchors line up with fragment links.
func NewScanner() *Scanner {
	return &Scanner{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		),
	}
}

// Scan parses the document body and returns its structure. The document's
// front matter is not consulted; callers pass the body produced by
// ParseFrontMatter so reported lines are body-relative plus the front matter
// offset recorded on the document.
func (s *Scanner) Scan(doc *interfaces.Document) (*interfaces.DocumentStructure, error) {
	if doc == nil {
		return nil, fmt.Errorf("markdown scanner: nil document")
	}
	return s.ScanBytes(doc.Body)
}

// ScanBytes extracts structure from raw Markdown body bytes.
func (s *Scanner) ScanBytes(source []byte) (*interfaces.DocumentStructure, error) {
	lines := newLineIndex(source)
	structure := &interfaces.DocumentStructure{
		LineCount: lines.count(),
	}

	root := s.md.Parser().Parse(text.NewReader(source))

	fenceRanges := make([][2]int, 0, 4)

	err := ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Heading:
			heading := interfaces.Heading{
				Level: node.Level,
				Text:  string(node.Text(source)),
				Line:  blockLine(node, lines),
			}
			if id, ok := node.AttributeString("id"); ok {
				if raw, ok := id.([]byte); ok {
					heading.Anchor = string(raw)
				}
			}
			structure.Headings = append(structure.Headings, heading)

		case *ast.Link:
			structure.Links = append(structure.Links, classifyLink(string(node.Destination), false, nodeLine(node, lines)))

		case *ast.Image:
			structure.Links = append(structure.Links, classifyLink(string(node.Destination), true, nodeLine(node, lines)))

		case *ast.AutoLink:
			structure.Links = append(structure.Links, classifyLink(string(node.URL(source)), false, nodeLine(node, lines)))

		case *ast.FencedCodeBlock:
			fence := interfaces.CodeFence{
				Language: string(node.Language(source)),
				Body:     collectLines(node, source),
				Line:     fenceLine(node, lines),
			}
			structure.CodeFences = append(structure.CodeFences, fence)
			if node.Lines().Len() > 0 {
				first := lines.lineAt(node.Lines().At(0).Start)
				last := lines.lineAt(node.Lines().At(node.Lines().Len() - 1).Stop - 1)
				fenceRanges = append(fenceRanges, [2]int{first - 1, last + 1})
			} else {
				fenceRanges = append(fenceRanges, [2]int{fence.Line, fence.Line + 1})
			}
		}

		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, fmt.Errorf("markdown scanner: %w", err)
	}

	structure.Tables = scanTables(source, fenceRanges)
	return structure, nil
}

// classifyLink buckets a destination into internal, external, and anchor
// references. Resolution against the corpus happens later; the scanner only
// records shape.
func classifyLink(dest string, isImage bool, line int) interfaces.Link {
	trimmed := strings.TrimSpace(dest)
	link := interfaces.Link{
		Dest:    trimmed,
		IsImage: isImage,
		Line:    line,
	}

	switch {
	case strings.HasPrefix(trimmed, "#"):
		link.Kind = interfaces.LinkAnchor
		link.Fragment = strings.TrimPrefix(trimmed, "#")
	case strings.Contains(trimmed, "://"), strings.HasPrefix(trimmed, "mailto:"):
		link.Kind = interfaces.LinkExternal
	default:
		link.Kind = interfaces.LinkInternal
		if idx := strings.Index(trimmed, "#"); idx >= 0 {
			link.Fragment = trimmed[idx+1:]
		}
	}

	return link
}

func collectLines(node *ast.FencedCodeBlock, source []byte) string {
	var builder strings.Builder
	segments := node.Lines()
	for i := 0; i < segments.Len(); i++ {
		segment := segments.At(i)
		builder.Write(segment.Value(source))
	}
	return builder.String()
}

// blockLine resolves a block node to its first source line.
func blockLine(node ast.Node, lines *lineIndex) int {
	type liner interface {
		Lines() *text.Segments
	}
	if block, ok := node.(liner); ok {
		if segments := block.Lines(); segments != nil && segments.Len() > 0 {
			return lines.lineAt(segments.At(0).Start)
		}
	}
	return nodeLine(node, lines)
}

// nodeLine walks to the first text descendant carrying a segment; inline
// nodes do not record their own position.
func nodeLine(node ast.Node, lines *lineIndex) int {
	var found int
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || found > 0 {
			return ast.WalkContinue, nil
		}
		if txt, ok := n.(*ast.Text); ok {
			found = lines.lineAt(txt.Segment.Start)
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	if found > 0 {
		return found
	}
	if parent := node.Parent(); parent != nil && parent != node {
		return blockLine(parent, lines)
	}
	return 1
}

// fenceLine reports the line of the opening fence, one above the first
// content line when content exists.
func fenceLine(node *ast.FencedCodeBlock, lines *lineIndex) int {
	if node.Info != nil {
		return lines.lineAt(node.Info.Segment.Start)
	}
	if node.Lines().Len() > 0 {
		line := lines.lineAt(node.Lines().At(0).Start) - 1
		if line < 1 {
			line = 1
		}
		return line
	}
	return 1
}

// scanTables finds pipe tables textually so raw row shapes survive. The GFM
// parser normalises ragged rows in the AST, which would hide exactly the
// malformed tables the audit needs to report. Lines inside fenced code are
// skipped.
func scanTables(source []byte, fenceRanges [][2]int) []interfaces.TableShape {
	rows := strings.Split(string(source), "\n")
	inFence := func(line int) bool {
		for _, r := range fenceRanges {
			if line >= r[0] && line <= r[1] {
				return true
			}
		}
		return false
	}

	var tables []interfaces.TableShape

	for i := 0; i < len(rows); i++ {
		lineNo := i + 1
		if inFence(lineNo) || !isDelimiterRow(rows[i]) {
			continue
		}
		if i == 0 || !looksLikeTableRow(rows[i-1]) || inFence(lineNo-1) {
			continue
		}

		table := interfaces.TableShape{
			Line:          lineNo - 1,
			HeaderColumns: countCells(rows[i-1]),
		}

		for j := i + 1; j < len(rows); j++ {
			bodyLine := j + 1
			if inFence(bodyLine) || !looksLikeTableRow(rows[j]) {
				i = j - 1
				break
			}
			table.Rows = append(table.Rows, interfaces.TableRow{
				Line:  bodyLine,
				Cells: countCells(rows[j]),
			})
			i = j
		}

		tables = append(tables, table)
	}

	return tables
}

func isDelimiterRow(line string) bool {
	trimmed := strings.TrimSpace(line)
	if !strings.Contains(trimmed, "-") || !strings.Contains(trimmed, "|") {
		return false
	}
	for _, r := range trimmed {
		switch r {
		case '|', '-', ':', ' ', '\t':
		default:
			return false
		}
	}
	return true
}

func looksLikeTableRow(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.Contains(trimmed, "|") && trimmed != ""
}

// countCells counts the cells of a pipe table row, honouring escaped pipes.
func countCells(line string) int {
	trimmed := strings.TrimSpace(line)
	trimmed = strings.TrimPrefix(trimmed, "|")
	trimmed = strings.TrimSuffix(trimmed, "|")

	cells := 1
	escaped := false
	for _, r := range trimmed {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == '|':
			cells++
		}
	}
	return cells
}

// CountLines reports the number of lines in raw file content.
func CountLines(source []byte) int {
	return newLineIndex(source).count()
}

// BodyLineOffset reports how many raw-file lines precede the body: the front
// matter envelope plus its delimiters. Audit issues add this offset so
// reported lines match what authors see in the editor.
func BodyLineOffset(doc *interfaces.Document) int {
	if doc == nil {
		return 0
	}
	raw := CountLines(doc.Raw)
	body := CountLines(doc.Body)
	if raw <= body {
		return 0
	}
	return raw - body
}

// lineIndex maps byte offsets to 1-based line numbers.
type lineIndex struct {
	starts []int
	lines  int
}

func newLineIndex(source []byte) *lineIndex {
	starts := []int{0}
	for i, b := range source {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	lines := len(starts)
	if len(source) == 0 {
		lines = 0
	} else if source[len(source)-1] == '\n' {
		// A trailing newline terminates the last line, it does not open one.
		lines--
	}
	return &lineIndex{starts: starts, lines: lines}
}

func (l *lineIndex) lineAt(offset int) int {
	if offset < 0 {
		return 1
	}
	idx := sort.Search(len(l.starts), func(i int) bool {
		return l.starts[i] > offset
	})
	return idx
}

func (l *lineIndex) count() int {
	return l.lines
}
