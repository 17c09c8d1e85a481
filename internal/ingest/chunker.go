package ingest

import (
	"context"
	"strings"

	"github.com/xxxsen/common/logutil"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"go.uber.org/zap"
)

const (
	chunkTokenBudget   = 400
	chunkOverlapBudget = 80
)

// Chunker splits markdown into heading-aware chunks sized for
// embedding. Level 1 and 2 headings start a fresh chunk and are
// prefixed onto their body so the chunk stays searchable on its own.
type Chunker struct{}

func NewChunker() *Chunker {
	return &Chunker{}
}

func (c *Chunker) Chunk(ctx context.Context, markdown string) []string {
	logger := logutil.GetLogger(ctx)
	md := goldmark.New()
	reader := text.NewReader([]byte(markdown))
	doc := md.Parser().Parse(reader)

	var chunks []string
	var currentChunk []string
	var currentTokens int
	var currentHeading string

	flush := func() {
		if len(currentChunk) == 0 {
			return
		}
		content := strings.Join(currentChunk, "\n\n")
		if currentHeading != "" {
			content = "Heading: " + currentHeading + "\n" + content
		}
		chunks = append(chunks, content)

		// Trailing overlap keeps cross-chunk context for retrieval.
		if len(currentChunk) > 1 {
			overlapTokens := 0
			var overlapParts []string
			for i := len(currentChunk) - 1; i >= 0; i-- {
				t := estimateTokens(currentChunk[i])
				if overlapTokens+t > chunkOverlapBudget {
					break
				}
				overlapTokens += t
				overlapParts = append([]string{currentChunk[i]}, overlapParts...)
			}
			currentChunk = overlapParts
			currentTokens = overlapTokens
		} else {
			currentChunk = nil
			currentTokens = 0
		}
	}

	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		switch n := node.(type) {
		case *ast.Heading:
			if n.Level == 1 || n.Level == 2 {
				flush()
				currentChunk = nil
				currentTokens = 0
				currentHeading = string(n.Text(reader.Source()))
			} else {
				txt := string(n.Text(reader.Source()))
				currentChunk = append(currentChunk, txt)
				currentTokens += estimateTokens(txt)
			}
		case *ast.FencedCodeBlock:
			lang := string(n.Language(reader.Source()))
			code := ""
			for i := 0; i < n.Lines().Len(); i++ {
				line := n.Lines().At(i)
				code += string(line.Value(reader.Source()))
			}
			fenced := "```" + lang + "\n" + code + "\n```"
			tokens := estimateTokens(code)
			if currentTokens > 0 && currentTokens+tokens <= chunkTokenBudget {
				currentChunk = append(currentChunk, fenced)
				currentTokens += tokens
			} else {
				flush()
				currentChunk = []string{fenced}
				currentTokens = tokens
				flush()
			}
		default:
			txt := extractText(n, reader.Source())
			if txt == "" {
				continue
			}
			tokens := estimateTokens(txt)
			if currentTokens+tokens > chunkTokenBudget {
				flush()
			}
			currentChunk = append(currentChunk, txt)
			currentTokens += tokens
		}
	}
	flush()
	logger.Debug("document chunked", zap.Int("chunks", len(chunks)))
	return chunks
}

// estimateTokens counts words for ASCII text and characters for the
// rest, which tracks real tokenizers closely enough for budgeting.
func estimateTokens(text string) int {
	count := 0
	for _, r := range text {
		if r > 127 {
			count++
		}
	}
	count += len(strings.Fields(text))
	if count == 0 && len(text) > 0 {
		return 1
	}
	return count
}

func extractText(n ast.Node, source []byte) string {
	var sb strings.Builder
	ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if node.Kind() == ast.KindText {
			sb.Write(node.(*ast.Text).Segment.Value(source))
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
