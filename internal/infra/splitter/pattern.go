// Package splitter implements the pattern-based document splitting
// policy: markdown sections, doc-guide entries, whole external-task
// exports, and default ticket text.
package splitter

import (
	"regexp"
	"strings"

	"github.com/yanqian/ai-helloworld/internal/domain/ingest"
)

var h2Heading = regexp.MustCompile(`(?m)^## `)

// Pattern implements ingest.Splitter using four ordered rules, first
// match wins by file reference shape.
type Pattern struct{}

// NewPattern constructs the default Splitter.
func NewPattern() *Pattern {
	return &Pattern{}
}

func (p *Pattern) Split(doc ingest.Document) []ingest.ChunkCandidate {
	ref := doc.SourceReference
	switch {
	case strings.HasSuffix(ref, ".md"):
		return p.splitMarkdown(doc)
	case strings.HasSuffix(ref, "_docs.txt"):
		return p.splitDocs(doc)
	case strings.HasPrefix(ref, "clickup_") || strings.Contains(ref, "clickup_"):
		return p.wholeDocument(doc)
	default:
		return p.splitTicketText(doc)
	}
}

// splitMarkdown breaks on "## " headings, keeping the heading with its
// section. Any text preceding the first heading becomes a preface
// chunk.
func (p *Pattern) splitMarkdown(doc ingest.Document) []ingest.ChunkCandidate {
	locs := h2Heading.FindAllStringIndex(doc.Text, -1)
	if len(locs) == 0 {
		return p.wholeDocument(doc)
	}
	var out []ingest.ChunkCandidate
	if preface := strings.TrimSpace(doc.Text[:locs[0][0]]); preface != "" {
		out = append(out, p.candidate(doc, preface))
	}
	for i, loc := range locs {
		start := loc[0]
		end := len(doc.Text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		section := strings.TrimSpace(doc.Text[start:end])
		if section != "" {
			out = append(out, p.candidate(doc, section))
		}
	}
	return out
}

// splitDocs breaks on lines containing only "---".
func (p *Pattern) splitDocs(doc ingest.Document) []ingest.ChunkCandidate {
	parts := regexp.MustCompile(`(?m)^---\r?$`).Split(doc.Text, -1)
	var out []ingest.ChunkCandidate
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, p.candidate(doc, trimmed))
	}
	return out
}

// wholeDocument emits the document as a single chunk, used for
// external-task exports whose structure must stay intact.
func (p *Pattern) wholeDocument(doc ingest.Document) []ingest.ChunkCandidate {
	text := strings.TrimSpace(doc.Text)
	if text == "" {
		return nil
	}
	return []ingest.ChunkCandidate{p.candidate(doc, text)}
}

// splitTicketText breaks on the literal token "Issue", re-prepending it
// to each non-empty piece.
func (p *Pattern) splitTicketText(doc ingest.Document) []ingest.ChunkCandidate {
	pieces := strings.Split(doc.Text, "Issue")
	var out []ingest.ChunkCandidate
	for _, piece := range pieces {
		trimmed := strings.TrimSpace(piece)
		if trimmed == "" {
			continue
		}
		out = append(out, p.candidate(doc, "Issue"+trimmed))
	}
	if len(out) == 0 {
		return p.wholeDocument(doc)
	}
	return out
}

func (p *Pattern) candidate(doc ingest.Document, text string) ingest.ChunkCandidate {
	return ingest.ChunkCandidate{
		SourceReference: doc.SourceReference,
		WorkspaceID:     doc.WorkspaceID,
		Text:            text,
	}
}
