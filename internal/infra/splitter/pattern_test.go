package splitter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/ai-helloworld/internal/domain/ingest"
)

func TestPattern_Split_Markdown(t *testing.T) {
	p := NewPattern()
	doc := ingest.Document{
		SourceReference: "guide.md",
		WorkspaceID:     "ws-1",
		Text:            "preface text\n## Section One\nbody one\n## Section Two\nbody two",
	}
	chunks := p.Split(doc)
	require.Len(t, chunks, 3)
	require.Equal(t, "preface text", chunks[0].Text)
	require.Contains(t, chunks[1].Text, "Section One")
	require.Contains(t, chunks[2].Text, "Section Two")
}

func TestPattern_Split_ClickupExport(t *testing.T) {
	p := NewPattern()
	doc := ingest.Document{SourceReference: "clickup_123.txt", Text: "whole ticket body"}
	chunks := p.Split(doc)
	require.Len(t, chunks, 1)
	require.Equal(t, "whole ticket body", chunks[0].Text)
}

// TestPattern_Split_TicketText_PrependsIssueToEveryPiece guards against a
// regression where only pieces after the first "Issue" token got their
// prefix restored, silently dropping it from any preamble preceding the
// first literal "Issue".
func TestPattern_Split_TicketText_PrependsIssueToEveryPiece(t *testing.T) {
	p := NewPattern()
	doc := ingest.Document{
		SourceReference: "ticket.txt",
		Text:            "preamble before first markerIssue one bodyIssue two body",
	}
	chunks := p.Split(doc)
	require.Len(t, chunks, 3)
	require.Equal(t, "Issuepreamble before first marker", chunks[0].Text)
	require.Equal(t, "Issueone body", chunks[1].Text)
	require.Equal(t, "Issuetwo body", chunks[2].Text)
}
