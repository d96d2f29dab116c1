package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/mferrand/ragapi/internal/domain/ragModel"
)

func TestChunkMarkdown_EmptyInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"Empty", ""},
		{"Whitespace", "  \n\t\n  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := ChunkMarkdown(tt.input, "report.pdf", 3000, 450)
			if len(chunks) != 1 {
				t.Fatalf("expected exactly one placeholder chunk, got %d", len(chunks))
			}
			c := chunks[0]
			if c.Content != PlaceholderContent {
				t.Errorf("placeholder content got %q", c.Content)
			}
			if c.Title != "report" || c.Page != 1 || c.ChunkIndex != 0 {
				t.Errorf("placeholder metadata wrong: %+v", c)
			}
		})
	}
}

func TestChunkMarkdown_NeverEmpty(t *testing.T) {
	inputs := []string{
		"plain text with no headings",
		"# Only a heading",
		"para one\n\npara two",
		strings.Repeat("word ", 5000),
	}
	for _, in := range inputs {
		if got := ChunkMarkdown(in, "doc.md", 3000, 450); len(got) == 0 {
			t.Errorf("ChunkMarkdown returned empty sequence for %q...", in[:min(20, len(in))])
		}
	}
}

func TestChunkMarkdown_TitlesFollowHeadings(t *testing.T) {
	md := "intro before any heading\n\n# Setup\n\nhow to set up\n\n## Usage\n\nhow to use"
	chunks := ChunkMarkdown(md, "manual.docx", 3000, 450)

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks (preamble + 2 sections), got %d", len(chunks))
	}
	wantTitles := []string{"manual", "manual — Setup", "manual — Usage"}
	for i, want := range wantTitles {
		if chunks[i].Title != want {
			t.Errorf("chunk %d title got %q, want %q", i, chunks[i].Title, want)
		}
	}
	if !strings.Contains(chunks[1].Content, "# Setup") {
		t.Errorf("heading line should stay inside the chunk text: %q", chunks[1].Content)
	}
}

func TestChunkMarkdown_SequentialPages(t *testing.T) {
	md := "# A\n\n" + strings.Repeat("alpha beta gamma. ", 30) +
		"\n\n# B\n\nshort section"
	chunks := ChunkMarkdown(md, "doc.pdf", 200, 0)

	for i, c := range chunks {
		if c.Page != i+1 {
			t.Errorf("chunk %d page got %d, want %d", i, c.Page, i+1)
		}
		if c.ChunkIndex != i {
			t.Errorf("chunk %d index got %d, want %d", i, c.ChunkIndex, i)
		}
	}
}

func TestChunkMarkdown_PageSignalWins(t *testing.T) {
	md := "## Page 4\n\ncontent of the fourth page\n\n## Page 7\n\ncontent of the seventh"
	chunks := ChunkMarkdown(md, "scan.pdf", 3000, 0)

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Page != 4 || chunks[1].Page != 7 {
		t.Errorf("converter page signal should take precedence, got pages %d and %d",
			chunks[0].Page, chunks[1].Page)
	}
}

func TestChunkMarkdown_GreedyPacking(t *testing.T) {
	paras := []string{
		strings.Repeat("a", 120),
		strings.Repeat("b", 120),
		strings.Repeat("c", 120),
	}
	md := "# S\n\n" + strings.Join(paras, "\n\n")
	chunks := ChunkMarkdown(md, "d.md", 260, 0)

	// "# S\n\n" + first para fit together; each following 120-char paragraph
	// that would overflow 260 closes the open chunk.
	for _, c := range chunks {
		if len(c.Content) > 260 {
			t.Errorf("chunk exceeds max chars without overlap: %d", len(c.Content))
		}
	}
	joined := strings.Join(extractContents(chunks), "\n\n")
	for _, p := range paras {
		if !strings.Contains(joined, p) {
			t.Errorf("paragraph lost during packing")
		}
	}
}

func TestChunkMarkdown_OverlapPrefix(t *testing.T) {
	paraA := strings.Repeat("x", 150)
	paraB := strings.Repeat("y", 150)
	md := "# S\n\n" + paraA + "\n\n" + paraB
	overlap := 40
	chunks := ChunkMarkdown(md, "d.md", 170, overlap)

	if len(chunks) < 2 {
		t.Fatalf("expected an overflow split, got %d chunks", len(chunks))
	}
	// Second chunk must start with the tail of the first chunk's raw text.
	first := chunks[0].Content
	wantPrefix := first[len(first)-overlap:]
	if !strings.HasPrefix(chunks[1].Content, wantPrefix) {
		t.Errorf("second chunk should start with the previous chunk's tail")
	}
}

func TestChunkMarkdown_OverlapKeepsRunesWhole(t *testing.T) {
	// Two-byte runes with an odd overlap: a byte-offset cut would land in
	// the middle of an "é" and poison every overlapped chunk.
	paraA := strings.Repeat("é", 80)
	paraB := strings.Repeat("à", 80)
	md := paraA + "\n\n" + paraB
	chunks := ChunkMarkdown(md, "notes.txt", 170, 33)

	if len(chunks) < 2 {
		t.Fatalf("expected an overflow split, got %d chunks", len(chunks))
	}
	for i, c := range chunks {
		if !utf8.ValidString(c.Content) {
			t.Errorf("chunk %d content is not valid UTF-8: %q", i, c.Content)
		}
	}
	if !strings.HasPrefix(chunks[1].Content, "é") {
		t.Errorf("overlap tail should begin on a rune boundary, got %q",
			chunks[1].Content[:4])
	}
}

func TestChunkMarkdown_OverlapStrippedReconstruction(t *testing.T) {
	paras := []string{
		strings.Repeat("alpha ", 30),
		strings.Repeat("beta ", 30),
		strings.Repeat("gamma ", 30),
		strings.Repeat("delta ", 30),
	}
	md := strings.Join(paras, "\n\n")
	overlap := 50
	chunks := ChunkMarkdown(md, "d.txt", 200, overlap)

	// Strip each overlap prefix (tail of the previous raw content plus the
	// joining blank line) and verify paragraph order is preserved.
	var raw []string
	for i, c := range chunks {
		content := c.Content
		if i > 0 {
			prev := raw[i-1]
			tail := prev
			if len(prev) > overlap {
				tail = prev[len(prev)-overlap:]
			}
			content = strings.TrimPrefix(content, tail+"\n\n")
		}
		raw = append(raw, content)
	}

	reconstructed := strings.Join(raw, "\n\n")
	for _, p := range paras {
		p = strings.TrimSpace(p)
		if !strings.Contains(reconstructed, p) {
			t.Fatalf("reconstruction lost a paragraph")
		}
	}
	// Order check: each paragraph's first word appears in input order.
	lastIdx := -1
	for _, word := range []string{"alpha", "beta", "gamma", "delta"} {
		idx := strings.Index(reconstructed, word)
		if idx <= lastIdx {
			t.Errorf("paragraph order broken around %q", word)
		}
		lastIdx = idx
	}
}

func TestChunkMarkdown_OverlappedTitleRecomputed(t *testing.T) {
	// The overlap tail dragged into chunk 2 contains the "# First" heading
	// line, so the recomputed title must point at First, not Second.
	md := "intro\n\n" + strings.Repeat("p", 100) + "\n\n# First\n\n# Second\n\nbody of second"
	chunks := ChunkMarkdown(md, "doc.md", 110, 450)

	var second *ragModel.Chunk
	for i := range chunks {
		if strings.Contains(chunks[i].Content, "body of second") {
			second = &chunks[i]
		}
	}
	if second == nil {
		t.Fatal("did not find the chunk holding the second section")
	}
	if !strings.HasPrefix(second.Title, "doc — ") {
		t.Errorf("overlapped chunk title not recomputed: %q", second.Title)
	}
}

func extractContents(chunks []ragModel.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Content
	}
	return out
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
