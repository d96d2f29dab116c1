// Package chunker splits converted markdown into title-tagged, page-tagged
// chunks sized for embedding. Sections follow heading lines, oversized
// sections are packed paragraph by paragraph, and each chunk after the first
// carries a tail of the previous chunk so retrieval keeps cross-chunk context.
package chunker

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/mferrand/ragapi/internal/domain/ragModel"
)

const PlaceholderContent = "(empty or unreadable document)"

var (
	headingRe    = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
	pageSignalRe = regexp.MustCompile(`(?i)^Page\s+(\d+)$`)
	paragraphRe  = regexp.MustCompile(`\n{2,}`)
)

type section struct {
	heading string
	content string
}

type rawChunk struct {
	title   string
	content string
	page    int
	hasPage bool
}

// ChunkMarkdown converts markdown text into chunks of at most maxChars
// (approximately: the overlap prefix may push a chunk over). It never
// returns an empty slice; whitespace-only input yields one placeholder
// chunk so callers can rely on at least one chunk per converted document.
func ChunkMarkdown(markdown, sourceName string, maxChars, overlapChars int) []ragModel.Chunk {
	stem := stemOf(sourceName)

	if strings.TrimSpace(markdown) == "" {
		return []ragModel.Chunk{{
			Title:      stem,
			Page:       1,
			Content:    PlaceholderContent,
			ChunkIndex: 0,
		}}
	}

	var raws []rawChunk
	currentPage := 0
	pageSignalSeen := false

	for _, sec := range splitSections(markdown) {
		title := stem
		if sec.heading != "" {
			title = stem + " — " + sec.heading
		}
		if m := pageSignalRe.FindStringSubmatch(sec.heading); m != nil {
			currentPage, _ = strconv.Atoi(m[1])
			pageSignalSeen = true
		}

		for _, content := range packSection(sec.content, maxChars) {
			rc := rawChunk{title: title, content: content}
			if pageSignalSeen {
				rc.page = currentPage
				rc.hasPage = true
			}
			raws = append(raws, rc)
		}
	}

	if len(raws) == 0 {
		return []ragModel.Chunk{{
			Title:      stem,
			Page:       1,
			Content:    PlaceholderContent,
			ChunkIndex: 0,
		}}
	}

	return applyOverlap(raws, stem, overlapChars)
}

// splitSections cuts the text at heading lines. The heading line stays part
// of its section's content so it survives into the chunk text.
func splitSections(markdown string) []section {
	var sections []section
	var heading string
	var buf []string

	flush := func() {
		content := strings.TrimSpace(strings.Join(buf, "\n"))
		if content != "" {
			sections = append(sections, section{heading: heading, content: content})
		}
		buf = buf[:0]
	}

	for _, line := range strings.Split(markdown, "\n") {
		if m := headingRe.FindStringSubmatch(line); m != nil {
			flush()
			heading = strings.TrimSpace(m[2])
		}
		buf = append(buf, line)
	}
	flush()
	return sections
}

// packSection greedily packs blank-line-delimited paragraphs into chunks of
// at most maxChars, closing a chunk when the next paragraph would overflow
// it. A section that already fits becomes a single chunk.
func packSection(content string, maxChars int) []string {
	if len(content) <= maxChars {
		return []string{content}
	}

	var out []string
	var buf strings.Builder
	for _, para := range paragraphRe.Split(content, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if buf.Len() > 0 && buf.Len()+len(para)+2 > maxChars {
			out = append(out, strings.TrimSpace(buf.String()))
			buf.Reset()
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(para)
	}
	if s := strings.TrimSpace(buf.String()); s != "" {
		out = append(out, s)
	}
	return out
}

// applyOverlap prefixes every chunk after the first with the tail of the
// previous chunk's raw text (taken before that chunk's own prefix was
// applied). The displayed title of an overlapped chunk is recomputed from
// the first heading found inside the assembled text, falling back to the
// section title.
func applyOverlap(raws []rawChunk, stem string, overlapChars int) []ragModel.Chunk {
	chunks := make([]ragModel.Chunk, 0, len(raws))

	for i, rc := range raws {
		content := rc.content
		title := rc.title
		if i > 0 && overlapChars > 0 {
			prev := raws[i-1].content
			tail := prev
			if len(prev) > overlapChars {
				cut := len(prev) - overlapChars
				// never split a multi-byte rune: accented text would
				// otherwise start the overlap with a broken sequence
				for cut < len(prev) && !utf8.RuneStart(prev[cut]) {
					cut++
				}
				tail = prev[cut:]
			}
			content = tail + "\n\n" + content
			if h := firstHeading(content); h != "" {
				title = stem + " — " + h
			}
		}

		page := len(chunks) + 1
		if rc.hasPage {
			page = rc.page
		}
		chunks = append(chunks, ragModel.Chunk{
			Title:      title,
			Page:       page,
			Content:    content,
			ChunkIndex: len(chunks),
		})
	}
	return chunks
}

func firstHeading(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if m := headingRe.FindStringSubmatch(line); m != nil {
			return strings.TrimSpace(m[2])
		}
	}
	return ""
}

func stemOf(sourceName string) string {
	base := filepath.Base(sourceName)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
