// Package chunk splits markdown into semantic, model-context-safe chunks
// ahead of embedding, as the second step of the indexing pipeline.
package chunk

import "strings"

// DefaultMaxChars bounds chunk length to stay safely inside typical
// embedding-model context windows.
const DefaultMaxChars = 2000

// Chunk is one unit of text handed to the embedding service.
type Chunk struct {
	Index int
	Text  string
}

// Split breaks markdown into chunks of at most maxChars characters,
// preferring to break on paragraph boundaries (blank lines), then on
// sentence boundaries, and only splitting mid-sentence as a last resort.
// Empty input yields an empty slice.
func Split(markdown string, maxChars int) []Chunk {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	trimmed := strings.TrimSpace(markdown)
	if trimmed == "" {
		return nil
	}

	paragraphs := splitParagraphs(trimmed)

	var chunks []Chunk
	var current strings.Builder

	flush := func() {
		text := strings.TrimSpace(current.String())
		if text == "" {
			return
		}
		chunks = append(chunks, Chunk{Index: len(chunks), Text: text})
		current.Reset()
	}

	for _, p := range paragraphs {
		if len(p) > maxChars {
			flush()
			for _, piece := range splitLong(p, maxChars) {
				chunks = append(chunks, Chunk{Index: len(chunks), Text: piece})
			}
			continue
		}
		if current.Len()+len(p)+2 > maxChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(p)
	}
	flush()

	return chunks
}

func splitParagraphs(text string) []string {
	raw := strings.Split(text, "\n\n")
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{text}
	}
	return out
}

// splitLong breaks an over-long paragraph on sentence boundaries, falling
// back to a hard character split if no sentence boundary is found within
// the budget.
func splitLong(p string, maxChars int) []string {
	var pieces []string
	remaining := p
	for len(remaining) > maxChars {
		cut := lastSentenceBreak(remaining, maxChars)
		if cut <= 0 {
			cut = maxChars
		}
		pieces = append(pieces, strings.TrimSpace(remaining[:cut]))
		remaining = remaining[cut:]
	}
	if strings.TrimSpace(remaining) != "" {
		pieces = append(pieces, strings.TrimSpace(remaining))
	}
	return pieces
}

func lastSentenceBreak(s string, limit int) int {
	if limit > len(s) {
		limit = len(s)
	}
	window := s[:limit]
	for _, sep := range []string{". ", "! ", "? ", "\n"} {
		if i := strings.LastIndex(window, sep); i > 0 {
			return i + len(sep)
		}
	}
	if i := strings.LastIndex(window, " "); i > 0 {
		return i + 1
	}
	return limit
}
