package chunker

import "qwery/internal/domain"

// WindowChunker splits text into contiguous rune windows of at most
// maxLength, with adjacent windows optionally sharing overlap runes to
// preserve context across boundaries. With zero overlap the chunks are
// non-overlapping and their concatenation reconstructs the input.
type WindowChunker struct {
	maxLength int
	overlap   int
}

func NewWindowChunker(maxLength, overlap int) *WindowChunker {
	if maxLength <= 0 {
		maxLength = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	// The stride must advance, or chunking would never terminate.
	if overlap >= maxLength {
		overlap = maxLength - 1
	}
	return &WindowChunker{maxLength: maxLength, overlap: overlap}
}

func (c *WindowChunker) Chunk(source, text string) []domain.Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	if len(runes) <= c.maxLength {
		return []domain.Chunk{{Source: source, Index: 0, Text: text}}
	}

	stride := c.maxLength - c.overlap
	var chunks []domain.Chunk
	for start, index := 0, 0; start < len(runes); start, index = start+stride, index+1 {
		end := start + c.maxLength
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, domain.Chunk{
			Source: source,
			Index:  index,
			Text:   string(runes[start:end]),
		})
		if end == len(runes) {
			break
		}
	}

	return chunks
}
