package chunker

import (
	"strings"
	"testing"
)

func TestChunkCountNoOverlap(t *testing.T) {
	tests := []struct {
		name      string
		length    int
		maxLength int
		want      int
	}{
		{"exact multiple", 100, 25, 4},
		{"remainder", 105, 25, 5},
		{"shorter than max", 10, 25, 1},
		{"exactly max", 25, 25, 1},
		{"one over", 26, 25, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewWindowChunker(tt.maxLength, 0)
			text := strings.Repeat("x", tt.length)

			chunks := c.Chunk("src", text)
			// ceil(L/M) chunks, each no longer than M.
			if len(chunks) != tt.want {
				t.Errorf("got %d chunks, want %d", len(chunks), tt.want)
			}
			for i, ch := range chunks {
				if len([]rune(ch.Text)) > tt.maxLength {
					t.Errorf("chunk %d has %d runes, max %d", i, len([]rune(ch.Text)), tt.maxLength)
				}
			}
		})
	}
}

func TestChunkConcatenationReconstructs(t *testing.T) {
	c := NewWindowChunker(7, 0)
	text := "The quick brown fox jumps over the lazy dog"

	chunks := c.Chunk("src", text)

	var sb strings.Builder
	for _, ch := range chunks {
		sb.WriteString(ch.Text)
	}
	if sb.String() != text {
		t.Errorf("concatenation = %q, want %q", sb.String(), text)
	}
}

func TestChunkIndexesAndSource(t *testing.T) {
	c := NewWindowChunker(5, 0)
	chunks := c.Chunk("notes.txt", strings.Repeat("a", 12))

	for i, ch := range chunks {
		if ch.Index != i {
			t.Errorf("chunk %d has index %d", i, ch.Index)
		}
		if ch.Source != "notes.txt" {
			t.Errorf("chunk %d has source %q", i, ch.Source)
		}
	}
}

func TestChunkOverlap(t *testing.T) {
	c := NewWindowChunker(10, 3)
	text := strings.Repeat("abcdefghij", 3)

	chunks := c.Chunk("src", text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1].Text)
		tail := string(prev[len(prev)-3:])
		if !strings.HasPrefix(chunks[i].Text, tail) {
			t.Errorf("chunk %d does not start with previous chunk's last 3 runes", i)
		}
	}
}

func TestChunkEmptyText(t *testing.T) {
	c := NewWindowChunker(10, 0)
	if chunks := c.Chunk("src", ""); chunks != nil {
		t.Errorf("expected no chunks for empty text, got %d", len(chunks))
	}
}

func TestChunkMultibyteRunes(t *testing.T) {
	c := NewWindowChunker(4, 0)
	text := "héllø wörld"

	chunks := c.Chunk("src", text)
	var sb strings.Builder
	for _, ch := range chunks {
		if n := len([]rune(ch.Text)); n > 4 {
			t.Errorf("chunk has %d runes, max 4", n)
		}
		sb.WriteString(ch.Text)
	}
	if sb.String() != text {
		t.Errorf("multibyte concatenation = %q, want %q", sb.String(), text)
	}
}
