package usecase

import "strings"

// Normalize applies the canonical text normalization used on both the
// write path and the query path. Stored embeddings and query embeddings
// must go through the same normalization or similarity scores are
// meaningless.
func Normalize(text string) string {
	return strings.TrimSpace(text)
}
