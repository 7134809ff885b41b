package core

import (
	"fmt"
	"strings"
)

// DefaultPrefix is the identifier namespace accepted unless configured otherwise.
const DefaultPrefix = "did:uminai:"

// ValidIdentifier reports whether id starts with prefix and has at least one
// more byte. Comparison is exact; no trimming or case folding.
func ValidIdentifier(id, prefix string) bool {
	return len(id) > len(prefix) && strings.HasPrefix(id, prefix)
}

func checkPrefix(prefix string) error {
	if prefix == "" {
		return fmt.Errorf("identifier prefix is required")
	}
	return nil
}
