package xid

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// New returns a prefixed identifier such as "inv-3f0c9a6e2b1d4c8f".
func New(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if prefix == "" {
		return id[:16]
	}
	return fmt.Sprintf("%s-%s", prefix, id[:16])
}
