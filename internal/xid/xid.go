package xid

import (
	"strings"

	"github.com/google/uuid"
)

// New returns a random identifier of the form PREFIX-<16 hex digits of a uuid>.
func New(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if prefix == "" {
		return id
	}
	return strings.ToUpper(prefix) + "-" + id[:16]
}
