package utils

import (
	"strings"

	"github.com/google/uuid"
)

var batchNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// GenerateUUID returns a deterministic UUIDv5 for the given inputs. The same
// inputs always give the same id.
func GenerateUUID(inputs ...string) string {
	return uuid.NewSHA1(batchNamespace, []byte(strings.Join(inputs, "\x1f"))).String()
}
