package ids

import (
	"crypto/rand"
	"regexp"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Prefixes distinguish identifiers of each record kind.
const (
	PrefixUser       = "USR"
	PrefixRole       = "ROL"
	PrefixPermission = "PRM"
	PrefixToken      = "TOK"
	PrefixAudit      = "AUD"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// New returns prefix followed by a lexicographically sortable ULID.
func New(prefix string) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return prefix + ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Pattern returns the expression every identifier with prefix matches.
func Pattern(prefix string) *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `[0-9A-HJKMNP-TV-Z]{26}$`)
}

// Valid reports whether id carries prefix and a well-formed ULID.
func Valid(prefix, id string) bool {
	if len(id) != len(prefix)+ulid.EncodedSize || id[:len(prefix)] != prefix {
		return false
	}
	_, err := ulid.ParseStrict(id[len(prefix):])
	return err == nil
}
