// internal/registration/submission/reference.go
package submission

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"time"
)

const (
	DefaultReferencePrefix = "MSAD"
	referenceAlphabet      = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	referenceSuffixLength  = 3
)

// ReferencePattern matches codes produced with the default prefix.
var ReferencePattern = regexp.MustCompile(`^MSAD\d{4}\d{6}[A-Z0-9]{3}$`)

// ReferenceGenerator builds application reference codes of the form
// <prefix><year><last 6 digits of unix millis><3 random [A-Z0-9]>.
// Codes are unique with high probability only; the store's unique
// constraint is the authority.
type ReferenceGenerator struct {
	Prefix string
	Now    func() time.Time
	Rand   func(n int) int
}

func NewReferenceGenerator(prefix string) *ReferenceGenerator {
	if prefix == "" {
		prefix = DefaultReferencePrefix
	}
	return &ReferenceGenerator{Prefix: prefix, Now: time.Now, Rand: rand.IntN}
}

func (g *ReferenceGenerator) Next() string {
	return g.NextAt(g.Now())
}

// NextAt builds a code for the instant now.
func (g *ReferenceGenerator) NextAt(now time.Time) string {
	suffix := make([]byte, referenceSuffixLength)
	for i := range suffix {
		suffix[i] = referenceAlphabet[g.Rand(len(referenceAlphabet))]
	}
	return fmt.Sprintf("%s%04d%06d%s", g.Prefix, now.Year(), now.UnixMilli()%1_000_000, suffix)
}
