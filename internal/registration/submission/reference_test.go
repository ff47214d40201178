// internal/registration/submission/reference_test.go
package submission

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReferenceGenerator_Format(t *testing.T) {
	g := &ReferenceGenerator{
		Prefix: "MSAD",
		Now:    func() time.Time { return time.UnixMilli(1759311000123).UTC() },
		Rand:   sequenceRand(0, 25, 35),
	}

	code := g.Next()

	assert.Equal(t, "MSAD2025000123AZ9", code)
	assert.Regexp(t, ReferencePattern, code)
}

func TestReferenceGenerator_PadsTimeSuffix(t *testing.T) {
	g := &ReferenceGenerator{
		Prefix: "MSAD",
		Now:    func() time.Time { return time.UnixMilli(1759310000042).UTC() },
		Rand:   sequenceRand(1),
	}
	assert.Equal(t, "MSAD2025000042BBB", g.Next())
}

func TestReferenceGenerator_Default(t *testing.T) {
	g := NewReferenceGenerator("")
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code := g.Next()
		assert.Regexp(t, ReferencePattern, code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 1)
}
