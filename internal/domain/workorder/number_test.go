package workorder

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNumberGenerator_Next(t *testing.T) {
	t.Run("uses the type prefix", func(t *testing.T) {
		g := NewNumberGenerator()
		assert.True(t, strings.HasPrefix(g.Next(TypeRacking), "RACK-"))
		assert.True(t, strings.HasPrefix(g.Next(TypeReceiving), "RECV-"))
	})

	t.Run("falls back to GEN for unknown types", func(t *testing.T) {
		g := NewNumberGenerator()
		assert.True(t, strings.HasPrefix(g.Next("mystery"), "GEN-"))
	})

	t.Run("separate generators stay disjoint within one second", func(t *testing.T) {
		frozen := time.Date(2026, 8, 30, 10, 30, 0, 0, time.UTC)
		a := NewNumberGenerator()
		b := NewNumberGenerator()
		a.now = func() time.Time { return frozen }
		b.now = func() time.Time { return frozen }
		a.salt, b.salt = "aa01", "bb02"

		seen := map[string]bool{}
		for i := 0; i < 100; i++ {
			seen[a.Next(TypeRacking)] = true
			seen[b.Next(TypeRacking)] = true
		}
		assert.Len(t, seen, 200)
	})
}
