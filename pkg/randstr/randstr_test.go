package randstr

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateRandomString(t *testing.T) {
	g := New([]byte("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"))

	seen := make(map[string]struct{})
	for i := 0; i < 2000; i++ {
		length := rand.Intn(20) + 10
		s := g.GenerateRandomString(length)
		assert.Len(t, s, length)

		_, exists := seen[s]
		assert.False(t, exists, "not unique value %s on iteration %d", s, i)
		seen[s] = struct{}{}
	}
}

func TestGenerateRandomStringAlphabet(t *testing.T) {
	g := New([]byte("ab"))

	s := g.GenerateRandomString(100)
	for _, r := range s {
		assert.Contains(t, []rune{'a', 'b'}, r)
	}
}
