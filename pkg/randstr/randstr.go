package randstr

import (
	"math/rand"
	"sync"
	"time"
)

const (
	letterIdxBits = 6
	letterIdxMask = 1<<letterIdxBits - 1
	letterIdxMax  = 63 / letterIdxBits
)

type Generator struct {
	letters []byte
	mu      sync.Mutex
	src     rand.Source
}

func New(letters []byte) *Generator {
	return &Generator{
		letters: letters,
		src:     rand.NewSource(time.Now().UnixNano()),
	}
}

// GenerateRandomString returns a random string of the given length built
// from the generator's alphabet.
func (g *Generator) GenerateRandomString(length int) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	b := make([]byte, length)
	for i, cache, remain := length-1, g.src.Int63(), letterIdxMax; i >= 0; {
		if remain == 0 {
			cache, remain = g.src.Int63(), letterIdxMax
		}
		if idx := int(cache & letterIdxMask); idx < len(g.letters) {
			b[i] = g.letters[idx]
			i--
		}
		cache >>= letterIdxBits
		remain--
	}

	return string(b)
}
