package agent

import (
	crand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand/v2"
)

// Rand is the random source consumed by the generator. It must also act as
// an io.Reader so uniqueness tokens draw from the same stream.
type Rand interface {
	IntN(n int) int
	io.Reader
}

// SeededRand is a reproducible Rand backed by ChaCha8.
// It is not safe for concurrent use.
type SeededRand struct {
	*rand.Rand
	src *rand.ChaCha8
}

// NewRand returns a source whose output is fully determined by seed.
func NewRand(seed uint64) *SeededRand {
	var s [32]byte
	binary.LittleEndian.PutUint64(s[:], seed)
	src := rand.NewChaCha8(s)
	return &SeededRand{Rand: rand.New(src), src: src}
}

// NewRandomRand returns a source seeded from crypto/rand.
func NewRandomRand() *SeededRand {
	var b [8]byte
	_, _ = crand.Read(b[:])
	return NewRand(binary.LittleEndian.Uint64(b[:]))
}

func (r *SeededRand) Read(p []byte) (int, error) {
	return r.src.Read(p)
}
