// Package rand provides a forward-secure, cryptographically seeded
// math/rand source, used wherever the protocol needs random numbers that
// are not required to come directly from a CSPRNG (e.g. retry jitter)
// but must not be predictable from process
// start time or PID the way the default math/rand source is.
package rand

import (
	"encoding/binary"
	"io"
	"math/rand"
	"sync"

	"golang.org/x/crypto/chacha20"
)

const seedSize = chacha20.KeySize

var mNonce [chacha20.NonceSize]byte

type randSource struct {
	sync.Mutex
	s   *chacha20.Cipher
	buf [64]byte
	off int
}

func (s *randSource) feedForward() {
	var seed [chacha20.KeySize]byte
	s.s.XORKeyStream(seed[:], seed[:])
	rekeyed, err := chacha20.NewUnauthenticatedCipher(seed[:], mNonce[:])
	if err != nil {
		panic("chacha20 rekey failed, not expected")
	}
	s.s = rekeyed
	explicitBzero(seed[:])
	s.off = 0
}

func (s *randSource) Uint64() uint64 {
	s.Lock()
	defer s.Unlock()

	if s.off+8 > len(s.buf)-seedSize {
		s.feedForward()
	}

	var tmp [8]byte
	s.s.XORKeyStream(tmp[:], tmp[:])
	s.off += 8
	return binary.LittleEndian.Uint64(tmp[:])
}

func (s *randSource) Int63() int64 {
	return int64(s.Uint64() & ((1 << 63) - 1))
}

func (s *randSource) Seed(unused int64) {
	var seed [chacha20.KeySize]byte
	defer explicitBzero(seed[:])

	if _, err := io.ReadFull(Reader, seed[:]); err != nil {
		panic("crypto/rand: failed to read entropy: " + err.Error())
	}

	c, err := chacha20.NewUnauthenticatedCipher(seed[:], mNonce[:])
	if err != nil {
		panic("crypto/rand: chacha20 seed failed, not expected")
	}
	s.s = c
	s.off = 0
}

func explicitBzero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// NewMath returns a "cryptographically secure" math/rand.Rand, seeded from
// the system CSPRNG and periodically re-keyed from its own ChaCha20
// keystream as output is drawn.
func NewMath() *rand.Rand {
	s := new(randSource)
	s.Seed(0)
	return rand.New(s)
}
