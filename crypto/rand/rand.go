package rand

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"io"
)

// Reader is the system CSPRNG, re-exported so call sites never need to
// import both this package and crypto/rand under different names.
var Reader io.Reader = cryptorand.Reader

// SafeRandomU64 returns a uniformly random 64-bit value drawn from the
// system CSPRNG.
func SafeRandomU64() uint64 {
	var b [8]byte
	if _, err := io.ReadFull(Reader, b[:]); err != nil {
		panic("crypto/rand: failed to read entropy: " + err.Error())
	}
	return binary.BigEndian.Uint64(b[:])
}

// SafeRandomU64Long returns a random 64-bit value with its high bit set
// (i.e. >= 1<<63). Proof seeds use this range so their big-endian encoding
// never begins with a long run of zero bytes, which keeps the signed
// payload uniform for every supported signature scheme.
func SafeRandomU64Long() uint64 {
	return SafeRandomU64() | (uint64(1) << 63)
}
