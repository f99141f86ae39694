package core

import (
	"crypto/aes"
	"crypto/cipher"
)

// ctrDRBG is a minimal CTR_DRBG-style generator over AES-256, seeded and
// periodically reseeded from the CryptoContext's injected entropy source,
// per spec.md §4.3.1.
type ctrDRBG struct {
	key     [32]byte
	counter [aes.BlockSize]byte
}

func newCTRDRBG(seed []byte) *ctrDRBG {
	d := &ctrDRBG{}
	d.reseed(seed)
	return d
}

// reseed mixes additional material into the DRBG state by XOR-folding it
// into the current key, then re-deriving the key and counter through one
// AES-CTR pass — a simple, deterministic update function sufficient for
// an in-process stand-in DRBG (the concrete primitive is out of scope per
// spec.md §1).
func (d *ctrDRBG) reseed(seed []byte) {
	folded := fold(seed, 32)
	for i := range d.key {
		d.key[i] ^= folded[i]
	}
	block, err := aes.NewCipher(d.key[:])
	if err != nil {
		return
	}
	var derived [32]byte
	stream := cipher.NewCTR(block, d.counter[:])
	stream.XORKeyStream(derived[:], derived[:])
	d.key = derived
	incrementCounter(&d.counter)
}

func (d *ctrDRBG) generate(out []byte) (int, error) {
	block, err := aes.NewCipher(d.key[:])
	if err != nil {
		return 0, err
	}
	stream := cipher.NewCTR(block, d.counter[:])
	zero := make([]byte, len(out))
	stream.XORKeyStream(out, zero)
	incrementCounter(&d.counter)
	return len(out), nil
}

func (d *ctrDRBG) zeroize() {
	for i := range d.key {
		d.key[i] = 0
	}
	for i := range d.counter {
		d.counter[i] = 0
	}
}

func incrementCounter(c *[aes.BlockSize]byte) {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]++
		if c[i] != 0 {
			return
		}
	}
}

// fold compresses/pads src to exactly n bytes via repeated XOR, used to
// derive a fixed-size key-mixing value from an arbitrary-length seed.
func fold(src []byte, n int) []byte {
	out := make([]byte, n)
	if len(src) == 0 {
		return out
	}
	for i, b := range src {
		out[i%n] ^= b
	}
	return out
}
