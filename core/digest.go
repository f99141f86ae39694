package core

import (
	"crypto/md5"
	"crypto/sha256"
	"hash"
)

// DigestAlg names a supported hash algorithm.
type DigestAlg int

const (
	DigestNone DigestAlg = iota
	DigestMD5
	DigestSHA256
)

// Digest sizes in bytes, part of the crypto bit-accurate interface
// (spec.md §6).
const (
	DigestSizeMD5    = 16
	DigestSizeSHA256 = 32
)

// DigestState is the Digest object's state machine: Ready -> Processed ->
// Done, with finalize re-arming back to Ready (spec.md §4.3.3).
type DigestState int

const (
	DigestReady DigestState = iota
	DigestProcessed
	DigestDone
)

// Digest implements the hash state machine shared by every digest
// algorithm this module supports.
type Digest struct {
	alg   DigestAlg
	state DigestState
	h     hash.Hash
}

func newHash(alg DigestAlg) (hash.Hash, error) {
	switch alg {
	case DigestMD5:
		return md5.New(), nil
	case DigestSHA256:
		return sha256.New(), nil
	default:
		return nil, ErrNotSupported
	}
}

// NewDigest creates a Digest proxy for alg.
func (c *CryptoContext) NewDigest(alg DigestAlg, attribs Attributes) (*Proxy, *Digest, error) {
	h, err := newHash(alg)
	if err != nil {
		return nil, nil, err
	}
	d := &Digest{alg: alg, state: DigestReady, h: h}
	p, err := newProxy(c.mode, attribs, d, false, false)
	if err != nil {
		return nil, nil, err
	}
	return p, d, nil
}

// Process feeds data into the digest. Valid from Ready or Processed.
func (d *Digest) Process(data []byte) error {
	if d.state == DigestDone {
		return ErrAborted
	}
	if _, err := d.h.Write(data); err != nil {
		return ErrAborted
	}
	d.state = DigestProcessed
	return nil
}

// Finalize produces the digest output and re-arms the object to Ready so
// it can be reused with the same algorithm. Finalizing without any prior
// Process call fails ABORTED.
func (d *Digest) Finalize() ([]byte, error) {
	if d.state != DigestProcessed {
		return nil, ErrAborted
	}
	sum := d.h.Sum(nil)
	h, err := newHash(d.alg)
	if err != nil {
		return nil, err
	}
	d.h = h
	d.state = DigestReady
	return sum, nil
}

// Clone copies the entire internal state from d into a freshly allocated
// Digest for the same proxy backend.
func (d *Digest) Clone(parent *Proxy) (*Proxy, *Digest, error) {
	// hash.Hash does not expose a generic Clone; MD5/SHA256's concrete
	// types do via encoding.BinaryMarshaler/Unmarshaler.
	marshaler, ok := d.h.(interface{ MarshalBinary() ([]byte, error) })
	if !ok {
		return nil, nil, ErrNotSupported
	}
	state, err := marshaler.MarshalBinary()
	if err != nil {
		return nil, nil, ErrAborted
	}
	h, err := newHash(d.alg)
	if err != nil {
		return nil, nil, err
	}
	unmarshaler, ok := h.(interface{ UnmarshalBinary([]byte) error })
	if !ok {
		return nil, nil, ErrNotSupported
	}
	if err := unmarshaler.UnmarshalBinary(state); err != nil {
		return nil, nil, ErrAborted
	}
	clone := &Digest{alg: d.alg, state: d.state, h: h}
	p, err := deriveProxy(parent, clone)
	if err != nil {
		return nil, nil, err
	}
	return p, clone, nil
}
