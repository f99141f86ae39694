package core

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"hash"
)

// MACState is the MAC object's state machine: New -> Started ->
// Processed* -> Done, with finalize re-arming back to New (spec.md §4.3.3).
type MACState int

const (
	MACNew MACState = iota
	MACStarted
	MACProcessed
	MACDone
)

// MAC implements HMAC over the configured digest algorithm.
type MAC struct {
	alg   DigestAlg
	state MACState
	key   []byte
	h     hash.Hash
}

// NewMAC creates a MAC proxy for the given digest algorithm.
func (c *CryptoContext) NewMAC(alg DigestAlg, attribs Attributes) (*Proxy, *MAC, error) {
	switch alg {
	case DigestMD5, DigestSHA256:
	default:
		return nil, nil, ErrNotSupported
	}
	m := &MAC{alg: alg, state: MACNew}
	p, err := newProxy(c.mode, attribs, m, false, false)
	if err != nil {
		return nil, nil, err
	}
	return p, m, nil
}

func hashCtor(alg DigestAlg) func() hash.Hash {
	switch alg {
	case DigestMD5:
		return md5.New
	default:
		return sha256.New
	}
}

// Start must occur exactly once before any Process call.
func (m *MAC) Start(secret []byte) error {
	if m.state != MACNew {
		return ErrAborted
	}
	if len(secret) == 0 {
		return ErrInvalidParameter
	}
	m.key = append([]byte(nil), secret...)
	m.h = hmac.New(hashCtor(m.alg), m.key)
	m.state = MACStarted
	return nil
}

// Process feeds data into the MAC. Calling it in New or after Finalize
// fails ABORTED.
func (m *MAC) Process(data []byte) error {
	if m.state != MACStarted && m.state != MACProcessed {
		return ErrAborted
	}
	if _, err := m.h.Write(data); err != nil {
		return ErrAborted
	}
	m.state = MACProcessed
	return nil
}

// Finalize produces the MAC tag and re-arms the object to New.
func (m *MAC) Finalize() ([]byte, error) {
	if m.state != MACProcessed {
		return nil, ErrAborted
	}
	sum := m.h.Sum(nil)
	m.h = nil
	m.key = nil
	m.state = MACNew
	return sum, nil
}

// Zeroize wipes the retained secret key.
func (m *MAC) Zeroize() {
	for i := range m.key {
		m.key[i] = 0
	}
}
