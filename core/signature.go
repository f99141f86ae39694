package core

import (
	"crypto"
	"crypto/md5"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"math/big"
)

// SignaturePadding selects the RSA padding scheme.
type SignaturePadding int

const (
	SignaturePKCS1v15 SignaturePadding = iota
	SignaturePSS
)

// Signature carries up to two keys (private for signing, public for
// verification) and a bound digest algorithm used for padding-scheme
// consistency (spec.md §4.3.4).
type Signature struct {
	padding SignaturePadding
	digest  DigestAlg
	prv     *rsa.PrivateKey
	pub     *rsa.PublicKey
}

// NewSignature creates a Signature bound to a digest algorithm and
// padding scheme, optionally carrying a private and/or public RSA key.
func NewSignature(keyProxy *Proxy, prv, pub *Key, padding SignaturePadding, digest DigestAlg) (*Proxy, *Signature, error) {
	s := &Signature{padding: padding, digest: digest}
	if prv != nil {
		rp, err := rsaPrivateKeyFrom(prv)
		if err != nil {
			return nil, nil, err
		}
		s.prv = rp
	}
	if pub != nil {
		rp, err := rsaPublicKeyFrom(pub)
		if err != nil {
			return nil, nil, err
		}
		s.pub = rp
	}
	p, err := deriveProxy(keyProxy, s)
	if err != nil {
		return nil, nil, err
	}
	return p, s, nil
}

func rsaPrivateKeyFrom(k *Key) (*rsa.PrivateKey, error) {
	if k.typ != KeyTypeRSAPrv || k.rsaPrv == nil {
		return nil, ErrInvalidParameter
	}
	p := new(big.Int).SetBytes(k.rsaPrv.PBytes[:k.rsaPrv.PLen])
	q := new(big.Int).SetBytes(k.rsaPrv.QBytes[:k.rsaPrv.QLen])
	e := new(big.Int).SetBytes(k.rsaPrv.EBytes[:k.rsaPrv.ELen])
	n := new(big.Int).Mul(p, q)
	prv := &rsa.PrivateKey{
		PublicKey: rsa.PublicKey{N: n, E: int(e.Int64())},
		Primes:    []*big.Int{p, q},
	}
	prv.D = new(big.Int).SetBytes(k.rsaPrv.DBytes[:k.rsaPrv.DLen])
	if err := prv.Validate(); err != nil {
		prv.Precompute()
	}
	return prv, nil
}

func rsaPublicKeyFrom(k *Key) (*rsa.PublicKey, error) {
	if k.typ != KeyTypeRSAPub || k.rsaPub == nil {
		return nil, ErrInvalidParameter
	}
	n := new(big.Int).SetBytes(k.rsaPub.NBytes[:k.rsaPub.NLen])
	e := new(big.Int).SetBytes(k.rsaPub.EBytes[:k.rsaPub.ELen])
	return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
}

func hashForAlg(alg DigestAlg) (crypto.Hash, error) {
	switch alg {
	case DigestSHA256:
		return crypto.SHA256, nil
	case DigestMD5:
		return crypto.MD5, nil
	default:
		return 0, ErrNotSupported
	}
}

var (
	_ = sha256.Size
	_ = md5.Size
)

// Sign produces a signature over digestValue (the caller-computed digest
// of the expected algorithm's length). Requires prv, else ABORTED.
func (s *Signature) Sign(digestValue []byte) ([]byte, error) {
	if s.prv == nil {
		return nil, ErrAborted
	}
	h, err := hashForAlg(s.digest)
	if err != nil {
		return nil, err
	}
	switch s.padding {
	case SignaturePKCS1v15:
		sig, err := rsa.SignPKCS1v15(rand.Reader, s.prv, h, digestValue)
		if err != nil {
			return nil, ErrAborted
		}
		return sig, nil
	case SignaturePSS:
		sig, err := rsa.SignPSS(rand.Reader, s.prv, h, digestValue, nil)
		if err != nil {
			return nil, ErrAborted
		}
		return sig, nil
	default:
		return nil, ErrNotSupported
	}
}

// Verify checks sig over digestValue. Requires pub, else ABORTED. The
// underlying rsa.Verify{PKCS1v15,PSS} calls are constant-time with
// respect to the secret-independent verification path, satisfying
// spec.md §4.3.4.
func (s *Signature) Verify(digestValue, sig []byte) error {
	if s.pub == nil {
		return ErrAborted
	}
	h, err := hashForAlg(s.digest)
	if err != nil {
		return err
	}
	var verr error
	switch s.padding {
	case SignaturePKCS1v15:
		verr = rsa.VerifyPKCS1v15(s.pub, h, digestValue, sig)
	case SignaturePSS:
		verr = rsa.VerifyPSS(s.pub, h, digestValue, sig, nil)
	default:
		return ErrNotSupported
	}
	if verr != nil {
		return ErrAborted
	}
	return nil
}
