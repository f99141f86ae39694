package core

import (
	"crypto/elliptic"
	"math/big"
)

// AgreementAlg names the key-agreement scheme.
type AgreementAlg int

const (
	AgreementDH AgreementAlg = iota
	AgreementECDH
)

// Agreement carries a private key and computes a shared secret against a
// peer's public key (spec.md §4.3.5). It does not apply a KDF — callers
// derive symmetric material themselves.
type Agreement struct {
	alg AgreementAlg
	dh  *KeyDHPrv
	ecc *KeyECCPrv
}

// NewAgreement derives an Agreement from a private key's proxy.
func NewAgreement(keyProxy *Proxy, prv *Key) (*Proxy, *Agreement, error) {
	a := &Agreement{}
	switch prv.typ {
	case KeyTypeDHPrv:
		a.alg = AgreementDH
		a.dh = prv.dhPrv
	case KeyTypeSECP256R1Prv:
		a.alg = AgreementECDH
		a.ecc = prv.eccPrv
	default:
		return nil, nil, ErrInvalidParameter
	}
	p, err := deriveProxy(keyProxy, a)
	if err != nil {
		return nil, nil, err
	}
	return p, a, nil
}

// Agree computes the shared secret with peer's public key. DH secrets are
// padded to the prime length; ECDH secrets are big-endian and left-trimmed
// of leading zero bytes, per spec.md §4.3.5.
func (a *Agreement) Agree(peer *Key) ([]byte, error) {
	switch a.alg {
	case AgreementDH:
		if peer.typ != KeyTypeDHPub || peer.dhPub == nil || a.dh == nil {
			return nil, ErrInvalidParameter
		}
		p := new(big.Int).SetBytes(a.dh.PBytes[:a.dh.PLen])
		x := new(big.Int).SetBytes(a.dh.XBytes[:a.dh.XLen])
		gy := new(big.Int).SetBytes(peer.dhPub.GxBytes[:peer.dhPub.GxLen])
		secret := new(big.Int).Exp(gy, x, p)
		return padLeft(secret.Bytes(), len(a.dh.PBytes[:a.dh.PLen])), nil

	case AgreementECDH:
		if peer.typ != KeyTypeSECP256R1Pub || peer.eccPub == nil || a.ecc == nil {
			return nil, ErrInvalidParameter
		}
		curve := elliptic.P256()
		px := new(big.Int).SetBytes(peer.eccPub.XBytes[:peer.eccPub.XLen])
		py := new(big.Int).SetBytes(peer.eccPub.YBytes[:peer.eccPub.YLen])
		if !curve.IsOnCurve(px, py) {
			return nil, ErrInvalidParameter
		}
		d := new(big.Int).SetBytes(a.ecc.DBytes[:a.ecc.DLen])
		sx, _ := curve.ScalarMult(px, py, d.Bytes())
		secret := sx.Bytes() // left-trimmed of leading zeros by big.Int.Bytes
		return secret, nil

	default:
		return nil, ErrNotSupported
	}
}

