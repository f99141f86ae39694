package core

import (
	"crypto/elliptic"
	"crypto/rand"
)

// Key byte-array capacities, mirroring SeosCryptoApi_Key's fixed-maximum
// layout. Field order within each struct is significant for import/export.
const (
	KeySizeAESMax = 32  // 256 bit
	KeySizeAESMin = 16  // 128 bit
	KeySizeRSAMax = 512 // 4096 bit
	KeySizeRSAMin = 16  // 128 bit
	KeySizeDHMax  = 512 // 4096 bit
	KeySizeDHMin  = 8   // 64 bit
	KeySizeECC    = 32  // always 256 bit (SECP256R1)
)

// KeyType tags the variant a Key carries.
type KeyType int

const (
	KeyTypeNone KeyType = iota
	KeyTypeAES
	KeyTypeRSAPub
	KeyTypeRSAPrv
	KeyTypeDHPub
	KeyTypeDHPrv
	KeyTypeSECP256R1Pub
	KeyTypeSECP256R1Prv
	KeyTypeMAC
)

// KeyAES is the AES key layout: a length-bounded byte array with an
// explicit length field.
type KeyAES struct {
	Bytes [KeySizeAESMax]byte
	Len   uint32
}

// KeyMAC mirrors KeyAES: a generic symmetric secret used by MAC contexts.
// Its buffer is sized to the larger of the two documented maxima (spec.md
// Open Question ii): 1024 B.
type KeyMAC struct {
	Bytes [1024]byte
	Len   uint32
}

// KeyRSAPub is the public RSA key: modulus n and public exponent e.
type KeyRSAPub struct {
	NBytes [KeySizeRSAMax]byte
	NLen   uint32
	EBytes [KeySizeRSAMax]byte
	ELen   uint32
}

// KeyRSAPrv is the private RSA key: secret exponent d, public exponent e,
// and the two prime factors of n.
type KeyRSAPrv struct {
	DBytes [KeySizeRSAMax]byte
	DLen   uint32
	EBytes [KeySizeRSAMax]byte
	ELen   uint32
	PBytes [KeySizeRSAMax / 2]byte
	PLen   uint32
	QBytes [KeySizeRSAMax / 2]byte
	QLen   uint32
}

// KeyDHPub is the public half of a Diffie-Hellman key: the shared prime p,
// generator g, and this side's public value gx.
type KeyDHPub struct {
	PBytes  [KeySizeDHMax]byte
	PLen    uint32
	GBytes  [KeySizeDHMax]byte
	GLen    uint32
	GxBytes [KeySizeDHMax]byte
	GxLen   uint32
}

// KeyDHPrv additionally carries the private exponent x.
type KeyDHPrv struct {
	PBytes  [KeySizeDHMax]byte
	PLen    uint32
	GBytes  [KeySizeDHMax]byte
	GLen    uint32
	XBytes  [KeySizeDHMax]byte
	XLen    uint32
}

// KeyECCPub is a SECP256R1 public point (x, y).
type KeyECCPub struct {
	XBytes [KeySizeECC]byte
	XLen   uint32
	YBytes [KeySizeECC]byte
	YLen   uint32
}

// KeyECCPrv is a SECP256R1 private scalar d, plus the public point it
// derives (kept so Export can hand back a self-consistent value).
type KeyECCPrv struct {
	DBytes [KeySizeECC]byte
	DLen   uint32
	Pub    KeyECCPub
}

// KeySpecType tags a key-generation Spec.
type KeySpecType int

const (
	KeySpecBits KeySpecType = iota
	KeySpecParams
)

// KeyParams carries shared public parameters for DH/ECC generation.
type KeyParams struct {
	DHPrime []byte
	DHBase  []byte
	Curve   elliptic.Curve // set for SECP256R1
}

// KeySpec is the tagged union input to Key.Generate: either a bit count
// or an explicit parameter set.
type KeySpec struct {
	Type   KeySpecType
	KeyTyp KeyType
	Bits   int
	Params KeyParams
}

// Key is a routed handle to key material. The proxy records whether the
// key lives in the local library or a remote client; Export only
// succeeds when the underlying data is reachable by the caller.
type Key struct {
	typ     KeyType
	attribs Attributes

	aes    *KeyAES
	rsaPub *KeyRSAPub
	rsaPrv *KeyRSAPrv
	dhPub  *KeyDHPub
	dhPrv  *KeyDHPrv
	eccPub *KeyECCPub
	eccPrv *KeyECCPrv
	mac    *KeyMAC
}

// Zeroize overwrites any secret byte arrays the Key holds. Public material
// (RSA/DH/ECC public keys) is not secret and is left untouched.
func (k *Key) Zeroize() {
	zero := func(b []byte) {
		for i := range b {
			b[i] = 0
		}
	}
	if k.aes != nil {
		zero(k.aes.Bytes[:])
	}
	if k.rsaPrv != nil {
		zero(k.rsaPrv.DBytes[:])
		zero(k.rsaPrv.PBytes[:])
		zero(k.rsaPrv.QBytes[:])
	}
	if k.dhPrv != nil {
		zero(k.dhPrv.XBytes[:])
	}
	if k.eccPrv != nil {
		zero(k.eccPrv.DBytes[:])
	}
	if k.mac != nil {
		zero(k.mac.Bytes[:])
	}
}

func validAESBits(bits int) bool {
	return bits == 128 || bits == 192 || bits == 256
}

func validRSABits(bits int) bool {
	return bits >= KeySizeRSAMin*8 && bits <= KeySizeRSAMax*8
}

func validDHBits(bits int) bool {
	return bits >= KeySizeDHMin*8 && bits <= KeySizeDHMax*8
}

// GenerateKey creates new key material per spec, routed into ctx's crypto
// context according to mode and the spec's attributes.
func (c *CryptoContext) GenerateKey(spec KeySpec, attribs Attributes) (*Proxy, *Key, error) {
	if spec.Type != KeySpecBits && spec.Type != KeySpecParams {
		return nil, nil, ErrInvalidParameter
	}

	k := &Key{typ: spec.KeyTyp, attribs: attribs}

	switch spec.KeyTyp {
	case KeyTypeAES:
		if spec.Type != KeySpecBits || !validAESBits(spec.Bits) {
			return nil, nil, ErrInvalidParameter
		}
		buf := make([]byte, spec.Bits/8)
		if _, err := c.randomBytes(buf); err != nil {
			return nil, nil, err
		}
		k.aes = &KeyAES{Len: uint32(len(buf))}
		copy(k.aes.Bytes[:], buf)

	case KeyTypeRSAPrv:
		if spec.Type != KeySpecBits || !validRSABits(spec.Bits) {
			return nil, nil, ErrInvalidParameter
		}
		prv, err := generateRSA(spec.Bits, c)
		if err != nil {
			return nil, nil, err
		}
		k.rsaPrv = prv

	case KeyTypeDHPrv:
		bits := spec.Bits
		if spec.Type == KeySpecParams {
			if len(spec.Params.DHPrime) == 0 {
				return nil, nil, ErrInvalidParameter
			}
			bits = len(spec.Params.DHPrime) * 8
		}
		if !validDHBits(bits) {
			return nil, nil, ErrInvalidParameter
		}
		prv, err := generateDH(bits, spec.Params, c)
		if err != nil {
			return nil, nil, err
		}
		k.dhPrv = prv

	case KeyTypeSECP256R1Prv:
		prv, err := generateECC()
		if err != nil {
			return nil, nil, err
		}
		k.eccPrv = prv

	case KeyTypeMAC:
		if spec.Type != KeySpecBits || spec.Bits <= 0 || spec.Bits/8 > len(k.zeroMACBuf()) {
			return nil, nil, ErrInvalidParameter
		}
		buf := make([]byte, spec.Bits/8)
		if _, err := c.randomBytes(buf); err != nil {
			return nil, nil, err
		}
		k.mac = &KeyMAC{Len: uint32(len(buf))}
		copy(k.mac.Bytes[:], buf)

	default:
		return nil, nil, ErrNotSupported
	}

	p, err := newProxy(c.mode, attribs, k, false, false)
	if err != nil {
		return nil, nil, err
	}
	return p, k, nil
}

func (k *Key) zeroMACBuf() []byte { return (&KeyMAC{}).Bytes[:] }

// MakePublic derives the public half of a private key, with its own
// attributes (spec.md §4.3.2 "makePublic(prv, attribs)").
func (c *CryptoContext) MakePublic(prvProxy *Proxy, prv *Key, attribs Attributes) (*Proxy, *Key, error) {
	if prv == nil {
		return nil, nil, ErrInvalidParameter
	}
	pub := &Key{attribs: attribs}
	switch prv.typ {
	case KeyTypeRSAPrv:
		if prv.rsaPrv == nil {
			return nil, nil, ErrInvalidParameter
		}
		pub.typ = KeyTypeRSAPub
		pub.rsaPub = &KeyRSAPub{ELen: prv.rsaPrv.ELen}
		copy(pub.rsaPub.EBytes[:], prv.rsaPrv.EBytes[:prv.rsaPrv.ELen])
		n, err := rsaModulusFromFactors(prv.rsaPrv)
		if err != nil {
			return nil, nil, err
		}
		copy(pub.rsaPub.NBytes[:], n)
		pub.rsaPub.NLen = uint32(len(n))
	case KeyTypeDHPrv:
		if prv.dhPrv == nil {
			return nil, nil, ErrInvalidParameter
		}
		pub.typ = KeyTypeDHPub
		gx, err := dhPublicValue(prv.dhPrv)
		if err != nil {
			return nil, nil, err
		}
		pub.dhPub = &KeyDHPub{
			PLen: prv.dhPrv.PLen, GLen: prv.dhPrv.GLen,
		}
		copy(pub.dhPub.PBytes[:], prv.dhPrv.PBytes[:prv.dhPrv.PLen])
		copy(pub.dhPub.GBytes[:], prv.dhPrv.GBytes[:prv.dhPrv.GLen])
		copy(pub.dhPub.GxBytes[:], gx)
		pub.dhPub.GxLen = uint32(len(gx))
	case KeyTypeSECP256R1Prv:
		if prv.eccPrv == nil {
			return nil, nil, ErrInvalidParameter
		}
		pub.typ = KeyTypeSECP256R1Pub
		cp := prv.eccPrv.Pub
		pub.eccPub = &cp
	default:
		return nil, nil, ErrNotSupported
	}
	p, err := deriveProxy(prvProxy, pub)
	if err != nil {
		return nil, nil, err
	}
	return p, pub, nil
}

// Export produces a plain copy of a key's data, succeeding only if the
// object's data is reachable by the caller: always true for a library-local
// proxy, or for a remote proxy whose Exportable attribute permits it.
func Export(p *Proxy, k *Key) (*Key, error) {
	if p == nil || k == nil {
		return nil, ErrInvalidParameter
	}
	if p.backend == BackendRpcClient && !p.attribs.Exportable {
		return nil, ErrOperationDenied
	}
	cp := *k
	return &cp, nil
}

// GetParams returns shared public parameters (DH prime+base, ECC curve)
// regardless of exportability — these are not secret.
func (k *Key) GetParams() (KeyParams, error) {
	switch k.typ {
	case KeyTypeDHPub:
		if k.dhPub == nil {
			return KeyParams{}, ErrInvalidState
		}
		return KeyParams{
			DHPrime: append([]byte(nil), k.dhPub.PBytes[:k.dhPub.PLen]...),
			DHBase:  append([]byte(nil), k.dhPub.GBytes[:k.dhPub.GLen]...),
		}, nil
	case KeyTypeDHPrv:
		if k.dhPrv == nil {
			return KeyParams{}, ErrInvalidState
		}
		return KeyParams{
			DHPrime: append([]byte(nil), k.dhPrv.PBytes[:k.dhPrv.PLen]...),
			DHBase:  append([]byte(nil), k.dhPrv.GBytes[:k.dhPrv.GLen]...),
		}, nil
	case KeyTypeSECP256R1Pub, KeyTypeSECP256R1Prv:
		return KeyParams{Curve: elliptic.P256()}, nil
	default:
		return KeyParams{}, ErrNotSupported
	}
}

// ImportKey validates internal consistency of caller-provided key data and
// wraps it into a proxy, same attribute rules as GenerateKey.
func (c *CryptoContext) ImportKey(k *Key, attribs Attributes) (*Proxy, *Key, error) {
	switch k.typ {
	case KeyTypeAES:
		if k.aes == nil || !validAESBits(int(k.aes.Len)*8) {
			return nil, nil, ErrInvalidParameter
		}
	case KeyTypeRSAPub:
		if k.rsaPub == nil || k.rsaPub.NLen == 0 || k.rsaPub.NLen > KeySizeRSAMax || k.rsaPub.ELen == 0 {
			return nil, nil, ErrInvalidParameter
		}
	case KeyTypeRSAPrv:
		if k.rsaPrv == nil || k.rsaPrv.PLen == 0 || k.rsaPrv.QLen == 0 ||
			k.rsaPrv.PLen > KeySizeRSAMax/2 || k.rsaPrv.QLen > KeySizeRSAMax/2 {
			return nil, nil, ErrInvalidParameter
		}
	case KeyTypeDHPub:
		if k.dhPub == nil || k.dhPub.PLen == 0 || k.dhPub.PLen > KeySizeDHMax {
			return nil, nil, ErrInvalidParameter
		}
	case KeyTypeDHPrv:
		if k.dhPrv == nil || k.dhPrv.PLen == 0 || k.dhPrv.PLen > KeySizeDHMax {
			return nil, nil, ErrInvalidParameter
		}
	case KeyTypeSECP256R1Pub:
		if k.eccPub == nil || k.eccPub.XLen != KeySizeECC || k.eccPub.YLen != KeySizeECC {
			return nil, nil, ErrInvalidParameter
		}
	case KeyTypeSECP256R1Prv:
		if k.eccPrv == nil || k.eccPrv.DLen != KeySizeECC {
			return nil, nil, ErrInvalidParameter
		}
	case KeyTypeMAC:
		if k.mac == nil || k.mac.Len == 0 || int(k.mac.Len) > len(k.mac.Bytes) {
			return nil, nil, ErrInvalidParameter
		}
	default:
		return nil, nil, ErrInvalidParameter
	}
	k.attribs = attribs
	p, err := newProxy(c.mode, attribs, k, false, false)
	if err != nil {
		return nil, nil, err
	}
	return p, k, nil
}

// LoadParams loads a named, shared parameter set (e.g. a well-known DH
// group). Only the SECP256R1 curve and a single built-in 2048-bit MODP-like
// DH group are provided; any other name is NOT_SUPPORTED.
func LoadParams(name string) (KeyParams, error) {
	switch name {
	case "secp256r1":
		return KeyParams{Curve: elliptic.P256()}, nil
	case "dh2048":
		return KeyParams{DHPrime: dh2048Prime(), DHBase: []byte{2}}, nil
	default:
		return KeyParams{}, ErrNotSupported
	}
}

func randFallback(buf []byte) (int, error) { return rand.Read(buf) }
