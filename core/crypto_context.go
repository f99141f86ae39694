package core

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"math/big"

	log "github.com/sirupsen/logrus"
)

// EntropyReadFunc is the pull callback injected into a CryptoContext at
// construction time: read(ctx, buf, len) -> int, as spec.md §2 "Entropy
// Source". It returns the number of bytes written into buf, and an error
// on failure.
type EntropyReadFunc func(ctx context.Context, buf []byte, n int) (int, error)

// CryptoContext is the process-wide Crypto Core instance: RNG, key
// generation and the digest/MAC/cipher/signature/agreement state
// machines all hang off it. Constructed once, destroyed once.
type CryptoContext struct {
	mode    Mode
	entropy EntropyReadFunc
	drbg    *ctrDRBG
	log     *log.Logger
}

// CryptoConfig configures a new CryptoContext.
type CryptoConfig struct {
	Mode    Mode
	Entropy EntropyReadFunc // defaults to crypto/rand.Reader if nil
	Logger  *log.Logger
}

// NewCryptoContext constructs and seeds a CryptoContext. It never returns
// a partially-seeded context: ABORTED is returned if the entropy source
// fails on the initial seed.
func NewCryptoContext(cfg CryptoConfig) (*CryptoContext, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	entropy := cfg.Entropy
	if entropy == nil {
		entropy = func(_ context.Context, buf []byte, n int) (int, error) {
			return rand.Read(buf[:n])
		}
	}
	c := &CryptoContext{mode: cfg.Mode, entropy: entropy, log: logger}
	seed := make([]byte, 48)
	if _, err := entropy(context.Background(), seed, len(seed)); err != nil {
		return nil, ErrAborted
	}
	c.drbg = newCTRDRBG(seed)
	return c, nil
}

// Close zeroizes the DRBG's internal state. Destroying a CryptoContext
// twice is a caller error, same as any other Free in this module.
func (c *CryptoContext) Close() {
	if c.drbg != nil {
		c.drbg.zeroize()
	}
}

// randomBytes pulls prediction-resistant random bytes via the RNG object
// (§4.3.1): each call mixes in fresh entropy from the injected source
// before producing output.
func (c *CryptoContext) randomBytes(buf []byte) (int, error) {
	reseed := make([]byte, 32)
	if _, err := c.entropy(context.Background(), reseed, len(reseed)); err != nil {
		return 0, ErrAborted
	}
	c.drbg.reseed(reseed)
	return c.drbg.generate(buf)
}

// --- RNG object -------------------------------------------------------

// RngFlag controls GetBytes' prediction-resistance behavior.
type RngFlag uint32

const (
	RngFlagNone             RngFlag = 0
	RngFlagNoPredictionResistance RngFlag = 1 << 0
)

// Rng is the caller-facing handle to the Crypto Core's DRBG, proxied like
// every other stateful object in this package.
type Rng struct {
	ctx *CryptoContext
}

// NewRng creates an Rng proxy bound to ctx.
func (c *CryptoContext) NewRng(attribs Attributes) (*Proxy, *Rng, error) {
	r := &Rng{ctx: c}
	p, err := newProxy(c.mode, attribs, r, false, false)
	if err != nil {
		return nil, nil, err
	}
	return p, r, nil
}

// GetBytes requests len random bytes. flags may disable prediction
// resistance. Fails INSUFFICIENT_SPACE if len exceeds dp's capacity,
// NOT_SUPPORTED for unknown flags, ABORTED on entropy-source failure.
func (r *Rng) GetBytes(dp Dataport, flags RngFlag, n int) ([]byte, error) {
	if flags&^RngFlagNoPredictionResistance != 0 {
		return nil, ErrNotSupported
	}
	if err := CheckBulkSize(dp, n); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if flags&RngFlagNoPredictionResistance != 0 {
		if _, err := r.ctx.drbg.generate(buf); err != nil {
			return nil, ErrAborted
		}
		return buf, nil
	}
	if _, err := r.ctx.randomBytes(buf); err != nil {
		return nil, ErrAborted
	}
	return buf, nil
}

// Reseed mixes additional material into the DRBG state.
func (r *Rng) Reseed(seed []byte) error {
	if len(seed) == 0 {
		return ErrInvalidParameter
	}
	r.ctx.drbg.reseed(seed)
	return nil
}

// --- RSA / DH / ECC generation helpers used by key.go ------------------

func generateRSA(bits int, c *CryptoContext) (*KeyRSAPrv, error) {
	prv, err := rsa.GenerateKey(rngAdapter{c}, bits)
	if err != nil {
		return nil, ErrAborted
	}
	if len(prv.Primes) != 2 {
		return nil, ErrNotSupported
	}
	out := &KeyRSAPrv{}
	d := prv.D.Bytes()
	e := big.NewInt(int64(prv.E)).Bytes()
	p := prv.Primes[0].Bytes()
	q := prv.Primes[1].Bytes()
	if len(d) > KeySizeRSAMax || len(p) > KeySizeRSAMax/2 || len(q) > KeySizeRSAMax/2 {
		return nil, ErrInsufficientSpace
	}
	copy(out.DBytes[:], d)
	out.DLen = uint32(len(d))
	copy(out.EBytes[:], e)
	out.ELen = uint32(len(e))
	copy(out.PBytes[:], p)
	out.PLen = uint32(len(p))
	copy(out.QBytes[:], q)
	out.QLen = uint32(len(q))
	return out, nil
}

func rsaModulusFromFactors(prv *KeyRSAPrv) ([]byte, error) {
	p := new(big.Int).SetBytes(prv.PBytes[:prv.PLen])
	q := new(big.Int).SetBytes(prv.QBytes[:prv.QLen])
	n := new(big.Int).Mul(p, q)
	return n.Bytes(), nil
}

func generateDH(bits int, params KeyParams, c *CryptoContext) (*KeyDHPrv, error) {
	p := new(big.Int).SetBytes(params.DHPrime)
	g := new(big.Int).SetBytes(params.DHBase)
	if p.Sign() == 0 {
		p = new(big.Int).SetBytes(dh2048Prime())
		g = big.NewInt(2)
	}
	xBuf := make([]byte, bits/8)
	if _, err := c.randomBytes(xBuf); err != nil {
		return nil, ErrAborted
	}
	x := new(big.Int).SetBytes(xBuf)
	x.Mod(x, p)
	pb, gb, xb := p.Bytes(), g.Bytes(), x.Bytes()
	if len(pb) > KeySizeDHMax || len(gb) > KeySizeDHMax || len(xb) > KeySizeDHMax {
		return nil, ErrInsufficientSpace
	}
	out := &KeyDHPrv{}
	copy(out.PBytes[:], pb)
	out.PLen = uint32(len(pb))
	copy(out.GBytes[:], gb)
	out.GLen = uint32(len(gb))
	copy(out.XBytes[:], xb)
	out.XLen = uint32(len(xb))
	return out, nil
}

func dhPublicValue(prv *KeyDHPrv) ([]byte, error) {
	p := new(big.Int).SetBytes(prv.PBytes[:prv.PLen])
	g := new(big.Int).SetBytes(prv.GBytes[:prv.GLen])
	x := new(big.Int).SetBytes(prv.XBytes[:prv.XLen])
	gx := new(big.Int).Exp(g, x, p)
	return padLeft(gx.Bytes(), len(prv.PBytes[:prv.PLen])), nil
}

func generateECC() (*KeyECCPrv, error) {
	prv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, ErrAborted
	}
	out := &KeyECCPrv{}
	d := prv.D.Bytes()
	if len(d) > KeySizeECC {
		return nil, ErrInsufficientSpace
	}
	copy(out.DBytes[len(out.DBytes)-len(d):], d)
	out.DLen = KeySizeECC
	x, y := prv.X.Bytes(), prv.Y.Bytes()
	copy(out.Pub.XBytes[len(out.Pub.XBytes)-len(x):], x)
	out.Pub.XLen = KeySizeECC
	copy(out.Pub.YBytes[len(out.Pub.YBytes)-len(y):], y)
	out.Pub.YLen = KeySizeECC
	return out, nil
}

func padLeft(b []byte, n int) []byte {
	if len(b) >= n {
		return b
	}
	out := make([]byte, n)
	copy(out[n-len(b):], b)
	return out
}

// dh2048Prime returns the fixed 2048-bit safe prime used when a caller
// asks to generate/loadParams DH material without supplying its own
// group: the 2048-bit MODP group prime of RFC 3526 (group 14).
func dh2048Prime() []byte {
	p, ok := new(big.Int).SetString(
		"FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD1"+
			"29024E088A67CC74020BBEA63B139B22514A08798E3404DD"+
			"EF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245"+
			"E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7ED"+
			"EE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3D"+
			"C2007CB8A163BF0598DA48361C55D39A69163FA8FD24CF5F"+
			"83655D23DCA3AD961C62F356208552BB9ED529077096966D"+
			"670C354E4ABC9804F1746C08CA18217C32905E462E36CE3B"+
			"E39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9"+
			"DE2BCBF6955817183995497CEA956AE515D2261898FA0510"+
			"15728E5A8AACAA68FFFFFFFFFFFFFFFF", 16)
	if !ok {
		panic("unreachable: malformed built-in DH prime literal")
	}
	return p.Bytes()
}

// rngAdapter satisfies io.Reader for stdlib crypto.rand-shaped APIs,
// routing reads through the CryptoContext's seeded DRBG.
type rngAdapter struct{ c *CryptoContext }

func (a rngAdapter) Read(p []byte) (int, error) {
	n, err := a.c.randomBytes(p)
	if err != nil {
		return n, errors.New("rng: entropy source failed")
	}
	return n, nil
}
