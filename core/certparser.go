package core

import (
	"crypto/x509"
	"encoding/pem"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CertEncoding names the wire encoding a certificate was parsed from.
type CertEncoding int

const (
	CertEncodingNone CertEncoding = iota
	CertEncodingDER
	CertEncodingPEM
)

// CertAttribType selects which attribute CertParserCert.Attrib returns.
type CertAttribType int

const (
	CertAttribNone CertAttribType = iota
	CertAttribPublicKey
	CertAttribSubject
	CertAttribIssuer
)

const (
	CertSubjectMaxLen = 256
	CertIssuerMaxLen  = 256
)

// VerifyFlags is a bitmask of chain-verification failures, returned
// alongside a GENERIC error so the caller can inspect exactly what
// failed rather than learning only that verification failed.
type VerifyFlags uint32

const (
	VerifyFlagsNone        VerifyFlags = 0
	VerifyFlagInvalidKey   VerifyFlags = 1 << 0
	VerifyFlagInvalidSig   VerifyFlags = 1 << 1
	VerifyFlagCNMismatch   VerifyFlags = 1 << 2
	VerifyFlagExtMismatch  VerifyFlags = 1 << 3
	VerifyFlagOtherError   VerifyFlags = 1 << 4
)

// CertParserCert wraps a single parsed x509 certificate.
type CertParserCert struct {
	encoding CertEncoding
	cert     *x509.Certificate
}

// digestForSignatureAlgorithm maps an x509 signature algorithm to the
// digest it hashes with, for the Crypto-context support check below.
func digestForSignatureAlgorithm(sa x509.SignatureAlgorithm) (DigestAlg, bool) {
	switch sa {
	case x509.MD5WithRSA:
		return DigestMD5, true
	case x509.SHA256WithRSA, x509.SHA256WithRSAPSS, x509.ECDSAWithSHA256:
		return DigestSHA256, true
	default:
		return DigestNone, false
	}
}

// certPublicKeyAlgorithmSupported reports whether ctx's Crypto Core can
// operate on keys of the given public-key algorithm (RSA and the
// SECP256R1 ECDSA curve, per key.go's KeyType set).
func certPublicKeyAlgorithmSupported(pa x509.PublicKeyAlgorithm) bool {
	switch pa {
	case x509.RSA, x509.ECDSA:
		return true
	default:
		return false
	}
}

// checkAlgorithmsSupported rejects a certificate whose signature digest or
// public-key algorithm the bound Crypto context cannot verify (spec.md
// §4.5: "rejects certs whose hash or public-key algorithm is not
// supported by the bound Crypto context").
func checkAlgorithmsSupported(cert *x509.Certificate) error {
	if !certPublicKeyAlgorithmSupported(cert.PublicKeyAlgorithm) {
		return ErrNotSupported
	}
	alg, ok := digestForSignatureAlgorithm(cert.SignatureAlgorithm)
	if !ok {
		return ErrNotSupported
	}
	if _, err := newHash(alg); err != nil {
		return ErrNotSupported
	}
	return nil
}

// NewCertParserCert parses data (DER or PEM) into a certificate handle,
// bound to ctx for algorithm-support checking (spec.md §4.5).
func NewCertParserCert(ctx *CryptoContext, encoding CertEncoding, data []byte) (*CertParserCert, error) {
	if ctx == nil {
		return nil, ErrInvalidParameter
	}
	var cert *x509.Certificate
	switch encoding {
	case CertEncodingPEM:
		block, _ := pem.Decode(data)
		if block == nil {
			return nil, ErrInvalidParameter
		}
		c, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, ErrAborted
		}
		cert = c
	case CertEncodingDER:
		c, err := x509.ParseCertificate(data)
		if err != nil {
			return nil, ErrAborted
		}
		cert = c
	default:
		return nil, ErrInvalidParameter
	}
	if err := checkAlgorithmsSupported(cert); err != nil {
		return nil, err
	}
	return &CertParserCert{encoding: encoding, cert: cert}, nil
}

// Attrib returns a requested attribute of the certificate. Subject and
// issuer strings are truncated to their fixed-capacity bounds, matching
// the fixed char[] fields of the original API.
func (c *CertParserCert) Attrib(typ CertAttribType) (any, error) {
	switch typ {
	case CertAttribPublicKey:
		return c.cert.PublicKey, nil
	case CertAttribSubject:
		return truncate(c.cert.Subject.String(), CertSubjectMaxLen), nil
	case CertAttribIssuer:
		return truncate(c.cert.Issuer.String(), CertIssuerMaxLen), nil
	default:
		return nil, ErrInvalidParameter
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// CertParserChain is an ordered sequence of certificates, leaf first.
type CertParserChain struct {
	certs []*CertParserCert
}

// NewCertParserChain builds a chain and validates issuer/subject linkage
// between consecutive certificates (addCert in the original API performs
// this check incrementally; here it is done once over the full chain).
func NewCertParserChain(certs []*CertParserCert) (*CertParserChain, error) {
	if len(certs) == 0 {
		return nil, ErrInvalidParameter
	}
	for i := 0; i+1 < len(certs); i++ {
		if certs[i].cert.Issuer.String() != certs[i+1].cert.Subject.String() {
			return nil, ErrAborted
		}
	}
	return &CertParserChain{certs: certs}, nil
}

// CertParser holds a set of trusted chains used as verification anchors,
// bound to the Crypto context it verifies digests and signatures through.
type CertParser struct {
	ctx     *CryptoContext
	trusted []*CertParserChain
	cache   *lru.Cache[string, VerifyFlags]
}

// NewCertParser constructs an empty parser context bound to ctx (spec.md
// §4.5: "initialization requires a Crypto context").
func NewCertParser(ctx *CryptoContext) (*CertParser, error) {
	if ctx == nil {
		return nil, ErrInvalidParameter
	}
	c, err := lru.New[string, VerifyFlags](128)
	if err != nil {
		return nil, ErrGeneric
	}
	return &CertParser{ctx: ctx, cache: c}, nil
}

// AddTrustedChain registers chain as a verification anchor.
func (p *CertParser) AddTrustedChain(chain *CertParserChain) error {
	if chain == nil {
		return ErrInvalidParameter
	}
	p.trusted = append(p.trusted, chain)
	return nil
}

// VerifyChain checks chain's leaf certificate against the trusted roots,
// optionally requiring the leaf's CN to equal expectedCN. It returns a
// GENERIC error alongside a VerifyFlags bitmask describing every
// failure observed, not just the first.
func (p *CertParser) VerifyChain(chain *CertParserChain, expectedCN string) (VerifyFlags, error) {
	if chain == nil || len(chain.certs) == 0 {
		return VerifyFlagOtherError, ErrInvalidParameter
	}
	leaf := chain.certs[0].cert

	key := leaf.Subject.String() + "|" + expectedCN
	if v, ok := p.cache.Get(key); ok && v == VerifyFlagsNone {
		return VerifyFlagsNone, nil
	}

	var flags VerifyFlags
	roots := x509.NewCertPool()
	inters := x509.NewCertPool()
	for _, tc := range p.trusted {
		for i, c := range tc.certs {
			if i == len(tc.certs)-1 {
				roots.AddCert(c.cert)
			} else {
				inters.AddCert(c.cert)
			}
		}
	}
	for i := 1; i < len(chain.certs); i++ {
		inters.AddCert(chain.certs[i].cert)
	}

	if expectedCN != "" && leaf.Subject.CommonName != expectedCN {
		flags |= VerifyFlagCNMismatch
	}

	opts := x509.VerifyOptions{Roots: roots, Intermediates: inters}
	if _, err := leaf.Verify(opts); err != nil {
		switch err.(type) {
		case x509.CertificateInvalidError:
			flags |= VerifyFlagInvalidSig
		case x509.UnknownAuthorityError:
			flags |= VerifyFlagInvalidKey
		default:
			flags |= VerifyFlagOtherError
		}
	}

	if flags != VerifyFlagsNone {
		p.cache.Add(key, flags)
		return flags, ErrGeneric
	}
	p.cache.Add(key, VerifyFlagsNone)
	return VerifyFlagsNone, nil
}
