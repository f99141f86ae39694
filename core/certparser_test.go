package core

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func selfSignedCA(t *testing.T, cn string) (*x509.Certificate, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Unix(0, 0),
		NotAfter:              time.Unix(0, 0).Add(100 * 365 * 24 * time.Hour),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert, key
}

func leafSignedBy(t *testing.T, ca *x509.Certificate, caKey *ecdsa.PrivateKey, cn string) *x509.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: cn},
		Issuer:       ca.Subject,
		NotBefore:    time.Unix(0, 0),
		NotAfter:     time.Unix(0, 0).Add(100 * 365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, ca, &key.PublicKey, caKey)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

func TestCertParserVerifyChainSuccess(t *testing.T) {
	ca, caKey := selfSignedCA(t, "Trust Anchor")
	leaf := leafSignedBy(t, ca, caKey, "node.trentos")

	ctx, err := NewCryptoContext(CryptoConfig{})
	require.NoError(t, err)
	parser, err := NewCertParser(ctx)
	require.NoError(t, err)
	caParserCert := &CertParserCert{encoding: CertEncodingDER, cert: ca}
	trusted, err := NewCertParserChain([]*CertParserCert{caParserCert})
	require.NoError(t, err)
	require.NoError(t, parser.AddTrustedChain(trusted))

	leafParserCert := &CertParserCert{encoding: CertEncodingDER, cert: leaf}
	chain, err := NewCertParserChain([]*CertParserCert{leafParserCert})
	require.NoError(t, err)

	flags, err := parser.VerifyChain(chain, "node.trentos")
	require.NoError(t, err)
	require.Equal(t, VerifyFlagsNone, flags)
}

func TestCertParserVerifyChainCNMismatch(t *testing.T) {
	ca, caKey := selfSignedCA(t, "Trust Anchor")
	leaf := leafSignedBy(t, ca, caKey, "node.trentos")

	ctx, err := NewCryptoContext(CryptoConfig{})
	require.NoError(t, err)
	parser, err := NewCertParser(ctx)
	require.NoError(t, err)
	caParserCert := &CertParserCert{encoding: CertEncodingDER, cert: ca}
	trusted, err := NewCertParserChain([]*CertParserCert{caParserCert})
	require.NoError(t, err)
	require.NoError(t, parser.AddTrustedChain(trusted))

	leafParserCert := &CertParserCert{encoding: CertEncodingDER, cert: leaf}
	chain, err := NewCertParserChain([]*CertParserCert{leafParserCert})
	require.NoError(t, err)

	flags, err := parser.VerifyChain(chain, "someone-else.trentos")
	require.Equal(t, ErrGeneric, err)
	require.NotZero(t, flags&VerifyFlagCNMismatch)
}

func TestCertParserVerifyChainUntrustedIsInvalidKey(t *testing.T) {
	ca, caKey := selfSignedCA(t, "Trust Anchor")
	leaf := leafSignedBy(t, ca, caKey, "node.trentos")

	ctx, err := NewCryptoContext(CryptoConfig{})
	require.NoError(t, err)
	parser, err := NewCertParser(ctx)
	require.NoError(t, err)
	// no trusted chain registered

	leafParserCert := &CertParserCert{encoding: CertEncodingDER, cert: leaf}
	chain, err := NewCertParserChain([]*CertParserCert{leafParserCert})
	require.NoError(t, err)

	flags, err := parser.VerifyChain(chain, "")
	require.Equal(t, ErrGeneric, err)
	require.NotZero(t, flags&VerifyFlagInvalidKey)
}

func TestCertParserCertAttribTruncation(t *testing.T) {
	ca, _ := selfSignedCA(t, "Trust Anchor")
	pc := &CertParserCert{encoding: CertEncodingDER, cert: ca}
	subject, err := pc.Attrib(CertAttribSubject)
	require.NoError(t, err)
	require.LessOrEqual(t, len(subject.(string)), CertSubjectMaxLen)
}

func TestNewCertParserCertRequiresCryptoContext(t *testing.T) {
	ca, _ := selfSignedCA(t, "Trust Anchor")
	_, err := NewCertParserCert(nil, CertEncodingDER, ca.Raw)
	require.Equal(t, ErrInvalidParameter, err)
}

func TestNewCertParserCertAcceptsSupportedAlgorithm(t *testing.T) {
	ca, _ := selfSignedCA(t, "Trust Anchor")
	ctx, err := NewCryptoContext(CryptoConfig{})
	require.NoError(t, err)

	pc, err := NewCertParserCert(ctx, CertEncodingPEM, pem.EncodeToMemory(&pem.Block{
		Type: "CERTIFICATE", Bytes: ca.Raw,
	}))
	require.NoError(t, err)
	require.Equal(t, ca.Subject.String(), pc.cert.Subject.String())
}

func TestNewCertParserChainIssuerSubjectMismatchAborts(t *testing.T) {
	caA, _ := selfSignedCA(t, "Trust Anchor A")
	caB, _ := selfSignedCA(t, "Trust Anchor B")
	certA := &CertParserCert{encoding: CertEncodingDER, cert: caA}
	certB := &CertParserCert{encoding: CertEncodingDER, cert: caB}

	_, err := NewCertParserChain([]*CertParserCert{certA, certB})
	require.Equal(t, ErrAborted, err)
}
