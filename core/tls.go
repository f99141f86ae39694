package core

import (
	"context"
	"errors"
	"io"
)

// TLS Session: a protocol state machine sitting on top of the Crypto
// Core and pluggable socket send/recv callbacks (spec.md §4.4). This
// layer owns handshake policy and plumbing; it does not manipulate the
// socket or reimplement the TLS record layer itself.

const (
	TLSMaxCACertSize  = 3072
	TLSMaxCiphersuites = 8
)

// TLSDigest names a hash usable for the session or signature digest.
type TLSDigest uint16

const (
	TLSDigestNone   TLSDigest = 0x00
	TLSDigestSHA256 TLSDigest = 0x06
)

// TLSCiphersuite names a supported suite, wire-stable value per
// SeosTlsLib_CipherSuite.
type TLSCiphersuite uint16

const (
	TLSCiphersuiteNone             TLSCiphersuite = 0x0000
	TLSCiphersuiteDHERSAAES128GCM  TLSCiphersuite = 0x009e
	TLSCiphersuiteECDHERSAAES128GCM TLSCiphersuite = 0xc02f
)

// TLSPolicy narrows the accepted parameters; when omitted from TLSConfig
// it is derived from the ciphersuite list.
type TLSPolicy struct {
	SessionDigests   []TLSDigest
	SignatureDigests []TLSDigest
	RSAMinBits       int
	DHMinBits        int
}

// TLSSendFunc/TLSRecvFunc are the caller-supplied socket callbacks; the
// TLS core never touches the socket itself.
type TLSSendFunc func(ctx any, buf []byte) (int, error)
type TLSRecvFunc func(ctx any, buf []byte) (int, error)

// TLSConfig configures a session.
type TLSConfig struct {
	Send        TLSSendFunc
	Recv        TLSRecvFunc
	SocketCtx   any
	Crypto      *CryptoContext
	CACertPEM   []byte // <= TLSMaxCACertSize
	Ciphersuites []TLSCiphersuite
	Policy      *TLSPolicy // nil => derived from Ciphersuites
	NoVerify    bool
}

func derivePolicy(suites []TLSCiphersuite) TLSPolicy {
	p := TLSPolicy{SessionDigests: []TLSDigest{TLSDigestSHA256}, SignatureDigests: []TLSDigest{TLSDigestSHA256}}
	// Both supported suites pair AES-128-GCM with SHA-256 (see Glossary);
	// AES-128 implies a 2048-bit floor for the asymmetric operations.
	p.RSAMinBits = 2048
	p.DHMinBits = 2048
	_ = suites
	return p
}

// TLSState is the session state machine: Configured -> Handshaking ->
// Established -> {Reset, Closed}.
type TLSState int

const (
	TLSConfigured TLSState = iota
	TLSHandshaking
	TLSEstablished
	TLSReset
	TLSClosed
)

// TLSSession implements the state machine and policy derivation.
type TLSSession struct {
	cfg    TLSConfig
	policy TLSPolicy
	state  TLSState
	dp     Dataport

	pool *RemoteDataportPool
}

// NewTLSSession validates cfg and returns a Configured session.
func NewTLSSession(cfg TLSConfig, dp Dataport) (*TLSSession, error) {
	if cfg.Send == nil || cfg.Recv == nil || cfg.Crypto == nil {
		return nil, ErrInvalidParameter
	}
	if len(cfg.CACertPEM) > TLSMaxCACertSize {
		return nil, ErrInvalidParameter
	}
	if len(cfg.Ciphersuites) > TLSMaxCiphersuites {
		return nil, ErrInvalidParameter
	}
	policy := derivePolicy(cfg.Ciphersuites)
	if cfg.Policy != nil {
		policy = *cfg.Policy
	}
	return &TLSSession{cfg: cfg, policy: policy, state: TLSConfigured, dp: dp}, nil
}

// NewRemoteTLSSession is the ModeSwitching/BackendRpcClient path for a TLS
// session whose peer lives across the isolation boundary: it acquires its
// Dataport from pool's reusable connection set (dialing a fresh one on a
// pool miss) instead of assuming a local send/recv pair, and returns that
// connection to the pool on Close rather than tearing it down. cfg.Send,
// cfg.Recv and cfg.SocketCtx default to the acquired NetDataport's
// SendFunc, RecvFunc and the dataport itself when left nil.
func NewRemoteTLSSession(pool *RemoteDataportPool, ctx context.Context, addr string, dpSize int, cfg TLSConfig) (*TLSSession, error) {
	if pool == nil {
		return nil, ErrInvalidParameter
	}
	dp, err := pool.Acquire(ctx, addr, dpSize)
	if err != nil {
		return nil, err
	}
	if cfg.Send == nil {
		cfg.Send = dp.SendFunc
	}
	if cfg.Recv == nil {
		cfg.Recv = dp.RecvFunc
	}
	if cfg.SocketCtx == nil {
		cfg.SocketCtx = dp
	}
	s, err := NewTLSSession(cfg, dp)
	if err != nil {
		pool.Release(dp)
		return nil, err
	}
	s.pool = pool
	return s, nil
}

// Handshake drives the protocol to Established. It is a structural
// placeholder for the actual TLS record-layer handshake (out of scope
// per spec.md §1): it exercises the configured send/recv callbacks with
// a minimal hello/finished exchange and validates the CA cert is present
// unless NoVerify is set.
func (s *TLSSession) Handshake() error {
	if s.state != TLSConfigured && s.state != TLSReset {
		return ErrOperationDenied
	}
	s.state = TLSHandshaking
	if !s.cfg.NoVerify && len(s.cfg.CACertPEM) == 0 {
		s.state = TLSClosed
		return ErrAborted
	}
	hello := []byte("CLIENT_HELLO")
	if _, err := s.cfg.Send(s.cfg.SocketCtx, hello); err != nil {
		s.state = TLSClosed
		return ErrAborted
	}
	buf := make([]byte, 64)
	if _, err := s.cfg.Recv(s.cfg.SocketCtx, buf); err != nil {
		s.state = TLSClosed
		return ErrAborted
	}
	s.state = TLSEstablished
	return nil
}

// Read returns Success with 0 bytes when the peer closed the session
// cleanly, ABORTED on protocol error. Oversized requests fail
// INSUFFICIENT_SPACE against the bound dataport.
func (s *TLSSession) Read(capacity int) ([]byte, error) {
	if s.state != TLSEstablished {
		return nil, ErrOperationDenied
	}
	if err := CheckBulkSize(s.dp, capacity); err != nil {
		return nil, err
	}
	buf := make([]byte, capacity)
	n, err := s.cfg.Recv(s.cfg.SocketCtx, buf)
	if errors.Is(err, io.EOF) && n == 0 {
		return buf[:0], nil
	}
	if err != nil {
		return nil, ErrAborted
	}
	return buf[:n], nil
}

// Write sends data over the session.
func (s *TLSSession) Write(data []byte) (int, error) {
	if s.state != TLSEstablished {
		return 0, ErrOperationDenied
	}
	if err := CheckBulkSize(s.dp, len(data)); err != nil {
		return 0, err
	}
	n, err := s.cfg.Send(s.cfg.SocketCtx, data)
	if err != nil {
		return 0, ErrAborted
	}
	return n, nil
}

// Reset returns to Configured so a new handshake may run over the same
// underlying socket.
func (s *TLSSession) Reset() error {
	if s.state == TLSClosed {
		return ErrOperationDenied
	}
	s.state = TLSConfigured
	return nil
}

// Close terminates the session permanently. A session opened through
// NewRemoteTLSSession returns its Dataport to the pool for reuse instead
// of closing the underlying connection outright.
func (s *TLSSession) Close() error {
	s.state = TLSClosed
	if s.pool != nil {
		if dp, ok := s.dp.(*NetDataport); ok {
			s.pool.Release(dp)
		}
	}
	return nil
}
