package core

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func echoCallbacks() (TLSSendFunc, TLSRecvFunc) {
	send := func(ctx any, buf []byte) (int, error) { return len(buf), nil }
	recv := func(ctx any, buf []byte) (int, error) { return copy(buf, []byte("SERVER_FINISHED")), nil }
	return send, recv
}

func TestTLSSessionRejectsOversizedCACert(t *testing.T) {
	ctx, err := NewCryptoContext(CryptoConfig{})
	require.NoError(t, err)
	send, recv := echoCallbacks()

	_, err = NewTLSSession(TLSConfig{
		Send: send, Recv: recv, Crypto: ctx,
		CACertPEM: make([]byte, TLSMaxCACertSize+1),
	}, NewLocalDataport(4096))
	require.Equal(t, ErrInvalidParameter, err)
}

func TestTLSSessionHandshakeRequiresCACertUnlessNoVerify(t *testing.T) {
	ctx, err := NewCryptoContext(CryptoConfig{})
	require.NoError(t, err)
	send, recv := echoCallbacks()

	s, err := NewTLSSession(TLSConfig{Send: send, Recv: recv, Crypto: ctx}, NewLocalDataport(4096))
	require.NoError(t, err)
	require.Equal(t, ErrAborted, s.Handshake())
	require.Equal(t, TLSClosed, s.state)
}

func TestTLSSessionHandshakeEstablishesWithNoVerify(t *testing.T) {
	ctx, err := NewCryptoContext(CryptoConfig{})
	require.NoError(t, err)
	send, recv := echoCallbacks()

	s, err := NewTLSSession(TLSConfig{Send: send, Recv: recv, Crypto: ctx, NoVerify: true}, NewLocalDataport(4096))
	require.NoError(t, err)
	require.NoError(t, s.Handshake())
	require.Equal(t, TLSEstablished, s.state)

	n, err := s.Write([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 5, n)
}

func TestTLSSessionReadWriteBeforeHandshakeDenied(t *testing.T) {
	ctx, err := NewCryptoContext(CryptoConfig{})
	require.NoError(t, err)
	send, recv := echoCallbacks()

	s, err := NewTLSSession(TLSConfig{Send: send, Recv: recv, Crypto: ctx, NoVerify: true}, NewLocalDataport(4096))
	require.NoError(t, err)
	_, err = s.Write([]byte("x"))
	require.Equal(t, ErrOperationDenied, err)
}

func TestTLSSessionResetReturnsToConfigured(t *testing.T) {
	ctx, err := NewCryptoContext(CryptoConfig{})
	require.NoError(t, err)
	send, recv := echoCallbacks()

	s, err := NewTLSSession(TLSConfig{Send: send, Recv: recv, Crypto: ctx, NoVerify: true}, NewLocalDataport(4096))
	require.NoError(t, err)
	require.NoError(t, s.Handshake())
	require.NoError(t, s.Reset())
	require.Equal(t, TLSConfigured, s.state)
	require.NoError(t, s.Handshake())
	require.Equal(t, TLSEstablished, s.state)
}

func TestTLSSessionClosedRejectsReset(t *testing.T) {
	ctx, err := NewCryptoContext(CryptoConfig{})
	require.NoError(t, err)
	send, recv := echoCallbacks()

	s, err := NewTLSSession(TLSConfig{Send: send, Recv: recv, Crypto: ctx, NoVerify: true}, NewLocalDataport(4096))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.Equal(t, ErrOperationDenied, s.Reset())
}

func echoingTLSTestServer(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				buf := make([]byte, 64)
				for {
					n, err := c.Read(buf)
					if err != nil {
						return
					}
					if _, err := c.Write([]byte("SERVER_FINISHED")); err != nil {
						return
					}
					_ = n
				}
			}(c)
		}
	}()
	return ln
}

func TestNewRemoteTLSSessionAcquiresAndReleasesPooledDataport(t *testing.T) {
	ln := echoingTLSTestServer(t)
	defer ln.Close()

	cryptoCtx, err := NewCryptoContext(CryptoConfig{})
	require.NoError(t, err)

	pool := NewRemoteDataportPool(NewTCPDataportDialer(), 2, time.Second)
	defer pool.Close()

	dialCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	s, err := NewRemoteTLSSession(pool, dialCtx, ln.Addr().String(), DefaultDataportSize, TLSConfig{
		Crypto: cryptoCtx, NoVerify: true,
	})
	require.NoError(t, err)
	require.NoError(t, s.Handshake())
	require.Equal(t, TLSEstablished, s.state)
	require.NoError(t, s.Close())

	require.Equal(t, 1, pool.Stats(), "Close must return the session's dataport to the pool")

	s2, err := NewRemoteTLSSession(pool, dialCtx, ln.Addr().String(), DefaultDataportSize, TLSConfig{
		Crypto: cryptoCtx, NoVerify: true,
	})
	require.NoError(t, err)
	dp1, ok := s.dp.(*NetDataport)
	require.True(t, ok)
	dp2, ok := s2.dp.(*NetDataport)
	require.True(t, ok)
	pc1, ok := dp1.conn.(*pooledDataportConn)
	require.True(t, ok)
	pc2, ok := dp2.conn.(*pooledDataportConn)
	require.True(t, ok)
	require.Same(t, pc1.Conn, pc2.Conn, "second acquire must reuse the connection released by Close")
}

func TestNewRemoteTLSSessionRequiresPool(t *testing.T) {
	cryptoCtx, err := NewCryptoContext(CryptoConfig{})
	require.NoError(t, err)
	_, err = NewRemoteTLSSession(nil, context.Background(), "127.0.0.1:0", DefaultDataportSize, TLSConfig{Crypto: cryptoCtx})
	require.Equal(t, ErrInvalidParameter, err)
}
