package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStackAcceptRaisesConnAcptStickyOnParent(t *testing.T) {
	s := NewStack(8)
	s.Run()

	listener, err := s.Create(SocketDomainIPv4, SocketTypeStream)
	require.NoError(t, err)
	require.NoError(t, s.Bind(listener, "127.0.0.1:0"))
	require.NoError(t, s.Listen(listener))

	listenerEntry, err := s.entry(listener)
	require.NoError(t, err)
	addr := listenerEntry.listener.Addr().String()

	done := make(chan error, 1)
	go func() {
		_, aerr := s.Accept(listener)
		done <- aerr
	}()

	client, err := s.Create(SocketDomainIPv4, SocketTypeStream)
	require.NoError(t, err)
	require.NoError(t, s.Connect(client, addr))
	require.NoError(t, <-done)

	events, err := s.GetPendingEvents(8)
	require.NoError(t, err)

	var sawAcptOnParent, sawEstOnClient bool
	for _, ev := range events {
		if ev.Socket == listener && ev.Mask&EventConnAcpt != 0 {
			sawAcptOnParent = true
		}
		if ev.Socket == client && ev.Mask&EventConnEst != 0 {
			sawEstOnClient = true
		}
	}
	require.True(t, sawAcptOnParent)
	require.True(t, sawEstOnClient)

	// draining clears the bits: a second call reports nothing pending.
	again, err := s.GetPendingEvents(8)
	require.NoError(t, err)
	require.Empty(t, again)
}

func TestStackGetPendingEventsBufferTooSmall(t *testing.T) {
	s := NewStack(8)
	s.Run()

	h, err := s.Create(SocketDomainIPv4, SocketTypeStream)
	require.NoError(t, err)
	e, err := s.entry(h)
	require.NoError(t, err)
	e.pending = EventError

	_, err = s.GetPendingEvents(0)
	require.Equal(t, ErrBufferTooSmall, err)
}

func TestStackCreateBoundedByCapacity(t *testing.T) {
	s := NewStack(1)
	s.Run()

	_, err := s.Create(SocketDomainIPv4, SocketTypeStream)
	require.NoError(t, err)

	_, err = s.Create(SocketDomainIPv4, SocketTypeStream)
	require.Equal(t, ErrInsufficientSpace, err)
}

func TestStackPollTryAgainWhenIdle(t *testing.T) {
	s := NewStack(4)
	s.Run()
	require.Equal(t, ErrTryAgain, s.Poll())
}
