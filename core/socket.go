package core

import (
	"net"
	"sync"
)

// SocketDomain/SocketType mirror the BSD socket() arguments accepted by
// the stack (spec.md §4.6).
type SocketDomain int

const (
	SocketDomainIPv4 SocketDomain = iota
	SocketDomainIPv6
)

type SocketType int

const (
	SocketTypeStream SocketType = iota
	SocketTypeDatagram
)

// SocketConnState is the per-socket connection state.
type SocketConnState int

const (
	SocketUnbound SocketConnState = iota
	SocketBound
	SocketListening
	SocketConnected
	SocketShutdownLocal
	SocketShutdownRemote
	SocketClosed
)

// Socket event bits, sticky until cleared by getPendingEvents.
type SocketEvent uint32

const (
	EventConnEst  SocketEvent = 1 << 0
	EventConnAcpt SocketEvent = 1 << 1
	EventRead     SocketEvent = 1 << 2
	EventWrite    SocketEvent = 1 << 3
	EventFin      SocketEvent = 1 << 4
	EventClose    SocketEvent = 1 << 5
	EventError    SocketEvent = 1 << 6
)

// SocketHandle identifies an entry in a Stack's socket table.
type SocketHandle uint32

// PendingEvent is one record returned by getPendingEvents.
type PendingEvent struct {
	Socket       SocketHandle
	ParentSocket SocketHandle
	Mask         SocketEvent
	LastError    ErrorCode
}

type socketEntry struct {
	domain SocketDomain
	typ    SocketType
	state  SocketConnState
	local  string
	peer   string
	parent SocketHandle

	pending   SocketEvent
	lastError ErrorCode

	conn     net.Conn
	listener net.Listener
}

// StackState is the network stack's single enum. Create, Bind and Listen
// check it before their own state machine runs; Accept, Connect, Read,
// Write, Close, GetPendingEvents and Poll do not consult it.
type StackState int

const (
	StackUninitialized StackState = iota
	StackInitialized
	StackRunning
	StackFatalError
)

// Stack is a bounded socket-handle table with level-triggered, sticky
// event notification, grounded on the teacher's mutex-guarded
// connection pool (core/connection_pool.go) generalized from an
// address-keyed slice pool into a capacity-bounded core/handle.go
// HandleTable. Socket entries carry no Proxy: sockets never route
// through the Handle/Proxy Dispatch Core's local/remote backend split.
type Stack struct {
	mu       sync.Mutex
	state    StackState
	sockets  *HandleTable[*socketEntry]
	capacity int

	waiters []chan struct{}
}

// NewStack constructs a socket table bounded to capacity entries.
func NewStack(capacity int) *Stack {
	return &Stack{
		state:    StackInitialized,
		sockets:  NewHandleTable[*socketEntry](),
		capacity: capacity,
	}
}

// Run transitions the stack to Running, after which sockets may be used.
func (s *Stack) Run() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StackInitialized {
		s.state = StackRunning
	}
}

func (s *Stack) checkReady() error {
	switch s.state {
	case StackUninitialized, StackInitialized:
		return ErrNotInitialized
	case StackFatalError:
		return ErrAborted
	}
	return nil
}

// Create allocates a socket table entry and returns its handle.
func (s *Stack) Create(domain SocketDomain, typ SocketType) (SocketHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkReady(); err != nil {
		return 0, err
	}
	if s.sockets.Len() >= s.capacity {
		return 0, ErrInsufficientSpace
	}
	h := SocketHandle(s.sockets.Insert(nil, &socketEntry{domain: domain, typ: typ, state: SocketUnbound}))
	return h, nil
}

func (s *Stack) entry(h SocketHandle) (*socketEntry, error) {
	_, e, err := s.sockets.Get(uint32(h))
	if err != nil {
		return nil, ErrInvalidHandle
	}
	return e, nil
}

// Bind assigns a local address to the socket.
func (s *Stack) Bind(h SocketHandle, addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkReady(); err != nil {
		return err
	}
	e, err := s.entry(h)
	if err != nil {
		return err
	}
	if e.state != SocketUnbound {
		return ErrOperationDenied
	}
	e.local = addr
	e.state = SocketBound
	return nil
}

// Listen marks a bound stream socket as listening.
func (s *Stack) Listen(h SocketHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkReady(); err != nil {
		return err
	}
	e, err := s.entry(h)
	if err != nil {
		return err
	}
	if e.typ != SocketTypeStream || e.state != SocketBound {
		return ErrOperationDenied
	}
	ln, lerr := net.Listen("tcp", e.local)
	if lerr != nil {
		e.lastError = ErrAborted
		s.raise(e, h, EventError)
		return ErrAborted
	}
	e.listener = ln
	e.state = SocketListening
	return nil
}

// Accept produces a child handle for an incoming connection, marking
// the parent's pending events with CONN_ACPT (sticky until read).
func (s *Stack) Accept(h SocketHandle) (SocketHandle, error) {
	s.mu.Lock()
	e, err := s.entry(h)
	if err != nil {
		s.mu.Unlock()
		return 0, err
	}
	if e.state != SocketListening {
		s.mu.Unlock()
		return 0, ErrOperationDenied
	}
	ln := e.listener
	s.mu.Unlock()

	conn, aerr := ln.Accept()
	if aerr != nil {
		return 0, ErrAborted
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sockets.Len() >= s.capacity {
		_ = conn.Close()
		return 0, ErrInsufficientSpace
	}
	ch := SocketHandle(s.sockets.Insert(nil, &socketEntry{
		domain: e.domain, typ: e.typ, state: SocketConnected,
		local: e.local, peer: conn.RemoteAddr().String(), parent: h, conn: conn,
	}))
	s.raise(e, h, EventConnAcpt)
	return ch, nil
}

// Connect establishes an outbound connection.
func (s *Stack) Connect(h SocketHandle, addr string) error {
	s.mu.Lock()
	e, err := s.entry(h)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if e.typ != SocketTypeStream || (e.state != SocketUnbound && e.state != SocketBound) {
		s.mu.Unlock()
		return ErrOperationDenied
	}
	s.mu.Unlock()

	conn, derr := net.Dial("tcp", addr)
	s.mu.Lock()
	defer s.mu.Unlock()
	if derr != nil {
		e.lastError = ErrAborted
		s.raise(e, h, EventError)
		return ErrAborted
	}
	e.conn = conn
	e.peer = addr
	e.state = SocketConnected
	s.raise(e, h, EventConnEst)
	return nil
}

// Read drains up to capacity bytes.
func (s *Stack) Read(h SocketHandle, capacity int) ([]byte, error) {
	s.mu.Lock()
	e, err := s.entry(h)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if e.state != SocketConnected && e.state != SocketShutdownRemote {
		s.mu.Unlock()
		return nil, ErrOperationDenied
	}
	conn := e.conn
	s.mu.Unlock()

	buf := make([]byte, capacity)
	n, rerr := conn.Read(buf)
	s.mu.Lock()
	defer s.mu.Unlock()
	if rerr != nil {
		e.state = SocketShutdownRemote
		s.raise(e, h, EventFin)
		return nil, nil
	}
	if n > 0 {
		s.clear(e, EventRead)
	}
	return buf[:n], nil
}

// Write sends data on the connected socket.
func (s *Stack) Write(h SocketHandle, data []byte) (int, error) {
	s.mu.Lock()
	e, err := s.entry(h)
	if err != nil {
		s.mu.Unlock()
		return 0, err
	}
	if e.state != SocketConnected {
		s.mu.Unlock()
		return 0, ErrOperationDenied
	}
	conn := e.conn
	s.mu.Unlock()

	n, werr := conn.Write(data)
	if werr != nil {
		s.mu.Lock()
		e.lastError = ErrAborted
		s.raise(e, h, EventError)
		s.mu.Unlock()
		return n, ErrAborted
	}
	return n, nil
}

// Close tears the socket down and marks it Closed.
func (s *Stack) Close(h SocketHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.entry(h)
	if err != nil {
		return err
	}
	if e.conn != nil {
		_ = e.conn.Close()
	}
	if e.listener != nil {
		_ = e.listener.Close()
	}
	e.state = SocketClosed
	s.raise(e, h, EventClose)
	_ = s.sockets.Remove(uint32(h))
	return nil
}

func (s *Stack) raise(e *socketEntry, h SocketHandle, ev SocketEvent) {
	e.pending |= ev
	for _, w := range s.waiters {
		select {
		case w <- struct{}{}:
		default:
		}
	}
	_ = h
}

func (s *Stack) clear(e *socketEntry, ev SocketEvent) {
	e.pending &^= ev
}

// GetPendingEvents drains up to capacity pending-event records across
// every socket, clearing the bits it returns. At least one event is
// returned whenever any is pending and capacity >= 1; a non-empty
// pending set that cannot fit a single record fails BUFFER_TOO_SMALL
// (spec.md §4.6).
func (s *Stack) GetPendingEvents(capacity int) ([]PendingEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if capacity < 1 {
		any := false
		s.sockets.Range(func(_ uint32, e *socketEntry) bool {
			if e.pending != 0 {
				any = true
				return false
			}
			return true
		})
		if any {
			return nil, ErrBufferTooSmall
		}
		return nil, nil
	}
	var out []PendingEvent
	s.sockets.Range(func(h uint32, e *socketEntry) bool {
		if e.pending == 0 {
			return true
		}
		if len(out) >= capacity {
			return false
		}
		out = append(out, PendingEvent{Socket: SocketHandle(h), ParentSocket: e.parent, Mask: e.pending, LastError: e.lastError})
		e.pending = 0
		return true
	})
	return out, nil
}

// Poll reports TRY_AGAIN when no socket currently has a pending event.
func (s *Stack) Poll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending := false
	s.sockets.Range(func(_ uint32, e *socketEntry) bool {
		if e.pending != 0 {
			pending = true
			return false
		}
		return true
	})
	if pending {
		return nil
	}
	return ErrTryAgain
}

// Wait blocks until at least one event is pending on any socket.
func (s *Stack) Wait() {
	s.mu.Lock()
	pending := false
	s.sockets.Range(func(_ uint32, e *socketEntry) bool {
		if e.pending != 0 {
			pending = true
			return false
		}
		return true
	})
	if pending {
		s.mu.Unlock()
		return
	}
	ch := make(chan struct{}, 1)
	s.waiters = append(s.waiters, ch)
	s.mu.Unlock()
	<-ch
	s.mu.Lock()
	for i, w := range s.waiters {
		if w == ch {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
}

// RegCallback registers a one-shot notification fired once any event is
// pending: at once if one already is, otherwise when the next one arrives.
func (s *Stack) RegCallback(fn func()) {
	go func() {
		s.Wait()
		fn()
	}()
}
