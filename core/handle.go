package core

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Backend identifies which side of the isolation boundary actually owns a
// proxied object.
type Backend int

const (
	BackendLibrary Backend = iota
	BackendRpcClient
)

func (b Backend) String() string {
	switch b {
	case BackendLibrary:
		return "library"
	case BackendRpcClient:
		return "rpc-client"
	default:
		return "unknown"
	}
}

// Mode is the per-context routing policy that decides, at object-creation
// time, which Backend a freshly created proxy is given.
type Mode int

const (
	// ModeLibrary: every object is created locally.
	ModeLibrary Mode = iota
	// ModeClient: every object is forwarded to a remote server.
	ModeClient
	// ModeSwitching: routing is decided per-object by its keepLocal
	// attribute. Spec Open Question (iii): the legacy "router" mode and
	// the client-attribute-switching mode are treated as this one value.
	ModeSwitching
)

// Attributes carries the per-object routing metadata snapshotted into a
// Proxy at creation time.
type Attributes struct {
	// KeepLocal, when true in ModeSwitching, pins the object to the local
	// library backend; false routes it to the remote client. Ignored in
	// ModeLibrary/ModeClient, where the context mode alone decides.
	KeepLocal bool
	// Exportable governs whether a remote (non-keepLocal) object's data
	// may ever be copied out to the caller (see Key.Export).
	Exportable bool
	// Flags is an opaque, backend-defined bit field.
	Flags uint32
}

// Zeroizer is implemented by backend objects that hold secret material
// which must be wiped when their Proxy is freed.
type Zeroizer interface {
	Zeroize()
}

// Proxy is the caller-side handle to a backend object: it never contains
// secret material itself, only routing metadata and a reference to the
// object living on whichever side owns it. Once created, Backend is
// immutable for the Proxy's lifetime.
type Proxy struct {
	id      uuid.UUID
	backend Backend
	attribs Attributes
	obj     any
	freed   bool
}

// ID returns the proxy's stable correlation id, useful for logging and for
// cross-referencing migrated proxies that share one backend object.
func (p *Proxy) ID() uuid.UUID { return p.id }

// BackendKind reports which side of the boundary owns the proxied object.
func (p *Proxy) BackendKind() Backend { return p.backend }

// Attributes returns the snapshot taken at creation time.
func (p *Proxy) Attributes() Attributes { return p.attribs }

// resolveBackend applies the routing contract from the spec's Handle/Proxy
// Layer: ModeLibrary and ModeClient are unconditional; ModeSwitching
// chooses per the KeepLocal attribute. libraryOnly/clientOnly let a
// concrete object type declare it can only ever live on one side (e.g. an
// object type the remote server never implements), which surfaces as
// NOT_SUPPORTED if the mode+attribute combination is incoherent.
func resolveBackend(mode Mode, attrs Attributes, libraryOnly, clientOnly bool) (Backend, error) {
	var b Backend
	switch mode {
	case ModeLibrary:
		b = BackendLibrary
	case ModeClient:
		b = BackendRpcClient
	case ModeSwitching:
		if attrs.KeepLocal {
			b = BackendLibrary
		} else {
			b = BackendRpcClient
		}
	default:
		return 0, ErrInvalidParameter
	}
	if (b == BackendRpcClient && libraryOnly) || (b == BackendLibrary && clientOnly) {
		return 0, ErrNotSupported
	}
	return b, nil
}

// newProxy creates a Proxy for obj, routed per resolveBackend. obj must be
// non-nil; a nil obj is an INVALID_PARAMETER caller error.
func newProxy(mode Mode, attrs Attributes, obj any, libraryOnly, clientOnly bool) (*Proxy, error) {
	if obj == nil {
		return nil, ErrInvalidParameter
	}
	b, err := resolveBackend(mode, attrs, libraryOnly, clientOnly)
	if err != nil {
		return nil, err
	}
	return &Proxy{id: uuid.New(), backend: b, attribs: attrs, obj: obj}, nil
}

// Migrate wraps an existing backend object, known to already live on
// isLocal's side, into a fresh Proxy. A nil rawObj is INVALID_PARAMETER.
// The caller is responsible for ensuring exactly one of the resulting
// proxies (this one, or whichever proxy rawObj came from) eventually frees
// the object — freeing both is a caller error (double free), not detected
// here, exactly as the spec documents.
func Migrate(rawObj any, isLocal bool, attrs Attributes) (*Proxy, error) {
	if rawObj == nil {
		return nil, ErrInvalidParameter
	}
	b := BackendRpcClient
	if isLocal {
		b = BackendLibrary
	}
	return &Proxy{id: uuid.New(), backend: b, attribs: attrs, obj: rawObj}, nil
}

// Raw extracts the backend object pointer for expert use. It never
// invalidates the proxy.
func Raw(p *Proxy) (any, error) {
	if p == nil {
		return nil, ErrInvalidParameter
	}
	if p.freed {
		return nil, ErrInvalidHandle
	}
	return p.obj, nil
}

// Free tears down the backend object (zeroizing secret material it
// exposes via Zeroizer) and marks the proxy unusable. Using a freed proxy
// afterwards is a fatal caller error, not guaranteed to be detected.
func Free(p *Proxy) error {
	if p == nil {
		return ErrInvalidParameter
	}
	if p.freed {
		return ErrInvalidHandle
	}
	if z, ok := p.obj.(Zeroizer); ok {
		z.Zeroize()
	}
	p.freed = true
	p.obj = nil
	return nil
}

// deriveProxy creates a proxy for an object that depends on another (e.g. a
// Cipher depending on a Key): it inherits the parent's backend verbatim,
// per spec.md §4.1 ("derived proxy inherits the key's backend").
func deriveProxy(parent *Proxy, obj any) (*Proxy, error) {
	if parent == nil || obj == nil {
		return nil, ErrInvalidParameter
	}
	if parent.freed {
		return nil, ErrInvalidHandle
	}
	return &Proxy{id: uuid.New(), backend: parent.backend, attribs: parent.attribs, obj: obj}, nil
}

// HandleTable is a mutex-guarded map from an opaque uint32 handle to a
// value, with an optional Proxy attached for tables whose entries are
// capability-routed backend objects. The socket, open-file and timer
// tables use it with a nil proxy per entry, since those resources never
// route through the Handle/Proxy Dispatch Core's local/remote backend
// split; the partition table (fixed, config-assigned IDs) and the
// keystore (name- and CID-addressed, not handle-allocated at all) are
// shaped too differently to fit this generic and are left as plain maps
// — see DESIGN.md.
type HandleTable[T any] struct {
	mu      sync.Mutex
	next    uint32
	entries map[uint32]*tableEntry[T]
}

type tableEntry[T any] struct {
	proxy *Proxy
	value T
}

// NewHandleTable constructs an empty table.
func NewHandleTable[T any]() *HandleTable[T] {
	return &HandleTable[T]{entries: make(map[uint32]*tableEntry[T])}
}

// Insert allocates a fresh handle for proxy/value and returns it.
func (t *HandleTable[T]) Insert(proxy *Proxy, value T) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := atomic.AddUint32(&t.next, 1)
	t.entries[h] = &tableEntry[T]{proxy: proxy, value: value}
	return h
}

// Get resolves handle to its proxy and value. It returns INVALID_HANDLE if
// the handle does not map to a live entry.
func (t *HandleTable[T]) Get(handle uint32) (*Proxy, T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var zero T
	e, ok := t.entries[handle]
	if !ok {
		return nil, zero, ErrInvalidHandle
	}
	return e.proxy, e.value, nil
}

// Remove removes handle's entry, freeing its proxy if one is attached.
// Freeing a handle twice is INVALID_HANDLE.
func (t *HandleTable[T]) Remove(handle uint32) error {
	t.mu.Lock()
	e, ok := t.entries[handle]
	if ok {
		delete(t.entries, handle)
	}
	t.mu.Unlock()
	if !ok {
		return ErrInvalidHandle
	}
	if e.proxy != nil {
		return Free(e.proxy)
	}
	return nil
}

// Len reports the number of live entries, used by bounded tables (sockets,
// open files) to enforce their capacity.
func (t *HandleTable[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Update replaces the stored value for an already-present handle, leaving
// the proxy untouched. Used by stateful tables (sockets) that mutate the
// value in place across calls.
func (t *HandleTable[T]) Update(handle uint32, value T) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[handle]
	if !ok {
		return ErrInvalidHandle
	}
	e.value = value
	return nil
}

// Range calls fn for every live handle until fn returns false.
func (t *HandleTable[T]) Range(fn func(handle uint32, value T) bool) {
	t.mu.Lock()
	snapshot := make(map[uint32]T, len(t.entries))
	for h, e := range t.entries {
		snapshot[h] = e.value
	}
	t.mu.Unlock()
	for h, v := range snapshot {
		if !fn(h, v) {
			return
		}
	}
}
