package core

import (
	"io"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
)

// StreamFactory opens a named backing stream a Keystore persists blobs
// through, the Go shape of OS_Keystore's injected FileStreamFactory.
type StreamFactory interface {
	Open(name string) (io.ReadWriteCloser, error)
}

// Keystore is a name -> blob mapping persisted through an injected
// StreamFactory; wrapped import/export is rejected with NOT_SUPPORTED.
// Blobs are content-addressed internally by CID so Copy between stores
// sharing a backing factory is a cheap reference bump.
type Keystore struct {
	name    string
	factory StreamFactory
	crypto  *CryptoContext

	mu      sync.Mutex
	byName  map[string]cid.Cid
	blobs   map[cid.Cid][]byte
	cache   *lru.Cache[string, []byte]
}

// NewKeystore constructs a Keystore named name, persisting through
// factory and delegating crypto operations to crypto.
func NewKeystore(name string, factory StreamFactory, crypto *CryptoContext) (*Keystore, error) {
	if factory == nil || crypto == nil || name == "" {
		return nil, ErrInvalidParameter
	}
	c, err := lru.New[string, []byte](256)
	if err != nil {
		return nil, ErrGeneric
	}
	return &Keystore{
		name:    name,
		factory: factory,
		crypto:  crypto,
		byName:  make(map[string]cid.Cid),
		blobs:   make(map[cid.Cid][]byte),
		cache:   c,
	}, nil
}

func blobCID(data []byte) (cid.Cid, error) {
	hash, err := mh.Sum(data, mh.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, hash), nil
}

// StoreKey imports a key blob under name, overwriting any existing entry.
func (ks *Keystore) StoreKey(name string, keyData []byte) error {
	if name == "" {
		return ErrInvalidName
	}
	id, err := blobCID(keyData)
	if err != nil {
		return ErrGeneric
	}
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.byName[name] = id
	ks.blobs[id] = append([]byte(nil), keyData...)
	ks.cache.Add(ks.name+"/"+name, keyData)
	if w, err := ks.factory.Open(ks.name + "/" + name); err == nil {
		_, _ = w.Write(keyData)
		_ = w.Close()
	}
	return nil
}

// LoadKey retrieves the blob stored under name. NOT_FOUND if absent.
func (ks *Keystore) LoadKey(name string) ([]byte, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	if v, ok := ks.cache.Get(ks.name + "/" + name); ok {
		return append([]byte(nil), v...), nil
	}
	id, ok := ks.byName[name]
	if !ok {
		return nil, ErrNotFound
	}
	data, ok := ks.blobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// DeleteKey removes name from the store.
func (ks *Keystore) DeleteKey(name string) error {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	id, ok := ks.byName[name]
	if !ok {
		return ErrNotFound
	}
	delete(ks.byName, name)
	delete(ks.blobs, id)
	ks.cache.Remove(ks.name + "/" + name)
	return nil
}

// Copy duplicates name from ks into dst under the same name. When both
// stores share a backing factory, the content-addressed blob is reused
// directly instead of being re-read and re-written (spec.md §8 scenario 5
// exercises the Move variant; Copy leaves the source entry intact).
func (ks *Keystore) Copy(name string, dst *Keystore) error {
	ks.mu.Lock()
	id, ok := ks.byName[name]
	var data []byte
	if ok {
		data = ks.blobs[id]
	}
	sameFactory := ks.factory == dst.factory
	ks.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	if sameFactory && ks != dst {
		dst.mu.Lock()
		dst.byName[name] = id
		dst.blobs[id] = data
		dst.cache.Add(dst.name+"/"+name, data)
		dst.mu.Unlock()
		return nil
	}
	return dst.StoreKey(name, append([]byte(nil), data...))
}

// Move transfers name from ks to dst, removing it from ks on success.
func (ks *Keystore) Move(name string, dst *Keystore) error {
	if err := ks.Copy(name, dst); err != nil {
		return err
	}
	return ks.DeleteKey(name)
}

// ImportWrapped is the reserved wrapped-import extension (spec.md §9 Open
// Question i). The legacy API always exposes this parameter but
// consistently returns NOT_SUPPORTED; no behavior is implemented here
// either.
func (ks *Keystore) ImportWrapped(name string, wrappedData []byte, wrapKeyHandle *Proxy) error {
	return ErrNotSupported
}

// ExportWrapped is the export-side counterpart of ImportWrapped, same
// reserved-extension treatment.
func (ks *Keystore) ExportWrapped(name string, wrapKeyHandle *Proxy) ([]byte, error) {
	return nil, ErrNotSupported
}
