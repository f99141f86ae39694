package core

import (
	"bytes"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// OpenFlag composes with a FileHandle's open mode (spec.md §4.7).
type OpenFlag uint32

const (
	OpenFlagNone      OpenFlag = 0
	OpenFlagCreate    OpenFlag = 1 << 0
	OpenFlagExclusive OpenFlag = 1 << 1
	OpenFlagTruncate  OpenFlag = 1 << 2
)

// FileHandle indexes into a Filesystem's per-partition open-file table.
type FileHandle uint32

type openFile struct {
	partID int
	name   string
	data   []byte
	pos    int
	mode   PartitionAccessMode
}

type mountedFS struct {
	partID    int
	maxOpen   int
	files     map[string][]byte
	openFiles *HandleTable[*openFile]
}

// Filesystem mounts filesystems over partitions served by a
// PartitionManager, bounding the number of simultaneously open files
// per partition (spec.md §4.7). Each mount keeps its files in memory;
// Snapshot/Restore serialize them to and from gzip-compressed chunks
// returned to the caller (the partition's blocks are not written),
// generalized from the teacher's core/partitioning_and_compression.go
// chunked compression helpers.
type Filesystem struct {
	mu     sync.Mutex
	pm     *PartitionManager
	mounts map[int]*mountedFS
}

// NewFilesystem builds a Filesystem layer fronting pm.
func NewFilesystem(pm *PartitionManager) *Filesystem {
	return &Filesystem{pm: pm, mounts: make(map[int]*mountedFS)}
}

// Mount opens partID through the partition manager and mounts an
// empty filesystem over it; Restore loads a snapshot into it afterwards.
func (fs *Filesystem) Mount(partID, maxOpenFiles int) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, ok := fs.mounts[partID]; ok {
		return ErrFSMount
	}
	if _, err := fs.pm.Open(partID); err != nil {
		return err
	}
	fs.mounts[partID] = &mountedFS{
		partID:    partID,
		maxOpen:   maxOpenFiles,
		files:     make(map[string][]byte),
		openFiles: NewHandleTable[*openFile](),
	}
	return nil
}

// Unmount closes every open file on the partition, then unmounts and
// closes the partition handle (spec.md §4.7: "Unmount implicitly
// closes all open files").
func (fs *Filesystem) Unmount(partID int) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	m, ok := fs.mounts[partID]
	if !ok {
		return ErrFSUnmount
	}
	m.openFiles = NewHandleTable[*openFile]()
	delete(fs.mounts, partID)
	return fs.pm.Close(partID)
}

// Open opens name on partID's mounted filesystem, composing flags per
// spec.md §4.7 (CREATE, EXCLUSIVE, TRUNCATE). Per-partition open-file
// count is bounded by the value passed to Mount.
func (fs *Filesystem) Open(partID int, name string, flags OpenFlag, mode PartitionAccessMode) (FileHandle, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	m, ok := fs.mounts[partID]
	if !ok {
		return 0, ErrFSOpen
	}
	if m.openFiles.Len() >= m.maxOpen {
		return 0, ErrFSNoFreeHandle
	}
	data, exists := m.files[name]
	switch {
	case exists && flags&OpenFlagExclusive != 0:
		return 0, ErrExists
	case !exists && flags&OpenFlagCreate == 0:
		return 0, ErrFSFileNotFound
	case !exists:
		data = nil
		m.files[name] = data
	}
	if flags&OpenFlagTruncate != 0 {
		data = nil
		m.files[name] = data
	}
	of := &openFile{partID: partID, name: name, data: append([]byte(nil), data...), mode: mode}
	h := FileHandle(m.openFiles.Insert(nil, of))
	return h, nil
}

// Close closes h. If the owning partition is no longer mounted, the
// handle is already invalid.
func (fs *Filesystem) Close(partID int, h FileHandle) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	m, ok := fs.mounts[partID]
	if !ok {
		return ErrFSClose
	}
	_, of, err := m.openFiles.Get(uint32(h))
	if err != nil {
		return ErrFSResolveHandle
	}
	m.files[of.name] = of.data
	_ = m.openFiles.Remove(uint32(h))
	return nil
}

// Read reads up to len(buf) bytes from h at its current position.
func (fs *Filesystem) Read(partID int, h FileHandle, buf []byte) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	m, ok := fs.mounts[partID]
	if !ok {
		return 0, ErrFSOpen
	}
	_, of, err := m.openFiles.Get(uint32(h))
	if err != nil {
		return 0, ErrFSResolveHandle
	}
	n := copy(buf, of.data[of.pos:])
	of.pos += n
	return n, nil
}

// Write writes data to h at its current position. Fails
// FS_OPERATION_DENIED if h was opened read-only.
func (fs *Filesystem) Write(partID int, h FileHandle, data []byte) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	m, ok := fs.mounts[partID]
	if !ok {
		return 0, ErrFSOpen
	}
	_, of, err := m.openFiles.Get(uint32(h))
	if err != nil {
		return 0, ErrFSResolveHandle
	}
	if of.mode == PartitionReadOnly {
		return 0, ErrFSOperationDenied
	}
	end := of.pos + len(data)
	if end > len(of.data) {
		grown := make([]byte, end)
		copy(grown, of.data)
		of.data = grown
	}
	copy(of.data[of.pos:end], data)
	of.pos = end
	return len(data), nil
}

// Snapshot serializes every file on partID's mount into one stream, splits
// it into chunkSize pieces and gzip-compresses each piece separately, the
// same way the teacher's StoreCompressedBlock does for ledger blocks.
func (fs *Filesystem) Snapshot(partID int, chunkSize int) ([][]byte, error) {
	fs.mu.Lock()
	m, ok := fs.mounts[partID]
	fs.mu.Unlock()
	if !ok {
		return nil, ErrFSOpen
	}
	var raw bytes.Buffer
	for name, data := range m.files {
		raw.WriteString(name)
		raw.WriteByte(0)
		var lenBuf [8]byte
		putUint64(lenBuf[:], uint64(len(data)))
		raw.Write(lenBuf[:])
		raw.Write(data)
	}
	return PartitionAndCompressGzip(raw.Bytes(), chunkSize)
}

// Restore reverses Snapshot, replacing partID's in-memory file table.
func (fs *Filesystem) Restore(partID int, parts [][]byte) error {
	fs.mu.Lock()
	m, ok := fs.mounts[partID]
	fs.mu.Unlock()
	if !ok {
		return ErrFSOpen
	}
	raw, err := DecompressAndCombineGzip(parts)
	if err != nil {
		return ErrFSStructure
	}
	files := make(map[string][]byte)
	for len(raw) > 0 {
		sep := bytes.IndexByte(raw, 0)
		if sep < 0 || sep+9 > len(raw) {
			return ErrFSStructure
		}
		name := string(raw[:sep])
		raw = raw[sep+1:]
		n := getUint64(raw[:8])
		raw = raw[8:]
		if uint64(len(raw)) < n {
			return ErrFSStructure
		}
		files[name] = append([]byte(nil), raw[:n]...)
		raw = raw[n:]
	}
	fs.mu.Lock()
	m.files = files
	fs.mu.Unlock()
	return nil
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (56 - 8*i))
	}
}

func getUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// HorizontalPartition splits data into fixed-size chunks, adapted from
// the teacher's core/partitioning_and_compression.go helper of the same
// name.
func HorizontalPartition(data []byte, size int) [][]byte {
	if size <= 0 {
		return nil
	}
	var out [][]byte
	for len(data) > 0 {
		n := size
		if len(data) < size {
			n = len(data)
		}
		out = append(out, append([]byte(nil), data[:n]...))
		data = data[n:]
	}
	return out
}

// PartitionAndCompressGzip splits data into chunks and gzip-compresses
// each individually, using klauspost/compress's gzip implementation in
// place of the teacher's stdlib compress/gzip.
func PartitionAndCompressGzip(data []byte, size int) ([][]byte, error) {
	parts := HorizontalPartition(data, size)
	out := make([][]byte, len(parts))
	for i, p := range parts {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(p); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		out[i] = buf.Bytes()
	}
	return out, nil
}

// DecompressAndCombineGzip reverses PartitionAndCompressGzip.
func DecompressAndCombineGzip(parts [][]byte) ([]byte, error) {
	var out bytes.Buffer
	for _, p := range parts {
		zr, err := gzip.NewReader(bytes.NewReader(p))
		if err != nil {
			return nil, err
		}
		if _, err := io.Copy(&out, zr); err != nil {
			zr.Close()
			return nil, err
		}
		zr.Close()
	}
	return out.Bytes(), nil
}
