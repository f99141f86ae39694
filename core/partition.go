package core

import "sync"

// PartitionAccessMode is the access mode recorded on a partition
// descriptor at manager construction time.
type PartitionAccessMode int

const (
	PartitionReadOnly PartitionAccessMode = iota
	PartitionReadWrite
)

// PartitionDescriptor describes one entry of the partition table
// (spec.md §4.7): a contiguous block range, a block size, and an
// access mode.
type PartitionDescriptor struct {
	ID         int
	StartBlock uint64
	EndBlock   uint64
	BlockSize  int
	Mode       PartitionAccessMode
}

// BlockDevice is the callback vtable a partition reads/writes blocks
// through (spec.md §3: "a block-device callback interface").
type BlockDevice interface {
	ReadBlock(block uint64, out []byte) error
	WriteBlock(block uint64, data []byte) error
	DiskSizeBlocks() uint64
}

type partitionEntry struct {
	desc   PartitionDescriptor
	opened bool
	mounted bool
	openFiles int
}

// PartitionManager validates and serves a fixed partition table over a
// single BlockDevice, generalizing the teacher's mutex-guarded table
// pattern (core/connection_pool.go) from connections to partitions.
type PartitionManager struct {
	mu      sync.Mutex
	dev     BlockDevice
	parts   map[int]*partitionEntry
	maxOpen int
}

// NewPartitionManager validates table against dev and constructs a
// manager. Init verifies (spec.md §4.7): total extent <= disk size;
// start < end for every partition; distinct ids; block size > 0.
func NewPartitionManager(dev BlockDevice, table []PartitionDescriptor, maxOpenFilesPerPartition int) (*PartitionManager, error) {
	if dev == nil {
		return nil, ErrInvalidParameter
	}
	seen := make(map[int]bool, len(table))
	var totalBlocks uint64
	for _, d := range table {
		if seen[d.ID] {
			return nil, ErrInvalidParameter
		}
		seen[d.ID] = true
		if d.StartBlock >= d.EndBlock {
			return nil, ErrInvalidParameter
		}
		if d.BlockSize <= 0 {
			return nil, ErrInvalidParameter
		}
		totalBlocks += d.EndBlock - d.StartBlock
	}
	if totalBlocks > dev.DiskSizeBlocks() {
		return nil, ErrInsufficientSpace
	}
	pm := &PartitionManager{dev: dev, parts: make(map[int]*partitionEntry, len(table)), maxOpen: maxOpenFilesPerPartition}
	for _, d := range table {
		pm.parts[d.ID] = &partitionEntry{desc: d}
	}
	return pm, nil
}

func (pm *PartitionManager) lookup(id int) (*partitionEntry, error) {
	e, ok := pm.parts[id]
	if !ok {
		return nil, ErrFSPartitionRead
	}
	return e, nil
}

// Open marks the partition id opened, returning its descriptor.
func (pm *PartitionManager) Open(id int) (PartitionDescriptor, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	e, err := pm.lookup(id)
	if err != nil {
		return PartitionDescriptor{}, err
	}
	e.opened = true
	return e.desc, nil
}

// Close closes a partition handle; if the partition is still mounted,
// closing it implicitly unmounts (spec.md §4.7).
func (pm *PartitionManager) Close(id int) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	e, err := pm.lookup(id)
	if err != nil {
		return err
	}
	e.mounted = false
	e.openFiles = 0
	e.opened = false
	return nil
}

// ReadBlock reads one block of a partition, rejecting unopened
// partitions, wrong ids, and out-of-range offsets with the specific
// codes named by spec.md §4.7.
func (pm *PartitionManager) ReadBlock(id int, offset uint64, out []byte) error {
	pm.mu.Lock()
	e, err := pm.lookup(id)
	if err != nil {
		pm.mu.Unlock()
		return err
	}
	if !e.opened {
		pm.mu.Unlock()
		return ErrFSOpen
	}
	block := e.desc.StartBlock + offset
	if block >= e.desc.EndBlock {
		pm.mu.Unlock()
		return ErrOutOfBounds
	}
	dev := pm.dev
	pm.mu.Unlock()
	if err := dev.ReadBlock(block, out); err != nil {
		return ErrFSPartitionRead
	}
	return nil
}

// WriteBlock writes one block of a partition. Write on a read-only
// partition fails FS_OPERATION_DENIED.
func (pm *PartitionManager) WriteBlock(id int, offset uint64, data []byte) error {
	pm.mu.Lock()
	e, err := pm.lookup(id)
	if err != nil {
		pm.mu.Unlock()
		return err
	}
	if !e.opened {
		pm.mu.Unlock()
		return ErrFSOpen
	}
	if e.desc.Mode == PartitionReadOnly {
		pm.mu.Unlock()
		return ErrFSOperationDenied
	}
	block := e.desc.StartBlock + offset
	if block >= e.desc.EndBlock {
		pm.mu.Unlock()
		return ErrOutOfBounds
	}
	dev := pm.dev
	pm.mu.Unlock()
	if err := dev.WriteBlock(block, data); err != nil {
		return ErrIO
	}
	return nil
}
