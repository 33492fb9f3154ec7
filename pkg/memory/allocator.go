package memory

import (
	"time"
)

// Owner identifies the process to which a block of memory is
// allocated.
type Owner uint32

// Block is a contiguous range of the simulated address space. Blocks
// are either free, or allocated to exactly one owner.
type Block struct {
	Start       int       `json:"start"`
	Size        int       `json:"size"`
	IsFree      bool      `json:"is_free"`
	Owner       Owner     `json:"owner,omitempty"`
	AllocatedAt time.Time `json:"allocated_at"`
}

// Usage contains statistics on how the address space managed by an
// Allocator is utilized.
type Usage struct {
	TotalMemory      int `json:"total_memory"`
	UsedMemory       int `json:"used_memory"`
	FreeMemory       int `json:"free_memory"`
	TotalBlocks      int `json:"total_blocks"`
	FreeBlocks       int `json:"free_blocks"`
	AllocatedBlocks  int `json:"allocated_blocks"`
	LargestFreeBlock int `json:"largest_free_block"`
}

// Allocator of ranges of a fixed size address space. No actual memory
// backs the address space; allocators merely keep track of which
// ranges are in use by which owner.
type Allocator interface {
	// Allocate a contiguous range of the address space, returning
	// its start address. An owner may allocate multiple times.
	Allocate(owner Owner, size int) (int, error)
	// Deallocate all ranges held by an owner.
	Deallocate(owner Owner) error
	// GetUsage returns statistics on the address space.
	GetUsage() Usage
	// GetBlocks returns the blocks partitioning the address space,
	// ordered by start address.
	GetBlocks() []Block
}
