package memory

import (
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/buildbarn/bb-storage/pkg/clock"
	"github.com/google/btree"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type block struct {
	start       int
	size        int
	isFree      bool
	owner       Owner
	allocatedAt time.Time
}

// freeBlockLess orders free blocks by size, using the start address as
// a tie breaker. The first block in this order that is large enough
// for a request is the best fit.
func freeBlockLess(a, b *block) bool {
	if a.size != b.size {
		return a.size < b.size
	}
	return a.start < b.start
}

type bestFitAllocator struct {
	clock       clock.Clock
	totalMemory int

	lock       sync.Mutex
	blocks     []*block
	freeBlocks *btree.BTreeG[*block]
	owners     map[Owner][]*block
	usedMemory int
}

// NewBestFitAllocator creates an Allocator that manages an address
// space of totalMemory units. Requests are served from the smallest
// free block that is large enough, splitting it if needed. Blocks that
// become free are merged with free neighbours, so that freeing all
// memory always yields a single free block.
//
// Blocks are stored in a slice ordered by address. An additional
// B-tree of free blocks ordered by size is maintained, so that the
// best fit can be found without scanning all blocks.
func NewBestFitAllocator(totalMemory int, clock clock.Clock) Allocator {
	if totalMemory <= 0 {
		panic(fmt.Sprintf("Attempted to create allocator with non-positive size %d", totalMemory))
	}
	initial := &block{
		start:  0,
		size:   totalMemory,
		isFree: true,
	}
	a := &bestFitAllocator{
		clock:       clock,
		totalMemory: totalMemory,
		blocks:      []*block{initial},
		freeBlocks:  btree.NewG(2, freeBlockLess),
		owners:      map[Owner][]*block{},
	}
	a.freeBlocks.ReplaceOrInsert(initial)
	return a
}

// indexOf returns the index of a block in the address ordered list of
// blocks.
func (a *bestFitAllocator) indexOf(b *block) int {
	i := sort.Search(len(a.blocks), func(i int) bool {
		return a.blocks[i].start >= b.start
	})
	if i >= len(a.blocks) || a.blocks[i] != b {
		panic(fmt.Sprintf("Block at address %d is not part of the block list", b.start))
	}
	return i
}

func (a *bestFitAllocator) Allocate(owner Owner, size int) (int, error) {
	if size <= 0 || size > a.totalMemory {
		return 0, status.Errorf(codes.InvalidArgument, "Allocation size %d is not within range (0, %d]", size, a.totalMemory)
	}

	a.lock.Lock()
	defer a.lock.Unlock()

	var best *block
	a.freeBlocks.AscendGreaterOrEqual(&block{size: size}, func(b *block) bool {
		best = b
		return false
	})
	if best == nil {
		return 0, status.Errorf(codes.ResourceExhausted, "No free block of at least %d units available", size)
	}

	// Split off the part of the block that remains free.
	a.freeBlocks.Delete(best)
	if best.size > size {
		remainder := &block{
			start:  best.start + size,
			size:   best.size - size,
			isFree: true,
		}
		a.blocks = slices.Insert(a.blocks, a.indexOf(best)+1, remainder)
		a.freeBlocks.ReplaceOrInsert(remainder)
		best.size = size
	}

	best.isFree = false
	best.owner = owner
	best.allocatedAt = a.clock.Now()
	a.owners[owner] = append(a.owners[owner], best)
	a.usedMemory += size
	return best.start, nil
}

func (a *bestFitAllocator) Deallocate(owner Owner) error {
	a.lock.Lock()
	defer a.lock.Unlock()

	blocks, ok := a.owners[owner]
	if !ok {
		return status.Errorf(codes.NotFound, "Owner %d does not hold any memory", owner)
	}
	for _, b := range blocks {
		b.isFree = true
		b.owner = 0
		b.allocatedAt = time.Time{}
		a.usedMemory -= b.size
		a.freeBlocks.ReplaceOrInsert(b)
	}
	delete(a.owners, owner)
	a.coalesce()
	return nil
}

// coalesce merges all pairs of adjacent free blocks.
func (a *bestFitAllocator) coalesce() {
	merged := a.blocks[:1]
	for _, b := range a.blocks[1:] {
		last := merged[len(merged)-1]
		if last.isFree && b.isFree {
			// Keys in the B-tree may not change while the
			// block is part of it.
			a.freeBlocks.Delete(last)
			a.freeBlocks.Delete(b)
			last.size += b.size
			a.freeBlocks.ReplaceOrInsert(last)
		} else {
			merged = append(merged, b)
		}
	}
	clear(a.blocks[len(merged):])
	a.blocks = merged
}

func (a *bestFitAllocator) GetUsage() Usage {
	a.lock.Lock()
	defer a.lock.Unlock()

	usage := Usage{
		TotalMemory: a.totalMemory,
		UsedMemory:  a.usedMemory,
		TotalBlocks: len(a.blocks),
	}
	for _, b := range a.blocks {
		if b.isFree {
			usage.FreeMemory += b.size
			usage.FreeBlocks++
			if b.size > usage.LargestFreeBlock {
				usage.LargestFreeBlock = b.size
			}
		} else {
			usage.AllocatedBlocks++
		}
	}
	return usage
}

func (a *bestFitAllocator) GetBlocks() []Block {
	a.lock.Lock()
	defer a.lock.Unlock()

	blocks := make([]Block, 0, len(a.blocks))
	for _, b := range a.blocks {
		blocks = append(blocks, Block{
			Start:       b.start,
			Size:        b.size,
			IsFree:      b.isFree,
			Owner:       b.owner,
			AllocatedAt: b.allocatedAt,
		})
	}
	return blocks
}
