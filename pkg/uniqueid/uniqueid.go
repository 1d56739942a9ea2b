// Package uniqueid allocates cluster-wide unique IDs without coordination.
//
// Each node allocates from its own stripe: the node at index i in a cluster
// of n nodes allocates i, i+n, i+2n, ... so no two nodes ever allocate the
// same ID.
package uniqueid

import (
	"fmt"
	"sort"
	"sync"
)

type Allocator struct {
	next uint64
	step uint64

	mu sync.Mutex
}

// NewAllocator creates an allocator for the node at the given index in a
// cluster of count nodes.
func NewAllocator(index int, count int) (*Allocator, error) {
	if count <= 0 {
		return nil, fmt.Errorf("invalid node count: %d", count)
	}
	if index < 0 || index >= count {
		return nil, fmt.Errorf("index out of range: %d", index)
	}
	return &Allocator{
		next: uint64(index),
		step: uint64(count),
	}, nil
}

// Next returns the next unique ID.
func (a *Allocator) Next() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.next
	a.next += a.step
	return id
}

// IndexOf returns the index of the node ID in the sorted set of node IDs, so
// every node computes the same index for a given node regardless of the
// order it learned the IDs.
func IndexOf(id string, ids []string) (int, bool) {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)

	i := sort.SearchStrings(sorted, id)
	if i < len(sorted) && sorted[i] == id {
		return i, true
	}
	return 0, false
}
