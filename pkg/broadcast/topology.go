package broadcast

import "sync"

// Topology contains the nodes assigned neighbours.
//
// The connectivity of the topology isn't validated. If the topology leaves a
// node disconnected, values will never reach it.
type Topology struct {
	neighbours []string

	mu sync.RWMutex
}

func NewTopology() *Topology {
	return &Topology{}
}

// SetTopology extracts the neighbours of localID from the assignment of node
// ID to neighbours, replacing any existing neighbours. If the assignment has
// no entry for localID the node has no neighbours.
//
// Returns the assigned neighbours.
func (t *Topology) SetTopology(localID string, assignment map[string][]string) []string {
	neighbours := assignment[localID]
	t.SetNeighbours(neighbours)
	return t.Neighbours()
}

// SetNeighbours replaces the nodes neighbours.
func (t *Topology) SetNeighbours(neighbours []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.neighbours = append([]string(nil), neighbours...)
}

// Neighbours returns a copy of the nodes neighbours.
func (t *Topology) Neighbours() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return append([]string(nil), t.neighbours...)
}
