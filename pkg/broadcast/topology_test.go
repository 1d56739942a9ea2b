package broadcast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopology(t *testing.T) {
	t.Run("set topology", func(t *testing.T) {
		topology := NewTopology()
		neighbours := topology.SetTopology("n1", map[string][]string{
			"n1": {"n2", "n3"},
			"n2": {"n1"},
			"n3": {"n1"},
		})
		assert.Equal(t, []string{"n2", "n3"}, neighbours)
		assert.Equal(t, []string{"n2", "n3"}, topology.Neighbours())
	})

	t.Run("overwrite", func(t *testing.T) {
		topology := NewTopology()
		topology.SetTopology("n1", map[string][]string{
			"n1": {"n2", "n3"},
		})
		topology.SetTopology("n1", map[string][]string{
			"n1": {"n4"},
		})
		assert.Equal(t, []string{"n4"}, topology.Neighbours())
	})

	t.Run("missing local node", func(t *testing.T) {
		topology := NewTopology()
		topology.SetNeighbours([]string{"n2"})
		neighbours := topology.SetTopology("n1", map[string][]string{
			"n2": {"n3"},
		})
		assert.Empty(t, neighbours)
		assert.Empty(t, topology.Neighbours())
	})

	t.Run("copy", func(t *testing.T) {
		assignment := map[string][]string{
			"n1": {"n2"},
		}
		topology := NewTopology()
		topology.SetTopology("n1", assignment)

		assignment["n1"][0] = "n5"
		topology.Neighbours()[0] = "n6"

		assert.Equal(t, []string{"n2"}, topology.Neighbours())
	})
}
