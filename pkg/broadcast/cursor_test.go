package broadcast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCursorTable_PeekAndDelta(t *testing.T) {
	t.Run("unknown neighbour", func(t *testing.T) {
		store := NewStore()
		store.InsertAll([]Value{1, 2, 3})
		cursors := NewCursorTable(store)

		watermark, delta := cursors.PeekAndDelta("n2")
		assert.Equal(t, 0, watermark)
		assert.Equal(t, []Value{1, 2, 3}, delta)
	})

	t.Run("after advance", func(t *testing.T) {
		store := NewStore()
		store.InsertAll([]Value{1, 2, 3})
		cursors := NewCursorTable(store)

		watermark, delta := cursors.PeekAndDelta("n2")
		assert.True(t, cursors.Advance("n2", watermark, len(delta)))

		store.Insert(4)

		watermark, delta = cursors.PeekAndDelta("n2")
		assert.Equal(t, 3, watermark)
		assert.Equal(t, []Value{4}, delta)

		// Other neighbours are unaffected.
		watermark, delta = cursors.PeekAndDelta("n3")
		assert.Equal(t, 0, watermark)
		assert.Equal(t, []Value{1, 2, 3, 4}, delta)
	})

	t.Run("up to date", func(t *testing.T) {
		store := NewStore()
		store.InsertAll([]Value{1, 2})
		cursors := NewCursorTable(store)

		assert.True(t, cursors.Advance("n2", 0, 2))

		watermark, delta := cursors.PeekAndDelta("n2")
		assert.Equal(t, 2, watermark)
		assert.Empty(t, delta)
	})
}

func TestCursorTable_Advance(t *testing.T) {
	t.Run("first observation", func(t *testing.T) {
		cursors := NewCursorTable(NewStore())
		assert.True(t, cursors.Advance("n2", 0, 5))
		assert.Equal(t, 5, cursors.Watermark("n2"))
	})

	t.Run("first observation with stale watermark", func(t *testing.T) {
		cursors := NewCursorTable(NewStore())
		assert.False(t, cursors.Advance("n2", 3, 5))
		assert.Equal(t, 0, cursors.Watermark("n2"))
	})

	// Tests two rounds taking a snapshot of the same watermark, where the
	// second round to complete must not advance the cursor again.
	t.Run("overlapping rounds", func(t *testing.T) {
		store := NewStore()
		store.InsertAll([]Value{1, 2, 3})
		cursors := NewCursorTable(store)

		watermark1, delta1 := cursors.PeekAndDelta("n2")
		store.InsertAll([]Value{4, 5})
		watermark2, delta2 := cursors.PeekAndDelta("n2")

		assert.True(t, cursors.Advance("n2", watermark2, len(delta2)))
		assert.False(t, cursors.Advance("n2", watermark1, len(delta1)))

		assert.Equal(t, 5, cursors.Watermark("n2"))
	})

	t.Run("empty delta", func(t *testing.T) {
		cursors := NewCursorTable(NewStore())
		assert.True(t, cursors.Advance("n2", 0, 0))
		assert.Equal(t, 0, cursors.Watermark("n2"))
	})

	t.Run("monotonic", func(t *testing.T) {
		store := NewStore()
		cursors := NewCursorTable(store)

		prev := 0
		for i := 0; i != 20; i++ {
			store.Insert(Value(i))
			watermark, delta := cursors.PeekAndDelta("n2")
			cursors.Advance("n2", watermark, len(delta))

			assert.GreaterOrEqual(t, cursors.Watermark("n2"), prev)
			prev = cursors.Watermark("n2")
		}
		assert.Equal(t, 20, prev)
	})
}

func TestCursorTable_Watermarks(t *testing.T) {
	cursors := NewCursorTable(NewStore())
	cursors.Advance("n2", 0, 2)
	cursors.Advance("n3", 0, 4)

	watermarks := cursors.Watermarks()
	assert.Equal(t, map[string]int{"n2": 2, "n3": 4}, watermarks)

	// Modifying the copy doesn't modify the table.
	watermarks["n2"] = 10
	assert.Equal(t, 2, cursors.Watermark("n2"))
}
