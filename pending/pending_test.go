package pending_test

import (
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/atlasxyz/atlas/pending"
)

// TestOutOfOrderCompletionJumpsCursor is S5 from the testable-properties
// list: completions land out of order across three blocks, and the cursor
// only advances once block 100 (the minimum) is fully drained, at which
// point it must jump straight to block 102's cursor in one step.
func TestOutOfOrderCompletionJumpsCursor(t *testing.T) {
	m := pending.New()
	m.AddBlock(100, "cursor_100", 3)
	m.AddBlock(101, "cursor_101", 2)
	m.AddBlock(102, "cursor_102", 1)

	_, _, advanced := m.CompleteOne(102)
	assert.False(t, advanced)

	_, _, advanced = m.CompleteOne(101)
	assert.False(t, advanced)
	_, _, advanced = m.CompleteOne(101)
	assert.False(t, advanced)

	_, _, advanced = m.CompleteOne(100)
	assert.False(t, advanced)
	_, _, advanced = m.CompleteOne(100)
	assert.False(t, advanced)

	block, cursor, advanced := m.CompleteOne(100)
	assert.True(t, advanced)
	assert.Equal(t, uint64(102), block)
	assert.Equal(t, "cursor_102", cursor)
	assert.Equal(t, 0, m.Len())
}

func TestSingleBlockAdvancesImmediately(t *testing.T) {
	m := pending.New()
	m.AddBlock(5, "cursor_5", 2)

	_, _, advanced := m.CompleteOne(5)
	assert.False(t, advanced)

	block, cursor, advanced := m.CompleteOne(5)
	assert.True(t, advanced)
	assert.Equal(t, uint64(5), block)
	assert.Equal(t, "cursor_5", cursor)
}

func TestNonMinimumBlockNeverAdvancesAlone(t *testing.T) {
	m := pending.New()
	m.AddBlock(1, "cursor_1", 1)
	m.AddBlock(2, "cursor_2", 1)

	_, _, advanced := m.CompleteOne(2)
	assert.False(t, advanced)
	assert.Equal(t, 2, m.Len())

	block, cursor, advanced := m.CompleteOne(1)
	assert.True(t, advanced)
	assert.Equal(t, uint64(2), block) // drains straight through block 2 too
	assert.Equal(t, "cursor_2", cursor)
}

func TestZeroCountBlockIsNotTracked(t *testing.T) {
	m := pending.New()
	m.AddBlock(1, "cursor_1", 0)
	assert.Equal(t, 0, m.Len())
}
