package graph_test

import (
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/atlasxyz/atlas/graph"
)

func TestMarshalRoundTripIsByteIdentical(t *testing.T) {
	s := graph.New()
	root, a, b := sid(1), sid(2), sid(3)
	createSpace(t, s, root, tid(1))
	createSpace(t, s, a, tid(2))
	createSpace(t, s, b, tid(3))
	verify(t, s, root, a)
	subtopic(t, s, a, tid(3))

	data1, err := s.MarshalBinary()
	assert.NoError(t, err)

	restored := graph.New()
	assert.NoError(t, restored.UnmarshalBinary(data1))

	data2, err := restored.MarshalBinary()
	assert.NoError(t, err)
	assert.Equal(t, data1, data2)

	assert.True(t, restored.HasSpace(a))
	children := restored.ExplicitChildren(root)
	assert.Equal(t, 1, len(children))
	assert.Equal(t, a, children[0].Target)

	members := restored.TopicMembers(tid(3))
	assert.Equal(t, 1, len(members))
	assert.Equal(t, b, members[0])
}
