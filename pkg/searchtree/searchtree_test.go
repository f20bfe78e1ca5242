package searchtree

import (
	"testing"

	"github.com/appdotbuild/agent/pkg/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTree_RootNode(t *testing.T) {
	tr := New(BaseData{Files: map[string]string{"a.txt": "1"}})

	assert.Equal(t, NodeID(0), tr.Root())
	root := tr.Get(tr.Root())
	assert.Equal(t, NoParent, root.Parent)
	assert.True(t, root.IsLeaf())
	assert.Equal(t, 1, tr.Size())
}

func TestTree_AddChildGrowsArenaAndLinks(t *testing.T) {
	tr := New(BaseData{})
	child := tr.AddChild(tr.Root(), BaseData{Files: map[string]string{"b.txt": "2"}})

	assert.Equal(t, NodeID(1), child)
	assert.Equal(t, 2, tr.Size())
	root := tr.Get(tr.Root())
	assert.False(t, root.IsLeaf())
	assert.Contains(t, root.Children, child)
}

func TestTree_Leaves(t *testing.T) {
	tr := New(BaseData{})
	c1 := tr.AddChild(tr.Root(), BaseData{})
	c2 := tr.AddChild(tr.Root(), BaseData{})

	leaves := tr.Leaves()
	assert.ElementsMatch(t, []NodeID{c1, c2}, leaves, "only childless nodes are leaves")
}

func TestTree_TrajectoryIsRootFirst(t *testing.T) {
	tr := New(BaseData{})
	c1 := tr.AddChild(tr.Root(), BaseData{})
	c2 := tr.AddChild(c1, BaseData{})

	traj := tr.Trajectory(c2)
	assert.Equal(t, []NodeID{tr.Root(), c1, c2}, traj)
}

func TestTree_FilesMergesLastWriterWins(t *testing.T) {
	tr := New(BaseData{Files: map[string]string{"a.txt": "root"}})
	c1 := tr.AddChild(tr.Root(), BaseData{Files: map[string]string{"a.txt": "child1", "b.txt": "b"}})
	c2 := tr.AddChild(c1, BaseData{Files: map[string]string{"b.txt": "child2"}})

	files := tr.Files(c2)
	assert.Equal(t, "child1", files["a.txt"], "later node's write should win for a conflicting path")
	assert.Equal(t, "child2", files["b.txt"])
}

func TestTree_MessagesConcatenatesAlongTrajectory(t *testing.T) {
	tr := New(BaseData{Messages: []llm.Message{llm.UserMessage("root")}})
	c1 := tr.AddChild(tr.Root(), BaseData{Messages: []llm.Message{llm.AssistantMessage("child")}})

	msgs := tr.Messages(c1)
	require.Len(t, msgs, 2)
	assert.Equal(t, "root", msgs[0].Content)
	assert.Equal(t, "child", msgs[1].Content)
}

func TestTree_GetInvalidIDPanics(t *testing.T) {
	tr := New(BaseData{})
	assert.Panics(t, func() { tr.Get(NodeID(99)) })
}
