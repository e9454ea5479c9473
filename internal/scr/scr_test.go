package scr

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newPipeline(t *testing.T, cfg Config) *Pipeline {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = discardLogger()
	}
	return New(cfg)
}

func toolMsg(id, tool, content string, turn int) Message {
	return Message{ID: id, Role: roleTool, ToolName: tool, Content: content, Turn: turn}
}

func TestPipeline_InjectsCapabilityPrompt(t *testing.T) {
	t.Parallel()
	p := newPipeline(t, Config{AutoRecall: true})
	tr := &Transcript{Messages: []Message{
		{ID: "u1", Role: "user", Content: "hello", Turn: 1},
	}}

	_, err := p.Run("s1", tr)
	require.NoError(t, err)
	require.Len(t, tr.Messages, 2)
	assert.Equal(t, "system", tr.Messages[0].Role)
	assert.Equal(t, capabilityPromptID, tr.Messages[0].ID)
	assert.Contains(t, tr.Messages[0].Content, "memory_search")

	// Re-running the same transcript must not stack a second copy.
	_, err = p.Run("s1", tr)
	require.NoError(t, err)
	assert.Len(t, tr.Messages, 2)
}

func TestPipeline_NoInjectionWhenAutoRecallOff(t *testing.T) {
	t.Parallel()
	p := newPipeline(t, Config{AutoRecall: false})
	tr := &Transcript{Messages: []Message{
		{ID: "u1", Role: "user", Content: "hello", Turn: 1},
	}}

	_, err := p.Run("s1", tr)
	require.NoError(t, err)
	require.Len(t, tr.Messages, 1)
	assert.Equal(t, "user", tr.Messages[0].Role)
}

func TestDedupe_KeepsLatestIdenticalToolResult(t *testing.T) {
	t.Parallel()
	p := newPipeline(t, Config{})
	tr := &Transcript{Messages: []Message{
		toolMsg("t1", "read_file", "contents of foo.go", 1),
		toolMsg("t2", "read_file", "contents of foo.go", 3),
		toolMsg("t3", "read_file", "contents of bar.go", 4),
	}}

	st, err := p.Run("s1", tr)
	require.NoError(t, err)

	assert.True(t, tr.Messages[0].Pruned)
	assert.Equal(t, "duplicate tool result", tr.Messages[0].PruneReason)
	assert.Equal(t, "[pruned: duplicate tool result]", tr.Messages[0].Content)
	assert.False(t, tr.Messages[1].Pruned, "latest occurrence survives")
	assert.False(t, tr.Messages[2].Pruned)
	assert.Equal(t, 1, st.Stats.Deduped)
	assert.Equal(t, 1, st.Stats.Pruned)
}

func TestDedupe_DifferentToolsAreNotDuplicates(t *testing.T) {
	t.Parallel()
	p := newPipeline(t, Config{})
	tr := &Transcript{Messages: []Message{
		toolMsg("t1", "read_file", "same payload", 1),
		toolMsg("t2", "grep", "same payload", 2),
	}}

	st, err := p.Run("s1", tr)
	require.NoError(t, err)
	assert.False(t, tr.Messages[0].Pruned)
	assert.False(t, tr.Messages[1].Pruned)
	assert.Equal(t, 0, st.Stats.Deduped)
}

func TestSupersedeWrites_OlderWriteForSamePath(t *testing.T) {
	t.Parallel()
	p := newPipeline(t, Config{})

	w1 := toolMsg("w1", "write_file", "wrote 120 bytes", 1)
	w1.FilePath = "internal/app/main.go"
	w2 := toolMsg("w2", "write_file", "wrote 240 bytes", 4)
	w2.FilePath = "internal/app/main.go"
	w3 := toolMsg("w3", "write_file", "wrote 80 bytes", 5)
	w3.FilePath = "README.md"
	tr := &Transcript{Messages: []Message{w1, w2, w3}}

	st, err := p.Run("s1", tr)
	require.NoError(t, err)

	assert.True(t, tr.Messages[0].Pruned)
	assert.Contains(t, tr.Messages[0].PruneReason, "internal/app/main.go")
	assert.False(t, tr.Messages[1].Pruned, "newest write to the path survives")
	assert.False(t, tr.Messages[2].Pruned, "other paths are untouched")
	assert.Equal(t, 1, st.Stats.Superseded)
}

func TestPurgeErrors_OnlyOlderThanThreeTurns(t *testing.T) {
	t.Parallel()
	p := newPipeline(t, Config{})

	oldErr := toolMsg("e1", "bash", "exit status 1", 1)
	oldErr.IsError = true
	recentErr := toolMsg("e2", "bash", "exit status 2", 2)
	recentErr.IsError = true
	oldOK := toolMsg("t1", "bash", "done", 1)
	tr := &Transcript{Messages: []Message{
		oldErr,
		recentErr,
		oldOK,
		{ID: "u1", Role: "user", Content: "next", Turn: 5},
	}}

	st, err := p.Run("s1", tr)
	require.NoError(t, err)

	assert.True(t, tr.Messages[0].Pruned, "error 4 turns old is purged")
	assert.Equal(t, "stale error result", tr.Messages[0].PruneReason)
	assert.False(t, tr.Messages[1].Pruned, "error 3 turns old is kept")
	assert.False(t, tr.Messages[2].Pruned, "old success results are not errors")
	assert.Equal(t, 1, st.Stats.Purged)
}

func TestPrunePass_ReplacesContentAndCountsSavings(t *testing.T) {
	t.Parallel()
	p := newPipeline(t, Config{})

	big := strings.Repeat("x", 100)
	tr := &Transcript{Messages: []Message{
		toolMsg("t1", "read_file", big, 1),
		toolMsg("t2", "read_file", big, 2),
	}}

	st, err := p.Run("s1", tr)
	require.NoError(t, err)

	require.Len(t, tr.Messages, 2, "pruning annotates, never deletes")
	placeholder := "[pruned: duplicate tool result]"
	assert.Equal(t, placeholder, tr.Messages[0].Content)
	assert.Equal(t, big, tr.Messages[1].Content)
	assert.Equal(t, 100-len(placeholder), st.Stats.SavedChars)
	assert.Equal(t, 1, st.Stats.Pruned)
}

func TestPipeline_MessagesWithoutIDsAreLeftAlone(t *testing.T) {
	t.Parallel()
	p := newPipeline(t, Config{})
	tr := &Transcript{Messages: []Message{
		toolMsg("", "read_file", "same", 1),
		toolMsg("", "read_file", "same", 2),
	}}

	st, err := p.Run("s1", tr)
	require.NoError(t, err)
	assert.False(t, tr.Messages[0].Pruned)
	assert.Equal(t, 0, st.Stats.Deduped)
	assert.Equal(t, 0, st.Stats.Pruned)
}

func TestPipeline_StatePersistsAcrossRuns(t *testing.T) {
	t.Parallel()
	store := NewFileStateStore(t.TempDir())

	transcript := func() *Transcript {
		return &Transcript{Messages: []Message{
			toolMsg("t1", "read_file", "contents of foo.go", 1),
			toolMsg("t2", "read_file", "contents of foo.go", 3),
		}}
	}

	p1 := newPipeline(t, Config{States: store})
	st1, err := p1.Run("sess-9", transcript())
	require.NoError(t, err)
	assert.Equal(t, 1, st1.Runs)
	assert.Equal(t, 1, st1.Stats.Deduped)

	// A new pipeline instance stands in for a process restart. The
	// rebuilt transcript is reduced to the same shape and the earlier
	// decision is not double-counted.
	p2 := newPipeline(t, Config{States: store})
	tr := transcript()
	st2, err := p2.Run("sess-9", tr)
	require.NoError(t, err)
	assert.Equal(t, 2, st2.Runs)
	assert.Equal(t, 0, st2.Stats.Deduped, "decision already on record")
	assert.Equal(t, 1, st2.Stats.Pruned, "but it is re-applied to the fresh transcript")
	assert.True(t, tr.Messages[0].Pruned)
}

type failingStateStore struct{}

func (failingStateStore) Load(string) (*State, error) { return nil, nil }
func (failingStateStore) Save(*State) error           { return errors.New("disk full") }

func TestRun_StateSaveFailureIsAbsorbed(t *testing.T) {
	t.Parallel()
	p := newPipeline(t, Config{States: failingStateStore{}})
	tr := &Transcript{Messages: []Message{
		toolMsg("t1", "read_file", "payload", 1),
	}}

	st, err := p.Run("s1", tr)
	require.NoError(t, err, "persistence trouble must not fail the reduction")
	assert.NotNil(t, st)
}
