package scr

import "fmt"

// capabilityPromptID identifies the injected system message so repeat
// runs do not stack copies.
const capabilityPromptID = "engram-capability-prompt"

const capabilityPrompt = `You have a persistent project memory available through MCP tools.
Search it with memory_search before re-deriving project facts. Store durable
decisions, conventions, preferences and failures with memory_store as they
emerge. Use memory_file_check before re-reading files you have already
summarized; it reports whether the stored knowledge is still fresh.`

// roleTool marks tool-result messages, the only kind reduction touches.
const roleTool = "tool"

// purgeErrorAge is how many turns an error result stays interesting.
const purgeErrorAge = 3

// ─── System prompt injection ─────────────────────────────────────────────────

type systemPromptInjector struct{}

func (systemPromptInjector) Name() string { return "inject-system-prompt" }

func (systemPromptInjector) Reduce(t *Transcript, _ *State) error {
	for _, m := range t.Messages {
		if m.ID == capabilityPromptID {
			return nil
		}
	}
	injected := Message{
		ID:      capabilityPromptID,
		Role:    "system",
		Content: capabilityPrompt,
	}
	t.Messages = append([]Message{injected}, t.Messages...)
	return nil
}

// ─── Dedupe ──────────────────────────────────────────────────────────────────

// dedupeReducer condemns identical tool results, keeping the latest
// occurrence of each.
type dedupeReducer struct{}

func (dedupeReducer) Name() string { return "dedupe" }

func (dedupeReducer) Reduce(t *Transcript, st *State) error {
	latest := make(map[string]int)
	for i, m := range t.Messages {
		if m.Role != roleTool || m.Content == "" {
			continue
		}
		latest[m.ToolName+"\x00"+m.Content] = i
	}

	for i, m := range t.Messages {
		if m.Role != roleTool || m.Content == "" {
			continue
		}
		if latest[m.ToolName+"\x00"+m.Content] == i {
			continue
		}
		if st.mark(m.ID, "duplicate tool result") {
			st.Stats.Deduped++
		}
	}
	return nil
}

// ─── Supersede writes ────────────────────────────────────────────────────────

// supersedeWritesReducer condemns older write results for a path once a
// newer write to the same path exists.
type supersedeWritesReducer struct{}

func (supersedeWritesReducer) Name() string { return "supersede-writes" }

func (supersedeWritesReducer) Reduce(t *Transcript, st *State) error {
	latest := make(map[string]int)
	for i, m := range t.Messages {
		if m.Role != roleTool || m.FilePath == "" {
			continue
		}
		latest[m.FilePath] = i
	}

	for i, m := range t.Messages {
		if m.Role != roleTool || m.FilePath == "" {
			continue
		}
		if latest[m.FilePath] == i {
			continue
		}
		if st.mark(m.ID, fmt.Sprintf("superseded by later write to %s", m.FilePath)) {
			st.Stats.Superseded++
		}
	}
	return nil
}

// ─── Purge errors ────────────────────────────────────────────────────────────

// purgeErrorsReducer condemns error tool results older than a few
// turns. Recent errors stay: the model may still be reacting to them.
type purgeErrorsReducer struct{}

func (purgeErrorsReducer) Name() string { return "purge-errors" }

func (purgeErrorsReducer) Reduce(t *Transcript, st *State) error {
	currentTurn := 0
	for _, m := range t.Messages {
		if m.Turn > currentTurn {
			currentTurn = m.Turn
		}
	}

	for _, m := range t.Messages {
		if m.Role != roleTool || !m.IsError {
			continue
		}
		if currentTurn-m.Turn <= purgeErrorAge {
			continue
		}
		if st.mark(m.ID, "stale error result") {
			st.Stats.Purged++
		}
	}
	return nil
}

// ─── Prune pass ──────────────────────────────────────────────────────────────

// prunePassReducer materializes every condemnation in the state map:
// the message stays in the transcript but its content collapses to a
// placeholder naming the reason.
type prunePassReducer struct{}

func (prunePassReducer) Name() string { return "prune" }

func (prunePassReducer) Reduce(t *Transcript, st *State) error {
	for i := range t.Messages {
		m := &t.Messages[i]
		reason, condemned := st.Pruned[m.ID]
		if !condemned || m.Pruned {
			continue
		}
		placeholder := fmt.Sprintf("[pruned: %s]", reason)
		if saved := len(m.Content) - len(placeholder); saved > 0 {
			st.Stats.SavedChars += saved
		}
		m.Content = placeholder
		m.Pruned = true
		m.PruneReason = reason
		st.Stats.Pruned++
	}
	return nil
}
