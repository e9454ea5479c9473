// Package scr implements selective context reduction over LLM message
// transcripts.
//
// A pipeline of reducers walks the transcript in a fixed order. Earlier
// reducers only decide what should go, recording message ids in the
// session state; the final prune pass materializes those decisions by
// annotating messages and swapping their content for a short
// placeholder. Nothing is ever deleted from the transcript, so the host
// keeps full control over message framing.
package scr

import (
	"fmt"
	"log/slog"
)

// Message is one transcript entry as the host presents it.
type Message struct {
	ID          string `json:"id"`
	Role        string `json:"role"` // system, user, assistant, tool
	Content     string `json:"content"`
	ToolName    string `json:"tool_name,omitempty"`
	FilePath    string `json:"file_path,omitempty"` // set on file-write tool results
	IsError     bool   `json:"is_error,omitempty"`
	Turn        int    `json:"turn"`
	Pruned      bool   `json:"pruned,omitempty"`
	PruneReason string `json:"prune_reason,omitempty"`
}

// Transcript is the mutable message list a pipeline run operates on.
type Transcript struct {
	Messages []Message `json:"messages"`
}

// Stats counts what a single pipeline run did.
type Stats struct {
	Deduped    int `json:"deduped"`
	Superseded int `json:"superseded"`
	Purged     int `json:"purged"`
	Pruned     int `json:"pruned"`
	SavedChars int `json:"saved_chars"`
}

// State is the per-session reduction state. The prune map outlives the
// process so a rebuilt transcript is re-reduced to the same shape;
// Stats are reset at the start of every run.
type State struct {
	SessionID string            `json:"session_id"`
	Runs      int               `json:"runs"`
	Pruned    map[string]string `json:"pruned"` // message id -> reason
	Stats     Stats             `json:"stats"`
}

// mark records a prune decision. Returns false when the message was
// already condemned in this or an earlier run, or has no id to track.
func (st *State) mark(id, reason string) bool {
	if id == "" {
		return false
	}
	if _, ok := st.Pruned[id]; ok {
		return false
	}
	st.Pruned[id] = reason
	return true
}

// Reducer is one reduction strategy. Reducers run synchronously and
// must not block on I/O.
type Reducer interface {
	Name() string
	Reduce(t *Transcript, st *State) error
}

// Config holds pipeline dependencies.
type Config struct {
	// AutoRecall gates the system-prompt injector.
	AutoRecall bool
	// States persists session state between runs. Nil disables
	// persistence.
	States StateStore
	Logger *slog.Logger
}

// Pipeline runs the fixed reducer order over transcripts.
type Pipeline struct {
	reducers []Reducer
	states   StateStore
	logger   *slog.Logger
}

// New assembles the pipeline: system-prompt injection (when auto-recall
// is on), dedupe, supersede-writes, purge-errors, then the prune pass.
func New(cfg Config) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var reducers []Reducer
	if cfg.AutoRecall {
		reducers = append(reducers, &systemPromptInjector{})
	}
	reducers = append(reducers,
		&dedupeReducer{},
		&supersedeWritesReducer{},
		&purgeErrorsReducer{},
		&prunePassReducer{},
	)

	return &Pipeline{
		reducers: reducers,
		states:   cfg.States,
		logger:   logger,
	}
}

// Run reduces the transcript in place and returns the session state
// after this run. State persistence failures are absorbed with a
// warning; the reduction result stands either way.
func (p *Pipeline) Run(sessionID string, t *Transcript) (*State, error) {
	st := p.loadState(sessionID)
	st.Runs++
	st.Stats = Stats{}

	for _, r := range p.reducers {
		if err := r.Reduce(t, st); err != nil {
			return nil, fmt.Errorf("scr: reducer %s: %w", r.Name(), err)
		}
	}

	if p.states != nil {
		if err := p.states.Save(st); err != nil {
			p.logger.Warn("failed to persist reduction state",
				"session_id", sessionID, "error", err)
		}
	}
	return st, nil
}

func (p *Pipeline) loadState(sessionID string) *State {
	if p.states != nil {
		st, err := p.states.Load(sessionID)
		if err != nil {
			p.logger.Warn("failed to load reduction state, starting fresh",
				"session_id", sessionID, "error", err)
		} else if st != nil {
			if st.Pruned == nil {
				st.Pruned = make(map[string]string)
			}
			return st
		}
	}
	return &State{
		SessionID: sessionID,
		Pruned:    make(map[string]string),
	}
}
