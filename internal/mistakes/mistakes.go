// Package mistakes turns failed tool output into anti-pattern memories.
//
// The extractor is deliberately conservative: one mistake per output,
// a hard per-session budget, and per-session signature deduplication,
// so a looping build failure cannot flood the store.
package mistakes

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/engramdev/engram/internal/memory"
)

const (
	// MaxPerSession caps how many mistakes one session may store.
	MaxPerSession = 10

	contextLimit = 300
)

// Catalogue is the pattern set driving extraction. Errors select
// trigger lines; Ignores veto lines that only look alarming.
type Catalogue struct {
	Errors  []*regexp.Regexp
	Ignores []*regexp.Regexp
}

// DefaultCatalogue covers the failure shapes of common toolchains:
// test runners, compilers, shells, git, and package managers.
func DefaultCatalogue() Catalogue {
	return Catalogue{
		Errors: []*regexp.Regexp{
			// test failures
			regexp.MustCompile(`^--- FAIL:`),
			regexp.MustCompile(`(?i)^FAILED\b`),
			regexp.MustCompile(`(?i)\b(\d+|tests?) failed\b`),
			regexp.MustCompile(`(?i)\bassertion failed\b`),
			regexp.MustCompile(`\bAssertionError\b`),
			// compile and type errors
			regexp.MustCompile(`(?i)^\s*error(\[E\d+\])?:`),
			regexp.MustCompile(`\berror TS\d+\b`),
			regexp.MustCompile(`(?i)\b(syntax|type|compile|compilation) error\b`),
			regexp.MustCompile(`\b(TypeError|SyntaxError|ReferenceError|NameError)\b`),
			regexp.MustCompile(`(?i)\bundefined:`),
			// command and filesystem failures
			regexp.MustCompile(`(?i)\bcommand not found\b`),
			regexp.MustCompile(`(?i)\bpermission denied\b`),
			regexp.MustCompile(`(?i)\bno such file or directory\b`),
			// git
			regexp.MustCompile(`^CONFLICT \(`),
			regexp.MustCompile(`(?i)\bmerge conflict\b`),
			regexp.MustCompile(`(?i)^fatal:`),
			// dependency resolution
			regexp.MustCompile(`(?i)\bmodule\b.*\bnot found\b`),
			regexp.MustCompile(`(?i)\bModuleNotFoundError\b`),
			regexp.MustCompile(`(?i)\bNo module named\b`),
			regexp.MustCompile(`^npm ERR!`),
			regexp.MustCompile(`\bERESOLVE\b`),
		},
		Ignores: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bwarn(ing)?\b`),
			regexp.MustCompile(`(?i)\bdeprecat`),
		},
	}
}

// Config holds extractor dependencies.
type Config struct {
	Store  *memory.Store
	Logger *slog.Logger
	// Catalogue replaces the default pattern set when non-nil.
	Catalogue *Catalogue
}

// Extractor scans tool output for failure lines and stores them as
// anti-pattern memories.
type Extractor struct {
	store     *memory.Store
	logger    *slog.Logger
	catalogue Catalogue

	mu       sync.Mutex
	sessions map[string]*sessionBudget
}

type sessionBudget struct {
	stored     int
	signatures map[string]bool
}

// New creates an Extractor over the given store.
func New(cfg Config) *Extractor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	catalogue := DefaultCatalogue()
	if cfg.Catalogue != nil {
		catalogue = *cfg.Catalogue
	}
	return &Extractor{
		store:     cfg.Store,
		logger:    logger,
		catalogue: catalogue,
		sessions:  make(map[string]*sessionBudget),
	}
}

// Extract scans output for the first real failure line and stores it
// with one line of surrounding context. Reports whether a mistake was
// stored; budget exhaustion and repeats within a session return false
// without error.
func (e *Extractor) Extract(toolName, output, sessionID, projectID string) (bool, error) {
	lines := strings.Split(strings.ReplaceAll(output, "\r\n", "\n"), "\n")

	idx := -1
	for i, line := range lines {
		if e.ignored(line) {
			continue
		}
		if e.matchesError(line) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, nil
	}

	sig := normalizeSignature(lines[idx])

	e.mu.Lock()
	b := e.budget(sessionID)
	if b.stored >= MaxPerSession {
		e.mu.Unlock()
		e.logger.Debug("mistake budget exhausted", "session_id", sessionID)
		return false, nil
	}
	if b.signatures[sig] {
		e.mu.Unlock()
		return false, nil
	}
	b.signatures[sig] = true
	b.stored++
	e.mu.Unlock()

	tool := strings.TrimSpace(toolName)
	_, _, err := e.store.Insert(memory.StoreParams{
		Content:   contextAround(lines, idx),
		Category:  "anti-pattern",
		SessionID: sessionID,
		ProjectID: projectID,
		Source:    "mistake-tracking: " + tool,
		Tags:      []string{"anti-pattern", "mistake", tool},
		Force:     true,
	})
	if err != nil {
		e.mu.Lock()
		delete(b.signatures, sig)
		b.stored--
		e.mu.Unlock()
		return false, fmt.Errorf("mistakes: store: %w", err)
	}
	return true, nil
}

// Remaining reports how much of the session's mistake budget is left.
func (e *Extractor) Remaining(sessionID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return MaxPerSession - e.budget(sessionID).stored
}

func (e *Extractor) budget(sessionID string) *sessionBudget {
	b, ok := e.sessions[sessionID]
	if !ok {
		b = &sessionBudget{signatures: make(map[string]bool)}
		e.sessions[sessionID] = b
	}
	return b
}

func (e *Extractor) matchesError(line string) bool {
	for _, p := range e.catalogue.Errors {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}

func (e *Extractor) ignored(line string) bool {
	for _, p := range e.catalogue.Ignores {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}

var digitRuns = regexp.MustCompile(`\d+`)

// normalizeSignature folds a trigger line into a stable dedup key:
// case and whitespace collapsed, digit runs masked so timings, line
// numbers and counters do not defeat the dedup.
func normalizeSignature(line string) string {
	s := strings.ToLower(strings.Join(strings.Fields(line), " "))
	return digitRuns.ReplaceAllString(s, "#")
}

// contextAround returns the trigger line with one neighbor on each
// side, truncated to the context limit.
func contextAround(lines []string, idx int) string {
	start := idx - 1
	if start < 0 {
		start = 0
	}
	end := idx + 2
	if end > len(lines) {
		end = len(lines)
	}

	ctx := strings.TrimSpace(strings.Join(lines[start:end], "\n"))
	runes := []rune(ctx)
	if len(runes) <= contextLimit {
		return ctx
	}
	return string(runes[:contextLimit-3]) + "..."
}
