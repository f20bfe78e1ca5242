package agentsession

import (
	"sync"
	"time"
)

// stageOrder is the happy-path sequence appfsm's states advance
// through, used only to compute a rough completion percentage — a
// feedback loop can revisit an earlier stage, so this is a progress
// estimate, not a guarantee of monotonic advancement.
var stageOrder = []string{
	"IDLE", "DRAFT", "REVIEW_DRAFT", "HANDLERS", "REVIEW_HANDLERS",
	"INDEX", "REVIEW_INDEX", "FRONTEND", "REVIEW_FRONTEND", "COMPLETE",
}

var stageIndex = func() map[string]int {
	m := make(map[string]int, len(stageOrder))
	for i, s := range stageOrder {
		m[s] = i
	}
	return m
}()

// StageTransition records one move from one FSM stage to another.
type StageTransition struct {
	From      string
	To        string
	Timestamp time.Time
}

// StageTracker tracks the stage history of one AgentSession's
// underlying FSM across repeated Step calls, mirroring the
// transition-history bookkeeping of pkg/agent.LoopState without that
// package's loop-specific iteration/retry counters, which appfsm has no
// equivalent of.
type StageTracker struct {
	mu sync.RWMutex

	Current        string
	StageStart     time.Time
	LastTransition time.Time
	History        []StageTransition
}

// NewStageTracker returns a tracker positioned at IDLE.
func NewStageTracker() *StageTracker {
	now := time.Now()
	return &StageTracker{Current: "IDLE", StageStart: now, LastTransition: now}
}

// Enter records a move into stage, appending to History only if stage
// differs from the current one (a no-op Step that leaves the FSM where
// it was does not pollute the history).
func (t *StageTracker) Enter(stage string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if stage == t.Current {
		return
	}
	now := time.Now()
	t.History = append(t.History, StageTransition{From: t.Current, To: stage, Timestamp: now})
	t.Current = stage
	t.StageStart = now
	t.LastTransition = now
}

// StageDuration reports how long the tracker has been in its current
// stage.
func (t *StageTracker) StageDuration() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return time.Since(t.StageStart)
}

// IsTerminal reports whether the current stage is COMPLETE or FAILURE.
func (t *StageTracker) IsTerminal() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Current == "COMPLETE" || t.Current == "FAILURE"
}

// Progress estimates completion percentage from the current stage's
// position in stageOrder. Stages outside stageOrder (there are none in
// the current pipeline, but a future addition shouldn't panic) report
// 0.
func (t *StageTracker) Progress() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	idx, ok := stageIndex[t.Current]
	if !ok {
		return 0
	}
	return idx * 100 / (len(stageOrder) - 1)
}
