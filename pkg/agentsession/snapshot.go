package agentsession

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/appdotbuild/agent/pkg/fsm"
)

// snapshotPhase distinguishes the two checkpoints a request can take
// against one traceId: the state it restored from, and the state it
// left behind when its stream closed.
type snapshotPhase string

const (
	phaseEnter snapshotPhase = "enter"
	phaseExit  snapshotPhase = "exit"
)

// SnapshotStore persists per-(traceId, phase) FSM checkpoints, the way
// pkg/session.Store persists per-id conversation sessions: in memory
// always, and additionally to disk when dir is non-empty.
type SnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string]fsm.Checkpoint
	dir       string
}

// NewSnapshotStore creates a store. dir == "" keeps snapshots in memory
// only, lost on process restart — acceptable for local/dev use, same
// tradeoff pkg/session.Store makes.
func NewSnapshotStore(dir string) (*SnapshotStore, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	return &SnapshotStore{snapshots: map[string]fsm.Checkpoint{}, dir: dir}, nil
}

func snapshotKey(traceID string, phase snapshotPhase) string {
	return traceID + ":" + string(phase)
}

// Put persists cp under (traceID, phase), overwriting any prior value.
func (st *SnapshotStore) Put(traceID string, phase snapshotPhase, cp fsm.Checkpoint) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	key := snapshotKey(traceID, phase)
	st.snapshots[key] = cp

	if st.dir == "" {
		return nil
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	return os.WriteFile(st.filePath(key), data, 0644)
}

// Get returns the checkpoint persisted under (traceID, phase), falling
// back to disk if the store was restarted since it was written.
func (st *SnapshotStore) Get(traceID string, phase snapshotPhase) (fsm.Checkpoint, bool) {
	st.mu.RLock()
	cp, ok := st.snapshots[snapshotKey(traceID, phase)]
	st.mu.RUnlock()
	if ok {
		return cp, true
	}
	if st.dir == "" {
		return fsm.Checkpoint{}, false
	}

	data, err := os.ReadFile(st.filePath(snapshotKey(traceID, phase)))
	if err != nil {
		return fsm.Checkpoint{}, false
	}
	var loaded fsm.Checkpoint
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fsm.Checkpoint{}, false
	}
	return loaded, true
}

// Delete removes both the enter and exit snapshots for traceID, from
// memory and, when the store has a directory, from disk.
func (st *SnapshotStore) Delete(traceID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, phase := range []snapshotPhase{phaseEnter, phaseExit} {
		key := snapshotKey(traceID, phase)
		delete(st.snapshots, key)
		if st.dir != "" {
			_ = os.Remove(st.filePath(key))
		}
	}
}

func (st *SnapshotStore) filePath(key string) string {
	return filepath.Join(st.dir, key+".json")
}
