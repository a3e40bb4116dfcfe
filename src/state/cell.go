package state

import (
	"sync/atomic"

	"restic-exporter/src/backend"
	"restic-exporter/src/snapshot"
)

// TargetState is the published view of one target. A published value is
// never modified afterwards; writers build a new one.
type TargetState struct {
	Ready      bool
	Repository backend.Repository
	Snapshots  []snapshot.Snapshot
}

// Cell holds the latest TargetState of a target. Publish is called by the
// owning refresher only; Snapshot may be called from any goroutine and never
// blocks. The zero Cell is ready to use and reports an unready state.
type Cell struct {
	v atomic.Pointer[TargetState]
}

// Publish replaces the current state. The caller must not modify st.Snapshots
// after publishing.
func (c *Cell) Publish(st TargetState) {
	c.v.Store(&st)
}

// Snapshot returns the most recently published state.
func (c *Cell) Snapshot() TargetState {
	if p := c.v.Load(); p != nil {
		return *p
	}
	return TargetState{}
}
