package alerts

import (
	"sync"

	"alertmtl.app/models"
)

// Tracker keeps the last accepted snapshot per entity and detects state changes
type Tracker struct {
	mutex   sync.RWMutex
	last    map[string]models.StatusSnapshot
	log     []models.TransitionEvent
	logSize int
}

// NewTracker creates a tracker keeping the given number of recent transitions
func NewTracker(logSize int) *Tracker {
	if logSize <= 0 {
		logSize = 20
	}
	return &Tracker{
		last:    make(map[string]models.StatusSnapshot),
		logSize: logSize,
	}
}

// Advance records a snapshot and returns the transition it completes, if any.
// The first snapshot for an entity seeds the tracker without an event. Stale
// snapshots and snapshots observed before the current one never advance.
func (t *Tracker) Advance(snapshot *models.StatusSnapshot) *models.TransitionEvent {
	if snapshot == nil {
		return nil
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	prev, exists := t.last[snapshot.Entity]
	if !exists {
		t.last[snapshot.Entity] = *snapshot
		return nil
	}

	if snapshot.Stale {
		return nil
	}

	if snapshot.ObservedAt.Before(prev.ObservedAt) {
		return nil
	}

	if snapshot.State == prev.State {
		t.last[snapshot.Entity] = *snapshot
		return nil
	}

	event := models.TransitionEvent{
		Entity:      snapshot.Entity,
		City:        snapshot.City,
		From:        prev.State,
		To:          snapshot.State,
		ObservedAt:  snapshot.ObservedAt,
		WindowStart: snapshot.WindowStart,
		WindowEnd:   snapshot.WindowEnd,
	}

	t.last[snapshot.Entity] = *snapshot
	t.log = append(t.log, event)
	if len(t.log) > t.logSize {
		t.log = t.log[len(t.log)-t.logSize:]
	}

	return &event
}

// Current returns the last accepted snapshot for an entity
func (t *Tracker) Current(entity string) (models.StatusSnapshot, bool) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	snapshot, exists := t.last[entity]
	return snapshot, exists
}

// Transitions returns the recent transitions, newest last
func (t *Tracker) Transitions() []models.TransitionEvent {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	events := make([]models.TransitionEvent, len(t.log))
	copy(events, t.log)
	return events
}

// TrackedEntities returns the number of entities with an accepted snapshot
func (t *Tracker) TrackedEntities() int {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return len(t.last)
}

// Forget drops the tracked snapshot for an entity
func (t *Tracker) Forget(entity string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	delete(t.last, entity)
}
