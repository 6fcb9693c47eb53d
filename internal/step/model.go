package step

import "sync"

// Update is one step entry reported by the backend's progress snapshot.
// Status is the raw backend string; an unrecognised status leaves the
// existing status in place.
type Update struct {
	ID       string
	Status   string
	Progress float64
	Error    string
}

// Model is the ordered, fixed-size list of stages for a single run.
//
// Two writers share a Model. The local path (Begin, Advance, Complete) only
// ever moves a stage forward and never touches a stage the backend already
// finished. The remote path (ApplyRemote, SetOverall) is last-writer-wins for
// every field it addresses. Model is safe for concurrent use.
type Model struct {
	mu      sync.RWMutex
	steps   []Step
	index   map[string]int
	overall float64
	rev     uint64
}

// NewModel creates a Model with every stage pending at progress 0.
func NewModel(defs []Definition) *Model {
	m := &Model{
		steps: make([]Step, len(defs)),
		index: make(map[string]int, len(defs)),
	}
	for i, d := range defs {
		m.steps[i] = Step{
			ID:          d.ID,
			Title:       d.Title,
			Description: d.Description,
			Status:      StatusPending,
		}
		if d.ID != "" {
			m.index[d.ID] = i
		}
	}
	return m
}

// Len returns the number of stages.
func (m *Model) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.steps)
}

// Steps returns a copy of all stages.
func (m *Model) Steps() []Step {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Step, len(m.steps))
	copy(out, m.steps)
	return out
}

// Step returns a copy of the stage at index i.
func (m *Model) Step(i int) (Step, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i < 0 || i >= len(m.steps) {
		return Step{}, false
	}
	return m.steps[i], true
}

// IndexOf returns the position of the stage with the given id.
func (m *Model) IndexOf(id string) (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.index[id]
	return i, ok
}

// Overall returns the published overall progress. It never decreases for
// the lifetime of the Model.
func (m *Model) Overall() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.overall
}

// Revision increments on every mutation that changed observable state.
// Renderers use it to skip redundant redraws.
func (m *Model) Revision() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rev
}

// Current returns the index of the first processing stage, or -1.
func (m *Model) Current() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i, s := range m.steps {
		if s.Status == StatusProcessing {
			return i
		}
	}
	return -1
}

// Begin moves a pending stage to processing. It returns false when the
// stage is out of range or already terminal, in which case the local path
// should skip it.
func (m *Model) Begin(i int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.steps) {
		return false
	}
	s := &m.steps[i]
	switch s.Status {
	case StatusPending:
		s.Status = StatusProcessing
		m.changed()
		return true
	case StatusProcessing:
		return true
	default:
		return false
	}
}

// Advance raises the progress of a processing stage to p. Lower values and
// stages that are not processing are ignored. It reports whether the stage
// is still processing.
func (m *Model) Advance(i int, p float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.steps) {
		return false
	}
	s := &m.steps[i]
	if s.Status != StatusProcessing {
		return false
	}
	p = clampProgress(p)
	if p > s.Progress {
		s.Progress = p
		m.changed()
	}
	return true
}

// Complete marks a processing stage completed at 100. A stage the backend
// already completed is left alone; a stage in error is never promoted.
func (m *Model) Complete(i int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.steps) {
		return false
	}
	s := &m.steps[i]
	switch s.Status {
	case StatusProcessing, StatusPending:
		s.Status = StatusCompleted
		s.Progress = 100
		m.changed()
		return true
	case StatusCompleted:
		return true
	default:
		return false
	}
}

// Fail marks the stage at i as failed with the given message. Used by the
// local path when a submission aborts the run.
func (m *Model) Fail(i int, msg string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.steps) {
		return false
	}
	s := &m.steps[i]
	s.Status = StatusError
	s.Error = msg
	m.changed()
	return true
}

// ResetProcessing returns every processing stage to pending with its
// progress cleared. A run that aborts before the backend accepted it uses
// this so no stage is left spinning.
func (m *Model) ResetProcessing() {
	m.mu.Lock()
	defer m.mu.Unlock()
	changed := false
	for i := range m.steps {
		if m.steps[i].Status == StatusProcessing {
			m.steps[i].Status = StatusPending
			m.steps[i].Progress = 0
			changed = true
		}
	}
	if changed {
		m.changed()
	}
}

// ApplyRemote merges a backend snapshot into the model. Entries carrying an
// id are matched by id; entries without one are matched by their position
// in updates. Unknown ids and out-of-range positions are skipped. It returns
// the number of entries applied.
func (m *Model) ApplyRemote(updates []Update) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	applied := 0
	for pos, u := range updates {
		i := pos
		if u.ID != "" {
			idx, ok := m.index[u.ID]
			if !ok {
				continue
			}
			i = idx
		}
		if i < 0 || i >= len(m.steps) {
			continue
		}
		s := &m.steps[i]
		if st, ok := ParseStatus(u.Status); ok {
			s.Status = st
		}
		s.Progress = clampProgress(u.Progress)
		if s.Status == StatusCompleted {
			s.Progress = 100
		}
		s.Error = u.Error
		applied++
	}
	if applied > 0 {
		m.changed()
	}
	return applied
}

// SetOverall overrides the derived overall progress with a backend value.
// The published value still never decreases.
func (m *Model) SetOverall(p float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raise(clampProgress(p))
}

// Finish publishes 100 overall. Called on successful finalization.
func (m *Model) Finish() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raise(100)
}

// changed recomputes the derived overall progress and bumps the revision.
// Caller must hold m.mu.
func (m *Model) changed() {
	m.rev++
	m.raise(m.derived())
}

// raise ratchets the published overall progress. Caller must hold m.mu.
func (m *Model) raise(p float64) {
	if p > m.overall {
		m.overall = p
		m.rev++
	}
}

// derived computes (completed + fraction of in-flight stages) / total * 100.
// Caller must hold m.mu.
func (m *Model) derived() float64 {
	if len(m.steps) == 0 {
		return 0
	}
	var sum float64
	for _, s := range m.steps {
		switch s.Status {
		case StatusCompleted:
			sum++
		case StatusProcessing:
			sum += s.Progress / 100
		}
	}
	return clampProgress(sum / float64(len(m.steps)) * 100)
}
