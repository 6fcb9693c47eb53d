package devserver

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Iron-Ham/fabricctl/internal/api"
	"github.com/Iron-Ham/fabricctl/internal/step"
)

// job is one simulated fabric creation. Its progress is a pure function of
// the time elapsed since it was created.
type job struct {
	id       string
	fabricID string
	files    []string
	created  time.Time
}

// store holds the jobs the server has accepted and not yet cleared.
type store struct {
	mu   sync.Mutex
	jobs map[string]*job
}

func newStore() *store {
	return &store{jobs: make(map[string]*job)}
}

func (s *store) create(files []string, now time.Time) *job {
	id := uuid.NewString()
	j := &job{
		id:       id,
		fabricID: "fabric_" + id[:8],
		files:    append([]string(nil), files...),
		created:  now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[id] = j
	return j
}

func (s *store) get(id string) (*job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	return j, ok
}

// remove deletes id and reports whether it was present.
func (s *store) remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return false
	}
	delete(s.jobs, id)
	return true
}

func (s *store) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// pipeline describes how simulated jobs advance.
type pipeline struct {
	defs     []step.Definition
	interval time.Duration
	failAt   int // -1 when no stage fails
}

// snapshot reports j as it stands at now. Stage i runs during
// [i*interval, (i+1)*interval) after creation.
func (p pipeline) snapshot(j *job, now time.Time) api.ProgressSnapshot {
	n := len(p.defs)
	elapsed := max(now.Sub(j.created), 0)
	active := int(elapsed / p.interval)
	frac := float64(elapsed%p.interval) / float64(p.interval)

	snap := api.ProgressSnapshot{
		Steps:  make([]api.StepSnapshot, n),
		Status: "processing",
	}

	if p.failAt >= 0 && active >= p.failAt {
		for i, d := range p.defs {
			ss := api.StepSnapshot{ID: d.ID, Status: string(step.StatusPending)}
			switch {
			case i < p.failAt:
				ss.Status, ss.Progress = string(step.StatusCompleted), 100
			case i == p.failAt:
				ss.Status = string(step.StatusError)
				ss.Error = fmt.Sprintf("%s failed", d.Title)
			}
			snap.Steps[i] = ss
		}
		snap.Status = "failed"
		snap.CurrentStep = p.defs[p.failAt].ID
		snap.OverallProgress = 100 * float64(p.failAt) / float64(n)
		snap.Error = fmt.Sprintf("Knowledge fabric creation failed at %q", p.defs[p.failAt].Title)
		return snap
	}

	if active >= n {
		for i, d := range p.defs {
			snap.Steps[i] = api.StepSnapshot{ID: d.ID, Status: string(step.StatusCompleted), Progress: 100}
		}
		snap.Status = "completed"
		snap.OverallProgress = 100
		snap.FabricID = j.fabricID
		return snap
	}

	for i, d := range p.defs {
		ss := api.StepSnapshot{ID: d.ID, Status: string(step.StatusPending)}
		switch {
		case i < active:
			ss.Status, ss.Progress = string(step.StatusCompleted), 100
		case i == active:
			ss.Status, ss.Progress = string(step.StatusProcessing), 100*frac
		}
		snap.Steps[i] = ss
	}
	snap.CurrentStep = p.defs[active].ID
	snap.OverallProgress = 100 * (float64(active) + frac) / float64(n)
	return snap
}
