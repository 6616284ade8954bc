package stage

import "sync"

// Stage is one unit in the processing pipeline. The numeric id is assigned
// when the pipeline is built and stays stable for the stage's lifetime; the
// display name may change at any time.
type Stage struct {
	id uint16

	mu   sync.RWMutex
	name string
}

// New creates a stage with the given id and display name.
func New(id uint16, name string) *Stage {
	return &Stage{id: id, name: name}
}

// ID returns the stage's stable numeric id.
func (s *Stage) ID() uint16 {
	return s.id
}

// Name returns the current display name.
func (s *Stage) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

// Rename changes the display name. Descriptors the stage announced earlier
// keep the name that was current when they were constructed; only the
// numeric id ties them back to the stage afterwards.
func (s *Stage) Rename(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}
