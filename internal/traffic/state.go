package traffic

import "sync"

// Scenario labels published to the shared state. The sampling loop
// treats anything other than ScenarioIdle as a live scenario when
// deciding whether an endpoint is active.
const (
	ScenarioIdle    = "idle"
	ScenarioStopped = "stopped"
	ScenarioHighway = "A-Highway"
	ScenarioUrban   = "B-Urban"
	ScenarioSuburb  = "C-Suburb"
	doneSuffix      = "-done"
)

// Snapshot is an immutable copy of the traffic state at one instant.
// Readers never see the live set, so endpoints processed within a
// single sampling tick all observe the same scenario.
type Snapshot struct {
	Scenario string          `json:"scenario"`
	Active   map[string]bool `json:"active_endpoints"`
	Running  bool            `json:"running"`
	Cycle    int             `json:"cycle_count"`
}

// IsActive reports whether the endpoint was in the active set when the
// snapshot was taken.
func (s Snapshot) IsActive(name string) bool {
	return s.Active[name]
}

// State is the record shared between the scenario scheduler (sole
// writer) and the sampling loop (sole reader). Every access holds the
// mutex for its full duration; critical sections are memory copies and
// never touch I/O.
type State struct {
	mu       sync.Mutex
	scenario string
	active   map[string]bool
	running  bool
	cycle    int
}

// NewState returns the initial idle state.
func NewState() *State {
	return &State{
		scenario: ScenarioIdle,
		active:   make(map[string]bool),
	}
}

// Snapshot returns a deep copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := make(map[string]bool, len(s.active))
	for name := range s.active {
		active[name] = true
	}
	return Snapshot{
		Scenario: s.scenario,
		Active:   active,
		Running:  s.running,
		Cycle:    s.cycle,
	}
}

// SetScenario atomically replaces the scenario label and the active
// endpoint set.
func (s *State) SetScenario(label string, endpoints []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scenario = label
	s.active = make(map[string]bool, len(endpoints))
	for _, name := range endpoints {
		s.active[name] = true
	}
}

// MarkRunning flips the scheduler-running flag.
func (s *State) MarkRunning(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = running
}

// IncrementCycle bumps the cycle counter and returns the new value.
func (s *State) IncrementCycle() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycle++
	return s.cycle
}
