package service

import "sync"

// Connectivity is whether the hosted services are reachable.
type Connectivity int

const (
	Offline Connectivity = iota
	Online
)

func (c Connectivity) String() string {
	switch c {
	case Online:
		return "online"
	case Offline:
		return "offline"
	}
	return "unknown"
}

// SessionState is who the data service is working for.
type SessionState int

const (
	// Guest keeps every record in the Local Store only.
	Guest SessionState = iota
	// Authenticated mirrors writes to the Remote Store under a user id.
	Authenticated
)

func (s SessionState) String() string {
	switch s {
	case Guest:
		return "guest"
	case Authenticated:
		return "authenticated"
	}
	return "unknown"
}

// DrainState is the state of the sync queue drainer.
type DrainState int

const (
	DrainIdle DrainState = iota
	Draining
)

func (s DrainState) String() string {
	switch s {
	case DrainIdle:
		return "idle"
	case Draining:
		return "draining"
	}
	return "unknown"
}

// MigrationRunState is the state of the encryption migration job.
type MigrationRunState int

const (
	MigrationIdle MigrationRunState = iota
	MigrationRunning
)

func (s MigrationRunState) String() string {
	switch s {
	case MigrationIdle:
		return "idle"
	case MigrationRunning:
		return "running"
	}
	return "unknown"
}

// CollectionPhase is where the migration stands for one collection.
type CollectionPhase int

const (
	// PhaseIdle means the collection was never scanned.
	PhaseIdle CollectionPhase = iota
	// PhaseScanning means a cursor exists and more pages may follow.
	PhaseScanning
	// PhaseDone is terminal until the state is reset.
	PhaseDone
)

func (p CollectionPhase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseScanning:
		return "scanning"
	case PhaseDone:
		return "done"
	}
	return "unknown"
}

// WriteOutcome is where a single create, update or delete ended up.
type WriteOutcome int

const (
	// Committed means the Remote Store accepted the write.
	Committed WriteOutcome = iota
	// Queued means the write was kept locally and enqueued for a later drain.
	Queued
	// LocalOnly means a guest write that never leaves the Local Store.
	LocalOnly
)

func (o WriteOutcome) String() string {
	switch o {
	case Committed:
		return "committed"
	case Queued:
		return "queued"
	case LocalOnly:
		return "local-only"
	}
	return "unknown"
}

// UpsertOutcome is the result of one import upsert.
type UpsertOutcome int

const (
	UpsertCreated UpsertOutcome = iota
	UpsertUpdated
	// UpsertSkipped means the stored content hash matched and nothing was written.
	UpsertSkipped
	UpsertQueued
	UpsertLocalOnly
)

func (o UpsertOutcome) String() string {
	switch o {
	case UpsertCreated:
		return "created"
	case UpsertUpdated:
		return "updated"
	case UpsertSkipped:
		return "skipped"
	case UpsertQueued:
		return "queued"
	case UpsertLocalOnly:
		return "local-only"
	}
	return "unknown"
}

// Session identifies the account the data service currently works for.
// UserID and Email are empty for guests.
type Session struct {
	State  SessionState `json:"-"`
	UserID string       `json:"userId,omitempty"`
	Email  string       `json:"email,omitempty"`
}

// IsAuthenticated reports whether a user is signed in.
func (s Session) IsAuthenticated() bool {
	return s.State == Authenticated && s.UserID != ""
}

// Status is the session and connectivity state shared by the data service,
// the sync queue and the background jobs. It is constructed once at the
// application boundary and handed to each of them.
type Status struct {
	mu           sync.RWMutex
	connectivity Connectivity
	session      Session
}

// NewStatus returns a guest status with the given initial connectivity.
func NewStatus(initial Connectivity) *Status {
	return &Status{connectivity: initial}
}

func (s *Status) Connectivity() Connectivity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connectivity
}

func (s *Status) IsOnline() bool {
	return s.Connectivity() == Online
}

// SetConnectivity stores c and reports whether it differs from the previous value.
func (s *Status) SetConnectivity(c Connectivity) (changed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed = s.connectivity != c
	s.connectivity = c
	return changed
}

func (s *Status) Session() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

func (s *Status) setSession(session Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = session
}

// remoteUser returns the signed-in user id when remote work is possible:
// a user is signed in and the process is online.
func (s *Status) remoteUser() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.session.IsAuthenticated() || s.connectivity != Online {
		return "", false
	}
	return s.session.UserID, true
}
