package service

import (
	"sort"
	"sync"
	"time"

	"github.com/stemsi/labquiz/internal/model"
)

// SessionState is the server-held state of one Active attempt.
type SessionState struct {
	ID        string
	StudentID string
	StartedAt time.Time
	Deadline  time.Time
	IP        string
	Questions []model.Question

	mu       sync.Mutex
	answers  map[int]string
	finished bool
}

func newSessionState(id, studentID, ip string, start time.Time, duration time.Duration, questions []model.Question) *SessionState {
	return &SessionState{
		ID:        id,
		StudentID: studentID,
		StartedAt: start,
		Deadline:  start.Add(duration),
		IP:        ip,
		Questions: questions,
		answers:   make(map[int]string),
	}
}

// Remaining is the time left before the deadline, floored at zero.
func (s *SessionState) Remaining(now time.Time) time.Duration {
	if d := s.Deadline.Sub(now); d > 0 {
		return d
	}
	return 0
}

func (s *SessionState) assigned(questionID int) bool {
	for _, q := range s.Questions {
		if q.ID == questionID {
			return true
		}
	}
	return false
}

// SetAnswer autosaves the selection for an assigned question. An empty option clears it.
func (s *SessionState) SetAnswer(questionID int, option string) error {
	if !s.assigned(questionID) {
		return ErrQuestionNotAssigned
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return ErrSessionFinished
	}
	if option == "" {
		delete(s.answers, questionID)
	} else {
		s.answers[questionID] = option
	}
	return nil
}

// Answers returns a copy of the autosaved selections.
func (s *SessionState) Answers() map[int]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]string, len(s.answers))
	for k, v := range s.answers {
		out[k] = v
	}
	return out
}

// View renders the student-facing snapshot.
func (s *SessionState) View(now time.Time) model.SessionView {
	questions := make([]model.QuestionForStudent, len(s.Questions))
	for i, q := range s.Questions {
		questions[i] = q.ForStudent()
	}
	return model.SessionView{
		SessionID:        s.ID,
		StudentID:        s.StudentID,
		StartedAt:        s.StartedAt,
		Deadline:         s.Deadline,
		RemainingSeconds: int(s.Remaining(now) / time.Second),
		Questions:        questions,
		Answers:          s.Answers(),
	}
}

func (s *SessionState) info() model.ActiveSessionInfo {
	s.mu.Lock()
	answered := len(s.answers)
	s.mu.Unlock()
	return model.ActiveSessionInfo{
		StudentID: s.StudentID,
		SessionID: s.ID,
		StartedAt: s.StartedAt,
		Deadline:  s.Deadline,
		IP:        s.IP,
		Answered:  answered,
	}
}

// registryEntry is either a pending reservation (state == nil) or a live session.
type registryEntry struct {
	state *SessionState
}

// SessionRegistry is the process-wide set of students mid-attempt.
// A student appears at most once, either reserved by an in-flight login or Active.
type SessionRegistry struct {
	mu      sync.Mutex
	entries map[string]*registryEntry
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{entries: make(map[string]*registryEntry)}
}

// Reservation holds a student's registry slot while a login is validated.
// Exactly one of Commit or Abort must be called.
type Reservation struct {
	r     *SessionRegistry
	entry *registryEntry
	id    string
	done  bool
}

// Reserve claims the slot for studentID, or returns false if it is taken.
func (r *SessionRegistry) Reserve(studentID string) (*Reservation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.entries[studentID]; taken {
		return nil, false
	}
	e := &registryEntry{}
	r.entries[studentID] = e
	return &Reservation{r: r, entry: e, id: studentID}, true
}

// Commit turns the reservation into an Active session.
func (res *Reservation) Commit(state *SessionState) {
	res.r.mu.Lock()
	defer res.r.mu.Unlock()
	if res.done {
		return
	}
	res.done = true
	res.entry.state = state
}

// Abort releases the slot.
func (res *Reservation) Abort() {
	res.r.mu.Lock()
	defer res.r.mu.Unlock()
	if res.done {
		return
	}
	res.done = true
	if res.r.entries[res.id] == res.entry {
		delete(res.r.entries, res.id)
	}
}

// Get returns the Active session of a student. Pending reservations are not visible.
func (r *SessionRegistry) Get(studentID string) (*SessionState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[studentID]
	if !ok || e.state == nil {
		return nil, false
	}
	return e.state, true
}

// Remove deletes the student's session if its id matches sessionID. An empty
// sessionID removes whatever session is Active. Removing an absent entry is a no-op.
func (r *SessionRegistry) Remove(studentID, sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[studentID]
	if !ok || e.state == nil {
		return false
	}
	if sessionID != "" && e.state.ID != sessionID {
		return false
	}
	delete(r.entries, studentID)
	return true
}

// Contains reports whether the student is reserved or Active.
func (r *SessionRegistry) Contains(studentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[studentID]
	return ok
}

// Sessions returns the Active sessions sorted by student id.
func (r *SessionRegistry) Sessions() []*SessionState {
	r.mu.Lock()
	out := make([]*SessionState, 0, len(r.entries))
	for _, e := range r.entries {
		if e.state != nil {
			out = append(out, e.state)
		}
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out
}

// Len returns the number of reserved or Active students.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// IsStale reports whether studentID has an Active session other than sessionID.
func (r *SessionRegistry) IsStale(studentID, sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[studentID]
	if !ok || e.state == nil {
		return false
	}
	return e.state.ID != sessionID
}
