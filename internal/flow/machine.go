package flow

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	DefaultDateLayout = "02.01.2006 15:04"
	defaultIdleTTL    = 30 * time.Minute
)

// Machine holds the sessions of all users and applies events to them
type Machine struct {
	sessions map[int64]*Session
	mu       sync.RWMutex

	loc     *time.Location
	layout  string
	idleTTL time.Duration
	now     func() time.Time
}

// NewMachine creates a Machine that parses dates with layout in loc
func NewMachine(loc *time.Location, layout string) *Machine {
	if loc == nil {
		loc = time.UTC
	}
	if layout == "" {
		layout = DefaultDateLayout
	}
	return &Machine{
		sessions: make(map[int64]*Session),
		loc:      loc,
		layout:   layout,
		idleTTL:  defaultIdleTTL,
		now:      time.Now,
	}
}

// Layout returns the date layout users are expected to type
func (m *Machine) Layout() string { return m.layout }

// Location returns the zone typed dates are interpreted in
func (m *Machine) Location() *time.Location { return m.loc }

// State returns the current state of userID, Idle when there is no session
func (m *Machine) State(userID int64) State {
	s, ok := m.Session(userID)
	if !ok {
		return Idle
	}
	return s.State
}

// Session returns a copy of the active session of userID
func (m *Machine) Session(userID int64) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[userID]
	if !ok || m.expired(s) {
		return Session{}, false
	}
	return *s, true
}

// Reset drops the session of userID and reports whether one was active
func (m *Machine) Reset(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	delete(m.sessions, userID)
	return ok && !m.expired(s)
}

// Sweep removes sessions idle for longer than the TTL
func (m *Machine) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, s := range m.sessions {
		if m.expired(s) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

func (m *Machine) expired(s *Session) bool {
	return m.now().Sub(s.UpdatedAt) > m.idleTTL
}

// Fire applies ev to the session of userID. On error the session keeps its
// state.
func (m *Machine) Fire(userID int64, ev Event) (Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.sessions[userID]
	if ok && m.expired(cur) {
		delete(m.sessions, userID)
		ok = false
	}
	if !ok {
		cur = &Session{State: Idle}
	}

	next := *cur
	next.UpdatedAt = m.now()

	switch e := ev.(type) {
	case Begin:
		next = Session{State: AwaitingContent, UpdatedAt: next.UpdatedAt}
	case OpenStaffChat:
		next = Session{State: StaffChat, UpdatedAt: next.UpdatedAt}
	case Cancel:
		delete(m.sessions, userID)
		if !ok {
			return None{}, nil
		}
		return Cancelled{}, nil
	case Content:
		if cur.State != AwaitingContent {
			return nil, unexpected(cur.State, ev)
		}
		next.Source = e.Source
		next.State = ChoosingType
	case PickType:
		if cur.State != ChoosingType {
			return nil, unexpected(cur.State, ev)
		}
		next.Pin = e.Pin
		next.State = ChoosingTime
	case SendNow:
		if cur.State != ChoosingTime {
			return nil, unexpected(cur.State, ev)
		}
		delete(m.sessions, userID)
		return DistributeNow{Source: cur.Source, Pin: cur.Pin}, nil
	case PickCustomTime:
		if cur.State != ChoosingTime {
			return nil, unexpected(cur.State, ev)
		}
		next.State = AwaitingDate
	case Back:
		switch cur.State {
		case ChoosingType:
			next.State = AwaitingContent
		case ChoosingTime:
			next.State = ChoosingType
		case AwaitingDate:
			next.State = ChoosingTime
		case StaffChat:
			delete(m.sessions, userID)
			return None{}, nil
		default:
			return nil, unexpected(cur.State, ev)
		}
	case DateText:
		if cur.State != AwaitingDate {
			return nil, unexpected(cur.State, ev)
		}
		runAt, err := m.parseDate(e.Text)
		if err != nil {
			cur.UpdatedAt = next.UpdatedAt
			return nil, err
		}
		delete(m.sessions, userID)
		return Schedule{Source: cur.Source, Pin: cur.Pin, RunAt: runAt}, nil
	default:
		return nil, fmt.Errorf("unknown event %T", ev)
	}

	m.sessions[userID] = &next
	return None{}, nil
}

// Example renders the current time in the expected date layout
func (m *Machine) Example() string {
	return m.now().In(m.loc).Format(m.layout)
}

func (m *Machine) parseDate(text string) (time.Time, error) {
	t, err := time.ParseInLocation(m.layout, strings.TrimSpace(text), m.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadDateFormat, text)
	}
	if t.Before(m.now()) {
		return time.Time{}, ErrDateInPast
	}
	return t, nil
}

func unexpected(s State, ev Event) error {
	return fmt.Errorf("%w: %T in %s", ErrUnexpectedEvent, ev, s)
}
