// Package flow implements the step-by-step authoring of a broadcast: content,
// delivery type, then "now" or a date. Each user has at most one session.
package flow

import (
	"errors"
	"time"

	"tg-broadcast/internal/models"
)

type State int

const (
	Idle State = iota
	AwaitingContent
	ChoosingType
	ChoosingTime
	AwaitingDate
	StaffChat
)

func (s State) String() string {
	switch s {
	case AwaitingContent:
		return "awaiting_content"
	case ChoosingType:
		return "choosing_type"
	case ChoosingTime:
		return "choosing_time"
	case AwaitingDate:
		return "awaiting_date"
	case StaffChat:
		return "staff_chat"
	default:
		return "idle"
	}
}

var (
	ErrBadDateFormat   = errors.New("date does not match the expected format")
	ErrDateInPast      = errors.New("date is in the past")
	ErrUnexpectedEvent = errors.New("event not allowed in current state")
)

// Event is one user input fed into a session
type Event interface{ event() }

type (
	// Begin starts a new broadcast, discarding any previous session.
	Begin struct{}
	// Content carries the message the author wants to broadcast.
	Content struct{ Source models.SourceRef }
	// PickType selects plain or pinned delivery.
	PickType struct{ Pin bool }
	Cancel   struct{}
	SendNow  struct{}
	// PickCustomTime asks for a date to be typed in.
	PickCustomTime struct{}
	Back           struct{}
	DateText       struct{ Text string }
	OpenStaffChat  struct{}
)

func (Begin) event()          {}
func (Content) event()        {}
func (PickType) event()       {}
func (Cancel) event()         {}
func (SendNow) event()        {}
func (PickCustomTime) event() {}
func (Back) event()           {}
func (DateText) event()       {}
func (OpenStaffChat) event()  {}

// Action is what the caller has to carry out after a transition
type Action interface{ action() }

type (
	None          struct{}
	DistributeNow struct {
		Source models.SourceRef
		Pin    bool
	}
	Schedule struct {
		Source models.SourceRef
		Pin    bool
		RunAt  time.Time
	}
	Cancelled struct{}
)

func (None) action()          {}
func (DistributeNow) action() {}
func (Schedule) action()      {}
func (Cancelled) action()     {}

// Session is the snapshot of one user's progress
type Session struct {
	State     State
	Source    models.SourceRef
	Pin       bool
	UpdatedAt time.Time
}
