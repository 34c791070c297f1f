// Package lifecycle is the thesis state machine. Every status change in the
// system goes through Rules.Next, which either returns the status the thesis
// moves to or a typed guard error. The persistence layer is responsible for
// executing the transition atomically; this package only decides legality.
package lifecycle

import (
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusUnderAssignment Status = "under_assignment"
	StatusActive          Status = "active"
	StatusUnderReview     Status = "under_review"
	StatusCompleted       Status = "completed"
	StatusCancelled       Status = "cancelled"
)

// Terminal reports whether no further transition may leave the status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s Status) Valid() bool {
	switch s {
	case StatusUnderAssignment, StatusActive, StatusUnderReview, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type Event string

const (
	EventAssignStudent     Event = "assign_student"
	EventUndoAssignment    Event = "undo_assignment"
	EventQuorumReached     Event = "quorum_reached"
	EventCancelAssignment  Event = "cancel_assignment"
	EventCancelActive      Event = "cancel_active"
	EventSetUnderReview    Event = "set_under_review"
	EventSubmitGrade       Event = "submit_grade"
	EventComplete          Event = "complete"
	EventSecretariatCancel Event = "secretariat_cancel"
)

// Actor is the authenticated principal attempting a transition. The system
// itself (quorum detection) uses RoleSystem.
type Actor struct {
	ID   int64
	Role string
}

const (
	RoleStudent     = "student"
	RoleProfessor   = "professor"
	RoleSecretariat = "secretariat"
	RoleSystem      = "system"
)

// Thesis is the view of a thesis row that guards need.
type Thesis struct {
	ID             int64
	SupervisorID   int64
	StudentID      int64
	Status         Status
	AssignmentDate *time.Time
	Grade          *float64
	RepositoryURL  string
}

var (
	ErrForbidden          = errors.New("actor is not allowed to trigger this transition")
	ErrInvalidTransition  = errors.New("transition not legal from current status")
	ErrPreconditionFailed = errors.New("transition precondition not met")
	ErrValidation         = errors.New("transition input invalid")
)

// Rules carries the configurable lifecycle policy.
type Rules struct {
	// RequiredMembers is the number of accepted member-role committee
	// entries (beyond the supervisor) needed to activate a thesis.
	RequiredMembers int
	// MinActiveTenure is how long a thesis must have been assigned before
	// the supervisor may cancel it while active.
	MinActiveTenure time.Duration
}

// QuorumSatisfied reports whether acceptedMembers meets the member quota.
// Callers re-checking after a satisfied quorum get the same answer; the
// status precondition on the activating UPDATE makes re-application a no-op.
func (r Rules) QuorumSatisfied(acceptedMembers int) bool {
	return acceptedMembers >= r.RequiredMembers
}

// Next validates event against the thesis and actor and returns the status
// the thesis transitions to. Events that keep the status unchanged (assign,
// undo, grade submission) return the current status.
func (r Rules) Next(t Thesis, event Event, actor Actor, now time.Time) (Status, error) {
	if t.Status.Terminal() {
		return "", fmt.Errorf("thesis %d is %s: %w", t.ID, t.Status, ErrInvalidTransition)
	}

	switch event {
	case EventAssignStudent:
		if err := requireSupervisor(t, actor); err != nil {
			return "", err
		}
		if t.Status != StatusUnderAssignment {
			return "", transitionErr(t.Status, event)
		}
		if t.StudentID != 0 {
			return "", fmt.Errorf("thesis %d already assigned to student %d: %w", t.ID, t.StudentID, ErrPreconditionFailed)
		}
		return StatusUnderAssignment, nil

	case EventUndoAssignment:
		if err := requireSupervisor(t, actor); err != nil {
			return "", err
		}
		if t.Status != StatusUnderAssignment {
			return "", transitionErr(t.Status, event)
		}
		return StatusUnderAssignment, nil

	case EventQuorumReached:
		if actor.Role != RoleSystem {
			return "", fmt.Errorf("quorum transition is system-triggered: %w", ErrForbidden)
		}
		if t.Status != StatusUnderAssignment {
			return "", transitionErr(t.Status, event)
		}
		return StatusActive, nil

	case EventCancelAssignment:
		if err := requireSupervisor(t, actor); err != nil {
			return "", err
		}
		if t.Status != StatusUnderAssignment && t.Status != StatusActive {
			return "", transitionErr(t.Status, event)
		}
		return StatusUnderAssignment, nil

	case EventCancelActive:
		if err := requireSupervisor(t, actor); err != nil {
			return "", err
		}
		if t.Status != StatusActive {
			return "", transitionErr(t.Status, event)
		}
		if t.AssignmentDate == nil || now.Sub(*t.AssignmentDate) < r.MinActiveTenure {
			return "", fmt.Errorf("thesis %d has not been active for the minimum tenure: %w", t.ID, ErrPreconditionFailed)
		}
		return StatusCancelled, nil

	case EventSetUnderReview:
		if err := requireSupervisor(t, actor); err != nil {
			return "", err
		}
		if t.Status != StatusActive {
			return "", transitionErr(t.Status, event)
		}
		return StatusUnderReview, nil

	case EventSubmitGrade:
		if actor.Role != RoleProfessor {
			return "", fmt.Errorf("only committee professors grade: %w", ErrForbidden)
		}
		if t.Status != StatusUnderReview {
			return "", transitionErr(t.Status, event)
		}
		return StatusUnderReview, nil

	case EventComplete:
		if actor.Role != RoleSecretariat {
			return "", fmt.Errorf("only the secretariat finalizes a thesis: %w", ErrForbidden)
		}
		if t.Status != StatusUnderReview {
			return "", transitionErr(t.Status, event)
		}
		if t.Grade == nil || t.RepositoryURL == "" {
			return "", fmt.Errorf("grade and repository link must be recorded before completion: %w", ErrValidation)
		}
		return StatusCompleted, nil

	case EventSecretariatCancel:
		if actor.Role != RoleSecretariat {
			return "", fmt.Errorf("only the secretariat may cancel administratively: %w", ErrForbidden)
		}
		// Permitted from every non-terminal status.
		return StatusCancelled, nil
	}

	return "", fmt.Errorf("unknown event %q: %w", event, ErrInvalidTransition)
}

func requireSupervisor(t Thesis, actor Actor) error {
	if actor.Role != RoleProfessor || actor.ID != t.SupervisorID {
		return fmt.Errorf("actor %d is not the supervisor of thesis %d: %w", actor.ID, t.ID, ErrForbidden)
	}
	return nil
}

func transitionErr(from Status, event Event) error {
	return fmt.Errorf("%s not allowed while %s: %w", event, from, ErrInvalidTransition)
}
