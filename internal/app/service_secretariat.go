package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"thesisdesk/api/internal/authpw"
	"thesisdesk/api/internal/lifecycle"
	"thesisdesk/api/internal/store"
)

type UserImport struct {
	Name         string `json:"name"`
	Surname      string `json:"surname"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Role         string `json:"role"`
	Landline     string `json:"landline"`
	Mobile       string `json:"mobile"`
	Street       string `json:"street"`
	StreetNumber string `json:"streetNumber"`
	City         string `json:"city"`
	PostalCode   string `json:"postalCode"`
	Department   string `json:"department"`
	University   string `json:"university"`
}

func (s *Service) ListThesesUnderway(ctx context.Context) (map[string]any, error) {
	theses, err := s.store.ListThesesUnderway(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	payload := make([]map[string]any, 0, len(theses))
	for _, thesis := range theses {
		members, err := s.store.ListCommitteeMembers(ctx, thesis.ID)
		if err != nil {
			return nil, err
		}
		item := thesisPayload(thesis)
		item["committee"] = committeePayload(members)
		item["daysSinceAssignment"] = daysSince(thesis.AssignmentDate, now)
		payload = append(payload, item)
	}
	return map[string]any{"theses": payload}, nil
}

func (s *Service) RecordGSProtocol(ctx context.Context, thesisID int64, protocol string) (map[string]any, error) {
	protocol = strings.TrimSpace(protocol)
	if protocol == "" {
		return nil, errValidation("protocol number is required", nil)
	}

	if _, err := s.store.GetThesis(ctx, thesisID); err != nil {
		return nil, err
	}

	ok, err := s.store.SetGSProtocol(ctx, thesisID, protocol)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errInvalidTransition("thesis has reached a terminal status")
	}
	return map[string]any{"ok": true}, nil
}

func (s *Service) SecretariatCancel(ctx context.Context, session Session, thesisID int64, protocol, reason string) (map[string]any, error) {
	protocol = strings.TrimSpace(protocol)
	reason = strings.TrimSpace(reason)
	if protocol == "" || reason == "" {
		return nil, errValidation("protocol number and cancellation reason are required", nil)
	}

	thesis, err := s.store.GetThesis(ctx, thesisID)
	if err != nil {
		return nil, err
	}

	if _, err := s.rules.Next(lifecycleView(thesis), lifecycle.EventSecretariatCancel, actorFromSession(session), time.Now()); err != nil {
		return nil, err
	}

	ok, err := s.store.CancelThesis(ctx, thesisID, protocol, reason)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errInvalidTransition("thesis has reached a terminal status")
	}
	return map[string]any{"ok": true}, nil
}

func (s *Service) CompleteThesis(ctx context.Context, session Session, thesisID int64) (map[string]any, error) {
	thesis, err := s.store.GetThesis(ctx, thesisID)
	if err != nil {
		return nil, err
	}

	if _, err := s.rules.Next(lifecycleView(thesis), lifecycle.EventComplete, actorFromSession(session), time.Now()); err != nil {
		return nil, err
	}

	ok, err := s.store.CompleteThesis(ctx, thesisID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errInvalidTransition("thesis is not ready for completion")
	}

	completed, err := s.store.GetThesis(ctx, thesisID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"thesis": thesisPayload(completed)}, nil
}

func (s *Service) ImportUsers(ctx context.Context, input []UserImport) (map[string]any, error) {
	if len(input) == 0 {
		return nil, errValidation("users array is required and must not be empty", nil)
	}

	users := make([]store.User, 0, len(input))
	for i, entry := range input {
		email := strings.ToLower(strings.TrimSpace(entry.Email))
		if email == "" {
			return nil, errValidation(fmt.Sprintf("user %d: email is required", i), nil)
		}
		role := strings.TrimSpace(entry.Role)
		if role != lifecycle.RoleStudent && role != lifecycle.RoleProfessor && role != lifecycle.RoleSecretariat {
			return nil, errValidation(fmt.Sprintf("user %d: unknown role %q", i, entry.Role), nil)
		}

		hash, err := authpw.HashPassword(entry.Password)
		if err != nil {
			return nil, errValidation(fmt.Sprintf("user %d: %v", i, err), nil)
		}

		users = append(users, store.User{
			Name:         strings.TrimSpace(entry.Name),
			Surname:      strings.TrimSpace(entry.Surname),
			Email:        email,
			PasswordHash: hash,
			Role:         role,
			Landline:     entry.Landline,
			Mobile:       entry.Mobile,
			Street:       entry.Street,
			StreetNumber: entry.StreetNumber,
			City:         entry.City,
			PostalCode:   entry.PostalCode,
			Department:   entry.Department,
			University:   entry.University,
		})
	}

	inserted, err := s.store.ImportUsers(ctx, users)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"imported": inserted,
		"skipped":  len(users) - inserted,
	}, nil
}
