package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sessiondomain "repairdesk/backend/internal/session/domain"
)

type sessionView struct {
	ID           string    `json:"id"`
	PrincipalID  string    `json:"principal_id"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	Permissions  []string  `json:"permissions,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	LastActivity time.Time `json:"last_activity"`
	Platform     string    `json:"platform"`
	Address      string    `json:"address"`
}

func viewOf(s *sessiondomain.Session) *sessionView {
	if s == nil {
		return nil
	}
	return &sessionView{
		ID:           s.ID,
		PrincipalID:  s.Principal.ID,
		Email:        s.Principal.Email,
		Role:         string(s.Principal.Role),
		Permissions:  s.Principal.Permissions,
		ExpiresAt:    s.ExpiresAt,
		LastActivity: s.LastActivity,
		Platform:     s.Fingerprint.Platform,
		Address:      s.Fingerprint.Address,
	}
}

// emit writes v as indented JSON under --json, otherwise the human text.
func (c *cli) emit(v any, human string) error {
	if c.jsonOut {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(c.out, string(data))
		return err
	}
	_, err := fmt.Fprintln(c.out, human)
	return err
}

func (c *cli) emitSession(s *sessiondomain.Session) error {
	if s == nil {
		return c.emit(map[string]any{"session": nil}, "Not signed in")
	}
	v := viewOf(s)
	human := fmt.Sprintf(`Session:     %s
Principal:   %s (%s)
Role:        %s
Expires:     %s
Last active: %s
Device:      %s @ %s`,
		v.ID, v.Email, v.PrincipalID, v.Role,
		v.ExpiresAt.Format(time.RFC3339), v.LastActivity.Format(time.RFC3339),
		v.Platform, v.Address)
	if len(v.Permissions) > 0 {
		human += "\nGrants:      " + strings.Join(v.Permissions, ", ")
	}
	return c.emit(map[string]any{"session": v}, human)
}

func verdict(ok bool) string {
	if ok {
		return "allowed"
	}
	return "denied"
}
