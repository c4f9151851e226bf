package domain

import (
	"errors"
	"testing"
	"time"

	userdomain "repairdesk/backend/internal/user/domain"
)

func TestDefaultTimeouts_Ordering(t *testing.T) {
	tt := DefaultTimeouts()
	if err := tt.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	owner := tt.For(userdomain.RoleOwner)
	admin := tt.For(userdomain.RoleAdmin)
	tech := tt.For(userdomain.RoleTechnician)
	customer := tt.For(userdomain.RoleCustomer)
	if !(owner < admin && admin < tech && tech < customer) {
		t.Errorf("ordering violated: owner=%v admin=%v technician=%v customer=%v", owner, admin, tech, customer)
	}
	if customer != 24*time.Hour || tech != 12*time.Hour || admin != 8*time.Hour || owner != 4*time.Hour {
		t.Errorf("unexpected defaults: %v", tt)
	}
}

func TestTimeouts_ValidateRejectsInversion(t *testing.T) {
	tt := DefaultTimeouts()
	tt[userdomain.RoleOwner] = 9 * time.Hour
	if err := tt.Validate(); !errors.Is(err, ErrTimeoutOrder) {
		t.Errorf("Validate = %v, want ErrTimeoutOrder", err)
	}
	tt = DefaultTimeouts()
	delete(tt, userdomain.RoleAdmin)
	if err := tt.Validate(); err == nil {
		t.Error("Validate with missing role should fail")
	}
}

func TestTimeouts_ForUnknownRoleUsesShortest(t *testing.T) {
	tt := DefaultTimeouts()
	if got := tt.For(userdomain.Role("intruder")); got != 4*time.Hour {
		t.Errorf("For(unknown) = %v, want 4h", got)
	}
}

func TestSession_ValidAt(t *testing.T) {
	exp := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := &Session{ExpiresAt: exp}
	if !s.ValidAt(exp) {
		t.Error("session must be valid at exactly expiresAt")
	}
	if s.ValidAt(exp.Add(time.Nanosecond)) {
		t.Error("session must be invalid after expiresAt")
	}
	var nilSession *Session
	if nilSession.ValidAt(exp) {
		t.Error("nil session is never valid")
	}
}

func TestSession_CloneIsDeep(t *testing.T) {
	s := &Session{ID: "s1", Principal: userdomain.Principal{ID: "u1", Permissions: []string{"jobs:view"}}}
	c := s.Clone()
	c.Principal.Permissions[0] = "admin:panel"
	if s.Principal.Permissions[0] != "jobs:view" {
		t.Errorf("clone shares permission slice: %q", s.Principal.Permissions[0])
	}
}
