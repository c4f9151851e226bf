package session

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"repairdesk/backend/internal/session/domain"
	userdomain "repairdesk/backend/internal/user/domain"
)

// opaqueIssuer hands out random tokens with no embedded claims. Used when no signing keys are configured.
type opaqueIssuer struct{}

func (opaqueIssuer) Issue(string, userdomain.Principal, time.Time) (domain.Tokens, error) {
	return newOpaqueTokens(), nil
}

func (opaqueIssuer) Rotate(current domain.Tokens, _ string, _ userdomain.Principal, _ time.Time) (domain.Tokens, error) {
	if current.Refresh == "" {
		return domain.Tokens{}, errors.New("session: no refresh token to rotate")
	}
	return newOpaqueTokens(), nil
}

func newOpaqueTokens() domain.Tokens {
	jti := uuid.NewString()
	return domain.Tokens{
		Access:     "at_" + uuid.NewString(),
		Refresh:    "rt_" + jti,
		RefreshJTI: jti,
	}
}
