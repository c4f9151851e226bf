package engine

import (
	"context"

	devicedomain "repairdesk/backend/internal/device/domain"
	userdomain "repairdesk/backend/internal/user/domain"
)

// DeviceChange describes a fingerprint mismatch observed on a live session.
type DeviceChange struct {
	Principal userdomain.Principal
	Stored    devicedomain.Fingerprint
	Current   devicedomain.Fingerprint
	// Changed lists the differing fields ("platform", "address").
	Changed []string
}

// Decision is the policy outcome for a device change.
type Decision struct {
	ReauthRequired bool
	Reason         string
}

// Evaluator decides how callers should react to suspicious activity.
type Evaluator interface {
	EvaluateDeviceChange(ctx context.Context, change DeviceChange) (Decision, error)
}
