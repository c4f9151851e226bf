package audit

import "repairdesk/backend/internal/audit/domain"

// Classification is the category and severity attached to an event name.
type Classification struct {
	Category string
	Severity domain.Severity
}

const (
	CategoryAuthentication = "authentication"
	CategorySession        = "session"
	CategoryDevice         = "device"
	CategoryOther          = "other"
)

var classifications = map[string]Classification{
	"login_failed":           {CategoryAuthentication, domain.SeverityInfo},
	"login_succeeded":        {CategoryAuthentication, domain.SeverityInfo},
	"login_blocked_locked":   {CategoryAuthentication, domain.SeverityWarning},
	"account_locked":         {CategoryAuthentication, domain.SeverityCritical},
	"logout":                 {CategorySession, domain.SeverityInfo},
	"session_timeout":        {CategorySession, domain.SeverityInfo},
	"session_inactive":       {CategorySession, domain.SeverityInfo},
	"session_persist_failed": {CategorySession, domain.SeverityWarning},
	"principal_deactivated":  {CategorySession, domain.SeverityWarning},
	"access_changed":         {CategoryAuthentication, domain.SeverityWarning},
	"password_changed":       {CategoryAuthentication, domain.SeverityInfo},
	"device_change_detected": {CategoryDevice, domain.SeverityWarning},
	"device_reauth_required": {CategoryDevice, domain.SeverityCritical},
}

// Classify returns the classification for an event name. Unknown names are "other"/info.
func Classify(name string) Classification {
	if c, ok := classifications[name]; ok {
		return c
	}
	return Classification{Category: CategoryOther, Severity: domain.SeverityInfo}
}
