package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// UnknownAddress is recorded when no usable network address could be determined.
const UnknownAddress = "unknown"

// Fingerprint is a coarse description of the device an installation runs on.
// It is an anomaly signal only, never an authentication factor.
type Fingerprint struct {
	Platform  string `json:"platform"`
	UserAgent string `json:"user_agent"`
	Address   string `json:"address"`
}

// IsZero reports whether no field of the fingerprint is set.
func (f Fingerprint) IsZero() bool {
	return f.Platform == "" && f.UserAgent == "" && f.Address == ""
}

// Mismatch lists which anomaly-relevant fields differ between two fingerprints.
type Mismatch struct {
	Platform bool
	Address  bool
}

// Any reports whether at least one field differs.
func (m Mismatch) Any() bool { return m.Platform || m.Address }

// Compare reports platform and address differences between stored and current.
// User agent differences are ignored: they change with every app update.
func Compare(stored, current Fingerprint) Mismatch {
	return Mismatch{
		Platform: !strings.EqualFold(strings.TrimSpace(stored.Platform), strings.TrimSpace(current.Platform)),
		Address:  strings.TrimSpace(stored.Address) != strings.TrimSpace(current.Address),
	}
}

// Hash returns a short stable digest of the fingerprint, suitable for log labels.
func (f Fingerprint) Hash() string {
	combined := strings.Join([]string{f.Platform, f.UserAgent, f.Address}, "|")
	sum := sha256.Sum256([]byte(combined))
	return "v1:" + hex.EncodeToString(sum[:16])
}

// Map returns the fingerprint as a plain map for event details and policy input.
func (f Fingerprint) Map() map[string]any {
	return map[string]any{
		"platform":   f.Platform,
		"user_agent": f.UserAgent,
		"address":    f.Address,
	}
}
