package models

// Role is the closed set of actor roles
type Role string

// Roles
const (
	RoleCitizen Role = "citizen"
	RoleAdmin   Role = "admin"
	RoleCleaner Role = "cleaner"
)

// ParseRole returns the Role for s, or false when s is not a known role
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleCitizen, RoleAdmin, RoleCleaner:
		return Role(s), true
	default:
		return "", false
	}
}

// Trust says how a Principal was resolved
type Trust string

// Trust levels
const (
	// TrustVerified means the authoritative identity lookup succeeded
	TrustVerified Trust = "verified"
	// TrustDegraded means only the token's own claims were available
	TrustDegraded Trust = "degraded"
)

// Principal is the resolved identity behind a request. It is never persisted.
type Principal struct {
	SubjectID string `json:"subjectId"`
	Role      Role   `json:"role"`
	Trust     Trust  `json:"trust"`
}

// SystemSubjectID is the actor id recorded for automatic transitions
const SystemSubjectID = "system"

// SystemPrincipal is the internal actor used by background jobs
func SystemPrincipal() Principal {
	return Principal{SubjectID: SystemSubjectID, Role: RoleAdmin, Trust: TrustVerified}
}
