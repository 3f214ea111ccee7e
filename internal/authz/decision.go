package authz

import "time"

// DecisionKind enumerates gate outcomes.
type DecisionKind int

const (
	KindAllowed DecisionKind = iota
	KindDenied
	KindRateLimited
)

func (k DecisionKind) String() string {
	switch k {
	case KindAllowed:
		return "allowed"
	case KindDenied:
		return "denied"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// Denial reasons.
const (
	ReasonUnauthenticated  = "unauthenticated"
	ReasonInactive         = "inactive"
	ReasonInvalidRole      = "invalid_role"
	ReasonInsufficientRole = "insufficient_role"
	ReasonRoleNotAllowed   = "role_not_allowed"
	ReasonMissingPerm      = "missing_permission"
	ReasonSelfTarget       = "self_target"
)

// Decision is the result of an authorization step: Allowed, Denied or RateLimited.
type Decision struct {
	kind       DecisionKind
	Reason     string
	Code       string
	RetryAfter time.Duration
}

// Allowed returns an allow decision.
func Allowed() Decision { return Decision{kind: KindAllowed} }

// Denied returns a denial carrying a reason and a machine-readable code.
func Denied(reason, code string) Decision {
	return Decision{kind: KindDenied, Reason: reason, Code: code}
}

// RateLimited returns a throttling decision.
func RateLimited(retryAfter time.Duration) Decision {
	return Decision{kind: KindRateLimited, Reason: "rate_limited", Code: "RATE_LIMITED", RetryAfter: retryAfter}
}

// Kind returns the decision variant.
func (d Decision) Kind() DecisionKind { return d.kind }

// IsAllowed reports whether the decision admits the request.
func (d Decision) IsAllowed() bool { return d.kind == KindAllowed }
