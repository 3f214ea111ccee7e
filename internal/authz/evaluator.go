package authz

import "github.com/terojleinonen/cms-admin-sub001/internal/models"

// Subject is the actor an authorization question is asked about.
type Subject struct {
	ID     string
	Role   models.UserRole
	Active bool
}

// SubjectFromIdentity adapts a resolved identity.
func SubjectFromIdentity(id *models.Identity) *Subject {
	if id == nil {
		return nil
	}
	return &Subject{ID: id.UserID, Role: id.Role, Active: id.Active}
}

// Evaluator answers permission questions. It is stateless and safe to share.
type Evaluator struct{}

// NewEvaluator constructs an Evaluator.
func NewEvaluator() Evaluator { return Evaluator{} }

func usable(s *Subject) bool {
	return s != nil && s.Active && s.Role.Valid()
}

// HasPermission reports whether the subject's role grants required.
func (Evaluator) HasPermission(s *Subject, required Permission) bool {
	if !usable(s) {
		return false
	}
	for _, held := range expanded[s.Role] {
		if held.Matches(required) {
			return true
		}
	}
	return false
}

// CanAccess checks required against a resource owned by ownerID. A grant at
// scope all is tried first; failing that, the owner is evaluated at scope own.
func (e Evaluator) CanAccess(s *Subject, required Permission, ownerID string) bool {
	if !usable(s) {
		return false
	}
	all := required
	all.Scope = ScopeAll
	if e.HasPermission(s, all) {
		return true
	}
	if ownerID == "" || s.ID == "" || s.ID != ownerID {
		return false
	}
	own := required
	own.Scope = ScopeOwn
	return e.HasPermission(s, own)
}

// HasMinimumRole reports whether the subject's role is at least min.
func (Evaluator) HasMinimumRole(s *Subject, min models.UserRole) bool {
	if !usable(s) || !min.Valid() {
		return false
	}
	return s.Role.Level() >= min.Level()
}

// EffectivePermissions returns the expanded permission set of the subject.
func (Evaluator) EffectivePermissions(s *Subject) []Permission {
	if !usable(s) {
		return nil
	}
	return Expand(PermissionsFor(s.Role))
}

// Check is HasPermission expressed as a Decision.
func (e Evaluator) Check(s *Subject, required Permission) Decision {
	switch {
	case s == nil:
		return Denied(ReasonUnauthenticated, "UNAUTHORIZED")
	case !s.Active:
		return Denied(ReasonInactive, "ACCOUNT_INACTIVE")
	case !s.Role.Valid():
		return Denied(ReasonInvalidRole, "FORBIDDEN")
	case !e.HasPermission(s, required):
		return Denied(ReasonMissingPerm, "FORBIDDEN")
	}
	return Allowed()
}
