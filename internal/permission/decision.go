package permission

import "fmt"

type Reason string

const (
	ReasonGranted             Reason = "granted"
	ReasonAllAccess           Reason = "all_access"
	ReasonSectionViewer       Reason = "view_all_sections"
	ReasonUnauthenticated     Reason = "unauthenticated"
	ReasonInvalidTarget       Reason = "invalid_target"
	ReasonMissingPermission   Reason = "missing_permission"
	ReasonAffiliationRequired Reason = "affiliation_required"
	ReasonOutsideAffiliation  Reason = "outside_affiliation"
)

// Subject is the authenticated caller as seen by the policy: every role it
// holds and the affiliations it is bound to.
type Subject struct {
	UserID       uint
	Email        string
	Roles        []Role
	Affiliations []uint
}

// HasAllAccess reports whether any active role carries the AllAccess
// capability.
func (s *Subject) HasAllAccess() bool {
	for _, r := range s.Roles {
		if r.allAccess() {
			return true
		}
	}
	return false
}

// Can returns the first active role granting key.
func (s *Subject) Can(key string) (string, bool) {
	for _, r := range s.Roles {
		if r.HasPermission(key) {
			return r.Name, true
		}
	}
	return "", false
}

// BoundTo reports whether the subject's affiliation set contains id.
func (s *Subject) BoundTo(id uint) bool {
	for _, a := range s.Affiliations {
		if a == id {
			return true
		}
	}
	return false
}

func (s *Subject) sectionViewer() (string, bool) {
	for _, r := range s.Roles {
		if r.viewsAllSections() {
			return r.Name, true
		}
	}
	return "", false
}

// Request describes one operation to authorize.
type Request struct {
	Target Target
	// AffiliationID is the effective affiliation: the requested one for
	// creates and listings, the stored one for record-level operations.
	AffiliationID *uint
	// Collection marks listing requests. A bound subject listing without an
	// explicit affiliation is allowed and restricted to its bound set.
	Collection bool
}

// Decision is the outcome of Authorize or Check.
type Decision struct {
	Allowed bool
	Kind    Kind
	Reason  Reason
	Message string
	// Key and Role record which permission and role produced an Allow.
	Key  string
	Role string
	// Affiliations, when non-nil on an Allow, restricts a collection read to
	// these affiliation ids.
	Affiliations []uint
}

// Err converts a Deny into an *Error. It returns nil for Allow.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &Error{Kind: d.Kind, Message: d.Message}
}

func allow(reason Reason, key, role string) Decision {
	return Decision{Allowed: true, Reason: reason, Key: key, Role: role}
}

func deny(kind Kind, reason Reason, msg string) Decision {
	return Decision{Kind: kind, Reason: reason, Message: msg}
}

// Check runs the permission part of the policy without affiliation
// scoping: authentication, target validation, all-access, the
// cross-section view bypass and key resolution.
func Check(s *Subject, t Target) Decision {
	if s == nil {
		return deny(KindUnauthenticated, ReasonUnauthenticated, "Unauthorized: authentication required")
	}
	if err := t.Validate(); err != nil {
		return deny(KindValidation, ReasonInvalidTarget, MessageOf(err))
	}
	if s.HasAllAccess() {
		return allow(ReasonAllAccess, "", allAccessRole(s))
	}

	keys := t.Keys()
	if t.Action == ActionView && t.Scope == ScopeStudyProgram {
		if role, ok := s.sectionViewer(); ok {
			return allow(ReasonSectionViewer, keys[0], role)
		}
	}

	for _, key := range keys {
		if role, ok := s.Can(key); ok {
			return allow(ReasonGranted, key, role)
		}
	}
	return deny(KindForbidden, ReasonMissingPermission,
		fmt.Sprintf("Unauthorized: missing permission %s", keys[len(keys)-1]))
}

// Authorize is the single policy entry point. It composes Check with
// affiliation scoping for families whose records belong to an affiliation.
func Authorize(s *Subject, req Request) Decision {
	d := Check(s, req.Target)
	if !d.Allowed || d.Reason == ReasonAllAccess || !req.Target.AffiliationScoped() {
		return d
	}

	if len(s.Affiliations) > 0 {
		if req.AffiliationID == nil {
			if req.Collection {
				d.Affiliations = append([]uint(nil), s.Affiliations...)
				return d
			}
			return deny(KindValidation, ReasonAffiliationRequired, "affiliation required")
		}
		if !s.BoundTo(*req.AffiliationID) {
			return deny(KindForbidden, ReasonOutsideAffiliation,
				fmt.Sprintf("Unauthorized: affiliation %d is outside your scope", *req.AffiliationID))
		}
		return d
	}

	if req.AffiliationID == nil {
		return deny(KindValidation, ReasonAffiliationRequired, "affiliation required")
	}
	return d
}

func allAccessRole(s *Subject) string {
	for _, r := range s.Roles {
		if r.allAccess() {
			return r.Name
		}
	}
	return ""
}

// AssignAffiliations decides whether s may replace a user's bound set
// current with next. Without all access:
//
//	a bound user may never be left unbound;
//	a bound subject may only touch users inside its own set, and only
//	assign a non-empty subset of it.
func AssignAffiliations(s *Subject, current, next []uint) error {
	if s == nil {
		return Errorf(KindUnauthenticated, "Unauthorized: authentication required")
	}
	if s.HasAllAccess() {
		return nil
	}
	if len(current) > 0 && len(next) == 0 {
		return Errorf(KindForbidden, "Unauthorized: a bound user cannot be unbound from every affiliation")
	}
	if len(s.Affiliations) == 0 {
		return nil
	}
	if len(next) == 0 {
		return Errorf(KindForbidden, "Unauthorized: users you manage must be bound to one of your affiliations")
	}
	for _, ids := range [][]uint{current, next} {
		for _, id := range ids {
			if !s.BoundTo(id) {
				return Errorf(KindForbidden, "Unauthorized: affiliation %d is outside your scope", id)
			}
		}
	}
	return nil
}
