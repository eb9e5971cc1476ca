package permission

import (
	"sort"
	"strings"
)

type Scope string

const (
	ScopeKolegium     Scope = "kolegium"
	ScopeStudyProgram Scope = "study_program"
	ScopePeerGroup    Scope = "peer_group"
)

type Section string

const (
	SectionResident Section = "resident"
	SectionFellow   Section = "fellow"
	SectionTrainee  Section = "trainee"
)

type Action string

const (
	ActionView    Action = "view"
	ActionCreate  Action = "create"
	ActionEdit    Action = "edit"
	ActionDelete  Action = "delete"
	ActionPublish Action = "publish"
	ActionImport  Action = "import"
)

type Family string

const (
	FamilyAgenda       Family = "agenda"
	FamilyGallery      Family = "gallery"
	FamilyDatabase     Family = "database"
	FamilyOrgStructure Family = "org_structure"
	FamilyAffiliation  Family = "affiliation"
	FamilyRole         Family = "role"
	FamilyUser         Family = "user"
	FamilyPermission   Family = "permission"
)

type namespace int

const (
	// {family}.{scope}[.{section}].{action}
	nsScoped namespace = iota
	// {family}.{org-type segment}.{action}, via orgTypes
	nsOrgType
	// {family}.{action}
	nsFlat
)

type familyDef struct {
	ns      namespace
	actions []Action
	// affiliationScoped families are checked against the subject's bound
	// affiliation set after the permission check.
	affiliationScoped bool
}

var crud = []Action{ActionView, ActionCreate, ActionEdit, ActionDelete}

var families = map[Family]familyDef{
	FamilyAgenda:       {ns: nsScoped, actions: []Action{ActionView, ActionCreate, ActionEdit, ActionDelete, ActionPublish}, affiliationScoped: true},
	FamilyGallery:      {ns: nsScoped, actions: crud, affiliationScoped: true},
	FamilyDatabase:     {ns: nsOrgType, actions: []Action{ActionView, ActionCreate, ActionEdit, ActionDelete, ActionImport}, affiliationScoped: true},
	FamilyOrgStructure: {ns: nsOrgType, actions: crud, affiliationScoped: true},
	FamilyAffiliation:  {ns: nsFlat, actions: crud, affiliationScoped: true},
	FamilyRole:         {ns: nsFlat, actions: crud},
	FamilyUser:         {ns: nsFlat, actions: crud},
	FamilyPermission:   {ns: nsFlat, actions: crud},
}

type orgTypeMapping struct {
	scope   Scope
	section Section
	segment string
}

// orgTypes maps organisation-type tokens used by member-like resources onto
// the permission namespace. Study program types reuse the scope/section
// vocabulary so they get the same broad-then-narrow fallback as agendas.
var orgTypes = map[string]orgTypeMapping{
	"koti":       {segment: "kolegium.koti"},
	"mwb":        {segment: "kolegium.mwb"},
	"resident":   {scope: ScopeStudyProgram, section: SectionResident},
	"fellow":     {scope: ScopeStudyProgram, section: SectionFellow},
	"trainee":    {scope: ScopeStudyProgram, section: SectionTrainee},
	"peer_group": {scope: ScopePeerGroup},
}

// OrgTypes lists the accepted organisation-type tokens in sorted order.
func OrgTypes() []string {
	out := make([]string, 0, len(orgTypes))
	for k := range orgTypes {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func ValidScope(s Scope) bool {
	switch s {
	case ScopeKolegium, ScopeStudyProgram, ScopePeerGroup:
		return true
	}
	return false
}

func ValidSection(s Section) bool {
	switch s {
	case SectionResident, SectionFellow, SectionTrainee:
		return true
	}
	return false
}

// Target is the (family, scope, section, action) tuple a request is
// checked against.
type Target struct {
	Family  Family
	Scope   Scope
	Section Section
	// Segment is a flat namespace below the family, used by organisation
	// types that do not map onto a scope.
	Segment string
	Action  Action
}

func ScopedTarget(f Family, scope Scope, section Section, a Action) Target {
	return Target{Family: f, Scope: scope, Section: section, Action: a}
}

func FlatTarget(f Family, a Action) Target {
	return Target{Family: f, Action: a}
}

// CanonicalOrgType returns the form of an organisation-type token used for
// both authorization and storage.
func CanonicalOrgType(orgType string) string {
	return strings.ToLower(strings.TrimSpace(orgType))
}

// OrgTypeTarget maps an organisation-type token to a Target for the given
// member-like family.
func OrgTypeTarget(f Family, orgType string, a Action) (Target, error) {
	m, ok := orgTypes[CanonicalOrgType(orgType)]
	if !ok {
		return Target{}, Errorf(KindValidation, "unknown organization type %q", orgType)
	}
	t := Target{Family: f, Scope: m.scope, Section: m.section, Segment: m.segment, Action: a}
	return t, t.Validate()
}

func (t Target) Validate() error {
	def, ok := families[t.Family]
	if !ok {
		return Errorf(KindValidation, "unknown resource family %q", t.Family)
	}
	if !containsAction(def.actions, t.Action) {
		return Errorf(KindValidation, "action %q is not valid for %s", t.Action, t.Family)
	}

	switch def.ns {
	case nsFlat:
		if t.Scope != "" || t.Section != "" || t.Segment != "" {
			return Errorf(KindValidation, "%s does not accept a scope", t.Family)
		}
		return nil
	case nsOrgType:
		if t.Segment != "" {
			if t.Scope != "" || t.Section != "" {
				return Errorf(KindValidation, "organization segment cannot be combined with a scope")
			}
			return nil
		}
	default:
		if t.Segment != "" {
			return Errorf(KindValidation, "%s does not accept an organization segment", t.Family)
		}
	}

	if t.Scope == "" {
		return Errorf(KindValidation, "scope is required")
	}
	if !ValidScope(t.Scope) {
		return Errorf(KindValidation, "unknown scope %q", t.Scope)
	}
	if t.Section != "" {
		if t.Scope != ScopeStudyProgram {
			return Errorf(KindValidation, "section is only valid for study_program")
		}
		if !ValidSection(t.Section) {
			return Errorf(KindValidation, "unknown section %q", t.Section)
		}
	}
	return nil
}

// AffiliationScoped reports whether records of the target's family are
// bound to an affiliation.
func (t Target) AffiliationScoped() bool {
	return families[t.Family].affiliationScoped
}

// Keys returns the permission keys that satisfy the target, in check order.
// The first key held by any active role wins.
//
//	study_program + section: broad "{f}.study_program.{a}", then narrow
//	                         "{f}.study_program.{section}.{a}"
//	study_program alone:     broad only
//	kolegium / peer_group:   "{f}.{scope}.{a}"
//	segment:                 "{f}.{segment}.{a}"
//	flat family:             "{f}.{a}"
func (t Target) Keys() []string {
	f, a := string(t.Family), string(t.Action)
	switch {
	case t.Segment != "":
		return []string{join(f, t.Segment, a)}
	case t.Scope == "":
		return []string{join(f, a)}
	case t.Scope == ScopeStudyProgram && t.Section != "":
		return []string{
			join(f, string(ScopeStudyProgram), a),
			join(f, string(ScopeStudyProgram), string(t.Section), a),
		}
	}
	return []string{join(f, string(t.Scope), a)}
}

// Resolve validates the target and returns its keys.
func Resolve(t Target) ([]string, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t.Keys(), nil
}

// Families lists every known resource family in sorted order.
func Families() []Family {
	out := make([]Family, 0, len(families))
	for f := range families {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// KeysFor lists every permission key a family can be checked against. Role
// editors use it to offer the catalogue of assignable permissions.
func KeysFor(f Family) []string {
	def, ok := families[f]
	if !ok {
		return nil
	}
	var out []string
	for _, a := range def.actions {
		switch def.ns {
		case nsFlat:
			out = append(out, join(string(f), string(a)))
		case nsScoped:
			out = append(out, scopedKeys(f, a)...)
		case nsOrgType:
			for _, ot := range OrgTypes() {
				t, _ := OrgTypeTarget(f, ot, a)
				out = append(out, t.Keys()[len(t.Keys())-1])
			}
			out = append(out, join(string(f), string(ScopeStudyProgram), string(a)))
		}
	}
	sort.Strings(out)
	return dedupe(out)
}

func scopedKeys(f Family, a Action) []string {
	keys := []string{
		join(string(f), string(ScopeKolegium), string(a)),
		join(string(f), string(ScopePeerGroup), string(a)),
		join(string(f), string(ScopeStudyProgram), string(a)),
	}
	for _, s := range []Section{SectionResident, SectionFellow, SectionTrainee} {
		keys = append(keys, join(string(f), string(ScopeStudyProgram), string(s), string(a)))
	}
	return keys
}

func join(parts ...string) string {
	return strings.Join(parts, ".")
}

func containsAction(actions []Action, a Action) bool {
	for _, x := range actions {
		if x == a {
			return true
		}
	}
	return false
}

func dedupe(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || s != sorted[i-1] {
			out = append(out, s)
		}
	}
	return out
}
