package permission

// Capabilities are explicit per-role switches for behaviour that used to
// hang off well-known role names.
type Capabilities struct {
	// AllAccess short-circuits every check, affiliation scoping included.
	AllAccess bool
	// ViewAllSections grants view on study_program resources regardless of
	// section permissions. It never grants any other action.
	ViewAllSections bool
}

// Role is the evaluation view of a stored role.
type Role struct {
	Name         string
	Active       bool
	Capabilities Capabilities
	Grants       GrantSet
}

func NewRole(name string, active bool, caps Capabilities, permissions []string) Role {
	return Role{
		Name:         name,
		Active:       active,
		Capabilities: caps,
		Grants:       NewGrantSet(permissions),
	}
}

// HasPermission is the three-tier match: exact, then "*", then "prefix.*".
// Inactive roles grant nothing.
func (r Role) HasPermission(key string) bool {
	if !r.Active {
		return false
	}
	return r.Grants.Allows(key)
}

func (r Role) allAccess() bool {
	return r.Active && r.Capabilities.AllAccess
}

func (r Role) viewsAllSections() bool {
	return r.Active && r.Capabilities.ViewAllSections
}
