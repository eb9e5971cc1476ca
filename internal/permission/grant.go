package permission

import "strings"

const (
	Wildcard       = "*"
	wildcardSuffix = ".*"
)

type GrantKind int

const (
	GrantExact GrantKind = iota
	GrantGlobal
	GrantPrefix
)

// Grant is a parsed permission string held by a role.
//
//	"agenda.kolegium.view" -> Exact
//	"*"                    -> Global
//	"agenda.*"             -> Prefix("agenda")
type Grant struct {
	Kind  GrantKind
	Value string
}

func ParseGrant(s string) Grant {
	s = strings.TrimSpace(s)
	switch {
	case s == Wildcard:
		return Grant{Kind: GrantGlobal}
	case strings.HasSuffix(s, wildcardSuffix) && len(s) > len(wildcardSuffix):
		return Grant{Kind: GrantPrefix, Value: strings.TrimSuffix(s, wildcardSuffix)}
	}
	return Grant{Kind: GrantExact, Value: s}
}

// Matches reports whether the grant satisfies the requested key. Prefix
// grants require a literal dot boundary: "orders.*" matches "orders.view"
// but not "orders2.view" nor "orders" itself.
func (g Grant) Matches(key string) bool {
	switch g.Kind {
	case GrantGlobal:
		return true
	case GrantPrefix:
		return strings.HasPrefix(key, g.Value+".")
	}
	return g.Value == key
}

func (g Grant) String() string {
	switch g.Kind {
	case GrantGlobal:
		return Wildcard
	case GrantPrefix:
		return g.Value + wildcardSuffix
	}
	return g.Value
}

// GrantSet is the parsed permission set of one role, split by kind so the
// three-tier match (exact, global, prefix) does not rescan strings.
type GrantSet struct {
	exact    map[string]struct{}
	global   bool
	prefixes []string
}

func NewGrantSet(names []string) GrantSet {
	gs := GrantSet{exact: make(map[string]struct{}, len(names))}
	for _, n := range names {
		g := ParseGrant(n)
		switch g.Kind {
		case GrantGlobal:
			gs.global = true
		case GrantPrefix:
			gs.prefixes = append(gs.prefixes, g.Value)
		default:
			if g.Value != "" {
				gs.exact[g.Value] = struct{}{}
			}
		}
	}
	return gs
}

func (gs GrantSet) Allows(key string) bool {
	if _, ok := gs.exact[key]; ok {
		return true
	}
	if gs.global {
		return true
	}
	for _, p := range gs.prefixes {
		if strings.HasPrefix(key, p+".") {
			return true
		}
	}
	return false
}

func (gs GrantSet) IsGlobal() bool {
	return gs.global
}

func (gs GrantSet) Len() int {
	n := len(gs.exact) + len(gs.prefixes)
	if gs.global {
		n++
	}
	return n
}
