package search

import (
	"strings"

	"github.com/Kyz7/kolegium/internal/database"
	"github.com/Kyz7/kolegium/internal/middleware"
	"github.com/Kyz7/kolegium/internal/permission"
	"github.com/Kyz7/kolegium/internal/response"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type slice struct {
	target permission.Target
	where  string
	args   []interface{}
}

// slices enumerates every readable partition of a family.
func slices(f permission.Family) []slice {
	if f == permission.FamilyDatabase {
		var out []slice
		for _, ot := range permission.OrgTypes() {
			t, err := permission.OrgTypeTarget(f, ot, permission.ActionView)
			if err != nil {
				continue
			}
			out = append(out, slice{target: t, where: "org_type = ?", args: []interface{}{ot}})
		}
		return out
	}

	out := []slice{
		{target: permission.ScopedTarget(f, permission.ScopeKolegium, "", permission.ActionView)},
		{target: permission.ScopedTarget(f, permission.ScopePeerGroup, "", permission.ActionView)},
		{target: permission.ScopedTarget(f, permission.ScopeStudyProgram, "", permission.ActionView)},
		{target: permission.ScopedTarget(f, permission.ScopeStudyProgram, permission.SectionResident, permission.ActionView)},
		{target: permission.ScopedTarget(f, permission.ScopeStudyProgram, permission.SectionFellow, permission.ActionView)},
		{target: permission.ScopedTarget(f, permission.ScopeStudyProgram, permission.SectionTrainee, permission.ActionView)},
	}
	for i := range out {
		out[i].where = "scope = ? AND section = ?"
		out[i].args = []interface{}{string(out[i].target.Scope), string(out[i].target.Section)}
	}
	return out
}

func parseFamilies(raw string) ([]permission.Family, error) {
	if raw == "" {
		return Families, nil
	}
	var out []permission.Family
	for _, name := range strings.Split(raw, ",") {
		f := permission.Family(strings.TrimSpace(name))
		found := false
		for _, known := range Families {
			if f == known {
				found = true
				break
			}
		}
		if !found {
			return nil, permission.Errorf(permission.KindValidation, "%q is not searchable", f)
		}
		out = append(out, f)
	}
	return out, nil
}

// SearchHandler searches every family slice the caller may view. When
// nothing at all is visible the most relevant denial is returned.
func SearchHandler(c *fiber.Ctx) error {
	q := strings.TrimSpace(c.Query("q"))
	if len([]rune(q)) < MinQueryLength {
		return response.ValidationError(c, map[string]string{"q": "query must be at least 2 characters"})
	}

	families, err := parseFamilies(c.Query("families"))
	if err != nil {
		return response.FromError(c, err)
	}
	affiliationID, err := middleware.AffiliationParam(c, "affiliation_id")
	if err != nil {
		return response.FromError(c, err)
	}

	visible := make(map[permission.Family][]Visible)
	var denial *permission.Decision
	for _, f := range families {
		for _, s := range slices(f) {
			req := permission.Request{Target: s.target, AffiliationID: affiliationID, Collection: true}
			d := middleware.Peek(c, req)
			if !d.Allowed {
				if denial == nil || d.Kind == permission.KindValidation {
					dd := d
					denial = &dd
				}
				continue
			}
			s := s
			visible[f] = append(visible[f], func(db *gorm.DB) *gorm.DB {
				return middleware.FilterAffiliations(db.Where(s.where, s.args...), req, d)
			})
		}
	}

	if len(visible) == 0 && denial != nil {
		return middleware.Deny(c, *denial)
	}

	result, err := Search(database.DB, Params{
		Query:    q,
		Families: families,
		Limit:    c.QueryInt("limit", DefaultLimit),
	}, visible)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, result, "Search completed successfully")
}
