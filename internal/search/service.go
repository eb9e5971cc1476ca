package search

import (
	"strings"

	"github.com/Kyz7/kolegium/internal/models"
	"github.com/Kyz7/kolegium/internal/permission"
	"github.com/microcosm-cc/bluemonday"
	"gorm.io/gorm"
)

const (
	MinQueryLength = 2
	DefaultLimit   = 10
	MaxLimit       = 50
	snippetLength  = 160
)

// Families lists the searchable resource families in result order.
var Families = []permission.Family{
	permission.FamilyAgenda,
	permission.FamilyGallery,
	permission.FamilyDatabase,
}

var plainText = bluemonday.StrictPolicy()

type Params struct {
	Query    string
	Families []permission.Family
	Limit    int
}

type Hit struct {
	Family        permission.Family `json:"family"`
	ID            uint              `json:"id"`
	Title         string            `json:"title"`
	Scope         string            `json:"scope,omitempty"`
	Section       string            `json:"section,omitempty"`
	OrgType       string            `json:"org_type,omitempty"`
	AffiliationID *uint             `json:"affiliation_id"`
	Snippet       string            `json:"snippet,omitempty"`
}

type Result struct {
	Query  string                      `json:"query"`
	Hits   []Hit                       `json:"hits"`
	Counts map[permission.Family]int64 `json:"counts"`
}

// Visible narrows a query to one slice of a family the caller may read.
type Visible func(*gorm.DB) *gorm.DB

// Search matches p.Query against every family in visible. A family with no
// visible slice is skipped.
func Search(db *gorm.DB, p Params, visible map[permission.Family][]Visible) (*Result, error) {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}

	result := &Result{
		Query:  p.Query,
		Hits:   []Hit{},
		Counts: make(map[permission.Family]int64, len(p.Families)),
	}

	for _, f := range p.Families {
		scopes := visible[f]
		if len(scopes) == 0 {
			result.Counts[f] = 0
			continue
		}

		var (
			hits  []Hit
			total int64
			err   error
		)
		switch f {
		case permission.FamilyAgenda:
			hits, total, err = searchAgendas(db, p, scopes)
		case permission.FamilyGallery:
			hits, total, err = searchGalleries(db, p, scopes)
		case permission.FamilyDatabase:
			hits, total, err = searchMembers(db, p, scopes)
		default:
			return nil, permission.Errorf(permission.KindValidation, "%s is not searchable", f)
		}
		if err != nil {
			return nil, err
		}
		result.Counts[f] = total
		result.Hits = append(result.Hits, hits...)
	}
	return result, nil
}

// anyOf ORs the visible slices into one grouped condition.
func anyOf(db *gorm.DB, scopes []Visible) *gorm.DB {
	var cond *gorm.DB
	for _, s := range scopes {
		sub := s(db.Session(&gorm.Session{NewDB: true}))
		if cond == nil {
			cond = sub
		} else {
			cond = cond.Or(sub)
		}
	}
	return cond
}

// matchAny builds a case-insensitive substring match over columns.
func matchAny(db *gorm.DB, query string, columns ...string) (string, []interface{}) {
	op := "LIKE"
	if db.Dialector.Name() == "postgres" {
		op = "ILIKE"
	}

	like := "%" + strings.ToLower(query) + "%"
	conds := make([]string, 0, len(columns))
	args := make([]interface{}, 0, len(columns))
	for _, col := range columns {
		conds = append(conds, "LOWER("+col+") "+op+" ?")
		args = append(args, like)
	}
	return "(" + strings.Join(conds, " OR ") + ")", args
}

func run(db *gorm.DB, model interface{}, p Params, scopes []Visible, dest interface{}, columns ...string) (int64, error) {
	where, args := matchAny(db, p.Query, columns...)
	filter := func(q *gorm.DB) *gorm.DB {
		return q.Where(where, args...).Where(anyOf(db, scopes))
	}

	var total int64
	if err := filter(db.Model(model)).Count(&total).Error; err != nil {
		return 0, err
	}
	if err := filter(db.Model(model)).Order("id DESC").Limit(p.Limit).Find(dest).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func searchAgendas(db *gorm.DB, p Params, scopes []Visible) ([]Hit, int64, error) {
	var items []models.Agenda
	total, err := run(db, &models.Agenda{}, p, scopes, &items, "title", "description", "location")
	if err != nil {
		return nil, 0, err
	}

	hits := make([]Hit, 0, len(items))
	for _, a := range items {
		hits = append(hits, Hit{
			Family:        permission.FamilyAgenda,
			ID:            a.ID,
			Title:         a.Title,
			Scope:         a.Scope,
			Section:       a.Section,
			AffiliationID: a.AffiliationID,
			Snippet:       Snippet(a.Description, p.Query),
		})
	}
	return hits, total, nil
}

func searchGalleries(db *gorm.DB, p Params, scopes []Visible) ([]Hit, int64, error) {
	var items []models.Gallery
	total, err := run(db, &models.Gallery{}, p, scopes, &items, "title", "caption")
	if err != nil {
		return nil, 0, err
	}

	hits := make([]Hit, 0, len(items))
	for _, g := range items {
		hits = append(hits, Hit{
			Family:        permission.FamilyGallery,
			ID:            g.ID,
			Title:         g.Title,
			Scope:         g.Scope,
			Section:       g.Section,
			AffiliationID: g.AffiliationID,
			Snippet:       Snippet(g.Caption, p.Query),
		})
	}
	return hits, total, nil
}

func searchMembers(db *gorm.DB, p Params, scopes []Visible) ([]Hit, int64, error) {
	var items []models.Member
	total, err := run(db, &models.Member{}, p, scopes, &items, "name", "email", "registration_number")
	if err != nil {
		return nil, 0, err
	}

	hits := make([]Hit, 0, len(items))
	for _, m := range items {
		hits = append(hits, Hit{
			Family:        permission.FamilyDatabase,
			ID:            m.ID,
			Title:         m.Name,
			OrgType:       m.OrgType,
			AffiliationID: m.AffiliationID,
		})
	}
	return hits, total, nil
}

// Snippet strips markup from text and returns a window around the first
// match of query.
func Snippet(text, query string) string {
	plain := strings.Join(strings.Fields(plainText.Sanitize(text)), " ")
	if len(plain) <= snippetLength {
		return plain
	}

	start := 0
	if i := strings.Index(strings.ToLower(plain), strings.ToLower(query)); i > snippetLength/2 {
		start = i - snippetLength/2
	}
	end := start + snippetLength
	if end > len(plain) {
		end = len(plain)
		start = end - snippetLength
	}

	out := strings.ToValidUTF8(plain[start:end], "")
	if start > 0 {
		out = "..." + out
	}
	if end < len(plain) {
		out += "..."
	}
	return out
}
