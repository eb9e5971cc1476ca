package orgstructure

import (
	"errors"
	"regexp"
	"strings"

	"github.com/Kyz7/kolegium/internal/models"
	"github.com/Kyz7/kolegium/internal/permission"
	"gorm.io/gorm"
)

var ErrMemberNotFound = errors.New("org structure member not found")

// Periods are stored as YYYY or YYYY-MM.
var periodPattern = regexp.MustCompile(`^\d{4}(-\d{2})?$`)

type Input struct {
	AffiliationID *uint  `json:"affiliation_id"`
	Name          string `json:"name"`
	Position      string `json:"position"`
	PeriodStart   string `json:"period_start"`
	PeriodEnd     string `json:"period_end"`
	SortOrder     int    `json:"sort_order"`
	PhotoURL      string `json:"photo_url"`
}

func (in *Input) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Position = strings.TrimSpace(in.Position)
	in.PeriodStart = strings.TrimSpace(in.PeriodStart)
	in.PeriodEnd = strings.TrimSpace(in.PeriodEnd)

	if in.Name == "" {
		return permission.Errorf(permission.KindValidation, "name is required")
	}
	if in.Position == "" {
		return permission.Errorf(permission.KindValidation, "position is required")
	}
	for _, p := range []string{in.PeriodStart, in.PeriodEnd} {
		if p != "" && !periodPattern.MatchString(p) {
			return permission.Errorf(permission.KindValidation, "period %q must be YYYY or YYYY-MM", p)
		}
	}
	if in.PeriodStart != "" && in.PeriodEnd != "" && in.PeriodEnd < in.PeriodStart {
		return permission.Errorf(permission.KindValidation, "period_end must not be before period_start")
	}
	return nil
}

func (in Input) fields() map[string]interface{} {
	return map[string]interface{}{
		"affiliation_id": in.AffiliationID,
		"name":           in.Name,
		"position":       in.Position,
		"period_start":   in.PeriodStart,
		"period_end":     in.PeriodEnd,
		"sort_order":     in.SortOrder,
		"photo_url":      in.PhotoURL,
	}
}

// List returns the structure of orgType ordered for display.
func List(db *gorm.DB, orgType string, scope func(*gorm.DB) *gorm.DB) ([]models.OrgStructureMember, error) {
	var items []models.OrgStructureMember
	err := scope(db.Where("org_type = ?", orgType)).
		Order("sort_order ASC").
		Order("id ASC").
		Find(&items).Error
	return items, err
}

func Get(db *gorm.DB, orgType string, id uint) (*models.OrgStructureMember, error) {
	var m models.OrgStructureMember
	if err := db.Where("org_type = ?", orgType).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return &m, nil
}

func Create(db *gorm.DB, orgType string, in Input) (*models.OrgStructureMember, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	m := models.OrgStructureMember{
		AffiliationID: in.AffiliationID,
		OrgType:       orgType,
		Name:          in.Name,
		Position:      in.Position,
		PeriodStart:   in.PeriodStart,
		PeriodEnd:     in.PeriodEnd,
		SortOrder:     in.SortOrder,
		PhotoURL:      in.PhotoURL,
	}
	if err := db.Create(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func Update(db *gorm.DB, m *models.OrgStructureMember, in Input) (*models.OrgStructureMember, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if err := db.Model(m).Updates(in.fields()).Error; err != nil {
		return nil, err
	}
	return Get(db, m.OrgType, m.ID)
}

func Delete(db *gorm.DB, m *models.OrgStructureMember) error {
	return db.Delete(m).Error
}
