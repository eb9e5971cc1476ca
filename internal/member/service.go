package member

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Kyz7/kolegium/internal/models"
	"github.com/Kyz7/kolegium/internal/permission"
	"gorm.io/gorm"
)

var ErrMemberNotFound = errors.New("member not found")

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusAlumni   = "alumni"
)

type Input struct {
	AffiliationID      *uint  `json:"affiliation_id"`
	Name               string `json:"name"`
	Email              string `json:"email"`
	Phone              string `json:"phone"`
	RegistrationNumber string `json:"registration_number"`
	Status             string `json:"status"`
}

type ListFilter struct {
	OrgType string
	Status  string
	Search  string
	Offset  int
	Limit   int
}

// ImportResult reports how many rows an import created or updated.
type ImportResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

func (in *Input) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	in.RegistrationNumber = strings.TrimSpace(in.RegistrationNumber)
	in.Status = strings.TrimSpace(in.Status)

	if in.Name == "" {
		return permission.Errorf(permission.KindValidation, "name is required")
	}
	if in.Email != "" && !strings.Contains(in.Email, "@") {
		return permission.Errorf(permission.KindValidation, "email is invalid")
	}
	switch in.Status {
	case "":
		in.Status = StatusActive
	case StatusActive, StatusInactive, StatusAlumni:
	default:
		return permission.Errorf(permission.KindValidation, "status must be active, inactive or alumni")
	}
	return nil
}

func (in Input) fields() map[string]interface{} {
	return map[string]interface{}{
		"affiliation_id":      in.AffiliationID,
		"name":                in.Name,
		"email":               in.Email,
		"phone":               in.Phone,
		"registration_number": in.RegistrationNumber,
		"status":              in.Status,
	}
}

func List(db *gorm.DB, f ListFilter, scope func(*gorm.DB) *gorm.DB) ([]models.Member, int64, error) {
	filter := func(q *gorm.DB) *gorm.DB {
		q = q.Where("org_type = ?", f.OrgType)
		if f.Status != "" {
			q = q.Where("status = ?", f.Status)
		}
		if f.Search != "" {
			like := "%" + strings.ToLower(f.Search) + "%"
			q = q.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR registration_number LIKE ?", like, like, like)
		}
		return scope(q)
	}

	var total int64
	if err := filter(db.Model(&models.Member{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []models.Member
	if err := filter(db).Order("name ASC").Offset(f.Offset).Limit(f.Limit).Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Get returns the member only when it belongs to orgType.
func Get(db *gorm.DB, orgType string, id uint) (*models.Member, error) {
	var m models.Member
	if err := db.Where("org_type = ?", orgType).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return &m, nil
}

func Create(db *gorm.DB, orgType string, in Input) (*models.Member, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	m := models.Member{
		AffiliationID:      in.AffiliationID,
		OrgType:            orgType,
		Name:               in.Name,
		Email:              in.Email,
		Phone:              in.Phone,
		RegistrationNumber: in.RegistrationNumber,
		Status:             in.Status,
	}
	if err := db.Create(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func Update(db *gorm.DB, m *models.Member, in Input) (*models.Member, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if err := db.Model(m).Updates(in.fields()).Error; err != nil {
		return nil, err
	}
	return Get(db, m.OrgType, m.ID)
}

func Delete(db *gorm.DB, m *models.Member) error {
	return db.Delete(m).Error
}

// Import upserts rows into one affiliation of orgType. Rows are matched on
// registration number; rows without one are always created. Any invalid
// row rejects the whole batch.
func Import(db *gorm.DB, orgType string, affiliationID *uint, rows []Input) (*ImportResult, error) {
	if len(rows) == 0 {
		return nil, permission.Errorf(permission.KindValidation, "members must not be empty")
	}
	for i := range rows {
		rows[i].AffiliationID = affiliationID
		if err := rows[i].normalize(); err != nil {
			return nil, permission.Errorf(permission.KindValidation, "row %d: %s", i+1, permission.MessageOf(err))
		}
	}

	result := &ImportResult{}
	err := db.Transaction(func(tx *gorm.DB) error {
		for _, row := range rows {
			if row.RegistrationNumber != "" {
				var existing models.Member
				q := tx.Where("org_type = ? AND registration_number = ?", orgType, row.RegistrationNumber)
				if affiliationID != nil {
					q = q.Where("affiliation_id = ?", *affiliationID)
				} else {
					q = q.Where("affiliation_id IS NULL")
				}
				err := q.First(&existing).Error
				if err == nil {
					if err := tx.Model(&existing).Updates(row.fields()).Error; err != nil {
						return fmt.Errorf("update %s: %w", row.RegistrationNumber, err)
					}
					result.Updated++
					continue
				}
				if !errors.Is(err, gorm.ErrRecordNotFound) {
					return err
				}
			}
			if _, err := Create(tx, orgType, row); err != nil {
				return fmt.Errorf("create %s: %w", row.Name, err)
			}
			result.Created++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
