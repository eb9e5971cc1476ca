package agenda

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/Kyz7/kolegium/internal/models"
	"github.com/Kyz7/kolegium/internal/permission"
	"github.com/microcosm-cc/bluemonday"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrAgendaNotFound = errors.New("agenda not found")

var (
	richText  = bluemonday.UGCPolicy()
	plainText = bluemonday.StrictPolicy()
)

type Input struct {
	AffiliationID *uint      `json:"affiliation_id"`
	Scope         string     `json:"scope"`
	Section       string     `json:"section"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Location      string     `json:"location"`
	StartsAt      time.Time  `json:"starts_at"`
	EndsAt        *time.Time `json:"ends_at"`
	Tags          []string   `json:"tags"`
}

type ListFilter struct {
	Scope     string
	Section   string
	Published *bool
	Search    string
	From      *time.Time
	Offset    int
	Limit     int
}

func (in *Input) normalize() error {
	in.Scope = strings.TrimSpace(in.Scope)
	in.Section = strings.TrimSpace(in.Section)
	in.Title = plainText.Sanitize(strings.TrimSpace(in.Title))
	if in.Title == "" {
		return permission.Errorf(permission.KindValidation, "title is required")
	}
	if in.StartsAt.IsZero() {
		return permission.Errorf(permission.KindValidation, "starts_at is required")
	}
	if in.EndsAt != nil && in.EndsAt.Before(in.StartsAt) {
		return permission.Errorf(permission.KindValidation, "ends_at must not be before starts_at")
	}
	return nil
}

func (in *Input) apply(a *models.Agenda) error {
	a.AffiliationID = in.AffiliationID
	a.Scope = in.Scope
	a.Section = in.Section
	a.Title = in.Title
	a.Description = richText.Sanitize(in.Description)
	a.Location = plainText.Sanitize(in.Location)
	a.StartsAt = in.StartsAt
	a.EndsAt = in.EndsAt

	a.Tags = nil
	if len(in.Tags) > 0 {
		tags := make([]string, 0, len(in.Tags))
		for _, t := range in.Tags {
			if t = plainText.Sanitize(strings.TrimSpace(t)); t != "" {
				tags = append(tags, t)
			}
		}
		raw, err := json.Marshal(tags)
		if err != nil {
			return err
		}
		a.Tags = datatypes.JSON(raw)
	}
	return nil
}

// List returns agendas matching f. scope narrows the query further, for
// example to an affiliation set.
func List(db *gorm.DB, f ListFilter, scope func(*gorm.DB) *gorm.DB) ([]models.Agenda, int64, error) {
	filter := func(q *gorm.DB) *gorm.DB {
		q = q.Where("scope = ?", f.Scope)
		if f.Section != "" {
			q = q.Where("section = ?", f.Section)
		}
		if f.Published != nil {
			q = q.Where("is_published = ?", *f.Published)
		}
		if f.Search != "" {
			like := "%" + strings.ToLower(f.Search) + "%"
			q = q.Where("LOWER(title) LIKE ? OR LOWER(location) LIKE ?", like, like)
		}
		if f.From != nil {
			q = q.Where("starts_at >= ?", *f.From)
		}
		return scope(q)
	}

	var total int64
	if err := filter(db.Model(&models.Agenda{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []models.Agenda
	if err := filter(db).Order("starts_at DESC").Offset(f.Offset).Limit(f.Limit).Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func Get(db *gorm.DB, id uint) (*models.Agenda, error) {
	var a models.Agenda
	if err := db.First(&a, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAgendaNotFound
		}
		return nil, err
	}
	return &a, nil
}

func Create(db *gorm.DB, in Input, userID uint) (*models.Agenda, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	a := models.Agenda{CreatedBy: userID, UpdatedBy: userID}
	if err := in.apply(&a); err != nil {
		return nil, err
	}
	if err := db.Create(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func Update(db *gorm.DB, a *models.Agenda, in Input, userID uint) (*models.Agenda, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if err := in.apply(a); err != nil {
		return nil, err
	}
	a.UpdatedBy = userID

	if err := db.Select("*").Omit("created_at", "created_by", "is_published", "published_at").Save(a).Error; err != nil {
		return nil, err
	}
	return Get(db, a.ID)
}

func Delete(db *gorm.DB, a *models.Agenda) error {
	return db.Delete(a).Error
}

// SetPublished toggles visibility. Publishing keeps the first publish time.
func SetPublished(db *gorm.DB, a *models.Agenda, published bool, userID uint) (*models.Agenda, error) {
	updates := map[string]interface{}{
		"is_published": published,
		"updated_by":   userID,
	}
	if published && a.PublishedAt == nil {
		updates["published_at"] = time.Now()
	}
	if err := db.Model(a).Updates(updates).Error; err != nil {
		return nil, err
	}
	return Get(db, a.ID)
}
