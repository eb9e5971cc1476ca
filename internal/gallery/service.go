package gallery

import (
	"errors"
	"strings"

	"github.com/Kyz7/kolegium/internal/models"
	"github.com/Kyz7/kolegium/internal/permission"
	"github.com/microcosm-cc/bluemonday"
	"gorm.io/gorm"
)

var ErrGalleryNotFound = errors.New("gallery not found")

var plainText = bluemonday.StrictPolicy()

type Input struct {
	AffiliationID *uint  `json:"affiliation_id" form:"affiliation_id"`
	Scope         string `json:"scope" form:"scope"`
	Section       string `json:"section" form:"section"`
	Title         string `json:"title" form:"title"`
	Caption       string `json:"caption" form:"caption"`
}

type ListFilter struct {
	Scope   string
	Section string
	Search  string
	Offset  int
	Limit   int
}

func (in *Input) normalize() error {
	in.Scope = strings.TrimSpace(in.Scope)
	in.Section = strings.TrimSpace(in.Section)
	in.Title = plainText.Sanitize(strings.TrimSpace(in.Title))
	in.Caption = plainText.Sanitize(strings.TrimSpace(in.Caption))
	if in.Title == "" {
		return permission.Errorf(permission.KindValidation, "title is required")
	}
	return nil
}

func List(db *gorm.DB, f ListFilter, scope func(*gorm.DB) *gorm.DB) ([]models.Gallery, int64, error) {
	filter := func(q *gorm.DB) *gorm.DB {
		q = q.Where("scope = ?", f.Scope)
		if f.Section != "" {
			q = q.Where("section = ?", f.Section)
		}
		if f.Search != "" {
			like := "%" + strings.ToLower(f.Search) + "%"
			q = q.Where("LOWER(title) LIKE ? OR LOWER(caption) LIKE ?", like, like)
		}
		return scope(q)
	}

	var total int64
	if err := filter(db.Model(&models.Gallery{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []models.Gallery
	if err := filter(db).Order("created_at DESC").Offset(f.Offset).Limit(f.Limit).Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func Get(db *gorm.DB, id uint) (*models.Gallery, error) {
	var g models.Gallery
	if err := db.First(&g, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGalleryNotFound
		}
		return nil, err
	}
	return &g, nil
}

// Create stores a gallery entry whose image has already been uploaded.
func Create(db *gorm.DB, in Input, imageURL string, userID uint) (*models.Gallery, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if imageURL == "" {
		return nil, permission.Errorf(permission.KindValidation, "image is required")
	}

	g := models.Gallery{
		AffiliationID: in.AffiliationID,
		Scope:         in.Scope,
		Section:       in.Section,
		Title:         in.Title,
		Caption:       in.Caption,
		ImageURL:      imageURL,
		CreatedBy:     userID,
	}
	if err := db.Create(&g).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

// Update changes placement and text. The image is kept.
func Update(db *gorm.DB, g *models.Gallery, in Input) (*models.Gallery, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	err := db.Model(g).Select("affiliation_id", "scope", "section", "title", "caption").Updates(models.Gallery{
		AffiliationID: in.AffiliationID,
		Scope:         in.Scope,
		Section:       in.Section,
		Title:         in.Title,
		Caption:       in.Caption,
	}).Error
	if err != nil {
		return nil, err
	}
	return Get(db, g.ID)
}

func Delete(db *gorm.DB, g *models.Gallery) error {
	return db.Delete(g).Error
}
