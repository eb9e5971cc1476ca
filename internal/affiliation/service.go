package affiliation

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/Kyz7/kolegium/internal/models"
	"github.com/Kyz7/kolegium/internal/permission"
	"github.com/microcosm-cc/bluemonday"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrAffiliationNotFound = errors.New("affiliation not found")
	ErrProfileNotFound     = errors.New("affiliation profile not found")
)

var (
	richText  = bluemonday.UGCPolicy()
	plainText = bluemonday.StrictPolicy()
)

type Input struct {
	Code string                 `json:"code"`
	Name string                 `json:"name"`
	Type models.AffiliationType `json:"type"`
}

type ProfileInput struct {
	Description string            `json:"description"`
	Vision      string            `json:"vision"`
	Mission     string            `json:"mission"`
	Address     string            `json:"address"`
	Phone       string            `json:"phone"`
	Email       string            `json:"email"`
	Website     string            `json:"website"`
	SocialLinks map[string]string `json:"social_links"`
}

type ListFilter struct {
	Type   string
	Search string
	// IDs restricts the listing when non-nil.
	IDs    []uint
	Offset int
	Limit  int
}

func List(db *gorm.DB, f ListFilter) ([]models.Affiliation, int64, error) {
	filter := func(q *gorm.DB) *gorm.DB {
		if f.Type != "" {
			q = q.Where("type = ?", f.Type)
		}
		if f.Search != "" {
			like := "%" + strings.ToLower(f.Search) + "%"
			q = q.Where("LOWER(name) LIKE ? OR LOWER(code) LIKE ?", like, like)
		}
		if f.IDs != nil {
			q = q.Where("id IN ?", f.IDs)
		}
		return q
	}

	var total int64
	if err := filter(db.Model(&models.Affiliation{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var affs []models.Affiliation
	if err := filter(db).Order("code").Offset(f.Offset).Limit(f.Limit).Find(&affs).Error; err != nil {
		return nil, 0, err
	}
	return affs, total, nil
}

func Get(db *gorm.DB, id uint) (*models.Affiliation, error) {
	var a models.Affiliation
	if err := db.Preload("Profile").First(&a, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAffiliationNotFound
		}
		return nil, err
	}
	return &a, nil
}

func validate(in *Input) error {
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	in.Name = strings.TrimSpace(in.Name)
	if in.Code == "" || in.Name == "" {
		return permission.Errorf(permission.KindValidation, "code and name are required")
	}
	if !in.Type.Valid() {
		return permission.Errorf(permission.KindValidation, "invalid affiliation type %q", in.Type)
	}
	return nil
}

func codeTaken(tx *gorm.DB, code string, exceptID uint) (bool, error) {
	var n int64
	err := tx.Model(&models.Affiliation{}).Where("code = ? AND id <> ?", code, exceptID).Count(&n).Error
	return n > 0, err
}

func Create(db *gorm.DB, in Input) (*models.Affiliation, error) {
	if err := validate(&in); err != nil {
		return nil, err
	}

	var a models.Affiliation
	err := db.Transaction(func(tx *gorm.DB) error {
		taken, err := codeTaken(tx, in.Code, 0)
		if err != nil {
			return err
		}
		if taken {
			return permission.Errorf(permission.KindConflict, "affiliation %s already exists", in.Code)
		}
		a = models.Affiliation{Code: in.Code, Name: in.Name, Type: in.Type}
		return tx.Create(&a).Error
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func Update(db *gorm.DB, id uint, in Input) (*models.Affiliation, error) {
	if err := validate(&in); err != nil {
		return nil, err
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		var a models.Affiliation
		if err := tx.First(&a, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAffiliationNotFound
			}
			return err
		}
		taken, err := codeTaken(tx, in.Code, id)
		if err != nil {
			return err
		}
		if taken {
			return permission.Errorf(permission.KindConflict, "affiliation %s already exists", in.Code)
		}
		return tx.Model(&a).Updates(map[string]interface{}{
			"code": in.Code,
			"name": in.Name,
			"type": in.Type,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return Get(db, id)
}

// Usage counts scoped records and bound users referencing the affiliation.
func Usage(db *gorm.DB, id uint) (int64, error) {
	var total int64
	for _, m := range []interface{}{&models.Agenda{}, &models.Gallery{}, &models.Member{}, &models.OrgStructureMember{}} {
		var n int64
		if err := db.Model(m).Where("affiliation_id = ?", id).Count(&n).Error; err != nil {
			return 0, err
		}
		total += n
	}

	var users int64
	if err := db.Table("user_affiliations").Where("affiliation_id = ?", id).Count(&users).Error; err != nil {
		return 0, err
	}
	return total + users, nil
}

// Delete removes an affiliation that nothing references anymore, together
// with its profile.
func Delete(db *gorm.DB, id uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var a models.Affiliation
		if err := tx.First(&a, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAffiliationNotFound
			}
			return err
		}

		refs, err := Usage(tx, id)
		if err != nil {
			return err
		}
		if refs > 0 {
			return permission.Errorf(permission.KindConflict, "affiliation %s is still referenced by %d record(s)", a.Code, refs)
		}

		if err := tx.Unscoped().Where("affiliation_id = ?", id).Delete(&models.AffiliationProfile{}).Error; err != nil {
			return err
		}
		return tx.Delete(&a).Error
	})
}

func GetProfile(db *gorm.DB, affiliationID uint) (*models.AffiliationProfile, error) {
	var p models.AffiliationProfile
	if err := db.Where("affiliation_id = ?", affiliationID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return &p, nil
}

// UpsertProfile creates or replaces the profile. A soft-deleted profile is
// restored rather than duplicated.
func UpsertProfile(db *gorm.DB, affiliationID uint, in ProfileInput) (*models.AffiliationProfile, error) {
	var links datatypes.JSON
	if len(in.SocialLinks) > 0 {
		clean := make(map[string]string, len(in.SocialLinks))
		for k, v := range in.SocialLinks {
			clean[plainText.Sanitize(k)] = plainText.Sanitize(v)
		}
		raw, err := json.Marshal(clean)
		if err != nil {
			return nil, err
		}
		links = datatypes.JSON(raw)
	}

	values := models.AffiliationProfile{
		AffiliationID: affiliationID,
		Description:   richText.Sanitize(in.Description),
		Vision:        richText.Sanitize(in.Vision),
		Mission:       richText.Sanitize(in.Mission),
		Address:       plainText.Sanitize(in.Address),
		Phone:         plainText.Sanitize(in.Phone),
		Email:         plainText.Sanitize(in.Email),
		Website:       plainText.Sanitize(in.Website),
		SocialLinks:   links,
	}

	var p models.AffiliationProfile
	err := db.Transaction(func(tx *gorm.DB) error {
		var a models.Affiliation
		if err := tx.First(&a, affiliationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAffiliationNotFound
			}
			return err
		}

		err := tx.Unscoped().Where("affiliation_id = ?", affiliationID).First(&p).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			p = values
			return tx.Create(&p).Error
		}
		if err != nil {
			return err
		}

		values.LogoURL = p.LogoURL
		return tx.Unscoped().Model(&p).
			Select("*").Omit("id", "affiliation_id", "created_at").
			Updates(values).Error
	})
	if err != nil {
		return nil, err
	}
	return GetProfile(db, affiliationID)
}

func SetLogo(db *gorm.DB, affiliationID uint, url string) (*models.AffiliationProfile, string, error) {
	p, err := GetProfile(db, affiliationID)
	if err != nil {
		return nil, "", err
	}
	previous := p.LogoURL
	if err := db.Model(p).Update("logo_url", url).Error; err != nil {
		return nil, "", err
	}
	p.LogoURL = url
	return p, previous, nil
}

// DeleteProfile soft-deletes the profile.
func DeleteProfile(db *gorm.DB, affiliationID uint) error {
	res := db.Where("affiliation_id = ?", affiliationID).Delete(&models.AffiliationProfile{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrProfileNotFound
	}
	return nil
}
