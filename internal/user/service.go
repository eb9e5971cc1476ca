package user

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Kyz7/kolegium/internal/models"
	"github.com/Kyz7/kolegium/internal/permission"
	"github.com/Kyz7/kolegium/internal/utils"
	"gorm.io/gorm"
)

var ErrUserNotFound = errors.New("user not found")

var validStatuses = map[string]bool{"active": true, "inactive": true, "suspended": true}

// UserInput is shared by create and update. Nil slices are left untouched
// on update.
type UserInput struct {
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	Password       string  `json:"password"`
	Status         string  `json:"status"`
	PrimaryRoleID  *uint   `json:"primary_role_id"`
	RoleIDs        *[]uint `json:"role_ids"`
	AffiliationIDs *[]uint `json:"affiliation_ids"`
}

type ListFilter struct {
	Search        string
	RoleID        uint
	AffiliationID uint
	Offset        int
	Limit         int
}

func preloaded(db *gorm.DB) *gorm.DB {
	return db.Preload("PrimaryRole").Preload("Roles").Preload("Affiliations")
}

func GetUser(db *gorm.DB, id uint) (*models.User, error) {
	var u models.User
	if err := preloaded(db).First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func ListUsers(db *gorm.DB, f ListFilter) ([]models.User, int64, error) {
	filter := func(q *gorm.DB) *gorm.DB {
		if f.Search != "" {
			like := "%" + strings.ToLower(f.Search) + "%"
			q = q.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", like, like)
		}
		if f.RoleID != 0 {
			q = q.Where("id IN (?)", db.Table("user_roles").Select("user_id").Where("role_id = ?", f.RoleID))
		}
		if f.AffiliationID != 0 {
			q = q.Where("id IN (?)", db.Table("user_affiliations").Select("user_id").Where("affiliation_id = ?", f.AffiliationID))
		}
		return q
	}

	var total int64
	if err := filter(db.Model(&models.User{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []models.User
	if err := filter(preloaded(db)).Order("id").Offset(f.Offset).Limit(f.Limit).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func loadRoles(tx *gorm.DB, ids []uint) ([]models.Role, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var roles []models.Role
	if err := tx.Where("id IN ?", ids).Find(&roles).Error; err != nil {
		return nil, err
	}
	if len(roles) != len(dedupe(ids)) {
		return nil, permission.Errorf(permission.KindValidation, "one or more role ids do not exist")
	}
	return roles, nil
}

func loadAffiliations(tx *gorm.DB, ids []uint) ([]models.Affiliation, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var affs []models.Affiliation
	if err := tx.Where("id IN ?", ids).Find(&affs).Error; err != nil {
		return nil, err
	}
	if len(affs) != len(dedupe(ids)) {
		return nil, permission.Errorf(permission.KindValidation, "one or more affiliation ids do not exist")
	}
	return affs, nil
}

func dedupe(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// GrantsAllAccess reports whether any of the roles carries AllAccess.
func GrantsAllAccess(db *gorm.DB, roleIDs []uint) (bool, error) {
	if len(roleIDs) == 0 {
		return false, nil
	}
	var n int64
	err := db.Model(&models.Role{}).Where("id IN ? AND all_access = ?", roleIDs, true).Count(&n).Error
	return n > 0, err
}

func emailTaken(tx *gorm.DB, email string, exceptID uint) (bool, error) {
	var n int64
	err := tx.Model(&models.User{}).Where("email = ? AND id <> ?", email, exceptID).Count(&n).Error
	return n > 0, err
}

func CreateUser(db *gorm.DB, in UserInput) (*models.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Email == "" || in.Name == "" || in.Password == "" {
		return nil, permission.Errorf(permission.KindValidation, "name, email and password are required")
	}
	if in.Status == "" {
		in.Status = "active"
	}
	if !validStatuses[in.Status] {
		return nil, permission.Errorf(permission.KindValidation, "invalid status %q", in.Status)
	}

	var user models.User
	err := db.Transaction(func(tx *gorm.DB) error {
		taken, err := emailTaken(tx, in.Email, 0)
		if err != nil {
			return err
		}
		if taken {
			return permission.Errorf(permission.KindConflict, "user with email %s already exists", in.Email)
		}

		hash, err := utils.HashPassword(in.Password)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}

		user = models.User{
			Name:     in.Name,
			Email:    in.Email,
			Password: hash,
			Provider: "local",
			Status:   in.Status,
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}

		return applyRelations(tx, &user, in)
	})
	if err != nil {
		return nil, err
	}

	return GetUser(db, user.ID)
}

func UpdateUser(db *gorm.DB, id uint, in UserInput) (*models.User, error) {
	err := db.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		updates := map[string]interface{}{}
		if in.Name != "" {
			updates["name"] = in.Name
		}
		if email := strings.ToLower(strings.TrimSpace(in.Email)); email != "" && email != user.Email {
			taken, err := emailTaken(tx, email, user.ID)
			if err != nil {
				return err
			}
			if taken {
				return permission.Errorf(permission.KindConflict, "email %s already taken", email)
			}
			updates["email"] = email
		}
		if in.Password != "" {
			hash, err := utils.HashPassword(in.Password)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			updates["password"] = hash
		}
		if in.Status != "" {
			if !validStatuses[in.Status] {
				return permission.Errorf(permission.KindValidation, "invalid status %q", in.Status)
			}
			updates["status"] = in.Status
		}
		if len(updates) > 0 {
			if err := tx.Model(&user).Updates(updates).Error; err != nil {
				return err
			}
		}

		return applyRelations(tx, &user, in)
	})
	if err != nil {
		return nil, err
	}

	return GetUser(db, id)
}

// applyRelations replaces roles and affiliations when present. A primary
// role not already held is added to the role set.
func applyRelations(tx *gorm.DB, user *models.User, in UserInput) error {
	if in.RoleIDs != nil {
		ids := *in.RoleIDs
		if in.PrimaryRoleID != nil && *in.PrimaryRoleID != 0 {
			ids = append(append([]uint{}, ids...), *in.PrimaryRoleID)
		}
		if err := replaceRoles(tx, user, dedupe(ids)); err != nil {
			return err
		}
	} else if in.PrimaryRoleID != nil && *in.PrimaryRoleID != 0 {
		roles, err := loadRoles(tx, []uint{*in.PrimaryRoleID})
		if err != nil {
			return err
		}
		if err := tx.Model(user).Association("Roles").Append(roles); err != nil {
			return err
		}
	}

	if in.PrimaryRoleID != nil {
		var primary interface{}
		if *in.PrimaryRoleID != 0 {
			primary = *in.PrimaryRoleID
		}
		if err := tx.Model(user).Update("primary_role_id", primary).Error; err != nil {
			return err
		}
	} else if in.RoleIDs != nil && len(*in.RoleIDs) > 0 && user.PrimaryRoleID == nil {
		if err := tx.Model(user).Update("primary_role_id", (*in.RoleIDs)[0]).Error; err != nil {
			return err
		}
	}

	if in.AffiliationIDs != nil {
		return replaceAffiliations(tx, user, *in.AffiliationIDs)
	}
	return nil
}

func replaceRoles(tx *gorm.DB, user *models.User, ids []uint) error {
	roles, err := loadRoles(tx, ids)
	if err != nil {
		return err
	}
	assoc := tx.Model(user).Association("Roles")
	if len(roles) == 0 {
		return assoc.Clear()
	}
	return assoc.Replace(roles)
}

func replaceAffiliations(tx *gorm.DB, user *models.User, ids []uint) error {
	affs, err := loadAffiliations(tx, ids)
	if err != nil {
		return err
	}
	assoc := tx.Model(user).Association("Affiliations")
	if len(affs) == 0 {
		return assoc.Clear()
	}
	return assoc.Replace(affs)
}

// SetRoles replaces the user's role set. A primary role no longer held is
// cleared.
func SetRoles(db *gorm.DB, id uint, roleIDs []uint) (*models.User, error) {
	err := db.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		ids := dedupe(roleIDs)
		if err := replaceRoles(tx, &user, ids); err != nil {
			return err
		}

		keep := false
		for _, rid := range ids {
			if user.PrimaryRoleID != nil && *user.PrimaryRoleID == rid {
				keep = true
			}
		}
		if keep {
			return nil
		}
		var primary interface{}
		if len(ids) > 0 {
			primary = ids[0]
		}
		return tx.Model(&user).Update("primary_role_id", primary).Error
	})
	if err != nil {
		return nil, err
	}
	return GetUser(db, id)
}

// SetAffiliations replaces the user's bound affiliation set. An empty set
// unbinds the user.
func SetAffiliations(db *gorm.DB, id uint, affiliationIDs []uint) (*models.User, error) {
	err := db.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		return replaceAffiliations(tx, &user, affiliationIDs)
	})
	if err != nil {
		return nil, err
	}
	return GetUser(db, id)
}

// DeleteUser soft-deletes the user and revokes their refresh tokens.
func DeleteUser(db *gorm.DB, id uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if err := tx.Model(&models.RefreshToken{}).Where("user_id = ?", id).Update("revoked", true).Error; err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})
}
