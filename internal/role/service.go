package role

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Kyz7/kolegium/internal/models"
	"github.com/Kyz7/kolegium/internal/permission"
	"gorm.io/gorm"
)

var (
	ErrRoleNotFound       = errors.New("role not found")
	ErrPermissionNotFound = errors.New("permission not found")
	ErrUserNotFound       = errors.New("user not found")
)

// RoleInput is shared by create and update. Nil fields are left untouched
// on update; a non-nil empty Permissions clears every grant.
type RoleInput struct {
	Name            string    `json:"name"`
	Description     *string   `json:"description"`
	AllAccess       *bool     `json:"all_access"`
	ViewAllSections *bool     `json:"view_all_sections"`
	Permissions     *[]string `json:"permissions"`
}

// EnsurePermission returns the permission with exactly this name, creating
// it with a derived display name and module when missing.
func EnsurePermission(db *gorm.DB, name string) (*models.Permission, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, permission.Errorf(permission.KindValidation, "permission name is required")
	}

	var perm models.Permission
	err := db.Where(models.Permission{Name: name}).
		Attrs(models.Permission{
			DisplayName: permission.DisplayName(name),
			Module:      permission.ModuleOf(name),
		}).
		FirstOrCreate(&perm).Error
	if err != nil {
		return nil, fmt.Errorf("ensure permission %q: %w", name, err)
	}
	return &perm, nil
}

func ensurePermissions(db *gorm.DB, names []string) ([]models.Permission, error) {
	names = permission.NormalizeNames(names)
	perms := make([]models.Permission, 0, len(names))
	for _, name := range names {
		p, err := EnsurePermission(db, name)
		if err != nil {
			return nil, err
		}
		perms = append(perms, *p)
	}
	return perms, nil
}

func ListPermissions(db *gorm.DB, module string) ([]models.Permission, error) {
	q := db.Order("name")
	if module != "" {
		q = q.Where("module = ?", module)
	}

	var perms []models.Permission
	if err := q.Find(&perms).Error; err != nil {
		return nil, err
	}
	return perms, nil
}

func DeletePermission(db *gorm.DB, id uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var perm models.Permission
		if err := tx.First(&perm, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPermissionNotFound
			}
			return err
		}

		var refs int64
		if err := tx.Table("role_permissions").Where("permission_id = ?", id).Count(&refs).Error; err != nil {
			return err
		}
		if refs > 0 {
			return permission.Errorf(permission.KindConflict, "permission %s is used by %d role(s)", perm.Name, refs)
		}

		return tx.Delete(&perm).Error
	})
}

func ListRoles(db *gorm.DB) ([]models.Role, error) {
	var roles []models.Role
	if err := db.Preload("Permissions").Order("name").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

func GetRole(db *gorm.DB, id uint) (*models.Role, error) {
	var role models.Role
	if err := db.Preload("Permissions").First(&role, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, err
	}
	return &role, nil
}

// RoleUsage counts live users holding the role, either through user_roles
// or as their primary role.
func RoleUsage(db *gorm.DB, roleID uint) (int64, error) {
	var n int64
	err := db.Model(&models.User{}).
		Where("id IN (?) OR primary_role_id = ?",
			db.Table("user_roles").Select("user_id").Where("role_id = ?", roleID),
			roleID).
		Count(&n).Error
	return n, err
}

func nameTaken(tx *gorm.DB, name string, exceptID uint) (bool, error) {
	var n int64
	err := tx.Model(&models.Role{}).Where("name = ? AND id <> ?", name, exceptID).Count(&n).Error
	return n > 0, err
}

func CreateRole(db *gorm.DB, in RoleInput) (*models.Role, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, permission.Errorf(permission.KindValidation, "role name is required")
	}

	var role models.Role
	err := db.Transaction(func(tx *gorm.DB) error {
		taken, err := nameTaken(tx, in.Name, 0)
		if err != nil {
			return err
		}
		if taken {
			return permission.Errorf(permission.KindConflict, "role %s already exists", in.Name)
		}

		role = models.Role{
			Name:     in.Name,
			IsActive: true,
		}
		if in.Description != nil {
			role.Description = *in.Description
		}
		if in.AllAccess != nil {
			role.AllAccess = *in.AllAccess
		}
		if in.ViewAllSections != nil {
			role.ViewAllSections = *in.ViewAllSections
		}
		if err := tx.Create(&role).Error; err != nil {
			return err
		}

		if in.Permissions != nil {
			return syncPermissions(tx, &role, *in.Permissions)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return GetRole(db, role.ID)
}

func UpdateRole(db *gorm.DB, id uint, in RoleInput) (*models.Role, error) {
	err := db.Transaction(func(tx *gorm.DB) error {
		var role models.Role
		if err := tx.First(&role, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRoleNotFound
			}
			return err
		}

		name := strings.TrimSpace(in.Name)
		if name != "" && name != role.Name {
			if role.IsSystem {
				return permission.Errorf(permission.KindConflict, "system role %s cannot be renamed", role.Name)
			}
			taken, err := nameTaken(tx, name, role.ID)
			if err != nil {
				return err
			}
			if taken {
				return permission.Errorf(permission.KindConflict, "role %s already exists", name)
			}
			role.Name = name
		}

		if in.Description != nil {
			role.Description = *in.Description
		}
		if in.AllAccess != nil {
			role.AllAccess = *in.AllAccess
		}
		if in.ViewAllSections != nil {
			role.ViewAllSections = *in.ViewAllSections
		}
		if err := tx.Save(&role).Error; err != nil {
			return err
		}

		if in.Permissions != nil {
			return syncPermissions(tx, &role, *in.Permissions)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return GetRole(db, id)
}

// SyncPermissions replaces the role's permission set with names, creating
// unknown permissions on the way. Running it twice with the same input
// leaves the same state.
func SyncPermissions(db *gorm.DB, roleID uint, names []string) (*models.Role, error) {
	err := db.Transaction(func(tx *gorm.DB) error {
		var role models.Role
		if err := tx.First(&role, roleID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRoleNotFound
			}
			return err
		}
		return syncPermissions(tx, &role, names)
	})
	if err != nil {
		return nil, err
	}
	return GetRole(db, roleID)
}

func syncPermissions(tx *gorm.DB, role *models.Role, names []string) error {
	perms, err := ensurePermissions(tx, names)
	if err != nil {
		return err
	}

	assoc := tx.Model(role).Association("Permissions")
	if len(perms) == 0 {
		return assoc.Clear()
	}
	return assoc.Replace(perms)
}

func DeleteRole(db *gorm.DB, id uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var role models.Role
		if err := tx.First(&role, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRoleNotFound
			}
			return err
		}

		if role.IsSystem {
			return permission.Errorf(permission.KindConflict, "system role %s cannot be deleted", role.Name)
		}

		users, err := RoleUsage(tx, role.ID)
		if err != nil {
			return err
		}
		if users > 0 {
			return permission.Errorf(permission.KindConflict, "role %s is assigned to %d user(s)", role.Name, users)
		}

		if err := tx.Model(&role).Association("Permissions").Clear(); err != nil {
			return err
		}
		return tx.Delete(&role).Error
	})
}

func ToggleActive(db *gorm.DB, id uint) (*models.Role, error) {
	var role models.Role
	if err := db.First(&role, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, err
	}

	if role.IsSystem {
		return nil, permission.Errorf(permission.KindConflict, "system role %s cannot be deactivated", role.Name)
	}

	if err := db.Model(&role).Update("is_active", !role.IsActive).Error; err != nil {
		return nil, err
	}
	return GetRole(db, id)
}

// DuplicateRole copies grants and capability flags into a new active,
// non-system role.
func DuplicateRole(db *gorm.DB, id uint, name string) (*models.Role, error) {
	original, err := GetRole(db, id)
	if err != nil {
		return nil, err
	}

	names := original.PermissionNames()
	description := original.Description + " (Copy)"
	return CreateRole(db, RoleInput{
		Name:            name,
		Description:     &description,
		AllAccess:       &original.AllAccess,
		ViewAllSections: &original.ViewAllSections,
		Permissions:     &names,
	})
}

// AssignRole adds the role to the user's role set. The first role a user
// receives also becomes their primary (display) role.
func AssignRole(db *gorm.DB, userID, roleID uint) (*models.User, error) {
	var user models.User
	err := db.Transaction(func(tx *gorm.DB) error {
		role, err := GetRole(tx, roleID)
		if err != nil {
			return err
		}
		if err := tx.First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		if err := tx.Model(&user).Association("Roles").Append(role); err != nil {
			return err
		}
		if user.PrimaryRoleID == nil {
			return tx.Model(&user).Update("primary_role_id", role.ID).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := db.Preload("PrimaryRole").Preload("Roles").First(&user, userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GrantsEscalate reports whether the input would hand out powers only an
// all-access subject may grant.
func GrantsEscalate(in RoleInput) bool {
	if in.AllAccess != nil && *in.AllAccess {
		return true
	}
	if in.Permissions == nil {
		return false
	}
	for _, name := range *in.Permissions {
		if permission.ParseGrant(strings.TrimSpace(name)).Kind == permission.GrantGlobal {
			return true
		}
	}
	return false
}

// Protected reports whether the role's grants may only be changed by an
// all-access subject: system roles and roles carrying AllAccess.
func Protected(r *models.Role) bool {
	return r.IsSystem || r.AllAccess
}

// ChangesGrants reports whether applying in to r would alter its
// capability flags or permission set.
func ChangesGrants(r *models.Role, in RoleInput) bool {
	if in.AllAccess != nil && *in.AllAccess != r.AllAccess {
		return true
	}
	if in.ViewAllSections != nil && *in.ViewAllSections != r.ViewAllSections {
		return true
	}
	if in.Permissions == nil {
		return false
	}

	next := permission.NormalizeNames(*in.Permissions)
	current := r.PermissionNames()
	if len(next) != len(current) {
		return true
	}
	held := make(map[string]struct{}, len(current))
	for _, name := range current {
		held[name] = struct{}{}
	}
	for _, name := range next {
		if _, ok := held[name]; !ok {
			return true
		}
	}
	return false
}
