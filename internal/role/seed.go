package role

import (
	"errors"
	"fmt"

	"github.com/Kyz7/kolegium/internal/models"
	"github.com/Kyz7/kolegium/internal/obs"
	"github.com/Kyz7/kolegium/internal/permission"
	"github.com/Kyz7/kolegium/internal/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const SuperAdminRole = "super_admin"

type defaultRole struct {
	name        string
	description string
	caps        permission.Capabilities
	permissions []string
}

// scopeGrants expands a scope prefix into a wildcard for every
// affiliation-scoped family.
func scopeGrants(prefix string) []string {
	return []string{
		"agenda." + prefix + ".*",
		"gallery." + prefix + ".*",
		"database." + prefix + ".*",
		"org_structure." + prefix + ".*",
	}
}

func studyProgramSection(section permission.Section) defaultRole {
	return defaultRole{
		name:        "admin_study_program_" + string(section),
		description: "Manages " + string(section) + " study program content",
		permissions: append(scopeGrants("study_program."+string(section)), "affiliation.view"),
	}
}

var defaultRoles = []defaultRole{
	{
		name:        SuperAdminRole,
		description: "Unrestricted access to every resource",
		caps:        permission.Capabilities{AllAccess: true},
		permissions: []string{permission.Wildcard},
	},
	{
		name:        "admin_kolegium",
		description: "Manages kolegium content and views every study program section",
		caps:        permission.Capabilities{ViewAllSections: true},
		permissions: append(scopeGrants("kolegium"), "affiliation.view", "affiliation.edit"),
	},
	{
		name:        "admin_study_program",
		description: "Manages all study program sections",
		permissions: append(scopeGrants("study_program"), "affiliation.view"),
	},
	studyProgramSection(permission.SectionResident),
	studyProgramSection(permission.SectionFellow),
	studyProgramSection(permission.SectionTrainee),
	{
		name:        "admin_peer_group",
		description: "Manages peer group content",
		permissions: append(scopeGrants("peer_group"), "affiliation.view"),
	},
}

// SeedDefaultRoles creates the built-in system roles. Existing roles are
// left as they are so later edits survive restarts.
func SeedDefaultRoles(db *gorm.DB) error {
	for _, def := range defaultRoles {
		var existing int64
		if err := db.Model(&models.Role{}).Where("name = ?", def.name).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			continue
		}

		err := db.Transaction(func(tx *gorm.DB) error {
			r := models.Role{
				Name:            def.name,
				Description:     def.description,
				IsActive:        true,
				IsSystem:        true,
				AllAccess:       def.caps.AllAccess,
				ViewAllSections: def.caps.ViewAllSections,
			}
			if err := tx.Create(&r).Error; err != nil {
				return err
			}
			return syncPermissions(tx, &r, def.permissions)
		})
		if err != nil {
			return fmt.Errorf("seed role %s: %w", def.name, err)
		}
		obs.Log.WithField("role", def.name).Info("seeded default role")
	}
	return nil
}

// SeedSuperAdmin creates the first super admin user when email is set and
// no such user exists yet.
func SeedSuperAdmin(db *gorm.DB, email, password string) error {
	if email == "" || password == "" {
		obs.Log.Debug("super admin credentials not configured, skipping")
		return nil
	}

	var existing models.User
	err := db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	var super models.Role
	if err := db.Where("name = ?", SuperAdminRole).First(&super).Error; err != nil {
		return fmt.Errorf("super admin role missing: %w", err)
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}

	user := models.User{
		Name:          "Super Admin",
		Email:         email,
		Password:      hash,
		Provider:      "local",
		Status:        "active",
		PrimaryRoleID: &super.ID,
		Roles:         []models.Role{super},
	}
	if err := db.Omit("Roles.*").Create(&user).Error; err != nil {
		return err
	}

	obs.Log.WithFields(logrus.Fields{"email": email}).Info("seeded super admin user")
	return nil
}
