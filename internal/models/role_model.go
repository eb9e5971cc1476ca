package models

import (
	"time"
)

type Role struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"size:100;uniqueIndex" json:"name"`
	Description string `json:"description"`
	IsActive    bool   `json:"is_active"`
	IsSystem    bool   `json:"is_system"`
	// Capability flags, see permission.Capabilities.
	AllAccess       bool         `json:"all_access"`
	ViewAllSections bool         `json:"view_all_sections"`
	Permissions     []Permission `gorm:"many2many:role_permissions;constraint:OnDelete:CASCADE" json:"permissions"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// PermissionNames returns the role's permission strings.
func (r *Role) PermissionNames() []string {
	names := make([]string, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		names = append(names, p.Name)
	}
	return names
}

type Permission struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:191;uniqueIndex" json:"name"` // agenda.study_program.resident.publish
	DisplayName string    `gorm:"size:191" json:"display_name"`
	Description string    `gorm:"type:text" json:"description"`
	Module      string    `gorm:"size:100;index" json:"module"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
