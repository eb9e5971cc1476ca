package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Name          string         `gorm:"size:100" json:"name"`
	Email         string         `gorm:"uniqueIndex;size:100" json:"email"`
	Password      string         `gorm:"size:255" json:"-"`
	Provider      string         `gorm:"size:50" json:"provider"`
	Status        string         `gorm:"size:20;default:'active'" json:"status"`
	PrimaryRoleID *uint          `json:"primary_role_id,omitempty"`
	PrimaryRole   *Role          `gorm:"foreignKey:PrimaryRoleID;constraint:OnDelete:SET NULL,OnUpdate:CASCADE" json:"primary_role,omitempty"`
	Roles         []Role         `gorm:"many2many:user_roles" json:"roles,omitempty"`
	Affiliations  []Affiliation  `gorm:"many2many:user_affiliations" json:"affiliations,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) AffiliationIDs() []uint {
	ids := make([]uint, 0, len(u.Affiliations))
	for _, a := range u.Affiliations {
		ids = append(ids, a.ID)
	}
	return ids
}

// DisplayRole is the role name shown in the UI and carried in access
// tokens. It carries no authorization weight.
func (u *User) DisplayRole() string {
	if u.PrimaryRole != nil {
		return u.PrimaryRole.Name
	}
	if len(u.Roles) > 0 {
		return u.Roles[0].Name
	}
	return ""
}
