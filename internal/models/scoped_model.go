package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Scoped records carry a nullable affiliation id; nil means global.

type Agenda struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	AffiliationID *uint          `gorm:"index" json:"affiliation_id"`
	Scope         string         `gorm:"size:30;index" json:"scope"`
	Section       string         `gorm:"size:30;index" json:"section,omitempty"`
	Title         string         `gorm:"size:255" json:"title"`
	Description   string         `gorm:"type:text" json:"description"`
	Location      string         `gorm:"size:255" json:"location"`
	StartsAt      time.Time      `gorm:"index" json:"starts_at"`
	EndsAt        *time.Time     `json:"ends_at,omitempty"`
	Tags          datatypes.JSON `json:"tags,omitempty"`
	IsPublished   bool           `gorm:"index" json:"is_published"`
	PublishedAt   *time.Time     `json:"published_at,omitempty"`
	CreatedBy     uint           `gorm:"index" json:"created_by,omitempty"`
	UpdatedBy     uint           `json:"updated_by,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

type Gallery struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	AffiliationID *uint          `gorm:"index" json:"affiliation_id"`
	Scope         string         `gorm:"size:30;index" json:"scope"`
	Section       string         `gorm:"size:30;index" json:"section,omitempty"`
	Title         string         `gorm:"size:255" json:"title"`
	Caption       string         `gorm:"type:text" json:"caption"`
	ImageURL      string         `gorm:"size:500" json:"image_url"`
	CreatedBy     uint           `gorm:"index" json:"created_by,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// Member is an entry of the member database (koti, residents, fellows...).
type Member struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	AffiliationID      *uint          `gorm:"index" json:"affiliation_id"`
	OrgType            string         `gorm:"size:30;index" json:"org_type"`
	Name               string         `gorm:"size:191" json:"name"`
	Email              string         `gorm:"size:100" json:"email"`
	Phone              string         `gorm:"size:50" json:"phone"`
	RegistrationNumber string         `gorm:"size:50;index" json:"registration_number"`
	Status             string         `gorm:"size:20;default:'active'" json:"status"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`
}

type OrgStructureMember struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	AffiliationID *uint          `gorm:"index" json:"affiliation_id"`
	OrgType       string         `gorm:"size:30;index" json:"org_type"`
	Name          string         `gorm:"size:191" json:"name"`
	Position      string         `gorm:"size:191" json:"position"`
	PeriodStart   string         `gorm:"size:10" json:"period_start"`
	PeriodEnd     string         `gorm:"size:10" json:"period_end"`
	SortOrder     int            `gorm:"default:0" json:"sort_order"`
	PhotoURL      string         `gorm:"size:500" json:"photo_url"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}
