package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AffiliationType string

const (
	AffiliationKolegium           AffiliationType = "kolegium"
	AffiliationResiden            AffiliationType = "residen"
	AffiliationClinicalFellowship AffiliationType = "clinical_fellowship"
	AffiliationSubspesialis       AffiliationType = "subspesialis"
	AffiliationPeerGroup          AffiliationType = "peer_group"
)

func (t AffiliationType) Valid() bool {
	switch t {
	case AffiliationKolegium, AffiliationResiden, AffiliationClinicalFellowship,
		AffiliationSubspesialis, AffiliationPeerGroup:
		return true
	}
	return false
}

type Affiliation struct {
	ID        uint                `gorm:"primaryKey" json:"id"`
	Code      string              `gorm:"size:50;uniqueIndex" json:"code"`
	Name      string              `gorm:"size:191" json:"name"`
	Type      AffiliationType     `gorm:"size:50;index" json:"type"`
	Profile   *AffiliationProfile `gorm:"foreignKey:AffiliationID" json:"profile,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

type AffiliationProfile struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	AffiliationID uint           `gorm:"uniqueIndex" json:"affiliation_id"`
	Description   string         `gorm:"type:text" json:"description"`
	Vision        string         `gorm:"type:text" json:"vision"`
	Mission       string         `gorm:"type:text" json:"mission"`
	Address       string         `gorm:"size:500" json:"address"`
	Phone         string         `gorm:"size:50" json:"phone"`
	Email         string         `gorm:"size:100" json:"email"`
	Website       string         `gorm:"size:255" json:"website"`
	LogoURL       string         `gorm:"size:500" json:"logo_url"`
	SocialLinks   datatypes.JSON `json:"social_links,omitempty"` // {"instagram": "...", "youtube": "..."}
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}
