package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Channel is a creator's public identity. It is keyed by the owning
// user's id (strict 1:1) and holds the ordered list of course ids the
// channel owns. Channels are never hard-deleted.
type Channel struct {
	UserID        uuid.UUID                     `gorm:"type:uuid;primaryKey" json:"user_id"`
	DisplayName   string                        `gorm:"column:display_name;not null" json:"display_name"`
	BannerURL     string                        `gorm:"column:banner_url" json:"banner_url"`
	ProfilePicURL string                        `gorm:"column:profile_pic_url" json:"profile_pic_url"`
	Courses       datatypes.JSONSlice[uuid.UUID] `gorm:"column:courses;type:jsonb" json:"courses"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Channel) TableName() string { return "channel" }
