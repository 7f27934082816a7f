package domain

import (
	"github.com/google/uuid"
)

// User and Course are owned by other services; this service only reads them.

type User struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	FullName string    `gorm:"column:full_name" json:"full_name"`
	Email    string    `gorm:"column:email" json:"email"`
	Role     string    `gorm:"column:role" json:"role"`
}

func (User) TableName() string { return "user" }

type Course struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Title            string    `gorm:"column:title" json:"title"`
	VideoContentURLs []string  `gorm:"column:video_content_urls;type:json;serializer:json" json:"video_content_urls"`
	MinBatchSize     int       `gorm:"column:min_batch_size;not null;default:2" json:"min_batch_size"`
}

func (Course) TableName() string { return "course" }
