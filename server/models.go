package server

import (
	"net/url"
	"time"

	"github.com/Alp4ka/storypager"
	"github.com/Alp4ka/storypager/pager"
)

// User is a registered account.
type User struct {
	ID           string `gorm:"primaryKey;size:64"`
	Name         string `gorm:"not null"`
	Email        string `gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string `gorm:"not null"`
	CreatedAt    time.Time
}

func (User) TableName() string {
	return "users"
}

// Story is a stored story. Name is the author's display name at upload time.
type Story struct {
	ID          string `gorm:"primaryKey;size:64"`
	UserID      string `gorm:"index;size:64;not null"`
	Name        string `gorm:"not null"`
	Description string
	PhotoFile   string    `gorm:"not null"`
	CreatedAt   time.Time `gorm:"index"`
	Lat         *float64
	Lon         *float64
}

func (Story) TableName() string {
	return "stories"
}

// storyColumns maps the JSON names accepted in the "sort" parameter to
// columns.
var storyColumns = pager.ColumnMapping{
	"id":          "id",
	"name":        "name",
	"description": "description",
	"createdAt":   "created_at",
	"lat":         "lat",
	"lon":         "lon",
}

// defaultStoryOrder puts the newest stories first; id breaks ties so pages
// never overlap.
var defaultStoryOrder = []pager.OrderBy{
	{Column: "created_at", Direction: pager.DirectionDESC},
	{Column: "id", Direction: pager.DirectionDESC},
}

func (s Story) toItem(publicURL *url.URL) storypager.Item {
	return storypager.Item{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		PhotoURL:    publicURL.JoinPath("photos", s.PhotoFile).String(),
		CreatedAt:   s.CreatedAt,
		Lat:         s.Lat,
		Lon:         s.Lon,
	}
}
