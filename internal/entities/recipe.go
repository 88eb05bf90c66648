package entities

import (
	"time"
)

// Recipe is the shared, multi-writer recipe document. Content fields belong
// to the owner; FavoriteCount is only changed by the favorite toggle.
type Recipe struct {
	ID            string      `gorm:"primaryKey;size:128" json:"id"`
	Name          string      `gorm:"size:256;index" json:"name"`
	Description   string      `gorm:"type:text" json:"description,omitempty"`
	Ingredients   StringSlice `gorm:"type:text" json:"ingredients,omitempty"`
	Steps         StringSlice `gorm:"type:text" json:"steps,omitempty"`
	Category      string      `gorm:"size:100;index" json:"category"`
	Duration      string      `gorm:"size:50" json:"duration,omitempty"`
	Image         string      `gorm:"size:2048" json:"image,omitempty"` // http(s)://, s3:// or file:// reference
	OwnerID       string      `gorm:"size:255;index" json:"owner_id"`
	FavoriteCount int64       `gorm:"not null;default:0" json:"favorite_count"`
	Rating        float64     `gorm:"default:0" json:"rating"`
	RatingCount   int64       `gorm:"default:0" json:"rating_count"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Favorite is the per-(user, recipe) membership record. Its existence is the
// only source of truth for "favorited".
type Favorite struct {
	UserID    string    `gorm:"primaryKey;size:255" json:"user_id"`
	RecipeID  string    `gorm:"primaryKey;size:128;index" json:"recipe_id"`
	CreatedAt time.Time `json:"created_at"`
}

// User is only read, for owner attribution.
type User struct {
	ID        string    `gorm:"primaryKey;size:255" json:"id"`
	Name      string    `gorm:"size:255" json:"name"`
	Email     string    `gorm:"size:255" json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func (Recipe) TableName() string {
	return "recipes"
}

func (Favorite) TableName() string {
	return "favorites"
}

func (User) TableName() string {
	return "users"
}
