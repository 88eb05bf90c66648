package entities

import "time"

// UnknownOwner is shown when the owner's user record cannot be resolved.
const UnknownOwner = "Unknown Chef"

// FavoriteRecipe is the denormalized view record shared by the sync engine,
// the local cache and the presentation layer.
type FavoriteRecipe struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Ingredients   []string  `json:"ingredients,omitempty"`
	Steps         []string  `json:"steps,omitempty"`
	Category      string    `json:"category"`
	Duration      string    `json:"duration,omitempty"`
	ImageURI      string    `json:"imageUri"`              // Local path, remote ref while pending, or empty
	ImageSource   string    `json:"imageSource,omitempty"` // Remote reference ImageURI was derived from
	OwnerID       string    `json:"ownerId"`
	Owner         string    `json:"owner"` // Display name, e.g. "Chef Alice"
	Rating        float64   `json:"rating"`
	RatingCount   int64     `json:"ratingCount"`
	FavoriteCount int64     `json:"favoriteCount"`
	Favorite      bool      `json:"favorite"`
	CreatedAt     time.Time `json:"createdAt"`
	FavoritedBy   string    `json:"favoritedBy,omitempty"` // User whose favorite this entry is
}

// NewFavoriteRecipe projects a remote recipe into a view record. The image
// URI starts out as the remote reference.
func NewFavoriteRecipe(r Recipe, ownerName string) FavoriteRecipe {
	if ownerName == "" {
		ownerName = UnknownOwner
	}
	return FavoriteRecipe{
		ID:            r.ID,
		Name:          r.Name,
		Description:   r.Description,
		Ingredients:   append([]string(nil), r.Ingredients...),
		Steps:         append([]string(nil), r.Steps...),
		Category:      r.Category,
		Duration:      r.Duration,
		ImageURI:      r.Image,
		ImageSource:   r.Image,
		OwnerID:       r.OwnerID,
		Owner:         ownerName,
		Rating:        r.Rating,
		RatingCount:   r.RatingCount,
		FavoriteCount: r.FavoriteCount,
		Favorite:      true,
		CreatedAt:     r.CreatedAt.UTC(),
	}
}

// ChefName formats an owner display name.
func ChefName(name string) string {
	if name == "" {
		return UnknownOwner
	}
	return "Chef " + name
}
