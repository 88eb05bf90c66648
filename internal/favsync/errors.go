package favsync

import (
	"errors"
)

var (
	// ErrOffline rejects favorite changes while the device has no connectivity.
	// Changes are never queued for later.
	ErrOffline = errors.New("favorites cannot be changed while offline")
	// ErrNoUser is returned when no user is active.
	ErrNoUser = errors.New("no active user")
	// ErrNotFound is returned when the recipe does not exist remotely.
	ErrNotFound = errors.New("recipe not found")
	// ErrUpdateFailed is returned when the remote transaction failed for good.
	ErrUpdateFailed = errors.New("unable to update favorite status")
	// ErrStopped is returned by calls made after the engine stopped.
	ErrStopped = errors.New("sync engine stopped")
)

// Advisory turns an engine error into a short user-facing notice. It returns
// an empty string for a nil error.
func Advisory(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrOffline):
		return "You are offline. Favorites can be changed once you are back online."
	case errors.Is(err, ErrNoUser):
		return "Sign in to manage your favorites."
	case errors.Is(err, ErrNotFound):
		return "This recipe is no longer available."
	default:
		return "Unable to update favorite status. Please try again."
	}
}
