package config

// Default paths for databases
const (
	// DefaultDatabasePath is the default path for the local favorites cache
	DefaultDatabasePath = "./favorites.sqlite"

	// DefaultRemoteDSN points the sqlite remote driver at a shared demo file
	DefaultRemoteDSN = "./remote.sqlite"

	// DefaultImageDirName is created next to the local database when Images.Dir is empty
	DefaultImageDirName = "recipe_images"
)
