package config

import (
	"github.com/spf13/viper"
)

// Global configuration variables
var (
	// OverwriteFiles controls whether existing library and cover files are overwritten
	OverwriteFiles bool
	// LibraryFile is the path of the JSON collection file
	LibraryFile string
	// CoverDir is the directory downloaded cover images are written to
	CoverDir string
)

// InitConfig initializes the global configuration
func InitConfig() {
	// Set default values
	viper.SetDefault("LibraryFile", "./library.json")
	viper.SetDefault("CoverDir", "./covers/")
	viper.SetDefault("OverwriteFiles", false)
	viper.SetDefault("cache.dbfile", "./cache.db")
	viper.SetDefault("cache.ttl", "720h")

	// Get values from viper
	OverwriteFiles = viper.GetBool("OverwriteFiles")
	LibraryFile = viper.GetString("LibraryFile")
	CoverDir = viper.GetString("CoverDir")
}

// SetOverwriteFiles sets the OverwriteFiles flag
func SetOverwriteFiles(overwrite bool) {
	OverwriteFiles = overwrite
}
