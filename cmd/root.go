// Package cmd wires the command line interface for the book collection tool.
package cmd

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/lepinkainen/humanlog"
	"github.com/spf13/viper"

	"bookdex/internal/cache"
	"bookdex/internal/config"
)

// CLI represents the complete command structure for the bookdex application
type CLI struct {
	// Global flags
	Overwrite bool `help:"Overwrite existing library and cover files when processing"`
	Verbose   bool `help:"Enable debug logging"`

	// Storage flags
	LibraryFile string `help:"Path to the JSON library file" default:"./library.json"`
	CoverDir    string `help:"Directory for downloaded cover images" default:"./covers/"`

	// Cache flags
	CacheDBFile string `help:"Path to cache SQLite database file" default:"./cache.db"`
	CacheTTL    string `help:"Cache time-to-live duration (e.g., 720h for 30 days)" default:"720h"`

	Lookup LookupCmd `cmd:"" help:"Resolve a scanned barcode or ISBN into book metadata"`
	Search SearchCmd `cmd:"" help:"Search catalogs by title and pick a result"`
	Add    AddCmd    `cmd:"" help:"Resolve a code or title and add the book to the library"`
	Cover  CoverCmd  `cmd:"" help:"Find and download a cover image for a library book"`
	Import ImportCmd `cmd:"" help:"Import books from a Goodreads library export CSV"`
	List   ListCmd   `cmd:"" help:"List books in the library"`
	Lend   LendCmd   `cmd:"" help:"Mark a book as lent out"`
	Return ReturnCmd `cmd:"" help:"Mark a lent book as returned"`
	Remove RemoveCmd `cmd:"" help:"Remove a book from the library"`
	Cache  CacheCmd  `cmd:"" help:"Manage the lookup cache"`
}

// CacheCmd groups cache management subcommands
type CacheCmd struct {
	Invalidate cache.InvalidateCacheCmd `cmd:"" help:"Clear cached lookups for a source"`
}

// Execute runs the Kong-based CLI
func Execute() {
	var cli CLI

	ctx := kong.Parse(&cli,
		kong.Name("bookdex"),
		kong.Description("A personal book collection tracker with barcode and title lookup."),
		kong.UsageOnError(),
	)

	initLogging(cli.Verbose)
	initConfig()
	updateGlobalConfig(&cli)

	err := ctx.Run()
	if err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetDefault("LibraryFile", "./library.json")
	viper.SetDefault("CoverDir", "./covers/")
	viper.SetDefault("OverwriteFiles", false)

	// Cache defaults
	viper.SetDefault("cache.dbfile", "./cache.db")
	viper.SetDefault("cache.ttl", "720h") // 30 days

	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("Fatal error config file", "error", err)
			os.Exit(1)
		}
	}

	// Initialize global config
	config.InitConfig()
}

func updateGlobalConfig(cli *CLI) {
	config.SetOverwriteFiles(cli.Overwrite)
	config.LibraryFile = cli.LibraryFile
	config.CoverDir = cli.CoverDir

	// Update cache config
	viper.Set("cache.dbfile", cli.CacheDBFile)
	viper.Set("cache.ttl", cli.CacheTTL)
}

func initLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	handler := humanlog.NewHandler(os.Stdout, &humanlog.Options{
		Level: level,
	})

	slog.SetDefault(slog.New(handler))
}
