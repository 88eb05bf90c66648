package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/mrlokans/tastier/internal/config"
	"github.com/mrlokans/tastier/internal/localcache"
	"github.com/mrlokans/tastier/internal/logger"
	"github.com/mrlokans/tastier/internal/projection"
)

// CacheListCommand prints the favorites stored on this device.
type CacheListCommand struct {
	DatabasePath string
	Category     string
	Search       string
	Sort         string
	JSON         bool
	Out          io.Writer
}

func NewCacheListCommand() *CacheListCommand {
	return &CacheListCommand{Out: os.Stdout}
}

func (cmd *CacheListCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("cache-list", flag.ExitOnError)

	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the local favorites cache")
	fs.StringVar(&cmd.Category, "category", projection.AllCategories, "Only list this category")
	fs.StringVar(&cmd.Search, "q", "", "Case-insensitive name search")
	fs.StringVar(&cmd.Sort, "sort", "", "Sort key: latest, earliest, rating, favoriteCount")
	fs.BoolVar(&cmd.JSON, "json", false, "Print JSON instead of a table")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s cache-list [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "List favorites from the on-device cache without contacting the remote store.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := projection.ParseSortKey(cmd.Sort); err != nil {
		return err
	}
	return nil
}

func (cmd *CacheListCommand) Run() error {
	if _, err := os.Stat(cmd.DatabasePath); os.IsNotExist(err) {
		return fmt.Errorf("cache database not found: %s", cmd.DatabasePath)
	}

	store, err := localcache.Open(cmd.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	items, err := localcache.NewCache(store, logger.L()).Load(context.Background())
	if err != nil {
		return fmt.Errorf("failed to load cache: %w", err)
	}

	sortKey, err := projection.ParseSortKey(cmd.Sort)
	if err != nil {
		return err
	}
	items = projection.Project(items, projection.Filter{
		Category: cmd.Category,
		Search:   cmd.Search,
		Sort:     sortKey,
	})

	if cmd.JSON {
		enc := json.NewEncoder(cmd.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}

	w := tabwriter.NewWriter(cmd.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tOWNER\tFAVORITES\tIMAGE")
	for _, item := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			item.ID, item.Name, item.Category, item.Owner, item.FavoriteCount, item.ImageURI)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.Out, "\n%d favorites\n", len(items))
	return nil
}
