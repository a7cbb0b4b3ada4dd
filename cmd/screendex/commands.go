package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/screendex/screendex/internal/database"
	"github.com/screendex/screendex/internal/mcp"
	"github.com/screendex/screendex/internal/search"
)

var dbPath string

var rootCmd = &cobra.Command{
	Use:           "screendex",
	Short:         "Searchable local store for screen-capture history",
	SilenceUsage:  true,
	SilenceErrors: false,
	Version:       fmt.Sprintf("%s (built %s, %s, driver %s)", version, buildTime, database.BuildMode, database.DriverName),
}

func init() {
	defaultPath := os.Getenv("SCREENDEX_DB_PATH")
	if defaultPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			defaultPath = home + "/.screendex/screendex.db"
		} else {
			defaultPath = "screendex.db"
		}
	}
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", defaultPath, "path to the capture store")

	serveCmd.Flags().Duration("retention", 0, "delete frames older than this age on a periodic sweep (0 disables)")
	searchCmd.Flags().String("app", "", "only match frames from this application")
	searchCmd.Flags().Int("limit", 20, "maximum results")
	sweepCmd.Flags().Duration("older-than", 30*24*time.Hour, "delete frames older than this age")

	rootCmd.AddCommand(serveCmd, searchCmd, statsCmd, sweepCmd, backupCmd)
}

// openDatabase opens the store configured by the --db flag.
func openDatabase() (*database.Database, error) {
	db, err := database.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", dbPath, err)
	}
	return db, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the store to assistants over MCP on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		retention, _ := cmd.Flags().GetDuration("retention")

		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		srv := mcp.NewServerWithDatabase(db)
		log.Printf("screendex %s serving on stdio (driver %s, %s build)", version, database.DriverName, database.BuildMode)

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return srv.Serve(ctx)
		})
		if retention > 0 {
			g.Go(func() error {
				return retentionLoop(ctx, db, retention)
			})
		}
		return g.Wait()
	},
}

// retentionLoop sweeps expired frames once an hour until ctx is done.
func retentionLoop(ctx context.Context, db *database.Database, maxAge time.Duration) error {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			cutoff := time.Now().Add(-maxAge)
			deleted, err := db.DeleteFramesBefore(ctx, cutoff)
			if err != nil {
				log.Printf("retention sweep failed: %v", err)
				continue
			}
			if deleted > 0 {
				log.Printf("retention sweep removed %d frames older than %s", deleted, cutoff.Format(time.RFC3339))
			}
		}
	}
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run a ranked full-text search over captured screen content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, _ := cmd.Flags().GetString("app")
		limit, _ := cmd.Flags().GetInt("limit")

		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		searcher := search.NewSearcher(db)
		resp, err := searcher.Search(cmd.Context(), search.Request{
			Query:  args[0],
			Filter: &database.FrameFilter{AppName: app},
			Page:   database.Pagination{Limit: limit},
		})
		if err != nil {
			return err
		}

		for _, r := range resp.Results {
			fmt.Printf("%8.3f  %s  [%s] %s\n    %s\n",
				r.Score, r.Timestamp.Format(time.RFC3339), r.AppName, r.WindowName, r.Text)
		}
		fmt.Printf("%d result(s) in %s\n", resp.Total, resp.Duration)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print aggregate store statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		stats, err := db.Statistics(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("frames: %d\nocr rows: %d\ntags: %d\nchunks: %d\nsize: %.2f MB\n",
			stats.FrameCount, stats.OcrCount, stats.TagCount, stats.ChunkCount, stats.SizeMB)
		if stats.OldestFrame != nil && stats.NewestFrame != nil {
			fmt.Printf("range: %s .. %s\n",
				stats.OldestFrame.Format(time.RFC3339), stats.NewestFrame.Format(time.RFC3339))
		}
		return nil
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete frames (and their OCR text and tags) older than a cutoff",
	RunE: func(cmd *cobra.Command, args []string) error {
		olderThan, _ := cmd.Flags().GetDuration("older-than")

		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		cutoff := time.Now().Add(-olderThan)
		deleted, err := db.DeleteFramesBefore(cmd.Context(), cutoff)
		if err != nil {
			return err
		}
		fmt.Printf("deleted %d frame(s) older than %s\n", deleted, cutoff.Format(time.RFC3339))
		return nil
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup <dest>",
	Short: "Write a consistent snapshot of the store to a new file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		if err := db.Backup(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("backup written to %s\n", args[0])
		return nil
	},
}
