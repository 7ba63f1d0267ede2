package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/newsmill/newsmill/internal/classify"
	"github.com/newsmill/newsmill/internal/config"
	"github.com/newsmill/newsmill/internal/database"
	"github.com/newsmill/newsmill/internal/extract"
	"github.com/newsmill/newsmill/internal/feed"
	"github.com/newsmill/newsmill/internal/ingest"
	"github.com/newsmill/newsmill/internal/rank"
	"github.com/newsmill/newsmill/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "newsmill",
	Short:   "Personalized news from RSS feeds",
	Long:    "Newsmill ingests news from RSS sources, removes duplicate coverage, labels topics, and ranks articles per reader.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(rankCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sourcesCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("newsmill", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/newsmill/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure feeds, categories, and ranking weights.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Database: %s\n\n", db.Path())
		fmt.Printf("Sources:  %d\n", stats.Sources)
		fmt.Printf("Articles: %d\n", stats.Articles)
		fmt.Printf("Users:    %d\n", stats.Users)
		fmt.Printf("Feedback: %d\n", stats.Feedback)

		categories, err := db.DistinctCategories()
		if err != nil {
			return err
		}
		if len(categories) > 0 {
			fmt.Println("\nCategories with articles:")
			for _, c := range categories {
				fmt.Printf("  %s\n", c)
			}
		}
		return nil
	},
}

// --- fetch command ---

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch all configured sources once",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		pipe, sources, err := buildPipeline(db)
		if err != nil {
			return err
		}

		fmt.Printf("Fetching %d sources...\n", len(sources))
		report, err := pipe.Run(context.Background(), sources)
		if err != nil {
			return err
		}
		printReport(report)
		return nil
	},
}

func printReport(report *ingest.RunReport) {
	fmt.Printf("\nRun finished in %s:\n", report.Duration.Round(time.Millisecond))
	for _, s := range report.Sources {
		if s.Err != nil {
			fmt.Printf("  %-24s FAILED: %v\n", s.Name, s.Err)
			continue
		}
		fmt.Printf("  %-24s fetched %3d  imported %3d  duplicates %3d  failed %3d\n",
			s.Name, s.Fetched, s.Imported, s.Duplicates, s.Failed)
	}
	fmt.Printf("\nImported %d new articles (%d sources failed).\n",
		report.Imported(), report.FailedSources())
}

// --- rank command ---

var (
	rankUserID   int64
	rankCategory string
	rankLimit    int
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Print the top ranked articles",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		var prefs rank.Preferences
		if rankUserID != 0 {
			user, err := db.GetUser(rankUserID)
			if err != nil {
				return err
			}
			if user == nil {
				return fmt.Errorf("user %d not found", rankUserID)
			}
			prefs = rank.ParsePreferences(user.Preferences)
		}

		articles, err := db.ListArticles(database.ArticleFilter{Category: rankCategory})
		if err != nil {
			return err
		}

		engine := rank.New(cfg.RankOptions())
		ranked := engine.Rank(articles, prefs, rankLimit, time.Now().UTC())

		if len(ranked) == 0 {
			fmt.Println("No articles. Run 'newsmill fetch' first.")
			return nil
		}
		for i, a := range ranked {
			age := ""
			if !a.PublishedAt.IsZero() {
				age = time.Since(a.PublishedAt).Round(time.Minute).String()
			}
			fmt.Printf("%2d. [%s] %s (%s)\n", i+1, a.Category, a.Title, age)
			fmt.Printf("    %s\n", a.CanonicalURL)
		}
		return nil
	},
}

func init() {
	rankCmd.Flags().Int64VarP(&rankUserID, "user", "u", 0, "Rank for this user id (omit for trending order)")
	rankCmd.Flags().StringVar(&rankCategory, "category", "", "Only articles in this category")
	rankCmd.Flags().IntVarP(&rankLimit, "limit", "n", 20, "Number of articles to show")
}

// --- serve command ---

var (
	servePort int
	noRefresh bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server with periodic background fetching",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		pipe, sources, err := buildPipeline(db)
		if err != nil {
			return err
		}

		refresh := func(ctx context.Context) (*ingest.RunReport, error) {
			return pipe.Run(ctx, sources)
		}

		if !noRefresh && cfg.RefreshInterval() > 0 {
			go func() {
				ticker := time.NewTicker(cfg.RefreshInterval())
				defer ticker.Stop()
				for range ticker.C {
					report, err := refresh(context.Background())
					if err != nil {
						log.Printf("background refresh: %v", err)
						continue
					}
					log.Printf("background refresh: %d imported, %d sources failed",
						report.Imported(), report.FailedSources())
				}
			}()
		}

		fmt.Printf("Starting server at http://localhost:%d\n", servePort)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, rank.New(cfg.RankOptions()), refresh, servePort)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
	serveCmd.Flags().BoolVar(&noRefresh, "no-refresh", false, "Disable periodic background fetching")
}

// --- sources command ---

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Manage registered sources",
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all registered sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		items, err := db.ListSources()
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("No sources registered. Run 'newsmill fetch' to register configured feeds.")
			return nil
		}

		for _, s := range items {
			state := " "
			if !s.Enabled {
				state = "disabled"
			}
			fmt.Printf("  [%d] %-24s %s %s\n", s.ID, s.Name, s.FeedURL, state)
		}
		return nil
	},
}

func setEnabledCmd(use, short string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [id]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid source ID: %s", args[0])
			}
			if err := db.SetSourceEnabled(id, enabled); err != nil {
				return err
			}
			fmt.Printf("Source [%d] %s\n", id, use+"d")
			return nil
		},
	}
}

func init() {
	sourcesCmd.AddCommand(sourcesListCmd)
	sourcesCmd.AddCommand(setEnabledCmd("enable", "Enable fetching for a source", true))
	sourcesCmd.AddCommand(setEnabledCmd("disable", "Skip a source during fetching", false))
}

// buildPipeline registers configured feeds and assembles the ingestion
// pipeline over the enabled sources.
func buildPipeline(db *database.DB) (*ingest.Pipeline, []database.Source, error) {
	for _, f := range cfg.Sources {
		name := f.Name
		if name == "" {
			name = f.URL
		}
		country := f.Country
		if country == "" {
			country = feed.InferCountry(f.URL)
		}
		if _, err := db.RegisterSource(name, f.URL, country, f.Language); err != nil {
			return nil, nil, err
		}
	}

	sources, err := db.EnabledSources()
	if err != nil {
		return nil, nil, err
	}

	tax, err := cfg.BuildTaxonomy()
	if err != nil {
		return nil, nil, fmt.Errorf("building taxonomy: %w", err)
	}

	pipe := ingest.New(db,
		feed.NewFetcher(cfg.FetchTimeout(), cfg.Ingest.UserAgent),
		extract.New(cfg.FetchTimeout(), cfg.Ingest.MinBodyLength, cfg.Ingest.UserAgent),
		classify.New(tax, cfg.Classifier.ModelPath),
		cfg.IngestOptions())
	return pipe, sources, nil
}

func openDB() (*database.DB, error) {
	return database.Open(cfg.DBPath())
}
