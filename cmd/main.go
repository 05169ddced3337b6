package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"media-manager/config"
	"media-manager/enrich"
	"media-manager/manager"
	"media-manager/notion"
	"media-manager/scheduler"
	"media-manager/storage"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the configuration file")
	moviesFlag := flag.String("movies", "", "sync movie folders of the given location label (or 'all')")
	backupFlag := flag.Bool("backup", false, "back up movies missing at the backup location")
	genresFlag := flag.Bool("genres", false, "refresh genre links from the remote genre database")
	flag.Parse()

	// Initialize logger with timestamp
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("Starting Media Manager...")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize storage
	sqliteStorage := storage.NewSQLiteStorage(cfg.DataPath)
	if err := sqliteStorage.Initialize(); err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer sqliteStorage.Close()

	client := notion.NewClient(cfg.NotionAPIKey)
	catalog := notion.NewCatalog(client, cfg.MovieDatabaseID, cfg.GenreDatabaseID)
	posters := enrich.NewPosterCache(cfg.OMDBAPIKey)
	ranking := enrich.NewRankingCache(cfg.DataPath)

	movieManager := manager.NewMovieManager(sqliteStorage, catalog, posters, ranking)

	if *genresFlag {
		if err := movieManager.UpdateGenreLinks(); err != nil {
			log.Fatalf("Failed to update genre links: %v", err)
		}
		return
	}

	runMode := os.Getenv("RUN_MODE")

	if runMode == "scheduler" {
		log.Println("Starting in scheduler mode")

		sched := scheduler.NewScheduler()
		syncJob := scheduler.NewCatalogSyncJob(movieManager, cfg, *backupFlag)

		if err := sched.AddNightlyJob(syncJob); err != nil {
			log.Fatalf("Failed to schedule catalog sync job: %v", err)
		}

		sched.Start()
		log.Println("Scheduler started. The catalog will be synced at 3:00 AM daily")

		// Run the job once at startup if specified
		if os.Getenv("RUN_AT_STARTUP") == "true" {
			log.Println("Running initial catalog sync at startup")
			if err := sched.RunJobNow(syncJob.Name()); err != nil {
				log.Printf("Error running initial job: %v", err)
			}
		}

		displayDatabaseStats(sqliteStorage)

		// Set up signal handling for graceful shutdown
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		log.Println("Application running. Press Ctrl+C to exit")

		sig := <-quit
		log.Printf("Received signal %s, shutting down...", sig)

		sched.Stop()

	} else {
		log.Println("Running in single execution mode")

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
		defer cancel()

		report := manager.NewRunReport()
		if *moviesFlag != "" {
			locations := cfg.LocationsByLabel(*moviesFlag)
			if len(locations) == 0 {
				log.Fatalf("No locations match %q", *moviesFlag)
			}
			report = movieManager.Reconcile(ctx, locations)
		}

		if *backupFlag {
			backup, ok := cfg.BackupLocation()
			if !ok {
				log.Fatalf("No location labelled %s configured", cfg.BackupLabel)
			}
			movieManager.Backup(ctx, backup, cfg.PrimaryLabels, report)
			report.Finish()
		}

		if *moviesFlag == "" && !*backupFlag {
			flag.Usage()
			os.Exit(2)
		}

		log.Print(report.String())
		displayDatabaseStats(sqliteStorage)
	}

	log.Println("Application exiting")
}

// displayDatabaseStats shows database statistics
func displayDatabaseStats(db *storage.SQLiteStorage) {
	stats, err := db.GetStats()
	if err != nil {
		log.Printf("Error getting database stats: %v", err)
		return
	}

	log.Printf("Catalog: %d movies across %d paths in %d locations (%d persons, %d genres)",
		stats["movies"], stats["paths"], stats["locations"], stats["persons"], stats["genres"])
}
