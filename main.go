package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Markiayn/Parser/config"
	"github.com/Markiayn/Parser/files"
	"github.com/Markiayn/Parser/httputil"
	"github.com/Markiayn/Parser/logging"
	"github.com/Markiayn/Parser/scheduler"
	"github.com/Markiayn/Parser/scraper"
	"github.com/Markiayn/Parser/services"
	"github.com/Markiayn/Parser/storage"
	"github.com/Markiayn/Parser/workers"
)

const archiveSweepInterval = 10 * time.Minute

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	logFile, err := logging.Setup("parser.log")
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting apartment parser...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Printf("Configuration invalid: %v", err)
		os.Exit(1)
	}

	warn := logging.NewWarnings("warnings.log")

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	for _, city := range cfg.Cities {
		if err := store.EnsurePartition(city.Table); err != nil {
			log.Fatalf("Failed to prepare table %s: %v", city.Table, err)
		}
	}
	log.Printf("Storage ready, %d cities configured", len(cfg.Cities))

	if err := files.EnsureDir(cfg.PhotosDir); err != nil {
		log.Fatalf("Failed to create photos dir: %v", err)
	}

	clients := httputil.NewClients(cfg.ProxyURL)
	source := scraper.NewSourceClient(cfg.Site, clients)
	pipeline := scraper.NewPipeline(cfg, source, store, warn)

	telegram, err := services.NewTelegram(cfg.Telegram.BotToken, cfg.PriceUSDThreshold, cfg.Verbose, warn)
	if err != nil {
		log.Fatalf("Failed to init Telegram: %v", err)
	}
	poster := services.NewPoster(store, telegram, cfg.Cities, warn, cfg.Verbose)

	sched := scheduler.New(pipeline, poster, telegram, cfg.CrawlCron, cfg.Verbose)
	archive := workers.NewArchiveWorker(cfg.PhotosDir, newUploader(cfg), archiveSweepInterval)

	if len(os.Args) > 1 {
		runCommand(os.Args[1], pipeline, poster, sched, archive)
		return
	}
	runInteractive(pipeline, poster, sched, archive)
}

func openStore(cfg *config.Config) (storage.Store, error) {
	if cfg.DatabaseURL != "" {
		log.Println("Using Postgres storage")
		return storage.NewPostgresStore(cfg.DatabaseURL)
	}
	log.Printf("Using SQLite storage: %s", cfg.DBPath)
	return storage.NewSQLiteStore(cfg.DBPath)
}

func newUploader(cfg *config.Config) workers.Uploader {
	if !cfg.S3.Enabled() {
		return storage.NoOpUploader{}
	}
	up, err := storage.NewS3Uploader(context.Background(), storage.S3Config{
		Bucket:          cfg.S3.Bucket,
		Region:          cfg.S3.Region,
		Endpoint:        cfg.S3.Endpoint,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
	})
	if err != nil {
		log.Printf("S3 uploader unavailable, photo archiving disabled: %v", err)
		return storage.NoOpUploader{}
	}
	log.Printf("Photo archiving to s3://%s enabled", cfg.S3.Bucket)
	return up
}

func runCommand(cmd string, pipeline *scraper.Pipeline, poster *services.Poster, sched *scheduler.Scheduler, archive *workers.ArchiveWorker) {
	switch cmd {
	case "parse":
		pipeline.CrawlAll(context.Background())
	case "post":
		poster.PostMorning()
	case "auto":
		runAuto(sched.Start, sched, archive)
	case "autonow":
		runAuto(sched.StartNow, sched, archive)
	default:
		fmt.Printf("Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: parser [command]")
	fmt.Println("Commands:")
	fmt.Println("  parse    crawl listings for all cities once")
	fmt.Println("  post     publish the freshest unpublished listings once")
	fmt.Println("  auto     scheduled mode (crawl 08:00, publish 09:00 and hourly 10:00-22:00)")
	fmt.Println("  autonow  scheduled mode starting with an immediate crawl")
}

// runAuto starts the scheduler and blocks until SIGINT/SIGTERM or stdin EOF.
func runAuto(start func() error, sched *scheduler.Scheduler, archive *workers.ArchiveWorker) {
	if err := start(); err != nil {
		log.Printf("Scheduler failed to start: %v", err)
		return
	}
	archive.Start()

	log.Println("Press Ctrl+C to stop")
	waitForShutdown()

	sched.Stop()
	archive.Stop()
}

func waitForShutdown() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	// Stops cleanly when stdin closes too, for supervised/piped runs.
	stdinClosed := make(chan struct{})
	go func() {
		buf := make([]byte, 1)
		for {
			if _, err := os.Stdin.Read(buf); err == io.EOF {
				close(stdinClosed)
				return
			} else if err != nil {
				return
			}
		}
	}()

	select {
	case s := <-sig:
		log.Printf("Received %s", s)
	case <-stdinClosed:
		log.Println("Stdin closed")
	}
}

func runInteractive(pipeline *scraper.Pipeline, poster *services.Poster, sched *scheduler.Scheduler, archive *workers.ArchiveWorker) {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Println()
		fmt.Println("Choose an option:")
		fmt.Println("1. Crawl listings")
		fmt.Println("2. Publish listings")
		fmt.Println("3. Scheduled mode (from 08:00)")
		fmt.Println("4. Scheduled mode (starting now)")
		fmt.Println("5. Statistics")
		fmt.Println("6. Exit")
		fmt.Print("Your choice: ")

		if !scanner.Scan() {
			return
		}

		switch scanner.Text() {
		case "1":
			pipeline.CrawlAll(context.Background())
		case "2":
			poster.PostMorning()
		case "3":
			runAuto(sched.Start, sched, archive)
			return
		case "4":
			runAuto(sched.StartNow, sched, archive)
			return
		case "5":
			poster.Stats()
		case "6":
			fmt.Println("Bye!")
			return
		default:
			fmt.Println("Invalid choice, try again.")
		}
	}
}
