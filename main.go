package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"sir_scrooper/config"
	"sir_scrooper/httputil"
	"sir_scrooper/logging"
	"sir_scrooper/scheduler"
	"sir_scrooper/scraper"
	"sir_scrooper/storage"
	"sir_scrooper/workers"
)

var (
	agentFlag = flag.String("agent", "", "Scrape a single agent ID and exit")
	scrapeNow = flag.Bool("scrape", false, "Run the full roster once and exit")
	daemon    = flag.Bool("daemon", false, "Run as a daemon with scheduler and workers")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	logFile, err := logging.Setup("daemon.log")
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting sir_scrooper...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Target: %s%s", cfg.Site.BaseURL, cfg.Site.LocalePath)
	log.Printf("Roster: %d agents", len(cfg.Agents))

	clients := httputil.NewClients(&cfg.Proxy)

	sqliteStore, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer sqliteStore.Close()
	log.Printf("SQLite database: %s", cfg.DBPath)

	ctx := context.Background()

	nav := scraper.NewBrowserNavigator(&cfg.Scraper)
	defer nav.Close()

	orchestrator := scraper.NewOrchestrator(cfg, nav, sqliteStore)

	// Domain sync is optional: without DOMAIN_DB_URL records stay local.
	if cfg.DomainDB != "" {
		pgStore, err := storage.NewPostgresStore(ctx, cfg.DomainDB)
		if err != nil {
			log.Fatalf("Failed to connect to domain db: %v", err)
		}
		defer pgStore.Close()
		orchestrator.SetDomainStore(pgStore)
		log.Printf("Connected to domain db: %s", maskConnectionString(cfg.DomainDB))
	}

	// One-shot modes
	if *agentFlag != "" {
		report(orchestrator.Run(ctx, []string{*agentFlag}))
		return
	}
	if *scrapeNow {
		if err := orchestrator.RunAll(ctx); err != nil {
			log.Fatalf("Scrape failed: %v", err)
		}
		log.Println("Scrape complete!")
		return
	}

	if !*daemon {
		// Interactive: prompt for agent IDs, same contract as -agent.
		ids := promptAgentIDs(os.Stdin)
		if len(ids) == 0 {
			log.Println("No agent IDs entered, nothing to do")
			return
		}
		report(orchestrator.Run(ctx, ids))
		return
	}

	// Daemon mode
	sched := scheduler.New(cfg, orchestrator, sqliteStore, clients)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var uploader workers.Uploader
	if cfg.S3.Bucket != "" {
		s3up, err := storage.NewS3Uploader(ctx, cfg.S3)
		if err != nil {
			log.Fatalf("Failed to init S3 uploader: %v", err)
		}
		uploader = s3up
		log.Printf("Gallery archive bucket: %s", cfg.S3.Bucket)
	} else {
		uploader = &workers.NoOpUploader{}
		log.Println("No S3 bucket configured, gallery archive runs dry")
	}

	archiveWorker := workers.NewArchiveWorker(sqliteStore, clients.Scraping, uploader)
	sched.SetWorkers(archiveWorker)

	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	go archiveWorker.Run(ctx, 20, 2*time.Minute) // batch of 20 every 2 min
	log.Println("Archive worker started")

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	sched.Stop()
	log.Println("Goodbye!")
}

// promptAgentIDs reads agent IDs from the terminal, one per line, until a
// blank line or EOF.
func promptAgentIDs(in *os.File) []string {
	fmt.Println("Enter agent IDs (one per line, blank line to finish):")
	scanner := bufio.NewScanner(in)

	var ids []string
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		id := strings.TrimSpace(scanner.Text())
		if id == "" {
			break
		}
		ids = append(ids, id)
	}
	return ids
}

func report(summaries []scraper.AgentSummary) {
	for _, s := range summaries {
		if s.Err != nil {
			log.Printf("Agent %s: FAILED: %v", s.AgentID, s.Err)
			continue
		}
		log.Printf("Agent %s (%s): %d links, %d extracted, %d partial",
			s.AgentID, s.AgentName, s.LinksFound, s.DetailsExtracted, s.DetailsFailed)
		if s.LinksFile != "" {
			log.Printf("  wrote %s", s.LinksFile)
		}
		if s.DetailsFile != "" {
			log.Printf("  wrote %s", s.DetailsFile)
		}
	}
}

// maskConnectionString masks password in connection string for logging
func maskConnectionString(connStr string) string {
	start := strings.Index(connStr, "://")
	if start < 0 {
		return connStr
	}
	rest := connStr[start+3:]
	at := strings.IndexByte(rest, '@')
	colon := strings.IndexByte(rest, ':')
	if colon >= 0 && at > colon {
		return connStr[:start+3+colon+1] + "****" + rest[at:]
	}
	return connStr
}
