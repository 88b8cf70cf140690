package scheduler

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"sir_scrooper/config"
	"sir_scrooper/httputil"
	"sir_scrooper/models"
	"sir_scrooper/scraper"
	"sir_scrooper/storage"
)

// Triggerable allows workers to be triggered manually
type Triggerable interface {
	Trigger()
}

// Links older than this are candidates for a healthcheck probe.
const linkStaleAfter = 24 * time.Hour

type Scheduler struct {
	cfg          *config.Config
	orchestrator *scraper.Orchestrator
	store        *storage.SQLiteStore
	clients      *httputil.Clients
	cron         *cron.Cron
	ticker       *time.Ticker
	stopCh       chan struct{}

	archiveWorker Triggerable
}

func New(cfg *config.Config, orchestrator *scraper.Orchestrator, store *storage.SQLiteStore, clients *httputil.Clients) *Scheduler {
	return &Scheduler{
		cfg:          cfg,
		orchestrator: orchestrator,
		store:        store,
		clients:      clients,
		cron:         cron.New(),
		stopCh:       make(chan struct{}),
	}
}

// SetWorkers registers background workers for manual triggering
func (s *Scheduler) SetWorkers(archive Triggerable) {
	s.archiveWorker = archive
}

func (s *Scheduler) Start(ctx context.Context) error {
	// Always start background runners
	go s.pollCommands(ctx)
	go s.pollHealthcheck(ctx)

	if s.cfg.Scheduler.Cron != "" {
		log.Printf("Starting scheduler with cron: %s", s.cfg.Scheduler.Cron)
		_, err := s.cron.AddFunc(s.cfg.Scheduler.Cron, func() {
			if err := s.orchestrator.RunAll(ctx); err != nil {
				log.Printf("Scheduled run error: %v", err)
			}
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	} else if s.cfg.Scheduler.Interval > 0 {
		log.Printf("Starting scheduler with interval: %s", s.cfg.Scheduler.Interval)
		go s.catchUpOnStart(ctx)
		s.ticker = time.NewTicker(s.cfg.Scheduler.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					if err := s.orchestrator.RunAll(ctx); err != nil {
						log.Printf("Scheduled run error: %v", err)
					}
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		log.Println("No schedule configured, daemon will only respond to commands")
	}

	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

func (s *Scheduler) pollCommands(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cmds, err := s.store.GetPendingCommands()
			if err != nil {
				log.Printf("Error getting commands: %v", err)
				continue
			}

			for _, cmd := range cmds {
				log.Printf("Processing command: %s", cmd.Command)
				if err := s.handleCommand(ctx, &cmd); err != nil {
					log.Printf("Command error: %v", err)
				}
				if err := s.store.MarkCommandProcessed(cmd.ID); err != nil {
					log.Printf("Error marking command processed: %v", err)
				}
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) handleCommand(ctx context.Context, cmd *models.Command) error {
	switch cmd.Command {
	case models.CmdRunArchive:
		if s.archiveWorker != nil {
			s.archiveWorker.Trigger()
			log.Println("Archive worker triggered via command")
		}
		return nil
	case models.CmdStatus:
		status, err := s.orchestrator.MarshalStatus()
		if err != nil {
			return fmt.Errorf("marshaling status: %w", err)
		}
		log.Printf("Status: %s", status)
		s.store.Log(nil, models.LogLevelInfo, string(status), "")
		return nil
	default:
		return s.orchestrator.HandleCommand(ctx, cmd)
	}
}

// staleAgents returns the roster agents that have never run or whose
// last run started at least maxAge ago.
func (s *Scheduler) staleAgents(maxAge time.Duration) []string {
	var stale []string
	for _, agent := range s.cfg.Agents {
		last, err := s.store.GetLastRunTime(agent.ID)
		if err != nil {
			log.Printf("Error getting last run time for %s: %v", agent.ID, err)
			continue
		}
		if last.IsZero() || time.Since(last) >= maxAge {
			stale = append(stale, agent.ID)
		}
	}
	return stale
}

// catchUpOnStart scrapes any agent whose last run is older than the
// configured interval, so a restarted daemon does not wait a full
// interval before covering missed schedule slots.
func (s *Scheduler) catchUpOnStart(ctx context.Context) {
	stale := s.staleAgents(s.cfg.Scheduler.Interval)
	if len(stale) == 0 {
		return
	}
	log.Printf("Catch-up run for %d agent(s) overdue since last start", len(stale))
	s.orchestrator.Run(ctx, stale)
}

func (s *Scheduler) TriggerNow(ctx context.Context) error {
	return s.orchestrator.RunAll(ctx)
}

// pollHealthcheck probes one stale link per tick with a HEAD request.
// Delisted links (404 or a redirect off the page) are marked inactive.
func (s *Scheduler) pollHealthcheck(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if s.orchestrator.IsPaused() {
				continue
			}
			id, url, err := s.store.GetOldestActiveLink(linkStaleAfter)
			if err != nil {
				log.Printf("Healthcheck error getting link: %v", err)
				continue
			}
			if url == "" {
				continue
			}

			req, err := http.NewRequestWithContext(ctx, "HEAD", url, nil)
			if err != nil {
				log.Printf("Healthcheck error creating request: %v", err)
				continue
			}
			req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
			req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
			req.Header.Set("Accept-Language", "en-US,en;q=0.9")

			resp, err := s.clients.Scraping.Do(req)
			if err != nil {
				log.Printf("Healthcheck %s: request failed: %v", url, err)
				s.store.TouchLink(id) // bump anyway to cycle through
				continue
			}
			resp.Body.Close()

			if resp.StatusCode == 200 {
				s.store.TouchLink(id)
			} else if resp.StatusCode == 404 || resp.StatusCode == 301 || resp.StatusCode == 302 {
				log.Printf("Healthcheck %s: delisted (%d)", url, resp.StatusCode)
				s.store.MarkLinkInactive(id)
			} else {
				log.Printf("Healthcheck %s: unexpected status %d", url, resp.StatusCode)
				s.store.TouchLink(id)
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}
