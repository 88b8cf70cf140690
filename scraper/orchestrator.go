package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"sir_scrooper/config"
	"sir_scrooper/export"
	"sir_scrooper/identity"
	"sir_scrooper/models"
	"sir_scrooper/storage"
)

const detailReadySelector = selHeroWrapper + ", " + selInfoColumn + ", div.description"

// Orchestrator sequences the per-agent pipeline: resolve agent, discover
// links, extract each detail through a bounded session pool, assemble the
// two output tables. Agents in a batch share nothing but the navigator; one
// bad agent never aborts the batch.
type Orchestrator struct {
	cfg    *config.Config
	nav    Navigator
	store  *storage.SQLiteStore
	domain *storage.PostgresStore
	paused bool
}

// AgentSummary is the per-agent outcome handed back to the CLI layer.
type AgentSummary struct {
	AgentID          string `json:"agent_id"`
	AgentName        string `json:"agent_name"`
	LinksFound       int    `json:"links_found"`
	DetailsExtracted int    `json:"details_extracted"`
	DetailsFailed    int    `json:"details_failed"`
	LinksFile        string `json:"links_file,omitempty"`
	DetailsFile      string `json:"details_file,omitempty"`
	Err              error  `json:"-"`
}

func NewOrchestrator(cfg *config.Config, nav Navigator, store *storage.SQLiteStore) *Orchestrator {
	return &Orchestrator{cfg: cfg, nav: nav, store: store}
}

// SetDomainStore enables Postgres sync of completed records.
func (o *Orchestrator) SetDomainStore(pg *storage.PostgresStore) {
	o.domain = pg
}

// RunAll scrapes every agent on the configured roster.
func (o *Orchestrator) RunAll(ctx context.Context) error {
	if o.paused {
		log.Println("Scraper is paused, skipping run")
		return nil
	}
	if len(o.cfg.Agents) == 0 {
		log.Println("No agents on the roster")
		return nil
	}

	ids := make([]string, 0, len(o.cfg.Agents))
	for _, a := range o.cfg.Agents {
		ids = append(ids, a.ID)
	}
	o.Run(ctx, ids)
	return nil
}

// Run processes agents in order and returns one summary each. Failures are
// carried in the summary; the batch always runs to completion.
func (o *Orchestrator) Run(ctx context.Context, agentIDs []string) []AgentSummary {
	summaries := make([]AgentSummary, 0, len(agentIDs))
	for _, id := range agentIDs {
		if err := ctx.Err(); err != nil {
			summaries = append(summaries, AgentSummary{AgentID: id, Err: err})
			continue
		}
		summary := o.RunAgent(ctx, id)
		if summary.Err != nil {
			log.Printf("Agent %s failed: %v", id, summary.Err)
		}
		summaries = append(summaries, summary)
	}
	return summaries
}

// RunAgent executes the full pipeline for one agent.
func (o *Orchestrator) RunAgent(ctx context.Context, agentID string) AgentSummary {
	summary := AgentSummary{AgentID: agentID}

	run := &models.ScrapeRun{
		AgentID:   agentID,
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}
	runID, err := o.store.CreateRun(run)
	if err != nil {
		summary.Err = fmt.Errorf("create run: %w", err)
		return summary
	}
	run.ID = runID

	defer func() {
		now := time.Now()
		run.FinishedAt = &now
		if err := o.store.UpdateRun(run); err != nil {
			log.Printf("Failed to update run %d: %v", run.ID, err)
		}
		o.store.UpdateAgentStats(agentID)
	}()

	walker := NewWalker(o.nav, o.cfg)

	agent, firstPage, err := walker.ResolveAgent(ctx, agentID)
	if err != nil {
		run.Status = models.RunStatusFailed
		run.ErrorMessage = err.Error()
		o.log(run.ID, models.LogLevelError, fmt.Sprintf("Agent resolution failed: %v", err), agentID)
		summary.Err = err
		return summary
	}
	summary.AgentName = agent.Name
	run.AgentName = agent.Name
	if prev, perr := o.store.GetAgent(agentID); perr == nil && prev != nil && prev.LastScrapedAt != nil {
		o.log(run.ID, models.LogLevelInfo,
			fmt.Sprintf("Re-scraping %q, previous run %s", agent.Name, prev.LastScrapedAt.Format(time.RFC3339)), agentID)
	}
	o.store.UpsertAgent(agent)
	o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Resolved agent %q", agent.Name), agentID)

	links, derr := walker.DiscoverLinks(ctx, agentID, firstPage)
	if derr != nil {
		if !errors.Is(derr, ErrPaginationLoop) {
			run.Status = models.RunStatusFailed
			run.ErrorMessage = derr.Error()
			summary.Err = derr
			return summary
		}
		// Loop guard tripped: keep what we have.
		o.log(run.ID, models.LogLevelWarn, fmt.Sprintf("Discovery stopped early: %v", derr), agentID)
	}
	run.LinksFound = len(links)
	summary.LinksFound = len(links)
	o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Discovered %d links", len(links)), agentID)

	if err := o.store.ReplaceLinks(agentID, run.ID, links); err != nil {
		o.log(run.ID, models.LogLevelWarn, fmt.Sprintf("Failed to persist links: %v", err), agentID)
	}

	records := o.extractDetails(ctx, agent, links)
	for i := range records {
		if records[i].Partial {
			run.DetailsFailed++
		} else {
			run.DetailsExtracted++
		}
		o.persistRecord(ctx, run, agentID, &records[i])
	}
	summary.DetailsExtracted = run.DetailsExtracted
	summary.DetailsFailed = run.DetailsFailed

	if o.domain != nil {
		if total, cerr := o.domain.CountProperties(ctx, agentID); cerr == nil {
			o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Domain store holds %d properties for this agent", total), agentID)
		}
	}

	if path, err := export.WriteLinks(o.cfg.OutputDir, agent.Name, links); err != nil {
		o.log(run.ID, models.LogLevelError, fmt.Sprintf("Link export failed: %v", err), agentID)
	} else {
		summary.LinksFile = path
	}
	if path, err := export.WriteDetails(o.cfg.OutputDir, agent.Name, records); err != nil {
		o.log(run.ID, models.LogLevelError, fmt.Sprintf("Detail export failed: %v", err), agentID)
	} else {
		summary.DetailsFile = path
	}

	run.Status = models.RunStatusCompleted
	if run.DetailsFailed > 0 {
		run.Status = models.RunStatusPartial
	}
	o.log(run.ID, models.LogLevelInfo,
		fmt.Sprintf("Done: %d links, %d details, %d failed", run.LinksFound, run.DetailsExtracted, run.DetailsFailed), agentID)

	return summary
}

// extractDetails fans the links out to a bounded pool of navigation
// sessions. The indexed result slice is the reorder buffer: output order is
// discovery order no matter which fetch finishes first.
func (o *Orchestrator) extractDetails(ctx context.Context, agent *models.AgentIdentity, links []models.ListingLink) []models.PropertyRecord {
	records := make([]models.PropertyRecord, len(links))
	for i := range links {
		records[i] = partialRecord(agent, links[i])
	}
	if len(links) == 0 {
		return records
	}

	workers := o.cfg.Scraper.Concurrency
	if workers < 1 {
		workers = 1
	}
	if workers > len(links) {
		workers = len(links)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				records[i] = o.extractOne(ctx, agent, links[i])
			}
		}()
	}

feed:
	for i := range links {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	return records
}

// extractOne fetches and parses a single detail page. Every failure mode
// collapses to a partial record; nothing here can abort the batch.
func (o *Orchestrator) extractOne(ctx context.Context, agent *models.AgentIdentity, link models.ListingLink) models.PropertyRecord {
	page, navErr := o.nav.Open(ctx, link.URL, OpenOptions{ReadySelector: detailReadySelector})
	if page == nil || page.HTML == "" {
		log.Printf("Detail fetch failed for %s: %v", link.URL, navErr)
		return partialRecord(agent, link)
	}

	rec, err := ParseDetail(page, link, agent.Name)
	if err != nil {
		log.Printf("Detail parse failed for %s: %v", link.URL, err)
		return partialRecord(agent, link)
	}
	if navErr != nil {
		rec.Partial = true
	}
	return *rec
}

func partialRecord(agent *models.AgentIdentity, link models.ListingLink) models.PropertyRecord {
	return models.PropertyRecord{
		AgentName: agent.Name,
		Category:  models.Category,
		Name:      link.Name,
		URL:       link.URL,
		Partial:   true,
	}
}

func (o *Orchestrator) persistRecord(ctx context.Context, run *models.ScrapeRun, agentID string, rec *models.PropertyRecord) {
	stored := &models.StoredRecord{
		ID:        uuid.New().String(),
		AgentID:   agentID,
		RunID:     run.ID,
		Record:    *rec,
		ScrapedAt: time.Now(),
	}
	if err := o.store.SaveRecord(stored); err != nil {
		o.log(run.ID, models.LogLevelWarn, fmt.Sprintf("Failed to store record for %s: %v", rec.URL, err), agentID)
		return
	}
	if err := o.store.EnqueueGalleryImages(stored.ID, rec.Images); err != nil {
		o.log(run.ID, models.LogLevelWarn, fmt.Sprintf("Failed to queue images for %s: %v", rec.URL, err), agentID)
	}

	if o.domain != nil && !rec.Partial {
		fp := identity.Fingerprint(rec)
		if err := o.domain.UpsertProperty(ctx, fp, agentID, rec); err != nil {
			o.log(run.ID, models.LogLevelWarn, fmt.Sprintf("Domain sync failed for %s: %v", rec.URL, err), agentID)
		}
	}
}

func (o *Orchestrator) HandleCommand(ctx context.Context, cmd *models.Command) error {
	params, err := o.store.ParseCommandParams(cmd)
	if err != nil {
		return err
	}

	switch cmd.Command {
	case models.CmdScrapeNow:
		return o.RunAll(ctx)
	case models.CmdScrapeAgent:
		if params.Agent != "" {
			summary := o.RunAgent(ctx, params.Agent)
			return summary.Err
		}
		return o.RunAll(ctx)
	case models.CmdPause:
		o.paused = true
		log.Println("Scraper paused")
	case models.CmdResume:
		o.paused = false
		log.Println("Scraper resumed")
	}

	return nil
}

func (o *Orchestrator) IsPaused() bool {
	return o.paused
}

func (o *Orchestrator) MarshalStatus() ([]byte, error) {
	agents := make([]string, 0, len(o.cfg.Agents))
	for _, a := range o.cfg.Agents {
		agents = append(agents, a.ID)
	}
	return json.Marshal(map[string]interface{}{
		"paused": o.paused,
		"agents": agents,
	})
}

func (o *Orchestrator) log(runID int64, level models.LogLevel, message, agentID string) {
	log.Printf("[%s] %s: %s", level, agentID, message)
	o.store.Log(&runID, level, message, agentID)
}
