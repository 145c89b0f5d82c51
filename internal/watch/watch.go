// Package watch implements the auto-watch mirror and the three-phase
// rescrape job: mirroring newly indexed URLs
// to the change-detection service, and processing inbound change events
// back into the indexing pipeline via a claim/execute/finalize sequence
// that never holds a row lock across the long external rescrape call.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"indexbridge/internal/changeclient"
	"indexbridge/internal/model"
	"indexbridge/internal/pipeline"
	"indexbridge/internal/scraperclient"
)

// Mirror performs the best-effort, idempotent auto-watch registration:
// look up an existing watch for the URL, create one only if absent, and
// treat HTTP 409 (already exists) as success. Any failure is logged and
// never propagated — callers run this fire-and-forget after enqueueing a
// page for indexing.
type Mirror struct {
	Client         *changeclient.Client
	Enabled        bool
	Tag            string
	WebhookURL     string
	CheckIntervalS int
	Log            *slog.Logger
}

// Mirror satisfies webhook.Watcher.
func (m *Mirror) Mirror(ctx context.Context, url string) {
	if !m.Enabled || m.Client == nil {
		return
	}
	log := m.log()

	existing, err := m.Client.FindByURL(ctx, url)
	if err != nil {
		log.Warn("auto-watch lookup failed", "url", url, "error", err)
		return
	}
	if existing != nil {
		return
	}

	err = m.Client.CreateWatch(ctx, changeclient.Watch{
		URL:            url,
		Tag:            m.tag(),
		WebhookURL:     m.WebhookURL,
		CheckIntervalS: m.checkInterval(),
	})
	if err != nil {
		log.Warn("auto-watch create failed", "url", url, "error", err)
	}
}

func (m *Mirror) tag() string {
	if m.Tag == "" {
		return "autowatch"
	}
	return m.Tag
}

func (m *Mirror) checkInterval() int {
	if m.CheckIntervalS <= 0 {
		return 3600
	}
	return m.CheckIntervalS
}

func (m *Mirror) log() *slog.Logger {
	if m.Log == nil {
		return slog.Default()
	}
	return m.Log
}

// Store is the subset of *store.Store the rescrape job depends on.
type Store interface {
	ClaimChangeEvent(ctx context.Context, id uuid.UUID) (bool, error)
	CompleteChangeEvent(ctx context.Context, id uuid.UUID) error
	FailChangeEvent(ctx context.Context, id uuid.UUID, errMsg string) error
	GetChangeEvent(ctx context.Context, id uuid.UUID) (model.ChangeEvent, error)
	SweepZombieChangeEvents(ctx context.Context, olderThan time.Time) (int, error)
}

type RescrapeJob struct {
	Store    Store
	Scraper  *scraperclient.Client
	Pipeline *pipeline.Pipeline
}

// Run executes the three-phase rescrape for one change event. A false,
// nil return means another worker already claimed this event.
func (j *RescrapeJob) Run(ctx context.Context, eventID uuid.UUID) (bool, error) {
	claimed, err := j.Store.ClaimChangeEvent(ctx, eventID)
	if err != nil {
		return false, fmt.Errorf("claim change event: %w", err)
	}
	if !claimed {
		return false, nil
	}

	event, err := j.Store.GetChangeEvent(ctx, eventID)
	if err != nil {
		_ = j.Store.FailChangeEvent(ctx, eventID, "load claimed event: "+err.Error())
		return true, err
	}

	doc, err := j.Scraper.Rescrape(ctx, event.URL)
	if err != nil {
		_ = j.Store.FailChangeEvent(ctx, eventID, "rescrape request failed: "+err.Error())
		return true, err
	}

	err = j.Pipeline.Run(ctx, pipeline.Input{
		URL:      event.URL,
		Title:    doc.Title,
		Markdown: doc.Markdown,
		HTML:     doc.HTML,
	})
	if err != nil {
		_ = j.Store.FailChangeEvent(ctx, eventID, "reindex failed: "+err.Error())
		return true, err
	}

	if err := j.Store.CompleteChangeEvent(ctx, eventID); err != nil {
		return true, fmt.Errorf("complete change event: %w", err)
	}
	return true, nil
}

// SweepZombies marks in_progress change events stuck past threshold as
// failed, so they stop blocking future retries of the same URL.
func SweepZombies(ctx context.Context, store Store, threshold time.Duration) (int, error) {
	return store.SweepZombieChangeEvents(ctx, time.Now().Add(-threshold))
}
