// Package webhook verifies and routes signed upstream events: scraper
// lifecycle/page events and change-detection notifications. Grounded on
// plain request/response structs, explicit switch-based dispatch,
// no framework-level binding magic) with the signature-verification step
// adapted from the constant-time-compare convention used throughout the
// pack's auth-adjacent code.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"indexbridge/internal/model"
)

// Kind enumerates the well-known event types this router dispatches.
type Kind string

const (
	KindCrawlStarted   Kind = "crawl.started"
	KindCrawlPage      Kind = "crawl.page"
	KindCrawlCompleted Kind = "crawl.completed"
	KindCrawlFailed    Kind = "crawl.failed"
	KindScrapeComplete Kind = "scrape.completed"
	KindBatchComplete  Kind = "batch.completed"
)

// VerifySignature checks an `sha256=<hex>` HMAC-SHA-256 signature header
// against body using secret, in constant time. It returns the verified
// body unchanged so callers parse the exact bytes that were verified,
// never bytes re-read or re-derived afterward (prevents a TOCTOU gap
// between verification and parsing).
func VerifySignature(body []byte, signatureHeader, secret string) ([]byte, error) {
	const prefix = "sha256="
	if !strings.HasPrefix(signatureHeader, prefix) {
		return nil, fmt.Errorf("malformed signature header")
	}
	given, err := hex.DecodeString(strings.TrimPrefix(signatureHeader, prefix))
	if err != nil {
		return nil, fmt.Errorf("malformed signature hex: %w", err)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	want := mac.Sum(nil)

	if !hmac.Equal(given, want) {
		return nil, fmt.Errorf("signature mismatch")
	}
	return body, nil
}

// envelope is the minimal shape every scraper event shares: a
// discriminator field plus whatever the specific type needs, decoded a
// second time into the type-specific struct below.
type envelope struct {
	Type string `json:"type"`
}

type crawlStartedPayload struct {
	JobID       string     `json:"job_id"`
	BaseURL     string     `json:"base_url"`
	InitiatedAt *time.Time `json:"initiated_at,omitempty"`
}

type crawlPagePayload struct {
	JobID      string `json:"job_id"`
	URL        string `json:"url"`
	Markdown   string `json:"markdown"`
	HTML       string `json:"html,omitempty"`
	Title      string `json:"title,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
}

type crawlCompletedPayload struct {
	JobID       string     `json:"job_id"`
	InitiatedAt *time.Time `json:"initiated_at,omitempty"`
}

type crawlFailedPayload struct {
	JobID        string `json:"job_id"`
	ErrorMessage string `json:"error_message"`
}

// Accepted is returned once an event's durable side effects have
// committed.
type Accepted struct {
	JobID   string
	EventID string
}

// Rejected carries the reason an event was not processed.
type Rejected struct {
	Reason string
}

func (r Rejected) Error() string { return r.Reason }

// Lifecycle is the subset of *lifecycle.Tracker the router depends on.
type Lifecycle interface {
	Start(ctx context.Context, jobID, baseURL string, initiatedAt *time.Time) (bool, error)
	Fail(ctx context.Context, jobID, reason string) error
	Complete(ctx context.Context, jobID string, completedAt time.Time, initiatedAt *time.Time) error
}

// Indexer enqueues a page for the batch worker to pick up.
type Indexer interface {
	EnqueueIndexingJob(ctx context.Context, crawlID string, docs []model.IndexingDocument) (uuid.UUID, error)
}

// Watcher performs the best-effort auto-watch mirror; failures must never
// propagate back to the webhook response.
type Watcher interface {
	Mirror(ctx context.Context, url string)
}

type Router struct {
	Secret    string
	Lifecycle Lifecycle
	Indexer   Indexer
	Watch     Watcher // nil disables auto-watch entirely
}

// ReceiveScraperEvent verifies the signature, parses the event by its
// `type` discriminator, and dispatches to the matching durable handler.
func (rt *Router) ReceiveScraperEvent(ctx context.Context, rawBody []byte, signatureHeader string) (Accepted, error) {
	verified, err := VerifySignature(rawBody, signatureHeader, rt.Secret)
	if err != nil {
		return Accepted{}, Rejected{Reason: "unauthorized: " + err.Error()}
	}

	var env envelope
	if err := json.Unmarshal(verified, &env); err != nil {
		return Accepted{}, Rejected{Reason: "malformed event body"}
	}

	eventID := uuid.New().String()

	switch Kind(env.Type) {
	case KindCrawlStarted:
		var p crawlStartedPayload
		if err := json.Unmarshal(verified, &p); err != nil || p.JobID == "" {
			return Accepted{}, Rejected{Reason: "malformed crawl.started payload"}
		}
		if _, err := rt.Lifecycle.Start(ctx, p.JobID, p.BaseURL, p.InitiatedAt); err != nil {
			return Accepted{}, fmt.Errorf("start crawl: %w", err)
		}
		return Accepted{JobID: p.JobID, EventID: eventID}, nil

	case KindCrawlPage:
		var p crawlPagePayload
		if err := json.Unmarshal(verified, &p); err != nil || p.JobID == "" || p.URL == "" {
			return Accepted{}, Rejected{Reason: "malformed crawl.page payload"}
		}
		doc := model.IndexingDocument{URL: p.URL, JobID: p.JobID, Title: p.Title, Markdown: p.Markdown, HTML: p.HTML}
		if _, err := rt.Indexer.EnqueueIndexingJob(ctx, p.JobID, []model.IndexingDocument{doc}); err != nil {
			return Accepted{}, fmt.Errorf("enqueue page: %w", err)
		}
		if rt.Watch != nil {
			go rt.Watch.Mirror(context.Background(), p.URL)
		}
		return Accepted{JobID: p.JobID, EventID: eventID}, nil

	case KindCrawlCompleted, KindScrapeComplete:
		var p crawlCompletedPayload
		if err := json.Unmarshal(verified, &p); err != nil || p.JobID == "" {
			return Accepted{}, Rejected{Reason: "malformed completion payload"}
		}
		if err := rt.Lifecycle.Complete(ctx, p.JobID, time.Now(), p.InitiatedAt); err != nil {
			return Accepted{}, fmt.Errorf("complete crawl: %w", err)
		}
		return Accepted{JobID: p.JobID, EventID: eventID}, nil

	case KindCrawlFailed:
		var p crawlFailedPayload
		if err := json.Unmarshal(verified, &p); err != nil || p.JobID == "" {
			return Accepted{}, Rejected{Reason: "malformed crawl.failed payload"}
		}
		if err := rt.Lifecycle.Fail(ctx, p.JobID, p.ErrorMessage); err != nil {
			return Accepted{}, fmt.Errorf("fail crawl: %w", err)
		}
		return Accepted{JobID: p.JobID, EventID: eventID}, nil

	case KindBatchComplete:
		return Accepted{EventID: eventID}, nil

	default:
		return Accepted{}, Rejected{Reason: fmt.Sprintf("unknown event type %q", env.Type)}
	}
}

// ChangeEventCreator is the subset of *store.Store the change-detection
// path depends on.
type ChangeEventCreator interface {
	CreateChangeEvent(ctx context.Context, url, watchID string, meta json.RawMessage) (uuid.UUID, error)
}

type changeEventPayload struct {
	URL      string          `json:"url"`
	WatchID  string          `json:"watch_uuid"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// ReceiveChangeEvent verifies and records a change-detection notification,
// creating the ChangeEvent row a rescrape worker will later claim.
func ReceiveChangeEvent(ctx context.Context, store ChangeEventCreator, secret string, rawBody []byte, signatureHeader string) (Accepted, error) {
	verified, err := VerifySignature(rawBody, signatureHeader, secret)
	if err != nil {
		return Accepted{}, Rejected{Reason: "unauthorized: " + err.Error()}
	}

	var p changeEventPayload
	if err := json.Unmarshal(verified, &p); err != nil || p.URL == "" {
		return Accepted{}, Rejected{Reason: "malformed change-detection payload"}
	}

	id, err := store.CreateChangeEvent(ctx, p.URL, p.WatchID, p.Metadata)
	if err != nil {
		return Accepted{}, fmt.Errorf("create change event: %w", err)
	}
	return Accepted{JobID: id.String(), EventID: id.String()}, nil
}
