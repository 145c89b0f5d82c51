package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"indexbridge/internal/model"
)

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignatureRejectsAlteredBody(t *testing.T) {
	secret := "shared-secret"
	body := []byte(`{"type":"crawl.started","job_id":"J1"}`)
	sig := sign(body, secret)

	if _, err := VerifySignature(body, sig, secret); err != nil {
		t.Fatalf("expected valid signature to verify, got %v", err)
	}

	altered := append([]byte{}, body...)
	altered[len(altered)-2] ^= 0x01
	if _, err := VerifySignature(altered, sig, secret); err == nil {
		t.Fatal("expected a one-bit alteration to invalidate the signature")
	}
}

func TestVerifySignatureRejectsMalformedHeader(t *testing.T) {
	if _, err := VerifySignature([]byte("body"), "not-a-signature", "secret"); err == nil {
		t.Fatal("expected malformed header to be rejected")
	}
}

type fakeLifecycle struct {
	startCalls int
}

func (f *fakeLifecycle) Start(ctx context.Context, jobID, baseURL string, initiatedAt *time.Time) (bool, error) {
	f.startCalls++
	return f.startCalls == 1, nil
}
func (f *fakeLifecycle) Fail(ctx context.Context, jobID, reason string) error { return nil }
func (f *fakeLifecycle) Complete(ctx context.Context, jobID string, completedAt time.Time, initiatedAt *time.Time) error {
	return nil
}

type fakeIndexer struct {
	enqueued []model.IndexingDocument
}

func (f *fakeIndexer) EnqueueIndexingJob(ctx context.Context, crawlID string, docs []model.IndexingDocument) (uuid.UUID, error) {
	f.enqueued = append(f.enqueued, docs...)
	return uuid.New(), nil
}

func TestReceiveScraperEventDuplicateCrawlStartedIsIdempotent(t *testing.T) {
	secret := "shared-secret"
	lc := &fakeLifecycle{}
	idx := &fakeIndexer{}
	rt := &Router{Secret: secret, Lifecycle: lc, Indexer: idx}

	body := []byte(`{"type":"crawl.started","job_id":"J2","base_url":"https://ex.com"}`)
	sig := sign(body, secret)

	for i := 0; i < 2; i++ {
		if _, err := rt.ReceiveScraperEvent(context.Background(), body, sig); err != nil {
			t.Fatalf("delivery %d: unexpected error %v", i, err)
		}
	}
	if lc.startCalls != 2 {
		t.Fatalf("expected Start to be called twice (idempotent handler), got %d", lc.startCalls)
	}
}

func TestReceiveScraperEventRejectsBadSignature(t *testing.T) {
	rt := &Router{Secret: "shared-secret", Lifecycle: &fakeLifecycle{}, Indexer: &fakeIndexer{}}
	body := []byte(`{"type":"crawl.started","job_id":"J1"}`)

	_, err := rt.ReceiveScraperEvent(context.Background(), body, sign(body, "wrong-secret"))
	if err == nil {
		t.Fatal("expected signature rejection")
	}
	if _, ok := err.(Rejected); !ok {
		t.Fatalf("expected Rejected error type, got %T", err)
	}
}

func TestReceiveScraperEventCrawlPageEnqueues(t *testing.T) {
	secret := "shared-secret"
	idx := &fakeIndexer{}
	rt := &Router{Secret: secret, Lifecycle: &fakeLifecycle{}, Indexer: idx}

	body, _ := json.Marshal(map[string]any{
		"type": "crawl.page", "job_id": "J1", "url": "https://example.com/a", "markdown": "# Hello",
	})
	sig := sign(body, secret)

	if _, err := rt.ReceiveScraperEvent(context.Background(), body, sig); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(idx.enqueued) != 1 {
		t.Fatalf("expected 1 enqueued document, got %d", len(idx.enqueued))
	}
	if idx.enqueued[0].URL != "https://example.com/a" {
		t.Errorf("unexpected url: %s", idx.enqueued[0].URL)
	}
}

func TestReceiveScraperEventUnknownTypeRejected(t *testing.T) {
	secret := "shared-secret"
	rt := &Router{Secret: secret, Lifecycle: &fakeLifecycle{}, Indexer: &fakeIndexer{}}
	body := []byte(`{"type":"unknown.event"}`)

	_, err := rt.ReceiveScraperEvent(context.Background(), body, sign(body, secret))
	if err == nil {
		t.Fatal("expected unknown event type to be rejected")
	}
}
