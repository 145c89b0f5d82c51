package watch

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"indexbridge/internal/model"
	"indexbridge/internal/scraperclient"
)

func newUnreachableScraperClient() *scraperclient.Client {
	return scraperclient.New("http://127.0.0.1:0", 0)
}

type fakeRescrapeStore struct {
	claimResult   bool
	event         model.ChangeEvent
	completed     bool
	failedMessage string
}

func (f *fakeRescrapeStore) ClaimChangeEvent(ctx context.Context, id uuid.UUID) (bool, error) {
	return f.claimResult, nil
}
func (f *fakeRescrapeStore) CompleteChangeEvent(ctx context.Context, id uuid.UUID) error {
	f.completed = true
	return nil
}
func (f *fakeRescrapeStore) FailChangeEvent(ctx context.Context, id uuid.UUID, errMsg string) error {
	f.failedMessage = errMsg
	return nil
}
func (f *fakeRescrapeStore) GetChangeEvent(ctx context.Context, id uuid.UUID) (model.ChangeEvent, error) {
	return f.event, nil
}
func (f *fakeRescrapeStore) SweepZombieChangeEvents(ctx context.Context, olderThan time.Time) (int, error) {
	return 0, nil
}

func TestRunReturnsFalseWhenNotClaimed(t *testing.T) {
	store := &fakeRescrapeStore{claimResult: false}
	job := &RescrapeJob{Store: store}

	claimed, err := job.Run(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claimed {
		t.Fatal("expected claimed=false when another worker won the claim")
	}
}

func TestRunFailsEventWhenRescrapeUnreachable(t *testing.T) {
	store := &fakeRescrapeStore{
		claimResult: true,
		event:       model.ChangeEvent{URL: "https://example.com/a"},
	}
	job := &RescrapeJob{Store: store, Scraper: newUnreachableScraperClient()}

	claimed, err := job.Run(context.Background(), uuid.New())
	if !claimed {
		t.Fatal("expected claimed=true")
	}
	if err == nil {
		t.Fatal("expected an error from unreachable scraper")
	}
	if store.failedMessage == "" {
		t.Error("expected FailChangeEvent to be called with a message")
	}
	if store.completed {
		t.Error("expected CompleteChangeEvent not to be called")
	}
}

func TestMirrorDoesNothingWhenDisabled(t *testing.T) {
	m := &Mirror{Enabled: false}
	// Should not panic even with a nil client, since Enabled gates the call.
	m.Mirror(context.Background(), "https://example.com/a")
}
