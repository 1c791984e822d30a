package ics

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/church-agenda/internal/application"
)

var providerNow = time.Date(2024, 3, 8, 12, 0, 0, 0, time.UTC)

func feedServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/church.ics", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(weeklySeries)
	})
	mux.HandleFunc("/personal.ics", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(calendar(vevent(
			"UID:dentist",
			"DTSTAMP:20240101T000000Z",
			"SUMMARY:Dentist",
			"DTSTART:20240310T090000Z",
			"DTEND:20240310T093000Z",
		)))
	})
	mux.HandleFunc("/broken.ics", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	})
	mux.HandleFunc("/slow.ics", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestProvider(server *httptest.Server, timeout time.Duration, logger *slog.Logger, ids ...string) *Provider {
	sources := make([]Source, len(ids))
	for i, id := range ids {
		sources[i] = Source{ID: id, URL: server.URL + "/" + id + ".ics?token=secret"}
	}
	return NewProvider(Config{
		Sources:    sources,
		Timeout:    timeout,
		PastDays:   7,
		FutureDays: 30,
	}, NewFetcher(server.Client()), func() time.Time { return providerNow }, logger)
}

func TestProviderMergesFeedsWithUniqueIDs(t *testing.T) {
	t.Parallel()

	server := feedServer(t)
	fetch := newTestProvider(server, time.Second, nil, "church", "personal").FetchExternalEvents(context.Background())
	if fetch.Err != nil {
		t.Fatalf("unexpected error: %v", fetch.Err)
	}

	ids := make(map[string]application.ExternalEvent)
	for _, event := range fetch.Events {
		if _, dup := ids[event.ID]; dup {
			t.Fatalf("duplicate id %q", event.ID)
		}
		ids[event.ID] = event
	}

	for _, id := range []string{
		"church/service@church@2024-03-03T10:00:00Z",
		"church/service@church@2024-03-10T10:00:00Z",
		"church/service@church@2024-03-24T10:00:00Z",
		"church/retreat@church",
		"personal/dentist",
	} {
		if _, ok := ids[id]; !ok {
			t.Fatalf("missing event %q in %v", id, keys(ids))
		}
	}
	if len(ids) != 5 {
		t.Fatalf("expected 5 events, got %v", keys(ids))
	}
	if ids["church/service@church@2024-03-10T10:00:00Z"].Title != "Sunday service (moved)" {
		t.Fatalf("override not applied")
	}
	if !ids["church/retreat@church"].AllDay {
		t.Fatalf("expected retreat to be all-day")
	}
}

func TestProviderDegradesPerFeed(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	server := feedServer(t)
	fetch := newTestProvider(server, time.Second, logger, "personal", "broken").FetchExternalEvents(context.Background())
	if fetch.Err == nil {
		t.Fatalf("expected an error naming the broken feed")
	}
	if !strings.Contains(fetch.Err.Error(), "broken") {
		t.Fatalf("error should name the failed source: %v", fetch.Err)
	}
	if len(fetch.Events) != 1 || fetch.Events[0].ID != "personal/dentist" {
		t.Fatalf("healthy feed events must survive, got %#v", fetch.Events)
	}
	if strings.Contains(logs.String(), "token=secret") {
		t.Fatalf("feed url leaked into logs: %s", logs.String())
	}
	if !strings.Contains(logs.String(), "ics feed unavailable") {
		t.Fatalf("expected a warning, got %s", logs.String())
	}
}

func TestProviderKeepsUnreachableFeedPathOutOfLogsAndWarnings(t *testing.T) {
	t.Parallel()

	closed := httptest.NewServer(http.NotFoundHandler())
	base := closed.URL
	closed.Close()

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	provider := NewProvider(Config{
		Sources:    []Source{{ID: "private", URL: base + "/private/SECRET-TOKEN/basic.ics"}},
		Timeout:    time.Second,
		PastDays:   7,
		FutureDays: 30,
	}, NewFetcher(nil), func() time.Time { return providerNow }, logger)
	engine := application.NewEngine(emptyStore{}, provider, application.DefaultPalette(), logger)

	result, err := engine.Load(context.Background(), application.Window{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("expected one warning, got %#v", result.Warnings)
	}
	if strings.Contains(result.Warnings[0].Err.Error(), "SECRET-TOKEN") {
		t.Fatalf("feed path leaked into warning: %v", result.Warnings[0].Err)
	}
	if strings.Contains(logs.String(), "SECRET-TOKEN") {
		t.Fatalf("feed path leaked into logs: %s", logs.String())
	}
	if !strings.Contains(logs.String(), "ics feed unavailable") {
		t.Fatalf("expected a warning log, got %s", logs.String())
	}
}

func TestProviderTimesOut(t *testing.T) {
	t.Parallel()

	server := feedServer(t)
	started := time.Now()
	fetch := newTestProvider(server, 50*time.Millisecond, nil, "slow", "personal").FetchExternalEvents(context.Background())
	if elapsed := time.Since(started); elapsed > 2*time.Second {
		t.Fatalf("timeout not honoured, took %v", elapsed)
	}
	if !errors.Is(fetch.Err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", fetch.Err)
	}
	if len(fetch.Events) != 1 {
		t.Fatalf("expected the fast feed to survive, got %#v", fetch.Events)
	}
}

func TestProviderWithoutSources(t *testing.T) {
	t.Parallel()

	fetch := NewProvider(Config{}, nil, nil, nil).FetchExternalEvents(context.Background())
	if fetch.Err != nil || len(fetch.Events) != 0 {
		t.Fatalf("expected empty fetch, got %#v", fetch)
	}
}

func TestProviderFeedsEngineWarning(t *testing.T) {
	t.Parallel()

	server := feedServer(t)
	provider := newTestProvider(server, time.Second, nil, "broken")
	engine := application.NewEngine(emptyStore{}, provider, application.DefaultPalette(), nil)

	result, err := engine.Load(context.Background(), application.Window{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(result.Warnings) != 1 || !errors.Is(result.Warnings[0].Err, application.ErrProviderUnavailable) {
		t.Fatalf("expected provider warning, got %#v", result.Warnings)
	}
}

type emptyStore struct{}

func (emptyStore) ListEvents(context.Context, application.EventFilter) ([]application.CalendarEvent, error) {
	return nil, nil
}

func (emptyStore) CreateEvent(context.Context, application.EventDraft) (application.CalendarEvent, error) {
	return application.CalendarEvent{}, errors.New("read only")
}

func (emptyStore) UpdateEvent(context.Context, string, application.EventPatch) (application.CalendarEvent, error) {
	return application.CalendarEvent{}, errors.New("read only")
}

func (emptyStore) DeleteEvent(context.Context, string) error {
	return errors.New("read only")
}

func keys(m map[string]application.ExternalEvent) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
