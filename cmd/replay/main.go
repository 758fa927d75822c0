// Command replay runs a change event fixture through a feed synchronizer
// with a frozen clock and prints the resulting view. Handy for inspecting
// how a sequence of inserts and deletes materializes.
//
// Usage:
//
//	go run ./cmd/replay -events fixtures/events.json -at 2026-08-01T12:00:00Z
//
// The fixture is a JSON array of change events:
//
//	[{"kind":"insert","id":"...","incident":{...}}, {"kind":"delete","id":"..."}]
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/resqrelief/incident-feed/internal/feed"
	"github.com/resqrelief/incident-feed/internal/observability"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	eventsPath := flag.String("events", "", "path to a JSON event fixture")
	window := flag.Duration("window", 20*24*time.Hour, "retention window")
	at := flag.String("at", "", "frozen clock time, RFC3339 (default: now)")
	flag.Parse()

	if *eventsPath == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -events")
	}

	now := time.Now().UTC()
	if *at != "" {
		parsed, err := time.Parse(time.RFC3339, *at)
		if err != nil {
			return fmt.Errorf("invalid -at: %w", err)
		}
		now = parsed
	}

	f, err := os.Open(*eventsPath)
	if err != nil {
		return err
	}
	defer f.Close()

	var events []feed.Event
	if err := json.NewDecoder(f).Decode(&events); err != nil {
		return fmt.Errorf("decode events: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	synchronizer := feed.New(nil, nil, clockwork.NewFakeClockAt(now), *window, logger, observability.NewMetricsForTesting())

	for _, event := range events {
		synchronizer.Apply(event)
	}

	view := synchronizer.Snapshot()
	log.Printf("replayed %d events, view holds %d incidents at %s", len(events), len(view), now.Format(time.RFC3339))

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}
