// Package batch fans article jobs out over a bounded worker pool and
// reports per-item outcomes in the caller's input order.
package batch

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/pmcharvest/pmcharvest/internal/apperr"
)

// Status is the terminal state of one batch item.
type Status string

const (
	StatusSuccess   Status = "SUCCESS"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// Item is one unit of work. ID identifies remote articles; Path
// identifies local files. Exactly one is set. Canon, when present,
// carries the canonical form of ID for duplicate detection; the ledger
// keeps the spelling in ID.
type Item struct {
	ID    string
	Path  string
	Canon string
}

// Key returns whichever identifier the item carries.
func (it Item) Key() string {
	if it.ID != "" {
		return it.ID
	}
	return it.Path
}

// Entry records the outcome of one item.
type Entry struct {
	ID           string `json:"id"`
	Status       Status `json:"status"`
	ArtifactPath string `json:"artifact_path,omitempty"`
	ErrorKind    string `json:"error_kind,omitempty"`
	Attempts     int    `json:"attempts"`
}

// ProcessFunc handles one item, returning the artifact path it wrote
// and the number of attempts it spent.
type ProcessFunc func(ctx context.Context, item Item) (artifactPath string, attempts int, err error)

// Progress receives item lifecycle events. Implementations must be safe
// for concurrent use.
type Progress interface {
	Started(item Item)
	Done(entry Entry)
}

type discardProgress struct{}

func (discardProgress) Started(Item) {}
func (discardProgress) Done(Entry)   {}

// Outcome is the result of a whole run: the input-ordered ledger plus
// aggregate numbers.
type Outcome struct {
	Entries []Entry
	Summary Summary
}

// Summary aggregates a run for summary.json.
type Summary struct {
	TotalRequested int            `json:"total_requested"`
	Successful     int            `json:"successful"`
	Failed         int            `json:"failed"`
	ErrorCounts    map[string]int `json:"error_counts"`
	ElapsedSeconds float64        `json:"elapsed_seconds"`
	FailedItems    []FailedItem   `json:"failed_items"`
}

// FailedItem names one failed input for the summary.
type FailedItem struct {
	ID            string `json:"id"`
	LastErrorKind string `json:"last_error_kind"`
	Attempts      int    `json:"attempts"`
}

// WriteFile emits summary.json into dir.
func (s Summary) WriteFile(dir string) (string, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", apperr.Wrap(apperr.IOFailed, "batch.summary", err)
	}
	path := filepath.Join(dir, "summary.json")
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", apperr.Wrap(apperr.IOFailed, "batch.summary", err)
	}
	return path, nil
}

// Runner drives a batch. Workers below 1 run with a single worker.
type Runner struct {
	Workers  int
	Log      logrus.FieldLogger
	Progress Progress
}

// Dedupe drops repeated items, keeping the first occurrence in place.
// Items carrying a canonical form are compared by it, so differently
// spelled identifiers for the same article collapse to one unit of work.
func Dedupe(items []Item) []Item {
	seen := make(map[string]bool, len(items))
	out := make([]Item, 0, len(items))
	for _, it := range items {
		k := it.Canon
		if k == "" {
			k = it.Key()
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, it)
	}
	return out
}

type job struct {
	index int
	item  Item
}

// Run processes items with up to Workers concurrent workers. Item
// failures are isolated; only a ConfigError or context cancellation
// stops the run, and items never started are reported as CANCELLED. The
// ledger is always complete and in input order, even on early stop.
func (r *Runner) Run(ctx context.Context, items []Item, fn ProcessFunc) (Outcome, error) {
	start := time.Now()
	workers := r.Workers
	if workers < 1 {
		workers = 1
	}
	log := r.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	progress := r.Progress
	if progress == nil {
		progress = discardProgress{}
	}

	entries := make([]Entry, len(items))
	for i, it := range items {
		entries[i] = Entry{ID: it.Key(), Status: StatusCancelled}
	}

	jobs := make(chan job, workers)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		for i, it := range items {
			select {
			case jobs <- job{index: i, item: it}:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for j := range jobs {
				if gctx.Err() != nil {
					return nil
				}
				progress.Started(j.item)
				path, attempts, err := fn(gctx, j.item)
				entry := &entries[j.index]
				entry.Attempts = attempts
				if err != nil {
					kind := apperr.KindOf(err)
					entry.Status = StatusFailed
					entry.ErrorKind = string(kind)
					if kind == apperr.Cancelled {
						entry.Status = StatusCancelled
					}
					log.WithFields(logrus.Fields{
						"id":       j.item.Key(),
						"kind":     kind,
						"attempts": attempts,
					}).WithError(err).Warn("item failed")
					progress.Done(*entry)
					if kind == apperr.ConfigError {
						return err
					}
					continue
				}
				entry.Status = StatusSuccess
				entry.ArtifactPath = path
				progress.Done(*entry)
			}
			return nil
		})
	}

	runErr := g.Wait()
	if runErr == nil && ctx.Err() != nil {
		runErr = apperr.Wrap(apperr.Cancelled, "batch.run", ctx.Err())
	}

	out := Outcome{Entries: entries}
	out.Summary = summarize(entries, time.Since(start))
	return out, runErr
}

func summarize(entries []Entry, elapsed time.Duration) Summary {
	s := Summary{
		TotalRequested: len(entries),
		ErrorCounts:    map[string]int{},
		ElapsedSeconds: elapsed.Seconds(),
		FailedItems:    []FailedItem{},
	}
	for _, e := range entries {
		switch e.Status {
		case StatusSuccess:
			s.Successful++
		default:
			s.Failed++
			kind := e.ErrorKind
			if kind == "" {
				kind = string(apperr.Cancelled)
			}
			s.ErrorCounts[kind]++
			s.FailedItems = append(s.FailedItems, FailedItem{
				ID:            e.ID,
				LastErrorKind: kind,
				Attempts:      e.Attempts,
			})
		}
	}
	return s
}
