// Package job runs configured conversion entries: it reads contacts, turns
// them into birthday reminders and writes one calendar file per reminder.
package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"eventextractor/internal/config"
	"eventextractor/internal/contacts"
	"eventextractor/internal/ics"
	appLog "eventextractor/internal/log"
	"eventextractor/internal/metrics"
	"eventextractor/internal/model"
	"eventextractor/internal/reminder"
)

const (
	// ProductID is written as PRODID into every generated calendar.
	ProductID = "event-extractor//hochreiner.net"
	// Extension is the suffix of generated calendar files.
	Extension = ".ics"
)

// Summary counts what a run did.
type Summary struct {
	Files    int // contact files read
	Contacts int // contacts seen
	Failed   int // contacts or files skipped because of an error
	Events   int // calendar files written
	Removed  int // stale calendar files removed
}

func (s *Summary) add(o Summary) {
	s.Files += o.Files
	s.Contacts += o.Contacts
	s.Failed += o.Failed
	s.Events += o.Events
	s.Removed += o.Removed
}

// Runner converts contacts to reminder files.
type Runner struct {
	Loader  *contacts.Loader
	Metrics *metrics.Metrics

	// Clock is read once per entry for the target years (taken in UTC) and
	// once per contact for the DTSTAMP of its events.
	Clock func() time.Time

	YearsBefore int
	YearsAfter  int

	// Strict aborts an entry on the first failing file or contact.
	Strict bool

	mu sync.Mutex
}

// NewRunner builds a Runner from the configuration.
func NewRunner(cfg *config.Config, m *metrics.Metrics) *Runner {
	if m == nil {
		m = metrics.Nop()
	}
	return &Runner{
		Loader:      &contacts.Loader{Fetcher: contacts.NewFetcher(cfg.CacheDir)},
		Metrics:     m,
		Clock:       time.Now,
		YearsBefore: cfg.YearsBefore,
		YearsAfter:  cfg.YearsAfter,
		Strict:      cfg.Strict,
	}
}

// RunAll runs every entry in order. Concurrent calls are serialized so that
// a scheduled run never overlaps a manual one.
func (r *Runner) RunAll(ctx context.Context, entries []config.Entry) (Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	started := time.Now()
	defer func() { r.Metrics.RunDuration.Observe(time.Since(started).Seconds()) }()

	var total Summary
	for i, entry := range entries {
		s, err := r.RunEntry(ctx, entry)
		total.add(s)
		if err != nil {
			return total, fmt.Errorf("entry %d (%s): %w", i, entry.Output, err)
		}
	}

	appLog.Info("run completed",
		"entries", len(entries),
		"files", total.Files,
		"contacts", total.Contacts,
		"failed", total.Failed,
		"events", total.Events,
		"removed", total.Removed,
		"duration", time.Since(started).String(),
	)
	return total, nil
}

// RunEntry processes a single entry.
func (r *Runner) RunEntry(ctx context.Context, entry config.Entry) (Summary, error) {
	var s Summary

	if err := os.MkdirAll(entry.Output, 0o755); err != nil {
		return s, err
	}

	if entry.RemoveFiles {
		appLog.Info("removing existing files", "output", entry.Output)
		n, err := Purge(entry.Output)
		s.Removed = n
		r.Metrics.FilesRemoved.Add(float64(n))
		if err != nil {
			return s, err
		}
	}

	years := reminder.TargetYears(r.now().UTC(), r.YearsBefore, r.YearsAfter)
	appLog.Info("generating entries for years", "years", joinInts(years))

	files, err := r.Loader.Load(ctx, entry.Input)
	if err != nil {
		return s, err
	}

	for _, f := range files {
		s.Files++
		if f.Err != nil {
			s.Failed++
			if r.Strict {
				return s, f.Err
			}
			appLog.Error("could not parse contact file", f.Err, "path", f.Path)
			// Contacts decoded before the failure are still converted.
		}

		for _, c := range f.Contacts {
			if err := ctx.Err(); err != nil {
				return s, err
			}
			s.Contacts++
			r.Metrics.Contacts.Inc()

			n, err := r.processContact(entry.Output, c, years)
			s.Events += n
			r.Metrics.EventsWritten.Add(float64(n))
			if err == nil {
				continue
			}

			var rerr *reminder.Error
			var nie *ics.NotImplementedError
			if !errors.As(err, &rerr) && !errors.As(err, &nie) && !errors.Is(err, errUnsafeUID) {
				// I/O on the output directory.
				return s, err
			}
			s.Failed++
			r.Metrics.ContactsFailed.Inc()
			if r.Strict {
				return s, fmt.Errorf("%s: %w", f.Path, err)
			}
			appLog.Error("skipping contact", err, "path", f.Path, "uid", contactUID(c))
		}
	}

	return s, nil
}

// processContact converts one contact and writes its reminder files. It
// returns the number of files written.
func (r *Runner) processContact(dir string, c model.Contact, years []int) (int, error) {
	events, err := reminder.Convert(c.Properties, years, r.now())
	if err != nil {
		return 0, err
	}

	written := 0
	for _, ev := range events {
		path, err := WriteEvent(dir, ev)
		if err != nil {
			return written, err
		}
		appLog.Debug("wrote reminder", "path", path)
		written++
	}
	return written, nil
}

func (r *Runner) now() time.Time {
	if r.Clock == nil {
		return time.Now()
	}
	return r.Clock()
}

var errUnsafeUID = errors.New("UID cannot be used as a file name")

// Calendar wraps ev into the one-event calendar that is written to disk.
func Calendar(ev model.Event) model.Calendar {
	return model.Calendar{
		Properties: []model.Property{
			{Name: "VERSION", Value: model.String("2.0")},
			{Name: "PRODID", Value: model.String(ProductID)},
		},
		Events: []model.Event{ev},
	}
}

// WriteEvent renders ev and writes it to dir/{UID}.ics, replacing any
// existing file atomically.
func WriteEvent(dir string, ev model.Event) (string, error) {
	uid, ok := model.FindProperty(ev.Properties, reminder.PropertyUID)
	if !ok {
		return "", &reminder.Error{Kind: reminder.KindPropertyNotFound, Name: reminder.PropertyUID}
	}
	if uid.Value == nil {
		return "", &reminder.Error{Kind: reminder.KindPropertyValueNotFound, Name: reminder.PropertyUID}
	}
	name := *uid.Value + Extension
	if name == Extension || filepath.Base(name) != name || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", errUnsafeUID, *uid.Value)
	}

	text, err := ics.Render(Calendar(ev))
	if err != nil {
		return "", err
	}
	if n := ics.OverlongLines(text); n > 0 {
		appLog.Warn("calendar has unfolded lines longer than 75 octets", "uid", *uid.Value, "lines", n)
	}

	path := filepath.Join(dir, name)
	return path, writeFileAtomic(path, []byte(text))
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".event-extractor-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Purge removes every regular *.ics file in dir and returns how many were
// removed.
func Purge(dir string) (int, error) {
	paths, err := listCalendars(dir)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, path := range paths {
		if err := os.Remove(path); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func listCalendars(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if filepath.Ext(e.Name()) != Extension {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			out = append(out, path)
		}
	}
	return out, nil
}

func contactUID(c model.Contact) string {
	if p, ok := model.FindProperty(c.Properties, reminder.PropertyUID); ok && p.Value != nil {
		return *p.Value
	}
	return ""
}

func joinInts(in []int) string {
	parts := make([]string, len(in))
	for i, n := range in {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ", ")
}
