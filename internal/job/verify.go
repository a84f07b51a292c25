package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"eventextractor/internal/config"
	"eventextractor/internal/ics"
	appLog "eventextractor/internal/log"
	"eventextractor/internal/model"
	"eventextractor/internal/reminder"
)

// Verify re-reads every calendar file in dir with an independent iCalendar
// parser and returns the number of reminders found. All broken files are
// reported in the returned error.
func Verify(dir string) (int, error) {
	paths, err := listCalendars(dir)
	if err != nil {
		return 0, err
	}

	count := 0
	var errs []error
	for _, path := range paths {
		body, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		reminders, err := ics.ParseReminders(path, body)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		for _, rem := range reminders {
			if rem.ProdID != ProductID {
				appLog.Warn("calendar was not generated by this tool", "path", path, "prodid", rem.ProdID)
			}
		}
		count += len(reminders)
	}

	appLog.Info("verified output", "dir", dir, "files", len(paths), "reminders", count, "broken", len(errs))
	return count, errors.Join(errs...)
}

// Upcoming lists the birthdays of all contacts of entries that fall within
// days days starting today (in loc).
//
// Contacts without BDAY are ignored; contacts whose birthday cannot be read
// are logged and skipped.
func (r *Runner) Upcoming(ctx context.Context, entries []config.Entry, days int, loc *time.Location) ([]model.Occurrence, error) {
	if loc == nil {
		loc = time.Local
	}
	if days <= 0 {
		days = 1
	}

	var birthdays []ics.Birthday
	for _, entry := range entries {
		files, err := r.Loader.Load(ctx, entry.Input)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if f.Err != nil {
				appLog.Error("could not parse contact file", f.Err, "path", f.Path)
			}
			for _, c := range f.Contacts {
				b, ok, err := birthdayOf(c)
				if err != nil {
					appLog.Error("skipping contact", err, "path", f.Path, "uid", contactUID(c))
					continue
				}
				if ok {
					birthdays = append(birthdays, b)
				}
			}
		}
	}

	now := r.now().In(loc)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	return ics.ExpandBirthdays(birthdays, ics.ExpandConfig{
		Location:   loc,
		RangeStart: start,
		RangeEnd:   start.AddDate(0, 0, days-1),
	})
}

func birthdayOf(c model.Contact) (ics.Birthday, bool, error) {
	bday, ok := model.FindProperty(c.Properties, reminder.PropertyBirthday)
	if !ok {
		return ics.Birthday{}, false, nil
	}
	date, err := reminder.ExtractDate(bday)
	if err != nil {
		return ics.Birthday{}, false, err
	}

	b := ics.Birthday{Source: c.Source, Date: date}
	if p, ok := model.FindProperty(c.Properties, reminder.PropertyName); ok && p.Value != nil {
		b.Name = *p.Value
	}
	if p, ok := model.FindProperty(c.Properties, reminder.PropertyUID); ok && p.Value != nil {
		b.UID = *p.Value
	}
	return b, true, nil
}
