package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "eventextractor/internal/log"
	"eventextractor/internal/model"
	"eventextractor/internal/reminder"
)

// Birthday is one contact's birth date, ready for expansion.
type Birthday struct {
	Source string
	UID    string
	Name   string
	Date   reminder.ExtractedDate
}

// ExpandConfig controls how birthdays are expanded.
type ExpandConfig struct {
	// Location is the timezone occurrences are placed in. If nil,
	// time.Local is used.
	Location *time.Location

	// RangeStart / RangeEnd define the inclusive window for occurrences.
	RangeStart time.Time
	RangeEnd   time.Time
}

// ExpandBirthdays lists every birthday falling inside the configured
// window, ordered by date and then by name.
//
// Each birthday is expanded as FREQ=YEARLY;BYMONTH=m;BYMONTHDAY=d, so a
// Feb 29 birthday only occurs in leap years. Birthdays with an impossible
// month or day are logged and skipped.
func ExpandBirthdays(entries []Birthday, cfg ExpandConfig) ([]model.Occurrence, error) {
	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return nil, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	rangeStart := cfg.RangeStart.In(cfg.Location)
	rangeEnd := cfg.RangeEnd.In(cfg.Location)

	out := make([]model.Occurrence, 0)
	for _, b := range entries {
		occ, err := expandBirthday(b, rangeStart, rangeEnd, cfg.Location)
		if err != nil {
			appLog.Error("expand: skipping birthday", err, "uid", b.UID, "source", b.Source)
			continue
		}
		out = append(out, occ...)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func expandBirthday(b Birthday, rangeStart, rangeEnd time.Time, loc *time.Location) ([]model.Occurrence, error) {
	d := b.Date
	if d.Month < 1 || d.Month > 12 || d.Day < 1 || d.Day > 31 {
		return nil, errors.New("birthday has no valid month and day")
	}

	// Without a birth year the rule starts just before the window.
	dtstart := time.Date(rangeStart.Year()-1, time.January, 1, 0, 0, 0, 0, loc)
	if d.Year != nil {
		dtstart = time.Date(*d.Year, time.January, 1, 0, 0, 0, 0, loc)
	}

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:       rrule.YEARLY,
		Dtstart:    dtstart,
		Bymonth:    []int{d.Month},
		Bymonthday: []int{d.Day},
	})
	if err != nil {
		return nil, err
	}

	var out []model.Occurrence
	for _, t := range r.Between(rangeStart, rangeEnd, true) {
		occ := model.Occurrence{
			Source: b.Source,
			UID:    b.UID,
			Name:   b.Name,
			Date:   t,
		}
		if d.Year != nil {
			age := t.Year() - *d.Year
			occ.Age = &age
		}
		out = append(out, occ)
	}
	return out, nil
}
