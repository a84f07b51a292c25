package reminder

import (
	"fmt"
	"time"

	"eventextractor/internal/model"
)

const (
	dateLayout  = "20060102"
	stampLayout = "20060102T150405Z"
)

// GenerateEvents builds one all-day birthday event per entry of years, in
// the same order.
//
// name and uid are the contact's FN and UID properties. stamp becomes the
// DTSTAMP of every event; callers capture it once per contact so that all
// events of a contact share it. The result depends only on the arguments.
func GenerateEvents(name, uid model.Property, date ExtractedDate, years []int, stamp time.Time) ([]model.Event, error) {
	if uid.Value == nil {
		return nil, propertyValueNotFound("UID")
	}
	if name.Value == nil {
		return nil, propertyValueNotFound("FN")
	}

	dtstamp := stamp.UTC().Format(stampLayout)

	events := make([]model.Event, 0, len(years))
	for _, year := range years {
		start, err := civilDate(year, date.Month, date.Day)
		if err != nil {
			return nil, err
		}
		end := start.AddDate(0, 0, 1)

		events = append(events, model.Event{
			Properties: []model.Property{
				{Name: "UID", Value: model.String(fmt.Sprintf("%s_bday_%d", *uid.Value, year))},
				{Name: "DTSTAMP", Value: model.String(dtstamp)},
				{Name: "STATUS", Value: model.String("CONFIRMED")},
				{Name: "TRANSP", Value: model.String("TRANSPARENT")},
				{Name: "DTSTART", Params: dateParams(), Value: model.String(start.Format(dateLayout))},
				{Name: "DTEND", Params: dateParams(), Value: model.String(end.Format(dateLayout))},
				{Name: "SUMMARY", Params: model.CloneParams(name.Params), Value: model.String(summary(*name.Value, date, year))},
			},
		})
	}

	return events, nil
}

// civilDate returns midnight UTC of the given date, or UnexpectedDateFormat
// when the date does not exist (time.Date would silently normalise it,
// e.g. Feb 29 of a non-leap year into Mar 1).
func civilDate(year, month, day int) (time.Time, error) {
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, unexpectedDateFormat()
	}
	return t, nil
}

func summary(name string, date ExtractedDate, year int) string {
	if date.Year == nil {
		return "Birthday: " + name
	}
	return fmt.Sprintf("Birthday: %s (%d)", name, year-*date.Year)
}

func dateParams() []model.Param {
	return []model.Param{{Name: "VALUE", Values: []string{"DATE"}}}
}
