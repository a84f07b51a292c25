package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "eventextractor/internal/log"
)

// ParsedReminder is a VEVENT read back from a rendered reminder file.
type ParsedReminder struct {
	Source string // file the reminder was read from

	ProdID  string
	UID     string
	Summary string
	Status  string

	Stamp  time.Time
	Start  time.Time
	End    time.Time
	AllDay bool
}

// ParseReminders parses a rendered calendar with an independent iCalendar
// parser and returns its events.
//
// It is used to verify generated output: every event must carry a UID and
// an all-day DTSTART/DTEND pair with DTEND after DTSTART.
func ParseReminders(src string, body []byte) ([]ParsedReminder, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "source", src)
		return nil, err
	}

	prodID := ""
	for _, p := range cal.CalendarProperties {
		if p.IANAToken == string(ical.PropertyProductId) {
			prodID = p.Value
		}
	}

	out := make([]ParsedReminder, 0, len(cal.Events()))
	for _, ve := range cal.Events() {
		r, err := parseVEvent(ve)
		if err != nil {
			return nil, err
		}
		r.Source = src
		r.ProdID = prodID
		out = append(out, r)
	}

	appLog.Debug("ics parse completed", "source", src, "event_count", len(out))
	return out, nil
}

func parseVEvent(ve *ical.VEvent) (ParsedReminder, error) {
	var out ParsedReminder

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentProperty("STATUS")); p != nil {
		out.Status = p.Value
	}
	if p := ve.GetProperty(ical.ComponentProperty("DTSTAMP")); p != nil {
		if t, err := parseICSTime(p.Value); err == nil {
			out.Stamp = t
		}
	}

	start := ve.GetProperty(ical.ComponentPropertyDtStart)
	if start == nil {
		return out, errors.New("missing DTSTART in " + out.UID)
	}
	end := ve.GetProperty(ical.ComponentPropertyDtEnd)
	if end == nil {
		return out, errors.New("missing DTEND in " + out.UID)
	}

	// VALUE=DATE or no 'T' in the value -> all-day
	out.AllDay = isDateValue(start.ICalParameters, start.Value) && isDateValue(end.ICalParameters, end.Value)

	var err error
	if out.Start, err = parseICSTime(start.Value); err != nil {
		return out, err
	}
	if out.End, err = parseICSTime(end.Value); err != nil {
		return out, err
	}
	if !out.End.After(out.Start) {
		return out, errors.New("DTEND is not after DTSTART in " + out.UID)
	}

	return out, nil
}

func isDateValue(params map[string][]string, v string) bool {
	if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(v, "T")
}

// parseICSTime parses a DATE or UTC DATE-TIME value. Dates are returned as
// midnight UTC.
func parseICSTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	// UTC form, e.g., 20250101T090000Z
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}

	// Local date-time, e.g., 20250101T090000
	if strings.Contains(v, "T") {
		return time.Parse("20060102T150405", v)
	}

	return time.Parse("20060102", v)
}
