package ics

import (
	"strings"

	"eventextractor/internal/model"
)

const (
	crlf           = "\r\n"
	beginVCalendar = "BEGIN:VCALENDAR"
	endVCalendar   = "END:VCALENDAR"
	beginVEvent    = "BEGIN:VEVENT"
	endVEvent      = "END:VEVENT"

	// MaxLineOctets is the content line length limit of RFC 5545 3.1.
	// Render does not fold; see OverlongLines.
	MaxLineOctets = 75
)

// NotImplementedError is returned when a calendar contains a component the
// serializer does not support.
type NotImplementedError struct {
	// Component names the offending collection, e.g. "calendar.free_busys".
	Component string
}

func (e *NotImplementedError) Error() string {
	return "serialization of property \"" + e.Component + "\" not implemented"
}

// Render serializes cal into iCalendar text.
//
// The whole calendar is validated before anything is written, so a
// rejected calendar never yields partial output.
func Render(cal model.Calendar) (string, error) {
	if err := validateCalendar(cal); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(beginVCalendar + crlf)
	for _, p := range cal.Properties {
		writeProperty(&b, p)
	}
	for _, ev := range cal.Events {
		writeEvent(&b, ev)
	}
	b.WriteString(endVCalendar + crlf)

	return b.String(), nil
}

// RenderEvent serializes a single VEVENT.
func RenderEvent(ev model.Event) (string, error) {
	if err := validateEvent(ev); err != nil {
		return "", err
	}
	var b strings.Builder
	writeEvent(&b, ev)
	return b.String(), nil
}

// RenderProperty serializes one content line, CRLF included.
//
// Parameter values are joined with commas and written as-is: nothing is
// quoted or escaped and long lines are not folded.
func RenderProperty(p model.Property) string {
	var b strings.Builder
	writeProperty(&b, p)
	return b.String()
}

// OverlongLines counts the lines of text longer than MaxLineOctets.
func OverlongLines(text string) int {
	n := 0
	for _, line := range strings.Split(text, crlf) {
		if len(line) > MaxLineOctets {
			n++
		}
	}
	return n
}

func validateCalendar(cal model.Calendar) error {
	collections := []struct {
		name  string
		items []model.Component
	}{
		{"calendar.alarms", cal.Alarms},
		{"calendar.free_busys", cal.FreeBusys},
		{"calendar.journals", cal.Journals},
		{"calendar.timezones", cal.Timezones},
		{"calendar.todos", cal.Todos},
	}
	for _, c := range collections {
		if len(c.items) > 0 {
			return &NotImplementedError{Component: c.name}
		}
	}

	for _, ev := range cal.Events {
		if err := validateEvent(ev); err != nil {
			return err
		}
	}
	return nil
}

func validateEvent(ev model.Event) error {
	if len(ev.Alarms) > 0 {
		return &NotImplementedError{Component: "event.alarms"}
	}
	return nil
}

func writeEvent(b *strings.Builder, ev model.Event) {
	b.WriteString(beginVEvent + crlf)
	for _, p := range ev.Properties {
		writeProperty(b, p)
	}
	b.WriteString(endVEvent + crlf)
}

func writeProperty(b *strings.Builder, p model.Property) {
	b.WriteString(p.Name)
	for _, param := range p.Params {
		b.WriteString(";")
		b.WriteString(param.Name)
		b.WriteString("=")
		b.WriteString(strings.Join(param.Values, ","))
	}
	if p.Value != nil {
		b.WriteString(":")
		b.WriteString(*p.Value)
	}
	b.WriteString(crlf)
}
