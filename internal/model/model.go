package model

import "time"

// Param is a single named property parameter with its values in source order.
type Param struct {
	Name   string
	Values []string
}

// Property is a named, optionally parameterized, optionally valued content
// line. It is shared by parsed contacts and generated calendars.
//
// Params keeps the order in which parameters were declared so that a property
// re-serializes the way it was read. A nil Value means the property carries
// no value at all, which is different from an empty one.
type Property struct {
	Name   string
	Params []Param
	Value  *string
}

// String returns a pointer to s, for use as a Property value.
func String(s string) *string {
	return &s
}

// Param returns the first parameter called name.
func (p Property) Param(name string) (Param, bool) {
	for _, param := range p.Params {
		if param.Name == name {
			return param, true
		}
	}
	return Param{}, false
}

// Clone returns a deep copy of p.
func (p Property) Clone() Property {
	out := Property{Name: p.Name}
	if p.Params != nil {
		out.Params = CloneParams(p.Params)
	}
	if p.Value != nil {
		out.Value = String(*p.Value)
	}
	return out
}

// CloneParams deep-copies a parameter list.
func CloneParams(params []Param) []Param {
	if params == nil {
		return nil
	}
	out := make([]Param, len(params))
	for i, param := range params {
		out[i] = Param{
			Name:   param.Name,
			Values: append([]string(nil), param.Values...),
		}
	}
	return out
}

// FindProperty returns the first property in props whose name matches name
// exactly (names are compared case-sensitively).
func FindProperty(props []Property, name string) (Property, bool) {
	for _, p := range props {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// Component is a generic sub-component (VALARM, VTODO, ...) that is only
// carried as a list of properties.
type Component struct {
	Properties []Property
}

// Event represents one VEVENT.
type Event struct {
	Properties []Property
	Alarms     []Component
}

// Calendar represents one VCALENDAR document.
//
// Only Properties and Events can be serialized; the remaining collections
// exist so that callers can express them, and the serializer rejects any of
// them that are non-empty.
type Calendar struct {
	Properties []Property
	Events     []Event

	Alarms    []Component
	FreeBusys []Component
	Journals  []Component
	Timezones []Component
	Todos     []Component
}

// Contact is one parsed contact record.
type Contact struct {
	// Source is the file path or URL the contact was read from.
	Source     string
	Properties []Property
}

// Occurrence represents a single upcoming birthday inside a reporting
// window, after recurrence expansion.
type Occurrence struct {
	Source string // contact source (file path or URL)
	UID    string
	Name   string

	// Date is local midnight of the birthday in the display timezone.
	Date time.Time

	// Age is the age reached on Date; nil when the birth year is unknown.
	Age *int
}
