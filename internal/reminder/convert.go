package reminder

import (
	"time"

	"eventextractor/internal/model"
)

// Property names read from a contact.
const (
	PropertyName     = "FN"
	PropertyUID      = "UID"
	PropertyBirthday = "BDAY"
)

// Convert turns one contact into its birthday events for the given years.
//
// FN and UID are required. A contact without BDAY is not an error: it simply
// has nothing to remind of, so the result is empty.
func Convert(contact []model.Property, years []int, stamp time.Time) ([]model.Event, error) {
	name, ok := model.FindProperty(contact, PropertyName)
	if !ok {
		return nil, propertyNotFound(PropertyName)
	}
	uid, ok := model.FindProperty(contact, PropertyUID)
	if !ok {
		return nil, propertyNotFound(PropertyUID)
	}
	bday, ok := model.FindProperty(contact, PropertyBirthday)
	if !ok {
		return []model.Event{}, nil
	}

	date, err := ExtractDate(bday)
	if err != nil {
		return nil, err
	}
	return GenerateEvents(name, uid, date, years, stamp)
}

// TargetYears returns the years from now.Year()-before to now.Year()+after,
// ascending. Negative offsets count as zero.
func TargetYears(now time.Time, before, after int) []int {
	before, after = max(before, 0), max(after, 0)
	current := now.Year()
	years := make([]int, 0, before+after+1)
	for y := current - before; y <= current+after; y++ {
		years = append(years, y)
	}
	return years
}
