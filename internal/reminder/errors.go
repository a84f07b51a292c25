package reminder

import "fmt"

// Kind identifies the failure category of an *Error.
type Kind uint8

const (
	// KindPropertyNotFound: a required property is missing from a contact.
	KindPropertyNotFound Kind = iota + 1
	// KindPropertyValueNotFound: a required property has no value.
	KindPropertyValueNotFound
	// KindDateExtractionFailed: the date property is not a usable DATE.
	KindDateExtractionFailed
	// KindParseDateFailed: a date field is not numeric.
	KindParseDateFailed
	// KindUnexpectedDateFormat: the value has an unknown shape or names a
	// date that does not exist.
	KindUnexpectedDateFormat
)

func (k Kind) String() string {
	switch k {
	case KindPropertyNotFound:
		return "PropertyNotFound"
	case KindPropertyValueNotFound:
		return "PropertyValueNotFound"
	case KindDateExtractionFailed:
		return "DateExtractionFailed"
	case KindParseDateFailed:
		return "ParseDateFailed"
	case KindUnexpectedDateFormat:
		return "UnexpectedDateFormat"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Error is returned by every operation in this package.
//
// Name holds the property name (PropertyNotFound, PropertyValueNotFound) or
// the date field name (ParseDateFailed). Value holds the offending raw
// substring for ParseDateFailed. Reason is set for DateExtractionFailed.
type Error struct {
	Kind   Kind
	Name   string
	Value  string
	Reason string
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindPropertyNotFound:
		return fmt.Sprintf("property %q was not found", e.Name)
	case KindPropertyValueNotFound:
		return fmt.Sprintf("value of property %q not found", e.Name)
	case KindDateExtractionFailed:
		return "date extraction failed: " + e.Reason
	case KindParseDateFailed:
		return fmt.Sprintf("parsing the %s value %q failed", e.Name, e.Value)
	case KindUnexpectedDateFormat:
		return "unexpected date format"
	default:
		return "reminder: " + e.Kind.String()
	}
}

// Is reports whether target is an *Error of the same kind. Fields left empty
// on target act as wildcards, so the Err* sentinels match any error of their
// kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Kind != e.Kind {
		return false
	}
	if t.Name != "" && t.Name != e.Name {
		return false
	}
	if t.Value != "" && t.Value != e.Value {
		return false
	}
	if t.Reason != "" && t.Reason != e.Reason {
		return false
	}
	return true
}

// Sentinels for errors.Is.
var (
	ErrPropertyNotFound      = &Error{Kind: KindPropertyNotFound}
	ErrPropertyValueNotFound = &Error{Kind: KindPropertyValueNotFound}
	ErrDateExtractionFailed  = &Error{Kind: KindDateExtractionFailed}
	ErrParseDateFailed       = &Error{Kind: KindParseDateFailed}
	ErrUnexpectedDateFormat  = &Error{Kind: KindUnexpectedDateFormat}
)

func propertyNotFound(name string) error {
	return &Error{Kind: KindPropertyNotFound, Name: name}
}

func propertyValueNotFound(name string) error {
	return &Error{Kind: KindPropertyValueNotFound, Name: name}
}

func dateExtractionFailed(reason string) error {
	return &Error{Kind: KindDateExtractionFailed, Reason: reason}
}

func parseDateFailed(field, raw string) error {
	return &Error{Kind: KindParseDateFailed, Name: field, Value: raw}
}

func unexpectedDateFormat() error {
	return &Error{Kind: KindUnexpectedDateFormat}
}
