package reminder

import (
	"fmt"
	"strconv"
	"strings"

	"eventextractor/internal/model"
)

// ExtractedDate is a calendar date read from a DATE-typed property.
//
// Year is nil for recurring dates written without a year (--MMDD), e.g. a
// birthday whose birth year is unknown.
type ExtractedDate struct {
	Year  *int
	Month int
	Day   int
}

// HasYear reports whether the date carries a year.
func (d ExtractedDate) HasYear() bool {
	return d.Year != nil
}

// ExtractDate parses a property carrying VALUE=DATE into an ExtractedDate.
//
// Accepted values are full dates (YYYYMMDD) and year-less dates (--MMDD).
// Month and day are not range checked here; GenerateEvents rejects dates
// that do not exist.
func ExtractDate(p model.Property) (ExtractedDate, error) {
	if len(p.Params) == 0 {
		return ExtractedDate{}, dateExtractionFailed("no parameters found")
	}

	valueType, ok := p.Param("VALUE")
	if !ok {
		return ExtractedDate{}, dateExtractionFailed("could not determine value type")
	}
	if len(valueType.Values) != 1 {
		return ExtractedDate{}, dateExtractionFailed("value type not unique")
	}
	if valueType.Values[0] != "DATE" {
		return ExtractedDate{}, dateExtractionFailed(
			fmt.Sprintf("expected value type \"DATE\" found %q", valueType.Values[0]))
	}

	if p.Value == nil {
		return ExtractedDate{}, dateExtractionFailed("no date value found")
	}
	v := *p.Value

	switch {
	case len(v) == 8 && !strings.HasPrefix(v, "--"):
		year, err := strconv.Atoi(v[0:4])
		if err != nil {
			return ExtractedDate{}, parseDateFailed("year", v[0:4])
		}
		month, err := parseUnsigned("month", v[4:6])
		if err != nil {
			return ExtractedDate{}, err
		}
		day, err := parseUnsigned("day", v[6:8])
		if err != nil {
			return ExtractedDate{}, err
		}
		return ExtractedDate{Year: &year, Month: month, Day: day}, nil

	case len(v) == 6 && strings.HasPrefix(v, "--"):
		month, err := parseUnsigned("month", v[2:4])
		if err != nil {
			return ExtractedDate{}, err
		}
		day, err := parseUnsigned("day", v[4:6])
		if err != nil {
			return ExtractedDate{}, err
		}
		return ExtractedDate{Month: month, Day: day}, nil
	}

	return ExtractedDate{}, unexpectedDateFormat()
}

// parseUnsigned parses a month or day field. A single leading '+' is
// accepted, as strconv.Atoi accepts it for the year.
func parseUnsigned(field, raw string) (int, error) {
	digits := strings.TrimPrefix(raw, "+")
	n, err := strconv.ParseUint(digits, 10, 32)
	if err != nil {
		return 0, parseDateFailed(field, raw)
	}
	return int(n), nil
}
