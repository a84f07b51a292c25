// Package reminder turns contact records into birthday reminder events.
//
// ExtractDate reads a DATE-typed BDAY property, GenerateEvents fans the date
// out into one all-day event per target year, and Convert ties both together
// for a whole contact. Everything here is a pure function of its arguments;
// the caller owns the clock and passes the generation timestamp in.
package reminder
