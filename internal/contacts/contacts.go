// Package contacts reads contact records from vCard files.
//
// Parsing is delegated to github.com/emersion/go-vcard; this package only
// finds the files, fetches remote address books and flattens each card into
// the ordered property list the reminder package works on.
package contacts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/emersion/go-vcard"

	appLog "eventextractor/internal/log"
	"eventextractor/internal/model"
)

// Extension is the file extension of contact files in an input directory.
const Extension = ".vcf"

// File is the result of reading one contact source.
type File struct {
	// Path is the file path or URL.
	Path     string
	Contacts []model.Contact
	// Err is set when the source could not be read or decoded. Contacts
	// decoded before the failure are still returned.
	Err error
}

// Loader reads contacts from a directory or a remote URL.
type Loader struct {
	Fetcher *Fetcher
}

// IsRemote reports whether input names an http(s) URL rather than a
// directory.
func IsRemote(input string) bool {
	return strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://")
}

// Load reads every contact source named by input. The returned error is
// only set when input itself cannot be listed; per-file problems are
// reported in File.Err.
func (l *Loader) Load(ctx context.Context, input string) ([]File, error) {
	if IsRemote(input) {
		if l.Fetcher == nil {
			return nil, errors.New("remote input configured but no fetcher available")
		}
		res, err := l.Fetcher.Fetch(ctx, input)
		if err != nil {
			return []File{{Path: redactURL(input), Err: err}}, nil
		}
		contacts, err := Decode(redactURL(input), bytes.NewReader(res.Body))
		return []File{{Path: redactURL(input), Contacts: contacts, Err: err}}, nil
	}

	paths, err := List(input)
	if err != nil {
		return nil, err
	}

	files := make([]File, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return files, err
		}
		appLog.Info("processing file", "path", path)
		files = append(files, readFile(path))
	}
	return files, nil
}

func readFile(path string) File {
	f, err := os.Open(path)
	if err != nil {
		return File{Path: path, Err: err}
	}
	defer f.Close()

	contacts, err := Decode(path, f)
	return File{Path: path, Contacts: contacts, Err: err}
}

// List returns the regular files in dir with the .vcf extension, sorted by
// name.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		isVCF := filepath.Ext(e.Name()) == Extension
		info, err := os.Stat(path)
		isFile := err == nil && info.Mode().IsRegular()

		appLog.Debug("found entry", "path", path, "is_file", isFile, "ends_with_vcf", isVCF)
		if isFile && isVCF {
			out = append(out, path)
		}
	}
	return out, nil
}

// Decode reads all cards from r.
func Decode(source string, r io.Reader) ([]model.Contact, error) {
	dec := vcard.NewDecoder(r)

	var out []model.Contact
	for {
		card, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("decode %s: card %d: %w", source, len(out)+1, err)
		}
		out = append(out, model.Contact{Source: source, Properties: Properties(card)})
	}
}

// Properties flattens a card into a property list.
//
// A card is a map, so the original line order is not available: properties
// are ordered by name, repeated properties keep their order in the file,
// and parameters are ordered by name (FN;LANGUAGE=de;CHARSET=UTF-8 comes out
// as CHARSET before LANGUAGE, and so does the SUMMARY built from it). The
// ordering is deterministic, which keeps the "first match wins" lookups
// stable.
//
// The decoder unescapes values; they are escaped again here so that a value
// is carried into a content line exactly as it was written.
func Properties(card vcard.Card) []model.Property {
	names := make([]string, 0, len(card))
	for name := range card {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []model.Property
	for _, name := range names {
		for _, field := range card[name] {
			if field == nil {
				continue
			}
			out = append(out, model.Property{
				Name:   name,
				Params: params(field.Params),
				Value:  model.String(escapeValue(field.Value)),
			})
		}
	}
	return out
}

func params(p vcard.Params) []model.Param {
	if len(p) == 0 {
		return nil
	}
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]model.Param, 0, len(names))
	for _, name := range names {
		out = append(out, model.Param{Name: name, Values: append([]string(nil), p[name]...)})
	}
	return out
}

var valueEscaper = strings.NewReplacer(
	`\`, `\\`,
	"\r\n", `\n`,
	"\n", `\n`,
	",", `\,`,
	";", `\;`,
)

// escapeValue applies the TEXT escaping of RFC 6350 3.4 / RFC 5545 3.3.11.
func escapeValue(v string) string {
	return valueEscaper.Replace(v)
}
