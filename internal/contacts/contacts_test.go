package contacts

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"eventextractor/internal/model"
)

const twoCards = "BEGIN:VCARD\r\n" +
	"VERSION:4.0\r\n" +
	"UID:urn:uuid:1111\r\n" +
	"FN:Test Person\r\n" +
	"BDAY;VALUE=DATE:19961023\r\n" +
	"END:VCARD\r\n" +
	"BEGIN:VCARD\r\n" +
	"VERSION:4.0\r\n" +
	"UID:2222\r\n" +
	"FN:No Year\r\n" +
	"BDAY;VALUE=DATE:--0214\r\n" +
	"END:VCARD\r\n"

func TestDecode(t *testing.T) {
	got, err := Decode("mem", strings.NewReader(twoCards))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 contacts, got %d", len(got))
	}

	c := got[0]
	if c.Source != "mem" {
		t.Errorf("Source = %q", c.Source)
	}
	bday, ok := model.FindProperty(c.Properties, "BDAY")
	if !ok {
		t.Fatal("BDAY not found")
	}
	if *bday.Value != "19961023" {
		t.Errorf("BDAY value = %q", *bday.Value)
	}
	wantParams := []model.Param{{Name: "VALUE", Values: []string{"DATE"}}}
	if !reflect.DeepEqual(bday.Params, wantParams) {
		t.Errorf("BDAY params = %#v, want %#v", bday.Params, wantParams)
	}

	fn, _ := model.FindProperty(got[1].Properties, "FN")
	if fn.Value == nil || *fn.Value != "No Year" {
		t.Errorf("FN = %+v", fn)
	}
	if fn.Params != nil {
		t.Errorf("expected no FN params, got %#v", fn.Params)
	}
}

func TestDecode_Empty(t *testing.T) {
	got, err := Decode("empty", strings.NewReader(""))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no contacts, got %d", len(got))
	}
}

func TestProperties_Deterministic(t *testing.T) {
	a, err := Decode("a", strings.NewReader(twoCards))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		b, err := Decode("a", strings.NewReader(twoCards))
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(a, b) {
			t.Fatal("decoding the same input twice gave different property orders")
		}
	}

	var names []string
	for _, p := range a[0].Properties {
		names = append(names, p.Name)
	}
	want := []string{"BDAY", "FN", "UID", "VERSION"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("property order = %v, want %v", names, want)
	}
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.vcf", "a.vcf", "notes.txt", "c.VCF", "vcf"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(twoCards), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "dir.vcf"), 0o700); err != nil {
		t.Fatal(err)
	}

	got, err := List(dir)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{filepath.Join(dir, "a.vcf"), filepath.Join(dir, "b.vcf")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}
}

func TestList_MissingDir(t *testing.T) {
	if _, err := List(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected an error for a missing directory")
	}
}

func TestLoader_Directory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "good.vcf"), []byte(twoCards), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "bad.vcf"), []byte("this is not a vcard\r\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	l := &Loader{}
	files, err := l.Load(context.Background(), dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(files))
	}
	// Sorted: bad.vcf, good.vcf
	if files[0].Err == nil {
		t.Error("expected a decode error for bad.vcf")
	}
	if files[1].Err != nil || len(files[1].Contacts) != 2 {
		t.Errorf("good.vcf = %+v", files[1])
	}
}

func TestIsRemote(t *testing.T) {
	for in, want := range map[string]bool{
		"https://example.com/a.vcf": true,
		"http://example.com/a.vcf":  true,
		"/var/contacts":             false,
		"contacts":                  false,
	} {
		if got := IsRemote(in); got != want {
			t.Errorf("IsRemote(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestDecode_KeepsEscapes(t *testing.T) {
	in := "BEGIN:VCARD\r\n" +
		"VERSION:4.0\r\n" +
		"UID:3\r\n" +
		`FN:Doe\, John\nJr` + "\r\n" +
		"END:VCARD\r\n"

	got, err := Decode("mem", strings.NewReader(in))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	fn, ok := model.FindProperty(got[0].Properties, "FN")
	if !ok || fn.Value == nil {
		t.Fatal("FN not found")
	}
	if want := `Doe\, John\nJr`; *fn.Value != want {
		t.Errorf("FN value = %q, want %q", *fn.Value, want)
	}
}

func TestEscapeValue(t *testing.T) {
	testCases := map[string]string{
		"plain":         "plain",
		"a,b;c":         `a\,b\;c`,
		"line\nbreak":   `line\nbreak`,
		"crlf\r\nbreak": `crlf\nbreak`,
		`back\slash`:    `back\\slash`,
	}
	for in, want := range testCases {
		if got := escapeValue(in); got != want {
			t.Errorf("escapeValue(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestProperties_ParamsSortedByName(t *testing.T) {
	in := "BEGIN:VCARD\r\n" +
		"VERSION:4.0\r\n" +
		"FN;LANGUAGE=de;CHARSET=UTF-8:Jörg\r\n" +
		"END:VCARD\r\n"

	got, err := Decode("mem", strings.NewReader(in))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	fn, _ := model.FindProperty(got[0].Properties, "FN")
	want := []model.Param{
		{Name: "CHARSET", Values: []string{"UTF-8"}},
		{Name: "LANGUAGE", Values: []string{"de"}},
	}
	if !reflect.DeepEqual(fn.Params, want) {
		t.Errorf("FN params = %#v, want %#v", fn.Params, want)
	}
}
