package contacts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

func TestFetcher_ETagCache(t *testing.T) {
	var hits, conditional atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			conditional.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(twoCards))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	url := srv.URL + "/contacts.vcf?token=secret"

	first, err := f.Fetch(context.Background(), url)
	if err != nil {
		t.Fatalf("first Fetch() error = %v", err)
	}
	if first.FromCache || string(first.Body) != twoCards {
		t.Errorf("first fetch = %+v", first)
	}

	second, err := f.Fetch(context.Background(), url)
	if err != nil {
		t.Fatalf("second Fetch() error = %v", err)
	}
	if !second.FromCache || string(second.Body) != twoCards {
		t.Errorf("second fetch should come from cache: %+v", second)
	}
	if hits.Load() != 2 || conditional.Load() != 1 {
		t.Errorf("hits = %d, conditional = %d", hits.Load(), conditional.Load())
	}
}

func TestFetcher_FallsBackToCache(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(twoCards))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	if _, err := f.Fetch(context.Background(), srv.URL); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	fail.Store(true)
	res, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !res.FromCache {
		t.Error("expected the cached body after a server error")
	}
}

func TestFetcher_ErrorWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := NewFetcher(t.TempDir()).Fetch(context.Background(), srv.URL); err == nil {
		t.Error("expected an error")
	}
}

func TestLoader_Remote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(twoCards))
	}))
	defer srv.Close()

	l := &Loader{Fetcher: NewFetcher(t.TempDir())}
	files, err := l.Load(context.Background(), srv.URL+"/private/book.vcf")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(files) != 1 || files[0].Err != nil || len(files[0].Contacts) != 2 {
		t.Fatalf("Load() = %+v", files)
	}
	if files[0].Path != srv.URL+"/...(redacted)" {
		t.Errorf("Path = %q, want the redacted URL", files[0].Path)
	}
}

func TestRedactURL(t *testing.T) {
	testCases := map[string]string{
		"https://example.com/dav/private.vcf?token=abcd": "https://example.com/...(redacted)",
		"http://host:8080":                               "http://host:8080/...(redacted)",
		"no-scheme":                                      "vcf://...(redacted)",
	}
	for in, want := range testCases {
		if got := redactURL(in); got != want {
			t.Errorf("redactURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFetcher_ConcurrentCacheWrites(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(twoCards))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	url := srv.URL + "/book.vcf"

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.Fetch(context.Background(), url); err != nil {
				t.Errorf("Fetch() error = %v", err)
			}
		}()
	}
	wg.Wait()

	dir := f.cachePathForURL(url)
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	if strings.Join(names, " ") != "body.vcf meta.json" {
		t.Errorf("cache dir = %v, want only body.vcf and meta.json", names)
	}

	body, err := os.ReadFile(filepath.Join(dir, "body.vcf"))
	if err != nil || string(body) != twoCards {
		t.Errorf("cached body = %q, %v", body, err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		t.Fatal(err)
	}
	var meta cacheEntry
	if err := json.Unmarshal(data, &meta); err != nil || meta.ETag != `"v1"` {
		t.Errorf("meta = %+v, %v", meta, err)
	}
}
