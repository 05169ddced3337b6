package enrich

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPosterURLCachesLookups(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.URL.Query().Get("i") != "tt1375666" {
			t.Errorf("Unexpected id %q", r.URL.Query().Get("i"))
		}
		fmt.Fprint(w, `{"Poster":"https://img/poster.jpg"}`)
	}))
	defer server.Close()

	cache := NewPosterCache("key")
	cache.BaseURL = server.URL

	for i := 0; i < 3; i++ {
		if url := cache.PosterURL("tt1375666"); url != "https://img/poster.jpg" {
			t.Fatalf("Expected poster url, got %q", url)
		}
	}
	if requests != 1 {
		t.Errorf("Expected 1 outbound request, got %d", requests)
	}
}

func TestPosterURLAttemptsOncePerRunOnFailure(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cache := NewPosterCache("key")
	cache.BaseURL = server.URL

	if url := cache.PosterURL("tt1375666"); url != "" {
		t.Fatalf("Expected empty url on failure, got %q", url)
	}
	if url := cache.PosterURL("tt1375666"); url != "" {
		t.Fatalf("Expected empty url on retry, got %q", url)
	}
	if requests != 1 {
		t.Errorf("Expected a single outbound attempt, got %d", requests)
	}
}

func TestPosterURLRetriesFailuresAfterReset(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"Poster":"https://img/poster.jpg"}`)
	}))
	defer server.Close()

	cache := NewPosterCache("key")
	cache.BaseURL = server.URL

	if url := cache.PosterURL("tt1375666"); url != "" {
		t.Fatalf("Expected empty url on failure, got %q", url)
	}

	// A new run may succeed where the previous one failed.
	cache.Reset()
	if url := cache.PosterURL("tt1375666"); url != "https://img/poster.jpg" {
		t.Fatalf("Expected poster url after reset, got %q", url)
	}
	if requests != 2 {
		t.Errorf("Expected the lookup to be retried, got %d requests", requests)
	}
}

func TestPosterURLTreatsNAAsAbsent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Poster":"N/A"}`)
	}))
	defer server.Close()

	cache := NewPosterCache("key")
	cache.BaseURL = server.URL

	if url := cache.PosterURL("tt0000001"); url != "" {
		t.Errorf("Expected N/A poster to read as absent, got %q", url)
	}
}

func TestPosterURLEmptyID(t *testing.T) {
	cache := NewPosterCache("key")
	if url := cache.PosterURL(""); url != "" {
		t.Errorf("Expected empty url for empty id, got %q", url)
	}
}
