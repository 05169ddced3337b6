package enrich

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const chartItem = `<div class="lister-item mode-advanced">
  <img data-tconst="%s"/>
  <h3><a href="/title/%s/">%s</a></h3>
  <span class="lister-item-year">(%s)</span>
  <span class="genre">Drama</span>
  <strong>9.2</strong>
</div>`

func TestRankingRefreshAndRank(t *testing.T) {
	var pages int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages++
		start := r.URL.Query().Get("start")
		if start == "1" {
			fmt.Fprintf(w, chartItem, "tt0111161", "tt0111161", "The Shawshank Redemption", "1994")
			fmt.Fprintf(w, chartItem, "tt0068646", "tt0068646", "The Godfather", "1972")
			return
		}
		fmt.Fprint(w, "<html></html>")
	}))
	defer server.Close()

	cache := NewRankingCache(t.TempDir())
	cache.ChartURL = server.URL

	if !cache.IsRefreshDue() {
		t.Fatal("Expected a fresh cache to be due for refresh")
	}
	if err := cache.Refresh(); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if pages != 5 {
		t.Errorf("Expected 5 chart pages, got %d", pages)
	}

	rank, ok := cache.Rank("tt0111161")
	if !ok || rank != 1 {
		t.Errorf("Expected rank 1, got %d (%v)", rank, ok)
	}
	rank, ok = cache.Rank("tt0068646")
	if !ok || rank != 2 {
		t.Errorf("Expected rank 2, got %d (%v)", rank, ok)
	}
	if _, ok := cache.Rank("tt9999999"); ok {
		t.Error("Expected unknown id to have no rank")
	}

	if cache.IsRefreshDue() {
		t.Error("Expected a just-refreshed cache not to be due")
	}
}

func TestRankingLoadsFromDisk(t *testing.T) {
	dataPath := t.TempDir()
	content := `{"tt0111161":{"rank":1,"title":"The Shawshank Redemption","year":"(1994)","genre":"Drama","rating":"9.3"}}`
	if err := os.WriteFile(filepath.Join(dataPath, "imdb_top_250.json"), []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to seed cache file: %v", err)
	}

	cache := NewRankingCache(dataPath)
	rank, ok := cache.Rank("tt0111161")
	if !ok || rank != 1 {
		t.Errorf("Expected rank 1 from disk, got %d (%v)", rank, ok)
	}
}

func TestRankingMaxAge(t *testing.T) {
	dataPath := t.TempDir()
	path := filepath.Join(dataPath, "imdb_top_250.json")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatalf("Failed to seed cache file: %v", err)
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("Failed to age cache file: %v", err)
	}

	cache := NewRankingCache(dataPath)
	if cache.IsRefreshDue() {
		t.Error("Expected a 2-day-old cache to still be fresh")
	}

	cache.SetMaxAge(24 * time.Hour)
	if !cache.IsRefreshDue() {
		t.Error("Expected the cache to be stale under a 24h threshold")
	}
}

func TestRefreshRejectsEmptyChart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html></html>")
	}))
	defer server.Close()

	dataPath := t.TempDir()
	cache := NewRankingCache(dataPath)
	cache.ChartURL = server.URL

	if err := cache.Refresh(); err == nil {
		t.Fatal("Expected an error for an empty chart")
	}
	if _, err := os.Stat(filepath.Join(dataPath, "imdb_top_250.json")); !os.IsNotExist(err) {
		t.Error("Expected no cache file to be written for an empty chart")
	}
}
