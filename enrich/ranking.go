package enrich

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/gocolly/colly"
)

const (
	rankingFilename    = "imdb_top_250.json"
	defaultChartURL    = "https://www.imdb.com/search/title/"
	chartPageSize      = 50
	chartLastPageStart = 201
)

// DefaultRankingMaxAge is how long a fetched ranking list stays fresh.
const DefaultRankingMaxAge = 90 * 24 * time.Hour

// RankingEntry is one chart position, keyed externally by catalog id.
type RankingEntry struct {
	Rank   int    `json:"rank"`
	Title  string `json:"title"`
	Year   string `json:"year"`
	Genre  string `json:"genre"`
	Rating string `json:"rating"`
}

// RankingCache is a disk-backed cache of the complete top-250 ranking list.
// The list is refreshed wholesale once it passes the age threshold; a refresh
// writes to a temp file first and replaces the cache atomically so a crash
// never leaves a torn list behind.
type RankingCache struct {
	// ChartURL can be pointed at a test server.
	ChartURL string

	path    string
	maxAge  time.Duration
	ranking map[string]RankingEntry
}

func NewRankingCache(dataPath string) *RankingCache {
	return &RankingCache{
		ChartURL: defaultChartURL,
		path:     filepath.Join(dataPath, rankingFilename),
		maxAge:   DefaultRankingMaxAge,
	}
}

// SetMaxAge overrides the staleness threshold.
func (r *RankingCache) SetMaxAge(maxAge time.Duration) {
	r.maxAge = maxAge
}

// IsRefreshDue reports whether the cached list is missing or older than the
// age threshold, so the caller can skip the remote fetch entirely while the
// list is fresh.
func (r *RankingCache) IsRefreshDue() bool {
	info, err := os.Stat(r.path)
	if err != nil {
		return true
	}
	return time.Since(info.ModTime()) > r.maxAge
}

// Refresh fetches the full chart and replaces the cached list.
func (r *RankingCache) Refresh() error {
	ranking, err := r.fetchChart()
	if err != nil {
		return fmt.Errorf("failed to fetch ranking chart: %v", err)
	}
	if len(ranking) == 0 {
		return fmt.Errorf("ranking chart came back empty")
	}

	data, err := json.MarshalIndent(ranking, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode ranking: %v", err)
	}

	tempPath := r.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write ranking cache: %v", err)
	}
	if err := os.Rename(tempPath, r.path); err != nil {
		return fmt.Errorf("failed to replace ranking cache: %v", err)
	}

	r.ranking = ranking
	log.Printf("Refreshed ranking cache with %d entries", len(ranking))
	return nil
}

// Rank returns the chart position for an external id.
func (r *RankingCache) Rank(externalID string) (int, bool) {
	if r.ranking == nil {
		r.load()
	}
	entry, ok := r.ranking[externalID]
	if !ok {
		return 0, false
	}
	return entry.Rank, true
}

func (r *RankingCache) load() {
	r.ranking = make(map[string]RankingEntry)

	data, err := os.ReadFile(r.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Failed to read ranking cache: %v", err)
		}
		return
	}
	if err := json.Unmarshal(data, &r.ranking); err != nil {
		log.Printf("Failed to parse ranking cache: %v", err)
		r.ranking = make(map[string]RankingEntry)
	}
}

// fetchChart scrapes the paginated chart listing in rank order.
func (r *RankingCache) fetchChart() (map[string]RankingEntry, error) {
	ranking := make(map[string]RankingEntry)
	rank := 0

	c := colly.NewCollector()
	c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		RandomDelay: 4 * time.Second,
	})

	c.OnRequest(func(request *colly.Request) {
		request.Headers.Set("Accept-Language", "en-US, en;q=0.5")
		log.Println("Visiting:", request.URL)
	})

	c.OnHTML("div.lister-item.mode-advanced", func(e *colly.HTMLElement) {
		id := e.ChildAttr("img", "data-tconst")
		if id == "" {
			return
		}
		rank++
		ranking[id] = RankingEntry{
			Rank:   rank,
			Title:  e.ChildText("h3 a"),
			Year:   e.ChildText("span.lister-item-year"),
			Genre:  e.ChildText("span.genre"),
			Rating: e.ChildText("strong"),
		}
	})

	for start := 1; start <= chartLastPageStart; start += chartPageSize {
		url := fmt.Sprintf("%s?groups=top_250&sort=user_rating,desc&start=%d&ref_=adv_nxt", r.ChartURL, start)
		if err := c.Visit(url); err != nil {
			return nil, err
		}
	}

	return ranking, nil
}
