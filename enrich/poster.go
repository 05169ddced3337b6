package enrich

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const defaultPosterAPIURL = "https://www.omdbapi.com/"

// PosterCache is a pass-through cache over the poster metadata provider,
// keyed by external catalog id. Within one run a miss triggers exactly one
// outbound lookup per id, even when that lookup fails, so the external call
// volume stays bounded. Failures are not cached as "no poster": Reset marks
// the start of a new run and makes them retryable again.
type PosterCache struct {
	// BaseURL can be pointed at a test server.
	BaseURL string

	apiKey     string
	httpClient *http.Client
	posters    *gocache.Cache
	attempted  map[string]bool
}

func NewPosterCache(apiKey string) *PosterCache {
	return &PosterCache{
		BaseURL: defaultPosterAPIURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		posters:   gocache.New(gocache.NoExpiration, 0),
		attempted: make(map[string]bool),
	}
}

// Reset starts a new run. Failed lookups become retryable again; fetched
// poster URLs stay cached since they do not change.
func (p *PosterCache) Reset() {
	p.attempted = make(map[string]bool)
}

// PosterURL returns the poster URL for an external id, or an empty string
// when the poster is unknown.
func (p *PosterCache) PosterURL(externalID string) string {
	if externalID == "" {
		return ""
	}
	if cached, ok := p.posters.Get(externalID); ok {
		return cached.(string)
	}
	if p.attempted[externalID] {
		return ""
	}
	p.attempted[externalID] = true

	posterURL, err := p.fetchPosterURL(externalID)
	if err != nil {
		log.Printf("Failed to fetch poster for %s: %v", externalID, err)
		return ""
	}
	if posterURL != "" {
		p.posters.Set(externalID, posterURL, gocache.NoExpiration)
	}
	return posterURL
}

func (p *PosterCache) fetchPosterURL(externalID string) (string, error) {
	query := url.Values{}
	query.Set("i", externalID)
	query.Set("apikey", p.apiKey)

	resp, err := p.httpClient.Get(p.BaseURL + "?" + query.Encode())
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var details struct {
		Poster string `json:"Poster"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		return "", err
	}

	// The provider reports a missing poster as the literal "N/A".
	if details.Poster == "N/A" {
		return "", nil
	}
	return details.Poster, nil
}
