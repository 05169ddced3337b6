package notion

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

const (
	defaultBaseURL = "https://api.notion.com/v1"
	apiVersion     = "2022-06-28"
	pageSize       = 100
)

// RequestError is returned for any failed call against the remote catalog
// service, carrying the HTTP status when one was received.
type RequestError struct {
	URL     string
	Status  int
	Message string
	Err     error
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("request to %s failed with status %d: %s", e.URL, e.Status, e.Message)
}

func (e *RequestError) Unwrap() error { return e.Err }

// Record is one raw page of a remote database, with its typed properties left
// as decoded JSON for the per-kind readers to interpret.
type Record struct {
	ID             string                 `json:"id"`
	URL            string                 `json:"url"`
	LastEditedTime time.Time              `json:"last_edited_time"`
	Properties     map[string]interface{} `json:"properties"`
}

// Client is a minimal client for the page-per-record workspace API.
type Client struct {
	// BaseURL can be pointed at a test server.
	BaseURL string

	apiKey     string
	httpClient *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		BaseURL: defaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// LoadRecords loads every record of a database, transparently following
// continuation cursors until the result set is exhausted.
func (c *Client) LoadRecords(databaseID string) ([]Record, error) {
	url := fmt.Sprintf("%s/databases/%s/query", c.BaseURL, databaseID)

	var records []Record
	payload := map[string]interface{}{"page_size": pageSize}

	for {
		var page struct {
			Results    []Record `json:"results"`
			HasMore    bool     `json:"has_more"`
			NextCursor string   `json:"next_cursor"`
		}
		if err := c.do(http.MethodPost, url, payload, &page); err != nil {
			return nil, err
		}

		records = append(records, page.Results...)
		if !page.HasMore {
			break
		}
		payload = map[string]interface{}{"page_size": pageSize, "start_cursor": page.NextCursor}
	}

	log.Printf("Loaded %d records from database %s", len(records), databaseID)
	return records, nil
}

// CreateRecord creates a new page in the database and returns its id.
func (c *Client) CreateRecord(databaseID string, properties Properties) (string, error) {
	url := fmt.Sprintf("%s/pages", c.BaseURL)
	payload := map[string]interface{}{
		"parent":     map[string]interface{}{"database_id": databaseID},
		"properties": properties.Wire(),
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := c.do(http.MethodPost, url, payload, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// UpdateRecord patches the given properties on an existing page; properties
// not present in the payload are left untouched remotely.
func (c *Client) UpdateRecord(recordID string, properties Properties) error {
	url := fmt.Sprintf("%s/pages/%s", c.BaseURL, recordID)
	payload := map[string]interface{}{"properties": properties.Wire()}
	return c.do(http.MethodPatch, url, payload, nil)
}

func (c *Client) do(method, url string, payload, result interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &RequestError{URL: url, Err: err}
	}

	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return &RequestError{URL: url, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Notion-Version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RequestError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		message := readErrorMessage(resp.Body)
		return &RequestError{URL: url, Status: resp.StatusCode, Message: message}
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return &RequestError{URL: url, Err: err}
	}
	return nil
}

func readErrorMessage(body io.Reader) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return "unreadable error response"
	}
	return payload.Message
}
