package notion

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLoadRecordsFollowsCursors(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("Missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Notion-Version") == "" {
			t.Error("Missing API version header")
		}

		var payload map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}

		if payload["start_cursor"] == nil {
			fmt.Fprint(w, `{"results":[{"id":"rec-1"}],"has_more":true,"next_cursor":"cursor-2"}`)
			return
		}
		if payload["start_cursor"] != "cursor-2" {
			t.Errorf("Expected cursor-2, got %v", payload["start_cursor"])
		}
		fmt.Fprint(w, `{"results":[{"id":"rec-2"}],"has_more":false}`)
	}))
	defer server.Close()

	client := NewClient("secret")
	client.BaseURL = server.URL

	records, err := client.LoadRecords("db-1")
	if err != nil {
		t.Fatalf("LoadRecords failed: %v", err)
	}
	if requests != 2 {
		t.Errorf("Expected 2 requests, got %d", requests)
	}
	if len(records) != 2 || records[0].ID != "rec-1" || records[1].ID != "rec-2" {
		t.Errorf("Unexpected records: %+v", records)
	}
}

func TestCreateRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pages" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		var payload struct {
			Parent     map[string]interface{} `json:"parent"`
			Properties map[string]interface{} `json:"properties"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if payload.Parent["database_id"] != "db-1" {
			t.Errorf("Expected parent db-1, got %v", payload.Parent)
		}
		if _, ok := payload.Properties["Titel"]; !ok {
			t.Errorf("Expected a title property, got %v", payload.Properties)
		}
		fmt.Fprint(w, `{"id":"rec-new"}`)
	}))
	defer server.Close()

	client := NewClient("secret")
	client.BaseURL = server.URL

	id, err := client.CreateRecord("db-1", Properties{"Titel": Title{Text: "Inception"}})
	if err != nil {
		t.Fatalf("CreateRecord failed: %v", err)
	}
	if id != "rec-new" {
		t.Errorf("Expected rec-new, got %s", id)
	}
}

func TestRequestErrorCarriesStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"database not found"}`)
	}))
	defer server.Close()

	client := NewClient("secret")
	client.BaseURL = server.URL

	err := client.UpdateRecord("rec-1", Properties{"Rang": Number{}})
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("Expected a RequestError, got %v", err)
	}
	if reqErr.Status != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", reqErr.Status)
	}
	if reqErr.Message != "database not found" {
		t.Errorf("Expected remote message, got %q", reqErr.Message)
	}
}
