package manager

import (
	"fmt"
	"log"
	"strings"
	"time"
)

// RunReport accumulates the outcome of one run. The engine always produces a
// report, even when individual items failed along the way.
type RunReport struct {
	StartedAt       time.Time
	Duration        time.Duration
	Added           []string
	Patched         []string
	BackedUp        []string
	PrunedRemoteIDs []string
	Wishlist        []string
	Errors          []string
}

func NewRunReport() *RunReport {
	return &RunReport{StartedAt: time.Now()}
}

// AddError logs and records a per-item failure.
func (r *RunReport) AddError(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	log.Print(message)
	r.Errors = append(r.Errors, message)
}

// Finish stamps the total run duration.
func (r *RunReport) Finish() {
	r.Duration = time.Since(r.StartedAt)
}

// HasFindings reports whether anything happened that is worth notifying
// about.
func (r *RunReport) HasFindings() bool {
	return len(r.Added) > 0 || len(r.Patched) > 0 || len(r.BackedUp) > 0 ||
		len(r.PrunedRemoteIDs) > 0 || len(r.Wishlist) > 0 || len(r.Errors) > 0
}

func (r *RunReport) String() string {
	lines := []string{"Run report"}
	if !r.HasFindings() {
		lines = append(lines, "Everything went fine :)")
	}
	appendSection := func(header string, items []string) {
		if len(items) == 0 {
			return
		}
		lines = append(lines, header+":")
		for _, item := range items {
			lines = append(lines, "\t- "+item)
		}
	}
	appendSection("Added", r.Added)
	appendSection("Patched", r.Patched)
	appendSection("Backed up", r.BackedUp)
	appendSection("Pruned remote records", r.PrunedRemoteIDs)
	appendSection("Wishlist (remote only)", r.Wishlist)
	appendSection("Errors", r.Errors)
	return strings.Join(lines, "\n")
}
