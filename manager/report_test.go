package manager

import (
	"strings"
	"testing"
)

func TestRunReportString(t *testing.T) {
	report := NewRunReport()
	if report.HasFindings() {
		t.Fatal("Expected a fresh report to have no findings")
	}
	if !strings.Contains(report.String(), "Everything went fine :)") {
		t.Errorf("Unexpected empty-report text: %q", report.String())
	}

	report.Added = append(report.Added, "Inception (2010)")
	report.AddError("Skipping /movies/broken: no title found")

	if !report.HasFindings() {
		t.Fatal("Expected findings after adding entries")
	}
	text := report.String()
	if !strings.Contains(text, "Added:") || !strings.Contains(text, "Inception (2010)") {
		t.Errorf("Expected the added section, got %q", text)
	}
	if !strings.Contains(text, "Errors:") {
		t.Errorf("Expected the errors section, got %q", text)
	}
	if strings.Contains(text, "Everything went fine") {
		t.Errorf("Did not expect the empty-report text, got %q", text)
	}
}
