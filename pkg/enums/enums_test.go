package enums

import "testing"

func TestParseAcceptsOnlyKnownValues(t *testing.T) {
	if got, err := ParsePlanStatus("active"); err != nil || got != PlanStatusActive {
		t.Fatalf("expected active plan status, got %q (%v)", got, err)
	}
	if _, err := ParseBillingInterval("fortnightly"); err == nil {
		t.Fatalf("expected unknown interval to be rejected")
	}
	if _, err := ParseRole(" admin"); err == nil {
		t.Fatalf("expected untrimmed role to be rejected")
	}
}

func TestIsValid(t *testing.T) {
	if !ViewModeWorksheet.IsValid() {
		t.Fatalf("worksheet should be a valid view mode")
	}
	if ImportStatus("paused").IsValid() {
		t.Fatalf("paused is not an import status")
	}
}
