package models

import (
	"testing"
	"time"
)

func validPolicy() AlertPolicy {
	upper := 1.5
	return AlertPolicy{
		ID:              "risk_load",
		Name:            "Workload ratio outside safe band",
		Indicator:       IndicatorACWRRatio,
		Comparator:      CompareOutsideBand,
		Threshold:       0.8,
		UpperThreshold:  &upper,
		ConsecutiveDays: 1,
		CooldownHours:   24,
		ResolveCycles:   1,
		Severity:        SeverityWarning,
	}
}

func TestAlertPolicy_Validate(t *testing.T) {
	p := validPolicy()
	if err := p.Validate(); err != nil {
		t.Fatalf("Valid policy rejected: %v", err)
	}

	t.Run("missing id", func(t *testing.T) {
		p := validPolicy()
		p.ID = ""
		if err := p.Validate(); err == nil {
			t.Error("Should reject policy without id")
		}
	})

	t.Run("zscore without metrics", func(t *testing.T) {
		p := validPolicy()
		p.Indicator = IndicatorZScore
		p.MetricKeys = nil
		if err := p.Validate(); err == nil {
			t.Error("Should reject zscore policy without metric keys")
		}
	})

	t.Run("band upper below lower", func(t *testing.T) {
		p := validPolicy()
		bad := 0.5
		p.UpperThreshold = &bad
		if err := p.Validate(); err == nil {
			t.Error("Should reject inverted band")
		}
	})

	t.Run("zero consecutive days", func(t *testing.T) {
		p := validPolicy()
		p.ConsecutiveDays = 0
		if err := p.Validate(); err == nil {
			t.Error("Should reject consecutive_days < 1")
		}
	})

	t.Run("unknown comparator", func(t *testing.T) {
		p := validPolicy()
		p.Comparator = Comparator("between")
		if err := p.Validate(); err == nil {
			t.Error("Should reject unknown comparator")
		}
	})
}

func TestAlertPolicy_Matches(t *testing.T) {
	p := validPolicy()

	cases := []struct {
		name  string
		value float64
		want  bool
	}{
		{"below band", 0.5, true},
		{"lower edge", 0.8, false},
		{"inside band", 1.1, false},
		{"upper edge", 1.5, false},
		{"above band", 1.81, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := p.Matches(tc.value); got != tc.want {
				t.Errorf("Matches(%v) = %v, want %v", tc.value, got, tc.want)
			}
		})
	}

	t.Run("abs comparator", func(t *testing.T) {
		z := AlertPolicy{Comparator: CompareAbsGTE, Threshold: 2.0}
		if !z.Matches(-2.4) {
			t.Error("abs_gte should match large negative values")
		}
		if z.Matches(1.9) {
			t.Error("abs_gte should not match values inside the threshold")
		}
	})
}

func TestAlertPolicy_SeverityFor(t *testing.T) {
	p := validPolicy()
	p.SeverityBands = []SeverityBand{
		{Comparator: CompareGT, Threshold: 1.5, Severity: SeverityError},
		{Comparator: CompareLT, Threshold: 0.8, Severity: SeverityWarning},
	}

	if got := p.SeverityFor(1.9); got != SeverityError {
		t.Errorf("SeverityFor(1.9) = %s, want error", got)
	}
	if got := p.SeverityFor(0.5); got != SeverityWarning {
		t.Errorf("SeverityFor(0.5) = %s, want warning", got)
	}
	if got := p.SeverityFor(1.2); got != SeverityWarning {
		t.Errorf("SeverityFor should fall back to policy default, got %s", got)
	}
}

func TestAlert_Active(t *testing.T) {
	now := time.Now()
	a := Alert{Status: AlertOpen, OpenedAt: now}
	if !a.Active() {
		t.Error("Open alert should be active")
	}

	a.Status = AlertAcknowledged
	if !a.Active() {
		t.Error("Acknowledged alert should be active")
	}

	a.Status = AlertResolved
	closed := now.Add(time.Hour)
	a.ClosedAt = &closed
	if a.Active() {
		t.Error("Resolved alert should not be active")
	}
}
