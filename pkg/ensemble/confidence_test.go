package ensemble

import "testing"

func TestConfidence(t *testing.T) {
	tests := []struct {
		name       string
		succeeded  int
		configured int
		agreement  float64
		threshold  float64
		wantExact  float64
		wantRange  bool
	}{
		{name: "all agree", succeeded: 3, configured: 3, agreement: 1, threshold: 0.8, wantExact: 1},
		{name: "single provider", succeeded: 1, configured: 1, agreement: 1, threshold: 0.8, wantExact: 1},
		{name: "none", succeeded: 0, configured: 3, agreement: 1, threshold: 0.8, wantExact: 0},
		{name: "no providers configured", succeeded: 0, configured: 0, agreement: 1, wantExact: 0},
		{name: "all succeed but disagree", succeeded: 3, configured: 3, agreement: 0.4, threshold: 0.8, wantRange: true},
		{name: "partial", succeeded: 2, configured: 3, agreement: 1, threshold: 0.8, wantRange: true},
		{name: "partial disagreeing", succeeded: 1, configured: 5, agreement: 0, threshold: 1, wantRange: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Confidence(tt.succeeded, tt.configured, tt.agreement, tt.threshold)
			if tt.wantRange {
				if got <= 0 || got >= 1 {
					t.Errorf("Confidence = %v, want in (0, 1)", got)
				}
				return
			}
			if got != tt.wantExact {
				t.Errorf("Confidence = %v, want %v", got, tt.wantExact)
			}
		})
	}
}

func TestConfidenceMonotonic(t *testing.T) {
	// Falls with agreement.
	prev := 2.0
	for _, a := range []float64{1, 0.75, 0.5, 0.25, 0} {
		got := Confidence(3, 3, a, 0.8)
		if got >= prev {
			t.Errorf("agreement %v: confidence %v did not decrease (prev %v)", a, got, prev)
		}
		prev = got
	}

	// Falls with the success ratio.
	prev = 2.0
	for k := 5; k >= 1; k-- {
		got := Confidence(k, 5, 1, 0.8)
		if got >= prev {
			t.Errorf("k=%d: confidence %v did not decrease (prev %v)", k, got, prev)
		}
		prev = got
	}
}

func TestConfidenceThresholdPenalty(t *testing.T) {
	withPenalty := Confidence(2, 3, 1, 0.8)
	without := Confidence(2, 3, 1, 0)
	if withPenalty >= without {
		t.Errorf("below-threshold ratio should be penalised: %v >= %v", withPenalty, without)
	}
	if above := Confidence(2, 3, 1, 0.5); above != without {
		t.Errorf("ratio above threshold should not be penalised: %v != %v", above, without)
	}
}

func TestConfidenceClampsInputs(t *testing.T) {
	if got := Confidence(5, 3, 2, 0.5); got != 1 {
		t.Errorf("Confidence = %v, want clamped 1", got)
	}
	if got := Confidence(3, 3, -1, 0.5); got <= 0 || got > 0.5 {
		t.Errorf("Confidence = %v, want (0, 0.5]", got)
	}
}
