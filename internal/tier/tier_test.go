package tier

import "testing"

func TestOf(t *testing.T) {
	const atRisk = 1.1

	cases := []struct {
		name   string
		hf     float64
		want   Tier
	}{
		{"deep underwater", 0.2, Liquidatable},
		{"just under one", 0.999999, Liquidatable},
		{"exactly one", 1.0, AtRisk},
		{"inside at-risk band", 1.05, AtRisk},
		{"exactly at threshold", atRisk, AtRisk},
		{"just above threshold", atRisk + 0.0001, Healthy},
		{"very healthy", 50.0, Healthy},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Of(c.hf, atRisk); got != c.want {
				t.Errorf("Of(%v, %v) = %v, want %v", c.hf, atRisk, got, c.want)
			}
		})
	}
}

func TestTierString(t *testing.T) {
	cases := map[Tier]string{
		NotFound:     "not_found",
		Liquidatable: "liquidatable",
		AtRisk:       "at_risk",
		Healthy:      "healthy",
	}
	for tr, want := range cases {
		if got := tr.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", tr, got, want)
		}
	}
}
