package units

import "testing"

const epsilon = 1e-9

func approxEqual(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	denom := b
	if denom == 0 {
		denom = 1
	}
	return d/absf(denom) < 1e-6 || d < epsilon
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func TestRoundTripLinearCategories(t *testing.T) {
	cases := []struct {
		cat     Category
		members []string
	}{
		{Temperature, []string{"K", "C", "F"}},
		{Pressure, []string{"kPa", "PSI", "Bar"}},
		{Speed, []string{"km/h", "mph"}},
		{Distance, []string{"km", "miles"}},
		{Volume, []string{"L", "gallons"}},
		{FlowRate, []string{"L/min", "gpm"}},
		{Acceleration, []string{"m/s2", "g"}},
	}
	for _, tc := range cases {
		for _, a := range tc.members {
			for _, b := range tc.members {
				x := 37.5
				canon, ok, err := ToCanonical(x, a)
				if err != nil || !ok {
					t.Fatalf("ToCanonical(%v,%s) err=%v ok=%v", x, a, err, ok)
				}
				viaB, ok, err := FromCanonical(canon, b)
				if err != nil || !ok {
					t.Fatalf("FromCanonical err=%v ok=%v", err, ok)
				}
				back, ok, err := ToCanonical(viaB, b)
				if err != nil || !ok {
					t.Fatalf("ToCanonical back err=%v ok=%v", err, ok)
				}
				if !approxEqual(back, canon) {
					t.Fatalf("%s: round trip %s->%s mismatch: %v vs %v", tc.cat, a, b, back, canon)
				}
			}
		}
	}
}

func TestReciprocalConversionExactForNonZero(t *testing.T) {
	mpg := 30.0
	l100, ok, err := Convert(mpg, "MPG", "L/100km")
	if err != nil || !ok {
		t.Fatalf("Convert err=%v ok=%v", err, ok)
	}
	back, ok, err := Convert(l100, "L/100km", "MPG")
	if err != nil || !ok {
		t.Fatalf("Convert back err=%v ok=%v", err, ok)
	}
	if !approxEqual(back, mpg) {
		t.Fatalf("reciprocal round trip: got %v want %v", back, mpg)
	}
}

func TestReciprocalZeroIsAbsent(t *testing.T) {
	if _, ok, _ := Convert(0, "MPG", "L/100km"); ok {
		t.Fatal("expected zero MPG to be absent, not converted")
	}
	if _, ok, _ := FromCanonical(0, "MPG"); ok {
		t.Fatal("expected zero canonical to be absent for reciprocal unit")
	}
}

func TestUnknownUnit(t *testing.T) {
	if _, _, err := Convert(1, "K", "bogus"); err != ErrUnknownUnit {
		t.Fatalf("expected ErrUnknownUnit, got %v", err)
	}
}

func TestConvertRejectsCrossCategory(t *testing.T) {
	if _, _, err := Convert(1, "K", "kPa"); err != ErrUnknownCategory {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
}

func TestTemperatureKnownPoints(t *testing.T) {
	// 0C == 273.15K == 32F
	k, _, _ := Convert(0, "C", "K")
	if !approxEqual(k, 273.15) {
		t.Fatalf("0C -> K = %v, want 273.15", k)
	}
	f, _, _ := Convert(0, "C", "F")
	if !approxEqual(f, 32) {
		t.Fatalf("0C -> F = %v, want 32", f)
	}
}

func TestCategoriesAndMembers(t *testing.T) {
	cats := Categories()
	if len(cats) != 8 {
		t.Fatalf("expected 8 categories, got %d", len(cats))
	}
	if cats[Temperature] != "K" {
		t.Fatalf("expected K as canonical temperature unit, got %s", cats[Temperature])
	}
	members := Members(Speed)
	if len(members) != 2 {
		t.Fatalf("expected 2 speed members, got %d", len(members))
	}
}
