package geo

import (
	"math"
	"testing"
)

func TestHaversineReferenceValues(t *testing.T) {
	// One degree of longitude at the equator is ~111.19 km with R=6371.
	d := HaversineKm(0, 0, 0, 1)
	if math.Abs(d-111.19) > 0.1 {
		t.Fatalf("equator degree: got %.4f km, want ~111.19", d)
	}

	if d := HaversineKm(-12.0464, -77.0428, -12.0464, -77.0428); d != 0 {
		t.Fatalf("identical points: got %.6f, want 0", d)
	}

	// Symmetry
	a := HaversineKm(-12.0464, -77.0428, -12.1211, -77.0300)
	b := HaversineKm(-12.1211, -77.0300, -12.0464, -77.0428)
	if math.Abs(a-b) > 1e-9 {
		t.Fatalf("asymmetric distance: %.9f vs %.9f", a, b)
	}
	if a <= 0 {
		t.Fatalf("distance not positive: %.6f", a)
	}
}

func TestPathDistance(t *testing.T) {
	if d := PathDistanceKm(nil); d != 0 {
		t.Fatalf("empty path: got %v", d)
	}
	if d := PathDistanceKm([][2]float64{{-12.05, -77.04}}); d != 0 {
		t.Fatalf("single point: got %v", d)
	}

	pts := [][2]float64{
		{-12.0464, -77.0428},
		{-12.0500, -77.0400},
		{-12.0550, -77.0380},
	}
	want := HaversineKm(pts[0][0], pts[0][1], pts[1][0], pts[1][1]) +
		HaversineKm(pts[1][0], pts[1][1], pts[2][0], pts[2][1])
	got := PathDistanceKm(pts)
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("path distance: got %.9f, want %.9f", got, want)
	}
}

func TestRoundKm(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{0, 0},
		{1.005, 1.0}, // float repr of 1.005 is just under; rounds down
		{12.3456, 12.35},
		{111.194926, 111.19},
	}
	for _, c := range cases {
		if got := RoundKm(c.in); got != c.want {
			t.Errorf("RoundKm(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}
