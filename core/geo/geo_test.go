package geo

import (
	"math"
	"testing"
)

func TestHaversineKm(t *testing.T) {
	// Paris (48.8566, 2.3522) to London (51.5074, -0.1278) ~ 340-345 km
	d := HaversineKm(48.8566, 2.3522, 51.5074, -0.1278)
	if d < 330 || d > 355 {
		t.Fatalf("unexpected distance: %v", d)
	}
}

func TestHaversineKmZero(t *testing.T) {
	if d := HaversineKm(40.0, -105.0, 40.0, -105.0); d != 0 {
		t.Fatalf("identical points should be 0 km apart, got %v", d)
	}
}

func TestHaversineKmEquatorDegree(t *testing.T) {
	// 0.01 degrees of longitude at the equator is about 1.11 km.
	d := HaversineKm(0, 0, 0, 0.01)
	if math.Abs(d-1.112) > 0.01 {
		t.Fatalf("expected ~1.112 km, got %v", d)
	}
}

func TestHaversineKmSymmetric(t *testing.T) {
	a := HaversineKm(10, 20, 30, 40)
	b := HaversineKm(30, 40, 10, 20)
	if math.Abs(a-b) > 1e-9 {
		t.Fatalf("distance should be symmetric: %v vs %v", a, b)
	}
}
