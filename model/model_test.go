package model

import (
	"reflect"
	"testing"
)

func TestGenerateShareToken(t *testing.T) {
	a, err := GenerateShareToken()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, err := GenerateShareToken()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(a) != 32 || len(b) != 32 {
		t.Fatalf("tokens must be 32 hex chars: %q %q", a, b)
	}
	if a == b {
		t.Fatalf("tokens must be unique")
	}
}

func TestNormalizeTagName(t *testing.T) {
	if got := NormalizeTagName("  Hiking "); got != "hiking" {
		t.Fatalf("unexpected: %q", got)
	}
	if got := NormalizeTagName("   "); got != "" {
		t.Fatalf("blank tag should normalize to empty, got %q", got)
	}
}

func TestSplitTagNames(t *testing.T) {
	got := SplitTagNames("Hiking, mountains ,HIKING,, trail")
	want := []string{"hiking", "mountains", "trail"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if SplitTagNames("") != nil {
		t.Fatalf("empty input should yield no tags")
	}
}

func TestDistanceMiles(t *testing.T) {
	r := Route{DistanceKm: 10}
	if m := r.DistanceMiles(); m < 6.2 || m > 6.22 {
		t.Fatalf("unexpected miles: %v", m)
	}
}
