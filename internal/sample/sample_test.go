package sample

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestValue_KnownNames(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"shopDomain", "example-shop.myshopify.com"},
		{"customerEmail", "customer@example.com"},
		{"subject", "Sample Subject"},
		{"message", "This is a sample message content"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Value(tt.name); got != tt.want {
				t.Errorf("Value(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestValue_ExportDateIsCurrent(t *testing.T) {
	want := time.Now().Format("1/2/2006")
	if got := Value("exportDate"); got != want {
		t.Errorf("Value(exportDate) = %q, want %q", got, want)
	}
}

func TestValue_FallbackPrefix(t *testing.T) {
	for _, name := range []string{"htmlReport", "reportContent", "orderId", "ShopDomain"} {
		got := Value(name)
		if got != "Sample "+name {
			t.Errorf("Value(%q) = %q, want %q", name, got, "Sample "+name)
		}
	}
}

func TestValue_MatchIsCaseSensitive(t *testing.T) {
	// A near-miss on case must not hit the curated table.
	if got := Value("shopdomain"); !strings.HasPrefix(got, "Sample ") {
		t.Errorf("Value(shopdomain) = %q, expected generic fallback", got)
	}
}

func TestSynthesize_Deterministic(t *testing.T) {
	names := []string{"shopDomain", "customerEmail", "subject", "somethingElse"}

	first := Synthesize(names)
	second := Synthesize(names)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("consecutive runs differ: %v vs %v", first, second)
	}
	if len(first) != len(names) {
		t.Errorf("got %d values, want %d", len(first), len(names))
	}
}

func TestSynthesize_Empty(t *testing.T) {
	if got := Synthesize(nil); len(got) != 0 {
		t.Errorf("Synthesize(nil) = %v, want empty map", got)
	}
}
