package backfill

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeState(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{"full name lowercase", "california", "CA", true},
		{"full name uppercase", "CALIFORNIA", "CA", true},
		{"full name mixed with padding", "  Texas ", "TX", true},
		{"two word state", "New York", "NY", true},
		{"collapsed inner whitespace", "new   york", "NY", true},
		{"code lowercase", "tx", "TX", true},
		{"code uppercase", "OK", "OK", true},
		{"dotted abbreviation", "D.C.", "DC", true},
		{"district of columbia", "District of Columbia", "DC", true},
		{"territory", "Puerto Rico", "PR", true},
		{"unknown name unchanged", "Narnia", "Narnia", false},
		{"unknown code unchanged", "ZZ", "ZZ", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeState(tt.raw)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestNormalizeLocation(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		want        string
		wantChanged bool
	}{
		{"city with state name", "Dallas, Texas", "Dallas, TX", true},
		{"already normalized", "Dallas, TX", "Dallas, TX", false},
		{"city that is also a state name", "Washington, DC", "Washington, DC", false},
		{"dotted state", "washington, d.c.", "washington, DC", true},
		{"bare state name", "texas", "TX", true},
		{"bare city", "Dallas", "Dallas", false},
		{"only the final part is a state", "Austin, Round Rock, texas", "Austin, Round Rock, TX", true},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := NormalizeLocation(tt.raw)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantChanged, changed)
		})
	}
}
