package credentials

import "testing"

func TestStore_Valid(t *testing.T) {
	tests := []struct {
		name string
		s    Store
		want bool
	}{
		{"complete", New(42, "AUTH", "token"), true},
		{"zero user id", New(0, "AUTH", "token"), false},
		{"empty authorize", New(42, "", "token"), false},
		{"zero value", Store{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.s.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}
