package domain

import "testing"

func TestDollarsToCents(t *testing.T) {
	tests := []struct {
		name    string
		in      float64
		want    int64
		wantErr bool
	}{
		{"whole dollars", 410.0, 41000, false},
		{"one decimal", 410.5, 41050, false},
		{"two decimals", 410.55, 41055, false},
		{"float artifact", 1.10, 110, false},
		{"another artifact", 29.35, 2935, false},
		{"zero", 0, 0, false},
		{"three decimals", 410.555, 0, true},
		{"sub-cent", 0.001, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DollarsToCents(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("DollarsToCents(%v) expected error, got %d", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("DollarsToCents(%v) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("DollarsToCents(%v) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestCentsToDollars(t *testing.T) {
	if got := CentsToDollars(41055); got != 410.55 {
		t.Errorf("CentsToDollars(41055) = %v, want 410.55", got)
	}
	if got := CentsToDollars(0); got != 0 {
		t.Errorf("CentsToDollars(0) = %v, want 0", got)
	}
}
