package domain

import "testing"

func TestWorseHealth(t *testing.T) {
	cases := []struct {
		a, b, want string
	}{
		{HealthStatusOK, HealthStatusOK, HealthStatusOK},
		{"", "", HealthStatusOK},
		{HealthStatusOK, HealthStatusDegraded, HealthStatusDegraded},
		{HealthStatusError, HealthStatusDegraded, HealthStatusError},
		{HealthStatusDegraded, HealthStatusError, HealthStatusError},
		{HealthStatusOK, "warming", HealthStatusDegraded},
	}
	for _, tc := range cases {
		if got := WorseHealth(tc.a, tc.b); got != tc.want {
			t.Fatalf("WorseHealth(%q, %q) = %q, want %q", tc.a, tc.b, got, tc.want)
		}
	}
}
