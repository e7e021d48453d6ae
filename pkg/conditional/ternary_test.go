package conditional

import "testing"

func TestTernary(t *testing.T) {
	if got := Ternary(true, "a", "b"); got != "a" {
		t.Fatalf("Ternary(true) = %q, want a", got)
	}
	if got := Ternary(false, 1, 2); got != 2 {
		t.Fatalf("Ternary(false) = %d, want 2", got)
	}
}

func TestCoalesce(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want string
	}{
		{"first set", []string{"x", "y"}, "x"},
		{"skips empty", []string{"", "", "z"}, "z"},
		{"all empty", []string{"", ""}, ""},
		{"none", nil, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Coalesce(tc.in...); got != tc.want {
				t.Fatalf("Coalesce(%v) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
