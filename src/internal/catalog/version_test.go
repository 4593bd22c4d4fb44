package catalog

import "testing"

func TestIsVersionNewer(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want bool
	}{
		{"patch newer", "1.2.0", "1.1.9", true},
		{"equal", "1.0.0", "1.0.0", false},
		{"unset baseline", "1.0.0", "", true},
		{"both unset", "", "", false},
		{"a unset", "", "1.0.0", false},
		{"missing segments treated as zero", "1.2", "1.2.0", false},
		{"longer wins when nonzero", "1.2.1", "1.2", true},
		{"major beats minor", "2.0", "1.9.9", true},
		{"numeric not lexicographic", "1.10.0", "1.9.0", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsVersionNewer(tt.a, tt.b); got != tt.want {
				t.Errorf("IsVersionNewer(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
