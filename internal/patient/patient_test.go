package patient

import "testing"

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name string
		p    Patient
		want string
	}{
		{"first name", Patient{FirstName: "Camille", Email: "c@example.com"}, "Camille"},
		{"blank first name", Patient{FirstName: "  ", Email: "jules.martin@example.com"}, "jules.martin"},
		{"malformed email", Patient{Email: "nobody"}, "nobody"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.DisplayName(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
