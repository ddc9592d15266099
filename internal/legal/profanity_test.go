package legal

import "testing"

func TestMaskProfanities(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Mon patron est un connard !", "Mon patron est un ******* !"},
		{"Putain de contrat", "****** de contrat"},
		{"MERDE merde", "***** *****"},
		{"Enfoiré, vraiment", "*******, vraiment"},
		{"Mon contrat de travail", "Mon contrat de travail"},
		{"une conseillère prud'homale", "une conseillère prud'homale"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := MaskProfanities(tt.in); got != tt.want {
			t.Errorf("MaskProfanities(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
