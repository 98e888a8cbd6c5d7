package contractor

import "testing"

func TestDeriveCode(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"multi-word initials", "Constructora Pacifico Norte", "CPN"},
		{"diacritics stripped", "PEMEX División Sur", "PDS"},
		{"single word truncated", "Halliburton", "HALL"},
		{"short single word", "ICA", "ICA"},
		{"more than four words capped", "Grupo Industrial del Golfo de Mexico", "GIDG"},
		{"punctuation ignored", "Pérez & Gómez, S.A.", "PGS"},
		{"digits kept", "Zona 7 Servicios", "Z7S"},
		{"empty name", "", ""},
		{"only symbols", "&&&", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeriveCode(tc.in); got != tc.want {
				t.Errorf("DeriveCode(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
