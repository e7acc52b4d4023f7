package publish

import "testing"

func TestLetterAndRoman(t *testing.T) {
	cases := []struct {
		n             int
		letter, roman string
	}{
		{1, "A", "I"},
		{4, "D", "IV"},
		{26, "Z", "XXVI"},
		{27, "AA", "XXVII"},
		{52, "AZ", "LII"},
		{703, "AAA", "DCCIII"},
		{1994, "BXR", "MCMXCIV"},
		{0, "?", "?"},
		{-3, "?", "?"},
	}
	for _, c := range cases {
		if got := Letter(c.n); got != c.letter {
			t.Errorf("Letter(%d) = %q, want %q", c.n, got, c.letter)
		}
		if got := Roman(c.n); got != c.roman {
			t.Errorf("Roman(%d) = %q, want %q", c.n, got, c.roman)
		}
	}
}

func TestPrefix(t *testing.T) {
	cases := []struct {
		template string
		n        int
		want     string
	}{
		{"", 3, ""},
		{"Chapter %N", 3, "Chapter 3 "},
		{"Book %R:", 4, "Book IV: "},
		{"%a) ", 2, "b) "},
		{"%r.", 9, "ix. "},
		{"%A-%N", 28, "AB-28 "},
		{"100%% %x", 1, "100% %x "},
		{"%R", 0, "? "},
		{"trailing %", 1, "trailing % "},
	}
	for _, c := range cases {
		if got := Prefix(c.template, c.n); got != c.want {
			t.Errorf("Prefix(%q, %d) = %q, want %q", c.template, c.n, got, c.want)
		}
	}
}
