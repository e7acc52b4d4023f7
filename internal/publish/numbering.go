package publish

import (
	"strconv"
	"strings"
)

// badNumber is rendered for numbers that have no letter or roman form.
const badNumber = "?"

// Letter renders n in bijective base 26: 1 is A, 26 is Z, 27 is AA.
func Letter(n int) string {
	if n <= 0 {
		return badNumber
	}
	var buf []byte
	for n > 0 {
		n--
		buf = append(buf, byte('A'+n%26))
		n /= 26
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf)
}

var romans = []struct {
	value  int
	symbol string
}{
	{1000, "M"}, {900, "CM"}, {500, "D"}, {400, "CD"},
	{100, "C"}, {90, "XC"}, {50, "L"}, {40, "XL"},
	{10, "X"}, {9, "IX"}, {5, "V"}, {4, "IV"}, {1, "I"},
}

// Roman renders n as an upper-case roman numeral.
func Roman(n int) string {
	if n <= 0 {
		return badNumber
	}
	var b strings.Builder
	for _, r := range romans {
		for n >= r.value {
			b.WriteString(r.symbol)
			n -= r.value
		}
	}
	return b.String()
}

// Prefix expands a title prefix template for the n-th title of a
// category:
//
//	%N  arabic numeral
//	%A  upper-case letter, %a lower-case
//	%R  upper-case roman numeral, %r lower-case
//	%%  a literal percent sign
//
// A non-empty result always ends with a space so the title can follow it
// directly.
func Prefix(template string, n int) string {
	var b strings.Builder
	for i := 0; i < len(template); i++ {
		c := template[i]
		if c != '%' || i+1 == len(template) {
			b.WriteByte(c)
			continue
		}
		i++
		switch template[i] {
		case 'N':
			b.WriteString(strconv.Itoa(n))
		case 'A':
			b.WriteString(Letter(n))
		case 'a':
			b.WriteString(strings.ToLower(Letter(n)))
		case 'R':
			b.WriteString(Roman(n))
		case 'r':
			b.WriteString(strings.ToLower(Roman(n)))
		case '%':
			b.WriteByte('%')
		default:
			b.WriteByte('%')
			b.WriteByte(template[i])
		}
	}
	out := b.String()
	if out != "" && !strings.HasSuffix(out, " ") {
		out += " "
	}
	return out
}
