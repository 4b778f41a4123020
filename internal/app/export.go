package app

import "strings"

// EncodeCSV renders agents as a one-column CSV with header "ua". Every
// field is quoted and embedded quotes are doubled; lines end with "\n"
// except the last.
func EncodeCSV(agents []string) []byte {
	var b strings.Builder
	b.WriteString("ua")
	for _, a := range agents {
		b.WriteString("\n\"")
		b.WriteString(strings.ReplaceAll(a, `"`, `""`))
		b.WriteByte('"')
	}
	return []byte(b.String())
}
