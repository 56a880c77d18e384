// Package field implements the row encoding of profile table files: one row
// per line, fields joined by '@', with '@', newline and backslash escaped.
package field

import "strings"

// Separator joins the fields of one encoded row.
const Separator = "@"

var (
	escaper   = strings.NewReplacer(`\`, `\\`, "\n", `\n`, "@", `\s`)
	unescaper = strings.NewReplacer(`\\`, `\`, `\n`, "\n", `\s`, "@")
)

// Escape encodes a raw value for storage in a table file.
func Escape(s string) string {
	return escaper.Replace(s)
}

// Unescape decodes a stored value.
func Unescape(s string) string {
	return unescaper.Replace(s)
}

// Split decodes one stored line into its raw field values.
func Split(line string) []string {
	parts := strings.Split(line, Separator)
	for i, p := range parts {
		parts[i] = Unescape(p)
	}
	return parts
}

// Join encodes raw field values into one stored line (without newline).
func Join(values []string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = Escape(v)
	}
	return strings.Join(parts, Separator)
}
