package config

import (
	"bytes"
	"regexp"
)

var (
	lineComment  = regexp.MustCompile(`^\s*//`)
	blockStart   = regexp.MustCompile(`^\s*/\*`)
	blockEndLine = regexp.MustCompile(`\*/\s*$`)
)

// StripComments removes whole-line comments from a JSON configuration file.
// A line starting with // is dropped. A line starting with /* drops every
// line up to and including the next one ending with */. Comment markers
// inside string values on such lines are not distinguished.
func StripComments(src []byte) []byte {
	lines := bytes.Split(src, []byte("\n"))
	out := make([][]byte, 0, len(lines))

	inBlock := false
	for _, line := range lines {
		switch {
		case inBlock:
			if blockEndLine.Match(line) {
				inBlock = false
			}
		case blockStart.Match(line):
			// the opening marker itself cannot close the block
			rest := bytes.TrimLeft(line, " \t\n\f\r")[2:]
			inBlock = !blockEndLine.Match(rest)
		case lineComment.Match(line):
		default:
			out = append(out, line)
		}
	}
	return bytes.Join(out, []byte("\n"))
}
