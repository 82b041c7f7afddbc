// Colon-delimited sidecar descriptor file reading, shared by the schema
// resolver's four descriptor tables (spec.md §4.1, §6.1).
package pipedb

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

// readDescriptorLines opens path, fails with KindCorruptOrEmpty if it is
// missing or zero-size (spec.md §4.1), and returns each non-empty line
// tokenized on ':' with trailing whitespace trimmed.
func readDescriptorLines(path string, bufSize int) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, wrap("open descriptor "+path, KindCorruptOrEmpty, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, wrap("stat descriptor "+path, KindIO, err)
	}
	if info.Size() == 0 {
		return nil, wrap("open descriptor "+path, KindCorruptOrEmpty, nil)
	}

	scanner := bufio.NewScanner(f)
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	scanner.Buffer(make([]byte, bufSize), bufSize)

	var lines [][]string
	for scanner.Scan() {
		text := strings.TrimRight(scanner.Text(), " \t\r")
		if text == "" {
			continue
		}
		lines = append(lines, strings.Split(text, ":"))
	}
	if err := scanner.Err(); err != nil {
		return nil, wrap("scan descriptor "+path, KindIO, err)
	}
	return lines, nil
}

// parseUint parses a decimal descriptor token, failing with
// KindCorruptOrTruncated on malformed input (a descriptor line that
// doesn't match the schema §6.1 lays out is effectively a truncated/
// corrupt sidecar record).
func parseUint(tok string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(tok, 10, bits)
	if err != nil {
		return 0, wrap("parse descriptor field", KindCorruptOrTruncated, err)
	}
	return v, nil
}
