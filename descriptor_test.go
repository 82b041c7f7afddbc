package pipedb

import (
	"path/filepath"
	"testing"
)

func TestReadDescriptorLinesTokenizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "map.dat")
	writeFile(t, path, []byte("1:5\n2:6\n\n3:7\n"))

	lines, err := readDescriptorLines(path, 0)
	if err != nil {
		t.Fatalf("readDescriptorLines: %v", err)
	}
	want := [][]string{{"1", "5"}, {"2", "6"}, {"3", "7"}}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d: %v", len(lines), len(want), lines)
	}
	for i := range want {
		if len(lines[i]) != len(want[i]) || lines[i][0] != want[i][0] || lines[i][1] != want[i][1] {
			t.Errorf("line %d = %v, want %v", i, lines[i], want[i])
		}
	}
}

func TestReadDescriptorLinesMissingFile(t *testing.T) {
	dir := t.TempDir()
	if _, err := readDescriptorLines(filepath.Join(dir, "nope.dat"), 0); err == nil || !isKind(err, KindCorruptOrEmpty) {
		t.Fatalf("missing descriptor: got %v, want KindCorruptOrEmpty", err)
	}
}

func TestReadDescriptorLinesEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.dat")
	writeFile(t, path, nil)
	if _, err := readDescriptorLines(path, 0); err == nil || !isKind(err, KindCorruptOrEmpty) {
		t.Fatalf("empty descriptor: got %v, want KindCorruptOrEmpty", err)
	}
}

func TestParseUintMalformed(t *testing.T) {
	if _, err := parseUint("not-a-number", 32); err == nil || !isKind(err, KindCorruptOrTruncated) {
		t.Fatalf("parseUint malformed: got %v, want KindCorruptOrTruncated", err)
	}
}
