// Shared fixture construction for the test suite.
//
// buildFixture writes a complete, self-consistent six-file database
// instance (one heartbeat boundary, one of each record kind) to a
// temporary directory and returns its path prefix plus the byte offsets
// a correct reader must compute, so tests can assert against known
// values instead of re-deriving them.
package pipedb

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// fixture records the expected layout of a buildFixture database, for
// tests to assert against.
type fixture struct {
	prefix string

	annotationOffset int64
	pairOffset       int64
	memopOffset      int64
	fileSize         int64

	heartbeat uint64
}

func appendLE(buf []byte, v interface{}) []byte {
	switch x := v.(type) {
	case uint64:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], x)
		return append(buf, b[:]...)
	case uint32:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], x)
		return append(buf, b[:]...)
	case uint16:
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], x)
		return append(buf, b[:]...)
	case byte:
		return append(buf, x)
	default:
		panic("appendLE: unsupported type")
	}
}

// rawRecord writes one base struct in on-disk field order (spec.md §6.1).
func rawRecord(startTick, endTick, parentID, txID, displayID, va, pa uint64, opcode uint32, cpid, pairType, locID, flags uint16) []byte {
	var buf []byte
	buf = appendLE(buf, startTick)
	buf = appendLE(buf, endTick)
	buf = appendLE(buf, parentID)
	buf = appendLE(buf, txID)
	buf = appendLE(buf, displayID)
	buf = appendLE(buf, va)
	buf = appendLE(buf, pa)
	buf = appendLE(buf, opcode)
	buf = appendLE(buf, cpid)
	buf = appendLE(buf, pairType)
	buf = appendLE(buf, locID)
	buf = appendLE(buf, flags)
	return buf
}

// buildFixture writes:
//
//	tick [0,5)   annotation,  location 1, text "hello"
//	tick [5,10)  instruction, location 1, opcode 0xAB
//	tick [10,15) pair,        location 1 (pair_type 5): state=1(RUNNING), label="idle"
//	tick [15,20) memop,       location 1
//
// with heartbeat 10, so the pair and memop fall in the second bucket.
func buildFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	prefix := filepath.Join(dir, "run_")

	var record []byte

	annotationOffset := int64(len(record))
	record = append(record, rawRecord(0, 5, 0, 100, 0, 0, 0, 0, 0, 0, 1, TagAnnotation)...)
	text := "hello"
	record = appendLE(record, uint16(len(text)))
	record = append(record, text...)

	record = append(record, rawRecord(5, 10, 0, 101, 0, 0x1000, 0x2000, 0xAB, 0, 0, 1, TagInstruction)...)

	pairOffset := int64(len(record))
	record = append(record, rawRecord(10, 15, 0, 102, 0, 0, 0, 0, 0, 0, 1, TagPair)...)
	record = append(record, byte(1)) // state = 1 (RUNNING)
	label := "idle"
	record = appendLE(record, uint16(len(label)))
	record = append(record, label...)

	memopOffset := int64(len(record))
	record = append(record, rawRecord(15, 20, 0, 103, 0, 0x3000, 0x4000, 0, 0, 0, 1, TagMemoryOp)...)

	fileSize := int64(len(record))

	writeFile(t, prefix+"record.bin", record)

	var index []byte
	index = append(index, []byte("sparta_pipeout_version:0002\n")...)
	index = appendLE(index, uint64(10)) // heartbeat
	index = appendLE(index, uint64(annotationOffset))
	index = appendLE(index, uint64(pairOffset))
	index = appendLE(index, uint64(memopOffset)) // sentinel: last record's start
	writeFile(t, prefix+"index.bin", index)

	writeFile(t, prefix+"map.dat", []byte("1:5\n"))
	writeFile(t, prefix+"data.dat", []byte("5:2:state:1:0:label:1:1\n"))
	writeFile(t, prefix+"display_format.dat", []byte("5:DECIMAL:DECIMAL\n"))
	writeFile(t, prefix+"string_map.dat", []byte("5:0:1:RUNNING\n"))

	return fixture{
		prefix:           prefix,
		annotationOffset: annotationOffset,
		pairOffset:       pairOffset,
		memopOffset:      memopOffset,
		fileSize:         fileSize,
		heartbeat:        10,
	}
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func removeFile(path string) error { return os.Remove(path) }

func openFixture(t *testing.T) (*Reader, fixture) {
	t.Helper()
	fx := buildFixture(t)
	r, err := Open(fx.prefix, Config{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r, fx
}
