// Heartbeat index: a fixed-stride mapping from tick to record-file byte
// offset (spec.md §4.4), used to seek to the first record whose end_tick
// falls in or after a requested tick without scanning the whole file. The
// index file is reopened on demand to pick up writer-side growth.
package pipedb

import (
	"fmt"
	"strconv"
	"strings"
)

// indexHeaderSize is the fixed ASCII header width: "sparta_pipeout_version:NNNN\n".
const indexHeaderSize = 28
const indexHeaderPrefix = "sparta_pipeout_version:"

// supportedVersion is the only index/record format version this decoder
// accepts in full (spec.md §4.3 "Format versions" permits refusing other
// versions with UnsupportedVersion — see DESIGN.md).
const supportedVersion = 2

// heartbeatIndex holds the parsed index file: version, heartbeat stride,
// and the offset table (spec.md §3.1, §6.1). Offsets[k] is the byte
// offset of the first record whose end_tick falls in bucket
// [k*Heartbeat, (k+1)*Heartbeat); the final entry is a sentinel pointing
// at the last record's start.
type heartbeatIndex struct {
	s         *stream
	Version   uint32
	Heartbeat uint64
	Offsets   []int64
}

func openHeartbeatIndex(path string) (*heartbeatIndex, error) {
	s, err := openStream(path)
	if err != nil {
		return nil, err
	}

	h := &heartbeatIndex{s: s}
	if err := h.parseHeader(); err != nil {
		s.close()
		return nil, err
	}
	if h.Heartbeat == 0 {
		s.close()
		return nil, wrap("open heartbeat index", KindCorruptOrEmpty, fmt.Errorf("heartbeat stride must be > 0"))
	}
	if err := h.loadOffsets(); err != nil {
		s.close()
		return nil, err
	}
	return h, nil
}

func (h *heartbeatIndex) parseHeader() error {
	buf := make([]byte, indexHeaderSize)
	if err := h.s.readRaw(buf); err != nil {
		return wrap("parse index header", KindCorruptOrEmpty, err)
	}
	line := string(buf)
	if !strings.HasPrefix(line, indexHeaderPrefix) {
		return wrap("parse index header", KindCorruptOrEmpty, fmt.Errorf("missing %q prefix", indexHeaderPrefix))
	}
	versionField := strings.TrimSuffix(line[len(indexHeaderPrefix):], "\n")
	v, err := strconv.ParseUint(strings.TrimSpace(versionField), 10, 32)
	if err != nil {
		return wrap("parse index header", KindCorruptOrEmpty, err)
	}
	h.Version = uint32(v)
	if h.Version != supportedVersion {
		return wrap("parse index header", KindUnsupportedVersion, fmt.Errorf("version %d", h.Version))
	}

	heartbeat, err := h.s.readUint64()
	if err != nil {
		return wrap("parse index header", KindCorruptOrTruncated, err)
	}
	h.Heartbeat = heartbeat
	return nil
}

// loadOffsets reads every 8-byte offset entry still unread, appending
// them to h.Offsets. Called at open and again by refresh() when the
// index file has grown (spec.md §4.5 update loop).
func (h *heartbeatIndex) loadOffsets() error {
	for {
		entryStart := h.s.tell()
		off, err := h.s.readUint64()
		if err != nil {
			if isKind(err, KindCorruptOrTruncated) {
				// EOF, possibly inside a partially written entry: rewind to
				// the entry boundary so the next refresh reads it whole.
				return h.s.seek(entryStart)
			}
			return err
		}
		h.Offsets = append(h.Offsets, int64(off))
	}
}

// refresh reopens the index stream (picking up appended bytes) and loads
// any new offset entries.
func (h *heartbeatIndex) refresh() error {
	if err := h.s.reopen(); err != nil {
		return err
	}
	return h.loadOffsets()
}

// offsetFor implements offset_for(tick) (spec.md §4.4): seek to entry
// floor(tick/Heartbeat); if the tick exceeds the index's coverage, return
// recordFileSize to signal "scan to end".
func (h *heartbeatIndex) offsetFor(tick uint64, recordFileSize int64) int64 {
	bucket := tick / h.Heartbeat
	// The last entry is the sentinel, not a bucket boundary.
	if len(h.Offsets) < 2 || int64(bucket) >= int64(len(h.Offsets)-1) {
		return recordFileSize
	}
	return h.Offsets[bucket]
}

// sentinelOffset returns the byte offset of the last record's start, or
// -1 if the index has no sentinel entry yet.
func (h *heartbeatIndex) sentinelOffset() int64 {
	if len(h.Offsets) == 0 {
		return -1
	}
	return h.Offsets[len(h.Offsets)-1]
}

func (h *heartbeatIndex) close() error { return h.s.close() }
