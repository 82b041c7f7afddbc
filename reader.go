// Reader is the package's main entry point: it owns the record stream,
// the heartbeat index, and the schema tables, and exposes the streaming
// query API (spec.md §6.3). It is not safe for concurrent queries; a
// reentrant call while one is already in flight fails with KindBusy
// rather than blocking or racing (spec.md §5).
package pipedb

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Config holds reader configuration (SPEC_FULL.md §3.3).
type Config struct {
	// ChunkBudget caps the number of heartbeat chunks resident in the
	// windowed cache at once. Default 8.
	ChunkBudget int
	// ReadBuffer sizes the bufio.Scanner buffer used to read the
	// descriptor files. Record and index reads do not use it. Default 64KiB.
	ReadBuffer int
	// HashAlgorithm selects the string-intern hash: HashXXHash3 (default),
	// HashFNV1a, or HashBlake2b.
	HashAlgorithm int
	// Logger receives structured warnings (truncation, schema anomalies,
	// update detection). Defaults to a no-op logger.
	Logger *zap.Logger
	// PollInterval is the minimum spacing between IsUpdated's internal
	// stat calls. Default 250ms.
	PollInterval time.Duration
}

func (c *Config) setDefaults() {
	if c.ChunkBudget <= 0 {
		c.ChunkBudget = 8
	}
	if c.ReadBuffer <= 0 {
		c.ReadBuffer = 64 * 1024
	}
	if c.HashAlgorithm == 0 {
		c.HashAlgorithm = HashXXHash3
	}
	if c.Logger == nil {
		c.Logger = nopLogger()
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 250 * time.Millisecond
	}
}

// Reader reads one transaction database instance identified by a path
// prefix (spec.md §6.1). It is not safe for concurrent queries — see
// Busy in errors.go.
type Reader struct {
	prefix string
	config Config
	logger *zap.Logger

	record *stream
	index  *heartbeatIndex
	schema *Schema

	firstTickVal uint64
	lastTickVal  uint64
	visibleSize  int64

	busy atomic.Bool

	updatesEnabled bool
	updatedFlag    bool
	lastPoll       time.Time

	window *windowCache
}

// Open constructs a Reader for the database at path prefix P (spec.md
// §6.1, §6.3). It fails with KindCorruptOrEmpty if any of the six
// files is missing or empty, or KindUnsupportedVersion if the index
// header names an unsupported format version.
func Open(prefix string, config Config) (*Reader, error) {
	config.setDefaults()

	record, err := openStream(prefix + "record.bin")
	if err != nil {
		return nil, err
	}
	index, err := openHeartbeatIndex(prefix + "index.bin")
	if err != nil {
		record.close()
		return nil, err
	}
	schema, err := buildSchema(prefix, config.ReadBuffer, config.HashAlgorithm, config.Logger)
	if err != nil {
		record.close()
		index.close()
		return nil, err
	}

	r := &Reader{
		prefix:         prefix,
		config:         config,
		logger:         config.Logger,
		record:         record,
		index:          index,
		schema:         schema,
		updatesEnabled: true,
	}

	if err := r.refreshTickBounds(); err != nil {
		record.close()
		index.close()
		return nil, err
	}

	r.logger.Info("opened transaction database",
		zap.String("prefix", prefix),
		zap.Uint32("version", index.Version),
		zap.Uint64("heartbeat", index.Heartbeat),
		zap.Uint64("first_tick", r.firstTickVal),
		zap.Uint64("last_tick", r.lastTickVal))

	return r, nil
}

// Close releases the reader's open file handles.
func (r *Reader) Close() error {
	var err error
	if e := r.record.close(); e != nil {
		err = e
	}
	if e := r.index.close(); e != nil {
		err = e
	}
	return err
}

// refreshTickBounds recomputes FirstTick/LastTick from the current index
// coverage (spec.md §4.4 first_tick/last_tick).
func (r *Reader) refreshTickBounds() error {
	if len(r.index.Offsets) == 0 {
		return nil
	}
	first, err := r.peekStartTick(r.index.Offsets[0])
	if err != nil {
		return err
	}
	r.firstTickVal = first

	sentinel := r.index.sentinelOffset()
	if sentinel < 0 {
		return nil
	}
	if err := r.record.seek(sentinel); err != nil {
		return err
	}
	// Fully decode the sentinel record (not just its base) so tell()
	// lands exactly at the end of the last heartbeat-committed record.
	// Everything past that point is an in-progress append and must stay
	// invisible until the writer flushes the heartbeat that covers it
	// (spec.md §4.5 "Update visibility").
	_, base, err := decodeOne(r.record, r.schema, 0, ^uint64(0), r.logger)
	if err != nil {
		return err
	}
	if base.EndTick > 0 {
		r.lastTickVal = base.EndTick - 1
	}
	r.visibleSize = r.record.tell()
	return nil
}

// peekStartTick reads only the first 8 bytes of the record at offset to
// recover its start_tick without a full decode.
func (r *Reader) peekStartTick(offset int64) (uint64, error) {
	if err := r.record.seek(offset); err != nil {
		return 0, err
	}
	return r.record.readUint64()
}

// FirstTick returns the start_tick of the first record in the database.
func (r *Reader) FirstTick() uint64 { return r.firstTickVal }

// LastTick returns end_tick-1 of the database's last record.
func (r *Reader) LastTick() uint64 { return r.lastTickVal }

// Heartbeat returns the index's fixed tick stride.
func (r *Reader) Heartbeat() uint64 { return r.index.Heartbeat }

// Version returns the index header's format version.
func (r *Reader) Version() uint32 { return r.index.Version }

// Consumer receives decoded records during a Stream call. Returning a
// non-nil error aborts the query; it is propagated to Stream's caller.
type Consumer func(Record) error

// Stream decodes and delivers every record whose [start, end) overlaps
// [qLo, qHi], in file order (spec.md §6.3, §4's data-flow description).
// It returns OutOfRange if qHi < qLo.
func (r *Reader) Stream(qLo, qHi uint64, consume Consumer) error {
	if qHi < qLo {
		return wrap("stream", KindOutOfRange, nil)
	}
	if !r.busy.CompareAndSwap(false, true) {
		return wrap("stream", KindBusy, nil)
	}
	defer r.busy.Store(false)

	sz, err := r.record.size()
	if err != nil {
		return wrap("stream", KindIO, err)
	}
	if r.visibleSize > 0 && r.visibleSize < sz {
		sz = r.visibleSize
	}

	startOff := r.index.offsetFor(qLo, sz)
	if startOff >= sz {
		return nil
	}
	if err := r.record.seek(startOff); err != nil {
		return err
	}

	for r.record.tell() < sz {
		rec, base, err := decodeOne(r.record, r.schema, qLo, qHi, r.logger)
		if err != nil {
			return err
		}
		if base.StartTick > qHi {
			return nil
		}
		if rec != nil {
			if err := consume(*rec); err != nil {
				return err
			}
		}
	}
	return nil
}
