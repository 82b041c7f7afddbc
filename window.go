// Windowed transaction cache: decodes and retains whole heartbeat-aligned
// chunks so repeated per-tick queries over a sliding window don't re-scan
// the record file from the start every time (spec.md §5, §6.3 WindowQuery).
//
// Each chunk covers exactly one heartbeat bucket [startTick, endTick) and
// holds its decoded records plus, per location_id, a dense array mapping
// tick offset within the bucket to the index of the record active at that
// tick (NoTransaction where none is). Chunks are evicted whole, oldest
// touched first, once the resident count exceeds Config.ChunkBudget via
// the LRU list in chunk.go; the background-maintenance thread spec.md §5
// describes is not modeled (see DESIGN.md Open Question 4): loadChunk
// runs synchronously inside WindowQuery.
package pipedb

import "go.uber.org/zap"

// chunk is one resident heartbeat bucket's decoded contents.
type chunk struct {
	bucket    uint64
	startTick uint64
	endTick   uint64 // exclusive
	records   []Record
	active    map[uint16][]uint32 // location_id -> per-tick record index, len endTick-startTick
	node      *chunkNode
}

// activeAt returns the record active for locationID at tick, or nil.
func (c *chunk) activeAt(locationID uint16, tick uint64) *Record {
	arr, ok := c.active[locationID]
	if !ok {
		return nil
	}
	idx := arr[tick-c.startTick]
	if idx == NoTransaction {
		return nil
	}
	return &c.records[idx]
}

// windowCache holds the chunks currently resident for one Reader.
type windowCache struct {
	r       *Reader
	budget  int
	byIndex map[uint64]*chunkNode
	lru     chunkList
}

func newWindowCache(r *Reader, budget int) *windowCache {
	return &windowCache{r: r, budget: budget, byIndex: make(map[uint64]*chunkNode)}
}

// noteGrowth drops the whole cache after the record file grows. Bucket
// boundaries never move once written, so only the most recently loaded
// bucket could have been incomplete when cached; dropping everything is
// simpler than tracking which single chunk needs a reload and costs one
// extra decode pass at most.
func (w *windowCache) noteGrowth(visibleSize int64) {
	if len(w.byIndex) == 0 {
		return
	}
	w.r.logger.Debug("window cache dropped after growth", zap.Int("resident_chunks", len(w.byIndex)))
	w.byIndex = make(map[uint64]*chunkNode)
	w.lru = chunkList{}
}

// TickCallback receives the set of records active at tick, keyed by
// location_id, during a WindowQuery scan.
type TickCallback func(tick uint64, active map[uint16]*Record) error

// WindowQuery delivers, for every tick in [qLo, qHi], the set of records
// active at that tick across all locations (spec.md §5). When tracking is
// false the chunks touched to answer this query are not retained in the
// cache or counted against the eviction budget — useful for one-off scans
// that shouldn't displace a hot working set.
func (r *Reader) WindowQuery(qLo, qHi uint64, tracking bool, cb TickCallback) error {
	if qHi < qLo {
		return wrap("window query", KindOutOfRange, nil)
	}
	if !r.busy.CompareAndSwap(false, true) {
		return wrap("window query", KindBusy, nil)
	}
	defer r.busy.Store(false)

	if r.window == nil {
		r.window = newWindowCache(r, r.config.ChunkBudget)
	}
	w := r.window
	heartbeat := r.index.Heartbeat

	firstBucket := qLo / heartbeat
	lastBucket := qHi / heartbeat
	for bucket := firstBucket; bucket <= lastBucket; bucket++ {
		c, err := w.chunkFor(bucket, tracking)
		if err != nil {
			return err
		}
		if c == nil {
			continue // past the end of the database
		}

		lo := qLo
		if c.startTick > lo {
			lo = c.startTick
		}
		hi := qHi
		if c.endTick-1 < hi {
			hi = c.endTick - 1
		}

		for tick := lo; tick <= hi; tick++ {
			active := make(map[uint16]*Record, len(c.active))
			for loc := range c.active {
				if rec := c.activeAt(loc, tick); rec != nil {
					active[loc] = rec
				}
			}
			if err := cb(tick, active); err != nil {
				return err
			}
		}
	}
	return nil
}

// chunkFor returns the chunk for bucket, loading and decoding it from the
// record stream if not already resident. Returns a nil chunk (no error) if
// bucket lies past the database's last heartbeat.
func (w *windowCache) chunkFor(bucket uint64, track bool) (*chunk, error) {
	if n, ok := w.byIndex[bucket]; ok {
		if track {
			w.lru.moveToFront(n)
		}
		return n.c, nil
	}

	c, err := w.loadChunk(bucket)
	if err != nil || c == nil {
		return c, err
	}

	if !track {
		return c, nil
	}

	n := w.lru.prepend(c)
	c.node = n
	w.byIndex[bucket] = n
	w.evictOverBudget()
	return c, nil
}

// evictOverBudget drops least-recently-touched chunks until the resident
// count is within budget.
func (w *windowCache) evictOverBudget() {
	for len(w.byIndex) > w.budget {
		victim := w.lru.last()
		if victim == nil {
			return
		}
		w.lru.remove(victim.node)
		delete(w.byIndex, victim.bucket)
	}
}

// loadChunk decodes every record overlapping bucket's heartbeat range and
// builds its per-location active-record arrays (spec.md §5's per-tick
// location arrays, NoTransaction sentinel = NoTransaction in record.go).
func (w *windowCache) loadChunk(bucket uint64) (*chunk, error) {
	r := w.r
	startTick := bucket * r.index.Heartbeat
	endTick := startTick + r.index.Heartbeat
	if startTick > r.lastTickVal {
		return nil, nil
	}

	sz, err := r.record.size()
	if err != nil {
		return nil, wrap("load chunk", KindIO, err)
	}
	if r.visibleSize > 0 && r.visibleSize < sz {
		sz = r.visibleSize
	}

	startOff := r.index.offsetFor(startTick, sz)
	if startOff >= sz {
		return nil, nil
	}
	if err := r.record.seek(startOff); err != nil {
		return nil, err
	}

	c := &chunk{
		bucket:    bucket,
		startTick: startTick,
		endTick:   endTick,
		active:    make(map[uint16][]uint32),
	}

	for r.record.tell() < sz {
		rec, base, err := decodeOne(r.record, r.schema, startTick, endTick-1, r.logger)
		if err != nil {
			return nil, err
		}
		if base.StartTick >= endTick {
			break
		}
		if rec == nil {
			continue
		}

		idx := uint32(len(c.records))
		c.records = append(c.records, *rec)

		arr, ok := c.active[base.LocationID]
		if !ok {
			arr = make([]uint32, endTick-startTick)
			for i := range arr {
				arr[i] = NoTransaction
			}
			c.active[base.LocationID] = arr
		}
		lo := base.StartTick
		if lo < startTick {
			lo = startTick
		}
		hi := base.EndTick
		if hi > endTick {
			hi = endTick
		}
		for t := lo; t < hi; t++ {
			arr[t-startTick] = idx
		}
	}

	return c, nil
}
