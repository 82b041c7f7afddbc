// Record decoder: turns a positioned stream into one of the four typed
// records by branching on the in-band type tag, and performs the pair
// reconstruction algorithm against the schema tables (spec.md §4.3).
package pipedb

import "go.uber.org/zap"

// maxAnnotationBytes bounds the annotation text buffer (spec.md §4.3,
// "Long annotations"). Oversize payloads are truncated with a warning,
// not an error.
const maxAnnotationBytes = 16384

// rawBase is the fixed on-disk base struct, before splitting into the
// public Base plus the type-specific fields every layout carries
// regardless of tag.
type rawBase struct {
	Base
	VirtualAddress  uint64
	PhysicalAddress uint64
	Opcode          uint32
	PairTypeID      uint16
}

func readRawBase(s *stream) (rawBase, error) {
	var rb rawBase
	var err error
	if rb.StartTick, err = s.readUint64(); err != nil {
		return rb, err
	}
	if rb.EndTick, err = s.readUint64(); err != nil {
		return rb, err
	}
	if rb.ParentID, err = s.readUint64(); err != nil {
		return rb, err
	}
	if rb.TransactionID, err = s.readUint64(); err != nil {
		return rb, err
	}
	if rb.DisplayID, err = s.readUint64(); err != nil {
		return rb, err
	}
	if rb.VirtualAddress, err = s.readUint64(); err != nil {
		return rb, err
	}
	if rb.PhysicalAddress, err = s.readUint64(); err != nil {
		return rb, err
	}
	if rb.Opcode, err = s.readUint32(); err != nil {
		return rb, err
	}
	if rb.ControlProcessID, err = s.readUint16(); err != nil {
		return rb, err
	}
	if rb.PairTypeID, err = s.readUint16(); err != nil {
		return rb, err
	}
	if rb.LocationID, err = s.readUint16(); err != nil {
		return rb, err
	}
	if rb.Flags, err = s.readUint16(); err != nil {
		return rb, err
	}
	return rb, nil
}

// decodeOne reads one record from s. The record's bytes are always fully
// consumed, even when it falls outside [qLo, qHi] — spec.md §4.3: "the
// bytes are still consumed; no callback fires". base is always populated
// on success so callers can make stopping decisions (e.g. "no further
// record can be in range") even for filtered-out records; rec is nil
// exactly when the record was filtered out.
func decodeOne(s *stream, schema *Schema, qLo, qHi uint64, logger *zap.Logger) (rec *Record, base Base, err error) {
	if logger == nil {
		logger = nopLogger()
	}

	rb, err := readRawBase(s)
	if err != nil {
		return nil, Base{}, err
	}
	base = rb.Base

	inRange := !(rb.EndTick < qLo || rb.StartTick > qHi)

	switch rb.Type() {
	case TagAnnotation:
		text, err := decodeAnnotationText(s, logger, rb.Base)
		if err != nil {
			return nil, base, err
		}
		if !inRange {
			return nil, base, nil
		}
		return &Record{Tag: TagAnnotation, Annotation: &Annotation{Base: rb.Base, Text: text}}, base, nil

	case TagInstruction:
		if !inRange {
			return nil, base, nil
		}
		return &Record{Tag: TagInstruction, Instruction: &Instruction{
			Base:            rb.Base,
			Opcode:          rb.Opcode,
			VirtualAddress:  rb.VirtualAddress,
			PhysicalAddress: rb.PhysicalAddress,
		}}, base, nil

	case TagMemoryOp:
		if !inRange {
			return nil, base, nil
		}
		return &Record{Tag: TagMemoryOp, MemoryOp: &MemoryOp{
			Base:            rb.Base,
			VirtualAddress:  rb.VirtualAddress,
			PhysicalAddress: rb.PhysicalAddress,
		}}, base, nil

	case TagPair:
		pair, err := decodePair(s, schema, rb)
		if err != nil {
			return nil, base, err
		}
		if !inRange {
			return nil, base, nil
		}
		return &Record{Tag: TagPair, Pair: pair}, base, nil

	default:
		return nil, base, wrap("decode record", KindCorruptUnknownType, nil)
	}
}

// decodeAnnotationText reads the 2-byte length plus text trailer,
// truncating and logging (not erroring) when the declared length exceeds
// maxAnnotationBytes.
func decodeAnnotationText(s *stream, logger *zap.Logger, base Base) (string, error) {
	length, err := s.readUint16()
	if err != nil {
		return "", err
	}
	n := int(length)
	if n <= maxAnnotationBytes {
		buf := make([]byte, n)
		if n > 0 {
			if err := s.readRaw(buf); err != nil {
				return "", err
			}
		}
		return string(buf), nil
	}

	buf := make([]byte, maxAnnotationBytes)
	if err := s.readRaw(buf); err != nil {
		return "", err
	}
	remaining := int64(n - maxAnnotationBytes)
	logger.Warn("truncated oversize annotation",
		zap.Uint64("start_tick", base.StartTick),
		zap.Uint64("end_tick", base.EndTick),
		zap.Int("declared_length", n),
		zap.Int64("bytes_skipped", remaining))
	if err := s.seekRelative(remaining); err != nil {
		return "", err
	}
	return string(buf), nil
}

// decodePair implements the pair reconstruction algorithm (spec.md §4.3).
// Step 1 resolves location_id to a pair_type_id through the location map
// rather than trusting the in-band pair_type_id field, matching spec.md
// §4.2's stated lookup order; see DESIGN.md Open Question decision 5.
func decodePair(s *stream, schema *Schema, rb rawBase) (*Pair, error) {
	pairType, err := schema.pairTypeFor(rb.LocationID)
	if err != nil {
		return nil, err
	}
	ps, err := schema.schemaFor(pairType)
	if err != nil {
		return nil, err
	}

	n := ps.FieldCount
	p := &Pair{
		Base:        rb.Base,
		PairTypeID:  pairType,
		FieldNames:  ps.FieldNames,
		FieldSizes:  ps.FieldSizes,
		FieldValues: make([]FieldValue, n),
		FieldStrs:   make([]string, n),
		FieldFmts:   ps.FieldFormats,
	}

	// Field 0: synthetic pairid (spec.md §4.3 step 2).
	p.FieldValues[0] = FieldValue{Value: uint64(pairType), Integer: false}
	p.FieldStrs[0] = FormatDecimal.render(uint64(pairType))

	for i := 1; i < n; i++ {
		switch ps.FieldTypes[i] {
		case fieldInteger:
			v, err := s.readUintN(int(ps.FieldSizes[i]))
			if err != nil {
				return nil, err
			}
			key := enumKey{PairTypeID: pairType, FieldOrdinal: i - 1, Value: v}
			if disp, ok := schema.EnumMap[key]; ok {
				p.FieldValues[i] = FieldValue{Value: v, Integer: false}
				p.FieldStrs[i] = disp
			} else if v == InvalidValue {
				p.FieldValues[i] = FieldValue{Value: v, Integer: true}
				p.FieldStrs[i] = ""
			} else {
				p.FieldValues[i] = FieldValue{Value: v, Integer: true}
				p.FieldStrs[i] = ps.FieldFormats[i].render(v)
			}

		case fieldString:
			length, err := s.readUint16()
			if err != nil {
				return nil, err
			}
			buf := make([]byte, length)
			if length > 0 {
				if err := s.readRaw(buf); err != nil {
					return nil, err
				}
			}
			// Tolerate an optional trailing NUL (DESIGN.md Open Question 1).
			if len(buf) > 0 && buf[len(buf)-1] == 0 {
				buf = buf[:len(buf)-1]
			}
			p.FieldValues[i] = FieldValue{Value: InvalidValue, Integer: true}
			p.FieldStrs[i] = string(buf)

		default:
			p.FieldValues[i] = FieldValue{Value: 0, Integer: false}
			p.FieldStrs[i] = "none"
		}
	}

	return p, nil
}
