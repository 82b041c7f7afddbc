// Schema resolver: builds the three in-memory tables the decoder needs to
// materialize pair records, by parsing the four sidecar descriptor files
// once at open (spec.md §4.2). The resulting tables are read-only for the
// reader's lifetime.
package pipedb

import (
	"go.uber.org/zap"
)

// Field type tags within a pair schema (spec.md §4.2).
const (
	fieldInteger = 0
	fieldString  = 1
)

// PairSchema describes one pair_type_id's field layout, including the
// synthetic pairid field the resolver prepends at index 0 (spec.md §4.2).
type PairSchema struct {
	FieldCount   int
	FieldNames   []string
	FieldSizes   []uint16
	FieldTypes   []int
	FieldFormats []Format
}

// enumKey is the three-part lookup key for the string map (spec.md §3.1).
// FieldOrdinal counts user-declared fields starting at 0, excluding the
// synthetic pairid — see DESIGN.md Open Question 2.
type enumKey struct {
	PairTypeID   uint16
	FieldOrdinal int
	Value        uint64
}

// Schema holds the three process-scoped tables built once at open and
// shared read-only for the reader's lifetime (spec.md §3.2).
type Schema struct {
	LocationToPairType map[uint16]uint16
	PairSchemas        map[uint16]*PairSchema
	EnumMap            map[enumKey]string
}

// buildSchema parses the four descriptor files named by prefix and
// constructs the schema tables. prefix is the path prefix P (spec.md §6.1
// names the files P+map.dat etc; callers pass the already-joined prefix).
func buildSchema(prefix string, bufSize, hashAlg int, logger *zap.Logger) (*Schema, error) {
	if logger == nil {
		logger = nopLogger()
	}
	names := newInternTable(hashAlg)
	strs := newInternTable(hashAlg)

	locLines, err := readDescriptorLines(prefix+"map.dat", bufSize)
	if err != nil {
		return nil, err
	}
	dataLines, err := readDescriptorLines(prefix+"data.dat", bufSize)
	if err != nil {
		return nil, err
	}
	fmtLines, err := readDescriptorLines(prefix+"display_format.dat", bufSize)
	if err != nil {
		return nil, err
	}
	strLines, err := readDescriptorLines(prefix+"string_map.dat", bufSize)
	if err != nil {
		return nil, err
	}

	s := &Schema{
		LocationToPairType: make(map[uint16]uint16, len(locLines)),
		PairSchemas:        make(map[uint16]*PairSchema, len(dataLines)),
		EnumMap:            make(map[enumKey]string, len(strLines)),
	}

	for _, tok := range locLines {
		if len(tok) < 2 {
			continue
		}
		locID, err := parseUint(tok[0], 16)
		if err != nil {
			return nil, err
		}
		pairType, err := parseUint(tok[1], 16)
		if err != nil {
			return nil, err
		}
		s.LocationToPairType[uint16(locID)] = uint16(pairType)
	}

	for _, tok := range dataLines {
		if len(tok) < 2 {
			continue
		}
		pairType, err := parseUint(tok[0], 16)
		if err != nil {
			return nil, err
		}
		fieldCount, err := parseUint(tok[1], 32)
		if err != nil {
			return nil, err
		}

		ps := &PairSchema{
			FieldCount:   int(fieldCount) + 1,
			FieldNames:   make([]string, 0, fieldCount+1),
			FieldSizes:   make([]uint16, 0, fieldCount+1),
			FieldTypes:   make([]int, 0, fieldCount+1),
			FieldFormats: make([]Format, 0, fieldCount+1),
		}
		// Synthetic pairid field, prepended per spec.md §4.2.
		ps.FieldNames = append(ps.FieldNames, "pairid")
		ps.FieldSizes = append(ps.FieldSizes, 2)
		ps.FieldTypes = append(ps.FieldTypes, fieldInteger)
		ps.FieldFormats = append(ps.FieldFormats, FormatDecimal)

		rest := tok[2:]
		for i := 0; i < int(fieldCount); i++ {
			base := i * 3
			if base+2 >= len(rest) {
				return nil, wrap("parse pair schema", KindCorruptOrTruncated, nil)
			}
			name := rest[base]
			size, err := parseUint(rest[base+1], 16)
			if err != nil {
				return nil, err
			}
			if size > 8 {
				return nil, wrap("parse pair schema: field size exceeds 8 bytes", KindCorruptOrTruncated, nil)
			}
			typ, err := parseUint(rest[base+2], 8)
			if err != nil {
				return nil, err
			}
			ps.FieldNames = append(ps.FieldNames, names.intern(name))
			ps.FieldSizes = append(ps.FieldSizes, uint16(size))
			ps.FieldTypes = append(ps.FieldTypes, int(typ))
			ps.FieldFormats = append(ps.FieldFormats, FormatDecimal)
		}

		s.PairSchemas[uint16(pairType)] = ps
	}

	for _, tok := range fmtLines {
		if len(tok) < 1 {
			continue
		}
		pairType, err := parseUint(tok[0], 16)
		if err != nil {
			return nil, err
		}
		ps, ok := s.PairSchemas[uint16(pairType)]
		if !ok {
			logger.Warn("display format for unknown pair type", zap.Uint64("pair_type_id", pairType))
			continue
		}
		for i, f := range tok[1:] {
			idx := i + 1 // field 0 is the synthetic pairid, never formatted here
			if idx >= len(ps.FieldFormats) {
				break
			}
			ps.FieldFormats[idx] = parseFormat(f)
		}
	}

	for _, tok := range strLines {
		if len(tok) < 4 {
			continue
		}
		pairType, err := parseUint(tok[0], 16)
		if err != nil {
			return nil, err
		}
		ordinal, err := parseUint(tok[1], 32)
		if err != nil {
			return nil, err
		}
		value, err := parseUint(tok[2], 64)
		if err != nil {
			return nil, err
		}
		display := strs.intern(tok[3])
		key := enumKey{PairTypeID: uint16(pairType), FieldOrdinal: int(ordinal), Value: value}
		s.EnumMap[key] = display
	}

	logger.Info("schema resolved",
		zap.Int("locations", len(s.LocationToPairType)),
		zap.Int("pair_types", len(s.PairSchemas)),
		zap.Int("enum_entries", len(s.EnumMap)))

	return s, nil
}

// pairTypeFor resolves a record's location_id to its pair_type_id,
// failing with KindOutOfRange if the location is unknown (spec.md §4.2
// invariant: "every location_id referenced on-disk resolves in the
// location map").
func (s *Schema) pairTypeFor(locationID uint16) (uint16, error) {
	pt, ok := s.LocationToPairType[locationID]
	if !ok {
		return 0, wrap("resolve location", KindOutOfRange, nil)
	}
	return pt, nil
}

// schemaFor resolves a pair_type_id to its descriptor, failing with
// KindOutOfRange if unknown (spec.md §4.2 invariant).
func (s *Schema) schemaFor(pairTypeID uint16) (*PairSchema, error) {
	ps, ok := s.PairSchemas[pairTypeID]
	if !ok {
		return nil, wrap("resolve pair type", KindOutOfRange, nil)
	}
	return ps, nil
}
