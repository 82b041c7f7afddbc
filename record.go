// Record type definitions shared by the decoder, the streaming query API,
// and the windowed cache.
//
// Every record on disk begins with the same fixed-width base struct
// (spec.md §6.1); the decoder branches on the 3-bit type tag embedded in
// Flags to decide which trailing payload to read.
package pipedb

import "fmt"

// Type tags occupy bits 0-2 of Flags (spec.md §6.2).
const (
	TagInstruction    = 1
	TagMemoryOp       = 2
	TagAnnotation     = 3
	TagPair           = 4
	flagTypeMask      = 0x7
	flagContinueBit   = 1 << 4
)

// InvalidValue is the sentinel for "no integer value" in a pair field
// (spec.md §9, writer's UINT64_MAX convention).
const InvalidValue uint64 = 1<<64 - 1

// NoTransaction is the sentinel stored in the windowed cache's
// location -> record-index slots when no record is active at a tick.
const NoTransaction uint32 = 1<<32 - 1

// Base carries the fields present on every record (spec.md §3.1).
type Base struct {
	StartTick        uint64
	EndTick          uint64 // exclusive
	LocationID       uint16
	TransactionID    uint64
	DisplayID        uint64
	Flags            uint16
	ParentID         uint64
	ControlProcessID uint16
}

// Type returns the 3-bit type tag embedded in Flags.
func (b Base) Type() int { return int(b.Flags & flagTypeMask) }

// Continue reports whether this record is the head of a logical
// transaction split across a heartbeat boundary (spec.md §4.4).
func (b Base) Continue() bool { return b.Flags&flagContinueBit != 0 }

// Annotation is a free-text transaction (spec.md §3.1).
type Annotation struct {
	Base
	Text string
}

// Instruction is a decoded instruction-retirement transaction.
type Instruction struct {
	Base
	Opcode          uint32
	VirtualAddress  uint64
	PhysicalAddress uint64
}

// MemoryOp is a decoded memory-operation transaction.
type MemoryOp struct {
	Base
	VirtualAddress  uint64
	PhysicalAddress uint64
}

// Format selects how an integer pair field is rendered when no enum_map
// entry names it (spec.md §4.2).
type Format int

const (
	FormatDecimal Format = iota
	FormatHex
	FormatOctal
)

func parseFormat(s string) Format {
	switch s {
	case "HEX":
		return FormatHex
	case "OCTAL":
		return FormatOctal
	default:
		return FormatDecimal
	}
}

func (f Format) render(v uint64) string {
	switch f {
	case FormatHex:
		return fmt.Sprintf("0x%x", v)
	case FormatOctal:
		return fmt.Sprintf("0%o", v)
	default:
		return fmt.Sprintf("%d", v)
	}
}

// FieldValue is a pair field's raw value plus an integer flag. Integer is
// false for the synthetic pairid field, for integers whose display was
// substituted from the enum_map, and for fields of a reserved type tag.
// String fields carry Value InvalidValue with Integer true as a
// string-only marker.
type FieldValue struct {
	Value   uint64
	Integer bool
}

// Pair is a decoded schema-described transaction (spec.md §3.1). All
// per-field slices have equal length, including the synthetic pairid
// field prepended at index 0 by the schema resolver.
type Pair struct {
	Base
	PairTypeID  uint16
	FieldNames  []string
	FieldSizes  []uint16
	FieldValues []FieldValue
	FieldStrs   []string
	FieldFmts   []Format
}

// Record is the tagged union produced by the decoder. Exactly one of the
// typed fields is non-nil, selected by Tag.
type Record struct {
	Tag         int
	Annotation  *Annotation
	Instruction *Instruction
	MemoryOp    *MemoryOp
	Pair        *Pair
}

// Base returns the record's common fields regardless of concrete type.
func (r Record) Base() Base {
	switch r.Tag {
	case TagAnnotation:
		return r.Annotation.Base
	case TagInstruction:
		return r.Instruction.Base
	case TagMemoryOp:
		return r.MemoryOp.Base
	case TagPair:
		return r.Pair.Base
	default:
		return Base{}
	}
}
