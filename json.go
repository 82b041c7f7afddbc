// JSON rendering of decoded records for pipedump's -json mode.
package pipedb

import (
	json "github.com/goccy/go-json"
)

// jsonRecord is the wire shape for a decoded record's JSON rendering.
// Exactly the fields relevant to the record's tag are populated.
type jsonRecord struct {
	Tag              string   `json:"tag"`
	StartTick        uint64   `json:"start_tick"`
	EndTick          uint64   `json:"end_tick"`
	LocationID       uint16   `json:"location_id"`
	TransactionID    uint64   `json:"transaction_id"`
	DisplayID        uint64   `json:"display_id"`
	ParentID         uint64   `json:"parent_id"`
	ControlProcessID uint16   `json:"control_process_id"`
	Continue         bool     `json:"continue"`
	Text             string   `json:"text,omitempty"`
	Opcode           uint32   `json:"opcode,omitempty"`
	VirtualAddress   uint64   `json:"virtual_address,omitempty"`
	PhysicalAddress  uint64   `json:"physical_address,omitempty"`
	PairTypeID       uint16   `json:"pair_type_id,omitempty"`
	FieldNames       []string `json:"field_names,omitempty"`
	FieldValues      []string `json:"field_values,omitempty"`
}

// MarshalJSON implements json.Marshaler by selecting the fields relevant
// to r.Tag, dispatched through a single entry point rather than one
// implementation per concrete record type.
func (r Record) MarshalJSON() ([]byte, error) {
	base := r.Base()
	jr := jsonRecord{
		StartTick:        base.StartTick,
		EndTick:          base.EndTick,
		LocationID:       base.LocationID,
		TransactionID:    base.TransactionID,
		DisplayID:        base.DisplayID,
		ParentID:         base.ParentID,
		ControlProcessID: base.ControlProcessID,
		Continue:         base.Continue(),
	}

	switch r.Tag {
	case TagAnnotation:
		jr.Tag = "annotation"
		jr.Text = r.Annotation.Text
	case TagInstruction:
		jr.Tag = "instruction"
		jr.Opcode = r.Instruction.Opcode
		jr.VirtualAddress = r.Instruction.VirtualAddress
		jr.PhysicalAddress = r.Instruction.PhysicalAddress
	case TagMemoryOp:
		jr.Tag = "memory_op"
		jr.VirtualAddress = r.MemoryOp.VirtualAddress
		jr.PhysicalAddress = r.MemoryOp.PhysicalAddress
	case TagPair:
		jr.Tag = "pair"
		jr.PairTypeID = r.Pair.PairTypeID
		jr.FieldNames = r.Pair.FieldNames
		jr.FieldValues = r.Pair.FieldStrs
	}

	return json.Marshal(jr)
}
