// Exercises the tag-dispatched MarshalJSON used by pipedump's -json mode,
// confirming each record kind renders its expected fields.
package pipedb

import (
	"strings"
	"testing"

	json "github.com/goccy/go-json"
)

func TestRecordMarshalJSONAnnotation(t *testing.T) {
	rec := Record{Tag: TagAnnotation, Annotation: &Annotation{
		Base: Base{StartTick: 1, EndTick: 2, LocationID: 3},
		Text: "note",
	}}
	b, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, `"tag":"annotation"`) || !strings.Contains(s, `"text":"note"`) {
		t.Errorf("Marshal(annotation) = %s, missing expected fields", s)
	}
}

func TestRecordMarshalJSONPair(t *testing.T) {
	rec := Record{Tag: TagPair, Pair: &Pair{
		Base:        Base{StartTick: 10, EndTick: 15, LocationID: 1},
		PairTypeID:  5,
		FieldNames:  []string{"pairid", "state"},
		FieldValues: []FieldValue{{Value: 5}, {Value: 1}},
		FieldStrs:   []string{"5", "RUNNING"},
	}}
	b, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, `"tag":"pair"`) || !strings.Contains(s, `"RUNNING"`) {
		t.Errorf("Marshal(pair) = %s, missing expected fields", s)
	}
}
