package pipedb

import "testing"

// openFixtureForSchema builds the fixture and resolves its schema
// directly, for tests that want to inspect the tables without going
// through a full Reader.
func openFixtureForSchema(t *testing.T) (*Schema, fixture) {
	t.Helper()
	fx := buildFixture(t)
	s, err := buildSchema(fx.prefix, 0, HashXXHash3, nil)
	if err != nil {
		t.Fatalf("buildSchema: %v", err)
	}
	return s, fx
}

func TestSchemaLocationToPairType(t *testing.T) {
	s, _ := openFixtureForSchema(t)
	pt, err := s.pairTypeFor(1)
	if err != nil {
		t.Fatalf("pairTypeFor(1): %v", err)
	}
	if pt != 5 {
		t.Errorf("pairTypeFor(1) = %d, want 5", pt)
	}
}

func TestSchemaUnknownLocation(t *testing.T) {
	s, _ := openFixtureForSchema(t)
	if _, err := s.pairTypeFor(999); err == nil || !isKind(err, KindOutOfRange) {
		t.Fatalf("pairTypeFor(999): got %v, want KindOutOfRange", err)
	}
}

func TestSchemaFieldLayout(t *testing.T) {
	s, _ := openFixtureForSchema(t)
	ps, err := s.schemaFor(5)
	if err != nil {
		t.Fatalf("schemaFor(5): %v", err)
	}
	if ps.FieldCount != 3 {
		t.Fatalf("FieldCount = %d, want 3 (synthetic pairid + 2 declared fields)", ps.FieldCount)
	}
	if ps.FieldTypes[1] != fieldInteger || ps.FieldTypes[2] != fieldString {
		t.Errorf("FieldTypes = %v, want [integer integer string]", ps.FieldTypes)
	}
}

func TestSchemaEnumLookup(t *testing.T) {
	s, _ := openFixtureForSchema(t)
	disp, ok := s.EnumMap[enumKey{PairTypeID: 5, FieldOrdinal: 0, Value: 1}]
	if !ok || disp != "RUNNING" {
		t.Fatalf("EnumMap[5,0,1] = %q, %v, want RUNNING, true", disp, ok)
	}
}

func TestSchemaMissingDescriptorFile(t *testing.T) {
	fx := buildFixture(t)
	if err := removeFile(fx.prefix + "data.dat"); err != nil {
		t.Fatalf("removeFile: %v", err)
	}
	if _, err := buildSchema(fx.prefix, 0, HashXXHash3, nil); err == nil || !isKind(err, KindCorruptOrEmpty) {
		t.Fatalf("buildSchema with missing data.dat: got %v, want KindCorruptOrEmpty", err)
	}
}
