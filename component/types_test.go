package component

import "testing"

func TestLoadSchemaFromShippedFile(t *testing.T) {
	s, err := LoadSchema("../etc/components.toml")
	if err != nil {
		t.Fatalf("LoadSchema: %v", err)
	}
	spec, ok := s.Lookup(TypeLight)
	if !ok {
		t.Fatalf("Light type missing from schema")
	}
	if spec.Name != "Light" {
		t.Fatalf("got name %q, want Light", spec.Name)
	}

	cover, ok := s.LookupName("Cover")
	if !ok {
		t.Fatalf("Cover type missing from schema")
	}
	if len(cover.Variants) != 4 {
		t.Fatalf("got %d Cover variants, want 4", len(cover.Variants))
	}
}

func TestSchemaRejectsDuplicateID(t *testing.T) {
	s := &Schema{Types: []TypeSpec{
		{Name: "A", ID: 0, Kind: KindSingle},
		{Name: "B", ID: 0, Kind: KindSingle},
	}}
	if err := s.validate(); err == nil {
		t.Fatal("expected error for duplicate id")
	}
}

func TestSchemaRejectsGap(t *testing.T) {
	s := &Schema{Types: []TypeSpec{
		{Name: "A", ID: 0, Kind: KindSingle},
		{Name: "B", ID: 2, Kind: KindSingle},
	}}
	if err := s.validate(); err == nil {
		t.Fatal("expected error for id gap")
	}
}

func TestSchemaRejectsDuplicateEnumVariant(t *testing.T) {
	s := &Schema{Types: []TypeSpec{
		{Name: "A", ID: 0, Kind: KindEnum, Variants: []EnumVariant{
			{Name: "x", ID: 0},
			{Name: "y", ID: 0},
		}},
	}}
	if err := s.validate(); err == nil {
		t.Fatal("expected error for duplicate enum variant id")
	}
}
