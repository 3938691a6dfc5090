package snapshot

import (
	"context"
	"testing"
)

func strPtr(s string) *string   { return &s }
func f64Ptr(f float64) *float64 { return &f }

func TestParquetSource_ExportAndLoad(t *testing.T) {
	dir := t.TempDir()
	src := &Snapshot{
		Encounters: []Encounter{
			{ID: "E1", DepartmentID: strPtr("D1"), AdmittedAt: strPtr("2024-01-01"), Readmission: strPtr("Y")},
			{ID: "E2"},
		},
		Departments: []Department{{ID: "D1", Name: "Cardiology", HospitalID: strPtr("H1")}},
		Hospitals:   []Hospital{{ID: "H1", Name: "General"}},
		SurgicalEncounters: []SurgicalEncounter{
			{ID: "S1", Specialty: "Ortho", TotalCost: f64Ptr(10.5)},
		},
		SurgicalCosts: []SurgicalResourceUsage{{ResourceType: "Staff", ResourceName: "Nurse", Cost: f64Ptr(3)}},
	}

	if err := ExportParquet(src, dir); err != nil {
		t.Fatalf("export: %v", err)
	}

	snap, err := NewParquetSource(dir).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if len(snap.Encounters) != 2 {
		t.Fatalf("expected 2 encounters, got %d", len(snap.Encounters))
	}
	if e := snap.Encounters[0]; e.Readmission == nil || *e.Readmission != "Y" {
		t.Errorf("unexpected first encounter: %+v", e)
	}
	if e := snap.Encounters[1]; e.DepartmentID != nil || e.Readmission != nil {
		t.Errorf("expected optional columns to stay NULL: %+v", e)
	}
	if s := snap.SurgicalEncounters[0]; s.TotalCost == nil || *s.TotalCost != 10.5 || s.TotalProfit != nil {
		t.Errorf("unexpected surgical encounter: %+v", s)
	}
	if c := snap.SurgicalCosts[0]; c.SurgicalEncounterID != nil {
		t.Errorf("expected NULL surgical encounter reference, got %q", *c.SurgicalEncounterID)
	}
	if len(snap.Accounts) != 0 {
		t.Errorf("expected empty accounts, got %d", len(snap.Accounts))
	}
}

func TestParquetSource_MissingDir(t *testing.T) {
	snap, err := NewParquetSource(t.TempDir()).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for table, n := range snap.Counts() {
		if n != 0 {
			t.Errorf("expected empty %s, got %d", table, n)
		}
	}
}
