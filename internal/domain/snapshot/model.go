// Package snapshot defines the read-only hospital records the analytics
// engine works on and the sources that materialise them.
package snapshot

import "time"

// Encounter maps to the encounters table. Timestamps, length of stay and the
// boolean-like flags are kept as raw text and coerced by the engine.
type Encounter struct {
	ID                   string  `db:"encounter_id" json:"encounter_id" parquet:"encounter_id"`
	DepartmentID         *string `db:"department_id" json:"department_id,omitempty" parquet:"department_id,optional"`
	AdmittedAt           *string `db:"admitted_at" json:"admitted_at,omitempty" parquet:"admitted_at,optional"`
	DischargedAt         *string `db:"discharged_at" json:"discharged_at,omitempty" parquet:"discharged_at,optional"`
	LengthOfStay         *string `db:"length_of_stay" json:"length_of_stay,omitempty" parquet:"length_of_stay,optional"`
	Readmission          *string `db:"readmission" json:"readmission,omitempty" parquet:"readmission,optional"`
	InpatientReadmission *string `db:"inpatient_readmission" json:"inpatient_readmission,omitempty" parquet:"inpatient_readmission,optional"`
	ICU                  *string `db:"icu" json:"icu,omitempty" parquet:"icu,optional"`
	AccountID            *string `db:"account_id" json:"account_id,omitempty" parquet:"account_id,optional"`
}

// Department maps to the departments table.
type Department struct {
	ID         string  `db:"department_id" json:"department_id" parquet:"department_id"`
	Name       string  `db:"department_name" json:"department_name" parquet:"department_name"`
	HospitalID *string `db:"hospital_id" json:"hospital_id,omitempty" parquet:"hospital_id,optional"`
}

// Hospital maps to the hospitals table.
type Hospital struct {
	ID   string `db:"hospital_id" json:"hospital_id" parquet:"hospital_id"`
	Name string `db:"hospital_name" json:"hospital_name" parquet:"hospital_name"`
}

// Account maps to the accounts table.
type Account struct {
	ID               string  `db:"account_id" json:"account_id" parquet:"account_id"`
	PrimaryDiagnosis *string `db:"primary_diagnosis" json:"primary_diagnosis,omitempty" parquet:"primary_diagnosis,optional"`
}

// QualityMeasureRecord maps to the quality_measures table.
type QualityMeasureRecord struct {
	ID          string  `db:"record_id" json:"record_id" parquet:"record_id"`
	MeasureName string  `db:"measure_name" json:"measure_name" parquet:"measure_name"`
	HospitalID  *string `db:"hospital_id" json:"hospital_id,omitempty" parquet:"hospital_id,optional"`
	PracticeID  *string `db:"practice_id" json:"practice_id,omitempty" parquet:"practice_id,optional"`
	Compliant   *string `db:"compliant" json:"compliant,omitempty" parquet:"compliant,optional"`
}

// Practice maps to the practices table.
type Practice struct {
	ID   string `db:"practice_id" json:"practice_id" parquet:"practice_id"`
	Name string `db:"practice_name" json:"practice_name" parquet:"practice_name"`
}

// SurgicalEncounter maps to the surgical_encounters table.
type SurgicalEncounter struct {
	ID           string   `db:"surgical_encounter_id" json:"surgical_encounter_id" parquet:"surgical_encounter_id"`
	Specialty    string   `db:"specialty" json:"specialty" parquet:"specialty"`
	LengthOfStay *string  `db:"length_of_stay" json:"length_of_stay,omitempty" parquet:"length_of_stay,optional"`
	TotalCost    *float64 `db:"total_cost" json:"total_cost,omitempty" parquet:"total_cost,optional"`
	TotalProfit  *float64 `db:"total_profit" json:"total_profit,omitempty" parquet:"total_profit,optional"`
}

// SurgicalResourceUsage maps to the surgical_costs table.
type SurgicalResourceUsage struct {
	SurgicalEncounterID *string  `db:"surgical_encounter_id" json:"surgical_encounter_id,omitempty" parquet:"surgical_encounter_id,optional"`
	ResourceType        string   `db:"resource_type" json:"resource_type" parquet:"resource_type"`
	ResourceName        string   `db:"resource_name" json:"resource_name" parquet:"resource_name"`
	Cost                *float64 `db:"cost" json:"cost,omitempty" parquet:"cost,optional"`
}

// Snapshot is one immutable set of records. Nothing in the engine writes to it.
type Snapshot struct {
	Encounters         []Encounter
	Departments        []Department
	Hospitals          []Hospital
	Accounts           []Account
	QualityMeasures    []QualityMeasureRecord
	Practices          []Practice
	SurgicalEncounters []SurgicalEncounter
	SurgicalCosts      []SurgicalResourceUsage

	Source   string
	LoadedAt time.Time
}

// Counts returns the number of records per table.
func (s *Snapshot) Counts() map[string]int {
	return map[string]int{
		TableEncounters:         len(s.Encounters),
		TableDepartments:        len(s.Departments),
		TableHospitals:          len(s.Hospitals),
		TableAccounts:           len(s.Accounts),
		TableQualityMeasures:    len(s.QualityMeasures),
		TablePractices:          len(s.Practices),
		TableSurgicalEncounters: len(s.SurgicalEncounters),
		TableSurgicalCosts:      len(s.SurgicalCosts),
	}
}

// DepartmentsByID indexes departments by identifier. The first record wins
// when identifiers repeat.
func (s *Snapshot) DepartmentsByID() map[string]Department {
	return index(s.Departments, func(d Department) string { return d.ID })
}

// HospitalsByID indexes hospitals by identifier.
func (s *Snapshot) HospitalsByID() map[string]Hospital {
	return index(s.Hospitals, func(h Hospital) string { return h.ID })
}

// AccountsByID indexes accounts by identifier.
func (s *Snapshot) AccountsByID() map[string]Account {
	return index(s.Accounts, func(a Account) string { return a.ID })
}

// PracticesByID indexes practices by identifier.
func (s *Snapshot) PracticesByID() map[string]Practice {
	return index(s.Practices, func(p Practice) string { return p.ID })
}

func index[T any](records []T, key func(T) string) map[string]T {
	m := make(map[string]T, len(records))
	for _, r := range records {
		k := key(r)
		if _, ok := m[k]; !ok {
			m[k] = r
		}
	}
	return m
}
