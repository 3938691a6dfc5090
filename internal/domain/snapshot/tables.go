package snapshot

import (
	"fmt"
	"strconv"
	"strings"
)

// row is one raw record keyed by column name. A nil value is NULL.
type row map[string]*string

func (r row) text(col string) string {
	if v := r[col]; v != nil {
		return *v
	}
	return ""
}

func (r row) opt(col string) *string {
	return r[col]
}

// num parses a money column. NULL and blank cells are nil; anything else
// must be a valid number.
func (r row) num(col string) (*float64, error) {
	v := r[col]
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(*v), 64)
	if err != nil {
		return nil, fmt.Errorf("column %s: %w", col, err)
	}
	return &f, nil
}

// table describes how to turn raw rows of one table into typed records.
type table[T any] struct {
	name    string
	columns []string
	build   func(row) (T, error)
}

var encountersTable = table[Encounter]{
	name: TableEncounters,
	columns: []string{"encounter_id", "department_id", "admitted_at", "discharged_at", "length_of_stay",
		"readmission", "inpatient_readmission", "icu", "account_id"},
	build: func(r row) (Encounter, error) {
		return Encounter{
			ID:                   r.text("encounter_id"),
			DepartmentID:         r.opt("department_id"),
			AdmittedAt:           r.opt("admitted_at"),
			DischargedAt:         r.opt("discharged_at"),
			LengthOfStay:         r.opt("length_of_stay"),
			Readmission:          r.opt("readmission"),
			InpatientReadmission: r.opt("inpatient_readmission"),
			ICU:                  r.opt("icu"),
			AccountID:            r.opt("account_id"),
		}, nil
	},
}

var departmentsTable = table[Department]{
	name:    TableDepartments,
	columns: []string{"department_id", "department_name", "hospital_id"},
	build: func(r row) (Department, error) {
		return Department{ID: r.text("department_id"), Name: r.text("department_name"), HospitalID: r.opt("hospital_id")}, nil
	},
}

var hospitalsTable = table[Hospital]{
	name:    TableHospitals,
	columns: []string{"hospital_id", "hospital_name"},
	build: func(r row) (Hospital, error) {
		return Hospital{ID: r.text("hospital_id"), Name: r.text("hospital_name")}, nil
	},
}

var accountsTable = table[Account]{
	name:    TableAccounts,
	columns: []string{"account_id", "primary_diagnosis"},
	build: func(r row) (Account, error) {
		return Account{ID: r.text("account_id"), PrimaryDiagnosis: r.opt("primary_diagnosis")}, nil
	},
}

var qualityMeasuresTable = table[QualityMeasureRecord]{
	name:    TableQualityMeasures,
	columns: []string{"record_id", "measure_name", "hospital_id", "practice_id", "compliant"},
	build: func(r row) (QualityMeasureRecord, error) {
		return QualityMeasureRecord{
			ID:          r.text("record_id"),
			MeasureName: r.text("measure_name"),
			HospitalID:  r.opt("hospital_id"),
			PracticeID:  r.opt("practice_id"),
			Compliant:   r.opt("compliant"),
		}, nil
	},
}

var practicesTable = table[Practice]{
	name:    TablePractices,
	columns: []string{"practice_id", "practice_name"},
	build: func(r row) (Practice, error) {
		return Practice{ID: r.text("practice_id"), Name: r.text("practice_name")}, nil
	},
}

var surgicalEncountersTable = table[SurgicalEncounter]{
	name:    TableSurgicalEncounters,
	columns: []string{"surgical_encounter_id", "specialty", "length_of_stay", "total_cost", "total_profit"},
	build: func(r row) (SurgicalEncounter, error) {
		cost, err := r.num("total_cost")
		if err != nil {
			return SurgicalEncounter{}, err
		}
		profit, err := r.num("total_profit")
		if err != nil {
			return SurgicalEncounter{}, err
		}
		return SurgicalEncounter{
			ID:           r.text("surgical_encounter_id"),
			Specialty:    r.text("specialty"),
			LengthOfStay: r.opt("length_of_stay"),
			TotalCost:    cost,
			TotalProfit:  profit,
		}, nil
	},
}

var surgicalCostsTable = table[SurgicalResourceUsage]{
	name:    TableSurgicalCosts,
	columns: []string{"surgical_encounter_id", "resource_type", "resource_name", "cost"},
	build: func(r row) (SurgicalResourceUsage, error) {
		cost, err := r.num("cost")
		if err != nil {
			return SurgicalResourceUsage{}, err
		}
		return SurgicalResourceUsage{
			SurgicalEncounterID: r.opt("surgical_encounter_id"),
			ResourceType:        r.text("resource_type"),
			ResourceName:        r.text("resource_name"),
			Cost:                cost,
		}, nil
	},
}

// loader reads every row of one table.
type loader interface {
	rows(name string, columns []string, fn func(row) error) error
}

func readTable[T any](l loader, t table[T]) ([]T, error) {
	out := make([]T, 0)
	n := 0
	err := l.rows(t.name, t.columns, func(r row) error {
		n++
		rec, err := t.build(r)
		if err != nil {
			return fmt.Errorf("row %d: %w", n, err)
		}
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.name, err)
	}
	return out, nil
}

// readAll fills a snapshot from a row loader, one table at a time.
func readAll(l loader, snap *Snapshot) error {
	var err error
	if snap.Encounters, err = readTable(l, encountersTable); err != nil {
		return err
	}
	if snap.Departments, err = readTable(l, departmentsTable); err != nil {
		return err
	}
	if snap.Hospitals, err = readTable(l, hospitalsTable); err != nil {
		return err
	}
	if snap.Accounts, err = readTable(l, accountsTable); err != nil {
		return err
	}
	if snap.QualityMeasures, err = readTable(l, qualityMeasuresTable); err != nil {
		return err
	}
	if snap.Practices, err = readTable(l, practicesTable); err != nil {
		return err
	}
	if snap.SurgicalEncounters, err = readTable(l, surgicalEncountersTable); err != nil {
		return err
	}
	if snap.SurgicalCosts, err = readTable(l, surgicalCostsTable); err != nil {
		return err
	}
	return nil
}
