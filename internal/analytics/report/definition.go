package report

import (
	"github.com/ehr/careinsights/internal/analytics/coerce"
	"github.com/ehr/careinsights/internal/domain/snapshot"
)

// Definition describes a named report and its default policy.
type Definition struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Columns     []Column `json:"columns"`
	MinSample   int      `json:"min_sample"`
	Top         int      `json:"top"`

	build builder
}

// limits are the effective threshold and row cap for one evaluation.
type limits struct {
	minSample int
	top       int
}

type builder func(c *coerce.Coercer, snap *snapshot.Snapshot, l limits) ([]Row, error)

// Report identifiers.
const (
	ReadmissionRateByHospital        = "readmission_rate_by_hospital"
	InpatientReadmissionByDepartment = "inpatient_readmission_by_department"
	RiskHotspots                     = "risk_hotspots"
	ComplianceByHospitalMeasure      = "compliance_by_hospital_measure"
	SurgicalCostBySpecialty          = "surgical_cost_by_specialty"
	ICURateByDepartment              = "icu_rate_by_department"
	AvgLOSByHospital                 = "avg_los_by_hospital"
	ReadmissionByPrimaryDiagnosis    = "readmission_by_primary_diagnosis"
	SurgicalProfitBySpecialty        = "surgical_profit_by_specialty"
	SurgicalResourceCost             = "surgical_resource_cost"
	ComplianceByPractice             = "compliance_by_practice"
)

// registry is the ordered list of reports the engine can evaluate.
var registry = []Definition{
	{
		ID:          ReadmissionRateByHospital,
		Title:       "Readmission Rate by Hospital",
		Description: "Share of encounters flagged as readmissions, per hospital, highest first.",
		Columns: []Column{
			colText("hospital_name", "Hospital"),
			colCount("total_encounters", "Encounters"),
			colCount("readmissions", "Readmissions"),
			colRate("readmission_rate", "Readmission Rate"),
		},
		build: readmissionRateByHospital,
	},
	{
		ID:          InpatientReadmissionByDepartment,
		Title:       "Inpatient Readmission by Department",
		Description: "Share of encounters flagged as inpatient readmissions, per department, highest first.",
		Columns: []Column{
			colText("department_name", "Department"),
			colCount("total_encounters", "Encounters"),
			colCount("inpatient_readmissions", "Inpatient Readmissions"),
			colRate("inpatient_readmission_rate", "Inpatient Readmission Rate"),
		},
		MinSample: 20,
		build:     inpatientReadmissionByDepartment,
	},
	{
		ID:          RiskHotspots,
		Title:       "Risk Hotspots",
		Description: "Departments above the cross-department average on both length of stay and readmission rate.",
		Columns: []Column{
			colText("department_name", "Department"),
			colCount("total_encounters", "Encounters"),
			colDecimal("avg_los_days", "Avg LOS (days)"),
			colCount("readmissions", "Readmissions"),
			colRate("readmission_rate", "Readmission Rate"),
		},
		MinSample: 20,
		build:     riskHotspots,
	},
	{
		ID:          ComplianceByHospitalMeasure,
		Title:       "Compliance by Hospital and Measure",
		Description: "Quality-measure compliance per hospital and measure, worst first.",
		Columns: []Column{
			colText("hospital_name", "Hospital"),
			colText("measure_name", "Measure"),
			colCount("total_records", "Records"),
			colCount("compliant_records", "Compliant"),
			colRate("compliance_rate", "Compliance Rate"),
		},
		MinSample: 50,
		build:     complianceByHospitalMeasure,
	},
	{
		ID:          SurgicalCostBySpecialty,
		Title:       "Surgical Cost by Specialty",
		Description: "Average cost and length of stay of surgical cases per specialty, most expensive first.",
		Columns: []Column{
			colText("specialty", "Specialty"),
			colCount("surgery_cases", "Cases"),
			colDecimal("avg_surgical_los", "Avg LOS (days)"),
			colDecimal("avg_surgical_cost", "Avg Cost"),
		},
		MinSample: 30,
		build:     surgicalCostBySpecialty,
	},
	{
		ID:          ICURateByDepartment,
		Title:       "ICU Rate by Department",
		Description: "Share of encounters with an ICU stay, per department, highest first.",
		Columns: []Column{
			colText("department_name", "Department"),
			colCount("total_encounters", "Encounters"),
			colCount("icu_encounters", "ICU Encounters"),
			colRate("icu_rate", "ICU Rate"),
		},
		MinSample: 20,
		build:     icuRateByDepartment,
	},
	{
		ID:          AvgLOSByHospital,
		Title:       "Average Length of Stay by Hospital",
		Description: "Mean length of stay over encounters with a readable value, per hospital, longest first.",
		Columns: []Column{
			colText("hospital_name", "Hospital"),
			colCount("total_encounters", "Encounters"),
			colCount("los_records", "LOS Records"),
			colDecimal("avg_los_days", "Avg LOS (days)"),
		},
		build: avgLOSByHospital,
	},
	{
		ID:          ReadmissionByPrimaryDiagnosis,
		Title:       "Readmission Rate by Primary Diagnosis",
		Description: "Diagnoses with the highest readmission rates.",
		Columns: []Column{
			colText("primary_diagnosis", "Primary Diagnosis"),
			colCount("total_encounters", "Encounters"),
			colCount("readmissions", "Readmissions"),
			colRate("readmission_rate", "Readmission Rate"),
		},
		MinSample: 20,
		Top:       10,
		build:     readmissionByPrimaryDiagnosis,
	},
	{
		ID:          SurgicalProfitBySpecialty,
		Title:       "Surgical Profit by Specialty",
		Description: "Total cost, total profit and profit margin per specialty, best margin first.",
		Columns: []Column{
			colText("specialty", "Specialty"),
			colCount("surgery_cases", "Cases"),
			colDecimal("total_cost", "Total Cost"),
			colDecimal("total_profit", "Total Profit"),
			colRate("profit_margin", "Profit Margin"),
		},
		MinSample: 30,
		build:     surgicalProfitBySpecialty,
	},
	{
		ID:          SurgicalResourceCost,
		Title:       "Surgical Resource Cost",
		Description: "Resources with the highest total cost across surgical encounters.",
		Columns: []Column{
			colText("resource_type", "Resource Type"),
			colText("resource_name", "Resource"),
			colCount("usage_count", "Uses"),
			colDecimal("total_cost", "Total Cost"),
			colDecimal("avg_cost", "Avg Cost"),
		},
		Top:   20,
		build: surgicalResourceCost,
	},
	{
		ID:          ComplianceByPractice,
		Title:       "Compliance by Practice",
		Description: "Quality-measure compliance per practice, worst first.",
		Columns: []Column{
			colText("practice_name", "Practice"),
			colCount("total_records", "Records"),
			colCount("compliant_records", "Compliant"),
			colRate("compliance_rate", "Compliance Rate"),
		},
		MinSample: 50,
		build:     complianceByPractice,
	},
}

// Definitions returns every report definition in registry order.
func Definitions() []Definition {
	out := make([]Definition, len(registry))
	copy(out, registry)
	return out
}

// Find looks up a report definition by ID.
func Find(id string) (Definition, bool) {
	for _, d := range registry {
		if d.ID == id {
			return d, true
		}
	}
	return Definition{}, false
}
