package report

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/careinsights/internal/analytics/coerce"
	"github.com/ehr/careinsights/internal/analytics/integrity"
	"github.com/ehr/careinsights/internal/domain/snapshot"
	"github.com/ehr/careinsights/internal/platform/metrics"
)

// Finding is one data-quality issue on one record.
type Finding struct {
	Type     integrity.FindingType `json:"type"`
	Table    string                `json:"table"`
	Field    string                `json:"field"`
	RecordID string                `json:"record_id"`
	Detail   string                `json:"detail"`
}

// QualityReport collects integrity findings and coercion yields for a snapshot.
type QualityReport struct {
	RunID       uuid.UUID                     `json:"run_id"`
	Source      string                        `json:"source,omitempty"`
	GeneratedAt time.Time                     `json:"generated_at"`
	Summary     map[integrity.FindingType]int `json:"summary"`
	Findings    []Finding                     `json:"findings"`
	Yields      []integrity.Yield             `json:"yields"`
	Warnings    []string                      `json:"warnings,omitempty"`
}

func ref(v *string) string {
	if v == nil {
		return "NULL"
	}
	return *v
}

func optional(v *string) (string, bool) {
	if v == nil {
		return "", false
	}
	return *v, true
}

func orphanFindings[C any](children []C, table, field string, id func(C) string, fk func(C) *string, parentTable string, known map[string]struct{}, opts ...integrity.OrphanOption) []Finding {
	keys := make([]string, 0, len(known))
	for k := range known {
		keys = append(keys, k)
	}
	orphans := integrity.FindOrphans(children, keys,
		func(c C) (string, bool) { return optional(fk(c)) },
		func(k string) string { return k },
		opts...,
	)

	out := make([]Finding, 0, len(orphans))
	for _, o := range orphans {
		out = append(out, Finding{
			Type:     integrity.FindingOrphanReference,
			Table:    table,
			Field:    field,
			RecordID: id(o),
			Detail:   fmt.Sprintf("%s %s has no matching %s row", field, ref(fk(o)), parentTable),
		})
	}
	return out
}

func keySet[T any](records []T, key func(T) string) map[string]struct{} {
	m := make(map[string]struct{}, len(records))
	for _, r := range records {
		m[key(r)] = struct{}{}
	}
	return m
}

type yieldCheck[T any] struct {
	table string
	field string
	kind  coerce.Kind
	value func(T) *string
}

func yields[T any](c *coerce.Coercer, records []T, checks ...yieldCheck[T]) ([]integrity.Yield, error) {
	out := make([]integrity.Yield, 0, len(checks))
	for _, chk := range checks {
		y, err := integrity.CoercionFailureSummary(c, records, chk.table+"."+chk.field, chk.value, chk.kind)
		if err != nil {
			return nil, err
		}
		out = append(out, y)
	}
	return out, nil
}

// DataQuality runs every integrity check against snap.
func (e *Engine) DataQuality(ctx context.Context, snap *snapshot.Snapshot) (*QualityReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := e.coercer
	started := e.now()

	encID := func(x snapshot.Encounter) string { return x.ID }
	deptID := func(x snapshot.Department) string { return x.ID }
	qmID := func(x snapshot.QualityMeasureRecord) string { return x.ID }
	costID := func(x indexedCost) string {
		return fmt.Sprintf("%s/%s/%s#%d", ref(x.SurgicalEncounterID), x.ResourceType, x.ResourceName, x.row)
	}
	costs := make([]indexedCost, len(snap.SurgicalCosts))
	for i, u := range snap.SurgicalCosts {
		costs[i] = indexedCost{row: i + 1, SurgicalResourceUsage: u}
	}

	hospitals := keySet(snap.Hospitals, func(h snapshot.Hospital) string { return h.ID })
	departments := keySet(snap.Departments, deptID)
	accounts := keySet(snap.Accounts, func(a snapshot.Account) string { return a.ID })
	practices := keySet(snap.Practices, func(p snapshot.Practice) string { return p.ID })
	surgeries := keySet(snap.SurgicalEncounters, func(s snapshot.SurgicalEncounter) string { return s.ID })

	var findings []Finding
	findings = append(findings, orphanFindings(snap.Encounters, snapshot.TableEncounters, "department_id", encID,
		func(x snapshot.Encounter) *string { return x.DepartmentID }, snapshot.TableDepartments, departments)...)
	findings = append(findings, orphanFindings(snap.Encounters, snapshot.TableEncounters, "account_id", encID,
		func(x snapshot.Encounter) *string { return x.AccountID }, snapshot.TableAccounts, accounts,
		integrity.AllowNullReference())...)
	findings = append(findings, orphanFindings(snap.Departments, snapshot.TableDepartments, "hospital_id", deptID,
		func(x snapshot.Department) *string { return x.HospitalID }, snapshot.TableHospitals, hospitals)...)
	findings = append(findings, orphanFindings(snap.QualityMeasures, snapshot.TableQualityMeasures, "hospital_id", qmID,
		func(x snapshot.QualityMeasureRecord) *string { return x.HospitalID }, snapshot.TableHospitals, hospitals)...)
	findings = append(findings, orphanFindings(snap.QualityMeasures, snapshot.TableQualityMeasures, "practice_id", qmID,
		func(x snapshot.QualityMeasureRecord) *string { return x.PracticeID }, snapshot.TablePractices, practices)...)
	findings = append(findings, orphanFindings(costs, snapshot.TableSurgicalCosts, "surgical_encounter_id", costID,
		func(x indexedCost) *string { return x.SurgicalEncounterID }, snapshot.TableSurgicalEncounters, surgeries)...)

	for _, v := range integrity.FindTemporalViolations(c, snap.Encounters,
		func(x snapshot.Encounter) *string { return x.AdmittedAt },
		func(x snapshot.Encounter) *string { return x.DischargedAt },
	) {
		findings = append(findings, Finding{
			Type:     integrity.FindingTemporalOrder,
			Table:    snapshot.TableEncounters,
			Field:    "discharged_at",
			RecordID: v.Record.ID,
			Detail: fmt.Sprintf("discharged_at %s is before admitted_at %s",
				v.End.Format(time.RFC3339), v.Start.Format(time.RFC3339)),
		})
	}

	for _, v := range integrity.FindRangeViolations(c, snap.Encounters,
		func(x snapshot.Encounter) *string { return x.LengthOfStay }, 0) {
		findings = append(findings, Finding{
			Type:     integrity.FindingOutOfRange,
			Table:    snapshot.TableEncounters,
			Field:    "length_of_stay",
			RecordID: v.Record.ID,
			Detail:   fmt.Sprintf("length_of_stay %g is negative", v.Value),
		})
	}
	for _, v := range integrity.FindRangeViolations(c, snap.SurgicalEncounters,
		func(x snapshot.SurgicalEncounter) *string { return x.LengthOfStay }, 0) {
		findings = append(findings, Finding{
			Type:     integrity.FindingOutOfRange,
			Table:    snapshot.TableSurgicalEncounters,
			Field:    "length_of_stay",
			RecordID: v.Record.ID,
			Detail:   fmt.Sprintf("length_of_stay %g is negative", v.Value),
		})
	}

	encYields, err := yields(c, snap.Encounters,
		yieldCheck[snapshot.Encounter]{snapshot.TableEncounters, "admitted_at", coerce.KindDatetime, func(x snapshot.Encounter) *string { return x.AdmittedAt }},
		yieldCheck[snapshot.Encounter]{snapshot.TableEncounters, "discharged_at", coerce.KindDatetime, func(x snapshot.Encounter) *string { return x.DischargedAt }},
		yieldCheck[snapshot.Encounter]{snapshot.TableEncounters, "length_of_stay", coerce.KindNumeric, func(x snapshot.Encounter) *string { return x.LengthOfStay }},
		yieldCheck[snapshot.Encounter]{snapshot.TableEncounters, "readmission", coerce.KindBoolean, func(x snapshot.Encounter) *string { return x.Readmission }},
		yieldCheck[snapshot.Encounter]{snapshot.TableEncounters, "inpatient_readmission", coerce.KindBoolean, func(x snapshot.Encounter) *string { return x.InpatientReadmission }},
		yieldCheck[snapshot.Encounter]{snapshot.TableEncounters, "icu", coerce.KindBoolean, func(x snapshot.Encounter) *string { return x.ICU }},
	)
	if err != nil {
		return nil, err
	}
	qmYields, err := yields(c, snap.QualityMeasures,
		yieldCheck[snapshot.QualityMeasureRecord]{snapshot.TableQualityMeasures, "compliant", coerce.KindBoolean, func(x snapshot.QualityMeasureRecord) *string { return x.Compliant }},
	)
	if err != nil {
		return nil, err
	}
	surgYields, err := yields(c, snap.SurgicalEncounters,
		yieldCheck[snapshot.SurgicalEncounter]{snapshot.TableSurgicalEncounters, "length_of_stay", coerce.KindNumeric, func(x snapshot.SurgicalEncounter) *string { return x.LengthOfStay }},
	)
	if err != nil {
		return nil, err
	}

	all := append(append(encYields, qmYields...), surgYields...)
	summary := map[integrity.FindingType]int{
		integrity.FindingOrphanReference: 0,
		integrity.FindingTemporalOrder:   0,
		integrity.FindingOutOfRange:      0,
		integrity.FindingUnconvertible:   0,
	}
	for _, f := range findings {
		summary[f.Type]++
	}
	for _, y := range all {
		summary[integrity.FindingUnconvertible] += y.Unconvertible
	}
	for t, n := range summary {
		metrics.DataQualityFindings.WithLabelValues(snap.Source, string(t)).Set(float64(n))
	}

	warnings := unrecognisedBooleans(all)
	for _, w := range warnings {
		e.logger.Warn().Str("source", snap.Source).Msg(w)
	}
	if findings == nil {
		findings = []Finding{}
	}

	e.logger.Debug().
		Int("findings", len(findings)).
		Dur("duration", e.now().Sub(started)).
		Msg("data quality check complete")

	return &QualityReport{
		RunID:       uuid.New(),
		Source:      snap.Source,
		GeneratedAt: e.now().UTC(),
		Summary:     summary,
		Findings:    findings,
		Yields:      all,
		Warnings:    warnings,
	}, nil
}

// indexedCost carries the 1-based row of a resource usage, which has no
// identifier of its own.
type indexedCost struct {
	row int
	snapshot.SurgicalResourceUsage
}

// unrecognisedBooleans flags boolean fields where no non-null value matched
// a truthy or falsy literal. Rates over such a field are always zero, which
// usually means the source encodes booleans differently (for example a
// Postgres BOOLEAN column read as "true"/"false").
func unrecognisedBooleans(ys []integrity.Yield) []string {
	var out []string
	for _, y := range ys {
		if y.Kind != coerce.KindBoolean || y.Converted > 0 || y.Total == y.Null {
			continue
		}
		out = append(out, fmt.Sprintf("%s: none of %d values matched a boolean literal; check TRUTHY_LITERALS and FALSY_LITERALS",
			y.Field, y.Total-y.Null))
	}
	return out
}

// Tables renders the report as a findings table and a yield table.
func (q *QualityReport) Tables() []*Table {
	findings := &Table{
		ID:    "data_quality_findings",
		Title: "Data Quality Findings",
		Columns: []Column{
			colText("type", "Type"),
			colText("table", "Table"),
			colText("field", "Field"),
			colText("record_id", "Record"),
			colText("detail", "Detail"),
		},
		Rows:        make([]Row, 0, len(q.Findings)),
		Source:      q.Source,
		RunID:       q.RunID,
		GeneratedAt: q.GeneratedAt,
	}
	for _, f := range q.Findings {
		findings.Rows = append(findings.Rows, Row{string(f.Type), f.Table, f.Field, f.RecordID, f.Detail})
	}

	yieldTable := &Table{
		ID:    "coercion_yield",
		Title: "Coercion Yield",
		Columns: []Column{
			colText("field", "Field"),
			colText("kind", "Kind"),
			colCount("total", "Total"),
			colCount("converted", "Converted"),
			colCount("null", "Null"),
			colCount("unconvertible", "Unconvertible"),
			colRate("yield_rate", "Yield"),
		},
		Rows:        make([]Row, 0, len(q.Yields)),
		Source:      q.Source,
		RunID:       q.RunID,
		GeneratedAt: q.GeneratedAt,
	}
	for _, y := range q.Yields {
		yieldTable.Rows = append(yieldTable.Rows, Row{y.Field, string(y.Kind), y.Total, y.Converted, y.Null, y.Unconvertible, nullable(y.YieldRate)})
	}
	return []*Table{findings, yieldTable}
}
