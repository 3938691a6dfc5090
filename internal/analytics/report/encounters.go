package report

import (
	"github.com/ehr/careinsights/internal/analytics/aggregate"
	"github.com/ehr/careinsights/internal/analytics/coerce"
	"github.com/ehr/careinsights/internal/domain/snapshot"
)

// encounterRow is an encounter joined to its department and, when the
// department resolves one, its hospital.
type encounterRow struct {
	snapshot.Encounter
	dept     snapshot.Department
	hospital *snapshot.Hospital
}

// joinEncounters inner-joins encounters to departments. Encounters without
// a matching department are left out; the integrity check reports them.
func joinEncounters(snap *snapshot.Snapshot) []encounterRow {
	depts := snap.DepartmentsByID()
	hospitals := snap.HospitalsByID()

	out := make([]encounterRow, 0, len(snap.Encounters))
	for _, enc := range snap.Encounters {
		if enc.DepartmentID == nil {
			continue
		}
		d, ok := depts[*enc.DepartmentID]
		if !ok {
			continue
		}
		row := encounterRow{Encounter: enc, dept: d}
		if d.HospitalID != nil {
			if h, ok := hospitals[*d.HospitalID]; ok {
				row.hospital = &h
			}
		}
		out = append(out, row)
	}
	return out
}

func withHospital(rows []encounterRow) []encounterRow {
	out := make([]encounterRow, 0, len(rows))
	for _, r := range rows {
		if r.hospital != nil {
			out = append(out, r)
		}
	}
	return out
}

func byDepartment(r encounterRow) string { return r.dept.ID }
func byHospital(r encounterRow) string   { return r.hospital.ID }

func rateValue(r aggregate.Rate) *float64       { return r.Value }
func averageValue(a aggregate.Average) *float64 { return a.Mean }

// rateTable filters, orders and renders grouped rates. label maps a group
// key to its display name.
func rateTable(groups []aggregate.Group[string, aggregate.Rate], l limits, dir aggregate.Direction, label func(string) string) []Row {
	groups = aggregate.FilterMinSample(groups, l.minSample)
	groups = aggregate.TopN(groups, l.top, aggregate.SortKey[aggregate.Rate]{Value: rateValue, Direction: dir})

	rows := make([]Row, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, Row{label(g.Key), g.Value.Denominator, g.Value.Numerator, nullable(g.Value.Value)})
	}
	return rows
}

func departmentNames(rows []encounterRow) func(string) string {
	names := make(map[string]string)
	for _, r := range rows {
		names[r.dept.ID] = r.dept.Name
	}
	return func(id string) string { return names[id] }
}

func hospitalNames(rows []encounterRow) func(string) string {
	names := make(map[string]string)
	for _, r := range rows {
		if r.hospital != nil {
			names[r.hospital.ID] = r.hospital.Name
		}
	}
	return func(id string) string { return names[id] }
}

func readmissionRateByHospital(c *coerce.Coercer, snap *snapshot.Snapshot, l limits) ([]Row, error) {
	rows := withHospital(joinEncounters(snap))
	groups := aggregate.RateBy(rows, byHospital, func(r encounterRow) bool { return c.Bool(r.Readmission) })
	return rateTable(groups, l, aggregate.Descending, hospitalNames(rows)), nil
}

func inpatientReadmissionByDepartment(c *coerce.Coercer, snap *snapshot.Snapshot, l limits) ([]Row, error) {
	rows := joinEncounters(snap)
	groups := aggregate.RateBy(rows, byDepartment, func(r encounterRow) bool { return c.Bool(r.InpatientReadmission) })
	return rateTable(groups, l, aggregate.Descending, departmentNames(rows)), nil
}

func icuRateByDepartment(c *coerce.Coercer, snap *snapshot.Snapshot, l limits) ([]Row, error) {
	rows := joinEncounters(snap)
	groups := aggregate.RateBy(rows, byDepartment, func(r encounterRow) bool { return c.Bool(r.ICU) })
	return rateTable(groups, l, aggregate.Descending, departmentNames(rows)), nil
}

func avgLOSByHospital(c *coerce.Coercer, snap *snapshot.Snapshot, l limits) ([]Row, error) {
	rows := withHospital(joinEncounters(snap))
	groups := aggregate.AverageBy(rows, byHospital, func(r encounterRow) (float64, bool) { return c.Float(r.LengthOfStay) })
	groups = aggregate.FilterMinSample(groups, l.minSample)
	groups = aggregate.TopN(groups, l.top, aggregate.Desc(averageValue))

	names := hospitalNames(rows)
	out := make([]Row, 0, len(groups))
	for _, g := range groups {
		out = append(out, Row{names(g.Key), g.Value.Records, g.Value.Values, nullable(g.Value.Mean)})
	}
	return out, nil
}

// departmentRisk tracks length of stay and readmissions for one department.
type departmentRisk struct {
	encounters   int
	los          aggregate.Average
	readmissions int
	rate         *float64
}

func (d departmentRisk) SampleSize() int { return d.encounters }

func riskLOS(d departmentRisk) *float64  { return d.los.Mean }
func riskRate(d departmentRisk) *float64 { return d.rate }

func riskHotspots(c *coerce.Coercer, snap *snapshot.Snapshot, l limits) ([]Row, error) {
	rows := joinEncounters(snap)
	groups := aggregate.Summarize(rows, byDepartment, func(acc *departmentRisk, r encounterRow) {
		acc.encounters++
		acc.los.Records++
		if v, ok := c.Float(r.LengthOfStay); ok {
			acc.los.Values++
			acc.los.Sum += v
		}
		if c.Bool(r.Readmission) {
			acc.readmissions++
		}
	})
	for i := range groups {
		d := &groups[i].Value
		d.los.Mean = aggregate.SafeDivide(d.los.Sum, float64(d.los.Values))
		d.rate = aggregate.Ratio(d.readmissions, d.encounters)
	}

	groups = aggregate.FilterMinSample(groups, l.minSample)
	hot, _, err := aggregate.RankRelativeToAverage(groups,
		aggregate.Metric[departmentRisk]{Name: "avg_los_days", Value: riskLOS},
		aggregate.Metric[departmentRisk]{Name: "readmission_rate", Value: riskRate},
	)
	if err != nil {
		return nil, err
	}
	hot = aggregate.TopN(hot, l.top, aggregate.Desc(riskLOS), aggregate.Desc(riskRate))

	names := departmentNames(rows)
	out := make([]Row, 0, len(hot))
	for _, g := range hot {
		d := g.Value
		out = append(out, Row{names(g.Key), d.encounters, nullable(d.los.Mean), d.readmissions, nullable(d.rate)})
	}
	return out, nil
}

func readmissionByPrimaryDiagnosis(c *coerce.Coercer, snap *snapshot.Snapshot, l limits) ([]Row, error) {
	accounts := snap.AccountsByID()

	type diagnosed struct {
		diagnosis string
		readmit   bool
	}
	rows := make([]diagnosed, 0, len(snap.Encounters))
	for _, enc := range snap.Encounters {
		if enc.AccountID == nil {
			continue
		}
		acct, ok := accounts[*enc.AccountID]
		if !ok || acct.PrimaryDiagnosis == nil || *acct.PrimaryDiagnosis == "" {
			continue
		}
		rows = append(rows, diagnosed{diagnosis: *acct.PrimaryDiagnosis, readmit: c.Bool(enc.Readmission)})
	}

	groups := aggregate.RateBy(rows,
		func(d diagnosed) string { return d.diagnosis },
		func(d diagnosed) bool { return d.readmit },
	)
	return rateTable(groups, l, aggregate.Descending, func(k string) string { return k }), nil
}
