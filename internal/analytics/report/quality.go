package report

import (
	"github.com/ehr/careinsights/internal/analytics/aggregate"
	"github.com/ehr/careinsights/internal/analytics/coerce"
	"github.com/ehr/careinsights/internal/domain/snapshot"
)

type hospitalMeasure struct {
	hospitalID string
	measure    string
}

func complianceByHospitalMeasure(c *coerce.Coercer, snap *snapshot.Snapshot, l limits) ([]Row, error) {
	hospitals := snap.HospitalsByID()

	records := make([]snapshot.QualityMeasureRecord, 0, len(snap.QualityMeasures))
	for _, q := range snap.QualityMeasures {
		if q.HospitalID == nil {
			continue
		}
		if _, ok := hospitals[*q.HospitalID]; ok {
			records = append(records, q)
		}
	}

	groups := aggregate.RateBy(records,
		func(q snapshot.QualityMeasureRecord) hospitalMeasure {
			return hospitalMeasure{hospitalID: *q.HospitalID, measure: q.MeasureName}
		},
		func(q snapshot.QualityMeasureRecord) bool { return c.Bool(q.Compliant) },
	)
	groups = aggregate.FilterMinSample(groups, l.minSample)
	groups = aggregate.TopN(groups, l.top, aggregate.Asc(rateValue))

	rows := make([]Row, 0, len(groups))
	for _, g := range groups {
		r := g.Value
		rows = append(rows, Row{hospitals[g.Key.hospitalID].Name, g.Key.measure, r.Denominator, r.Numerator, nullable(r.Value)})
	}
	return rows, nil
}

func complianceByPractice(c *coerce.Coercer, snap *snapshot.Snapshot, l limits) ([]Row, error) {
	practices := snap.PracticesByID()

	records := make([]snapshot.QualityMeasureRecord, 0, len(snap.QualityMeasures))
	for _, q := range snap.QualityMeasures {
		if q.PracticeID == nil {
			continue
		}
		if _, ok := practices[*q.PracticeID]; ok {
			records = append(records, q)
		}
	}

	groups := aggregate.RateBy(records,
		func(q snapshot.QualityMeasureRecord) string { return *q.PracticeID },
		func(q snapshot.QualityMeasureRecord) bool { return c.Bool(q.Compliant) },
	)
	return rateTable(groups, l, aggregate.Ascending, func(id string) string { return practices[id].Name }), nil
}
