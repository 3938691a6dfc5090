package report

import (
	"github.com/ehr/careinsights/internal/analytics/aggregate"
	"github.com/ehr/careinsights/internal/analytics/coerce"
	"github.com/ehr/careinsights/internal/domain/snapshot"
)

func bySpecialty(s snapshot.SurgicalEncounter) string { return s.Specialty }

func money(v *float64) (float64, bool) {
	if v == nil {
		return 0, false
	}
	return *v, true
}

// specialtyCost tracks surgical length of stay and cost for one specialty.
type specialtyCost struct {
	cases int
	los   aggregate.Average
	cost  aggregate.Average
}

func (s specialtyCost) SampleSize() int { return s.cases }

func specialtyAvgLOS(s specialtyCost) *float64  { return s.los.Mean }
func specialtyAvgCost(s specialtyCost) *float64 { return s.cost.Mean }

func addTo(a *aggregate.Average, v float64, ok bool) {
	a.Records++
	if ok {
		a.Values++
		a.Sum += v
	}
}

func surgicalCostBySpecialty(c *coerce.Coercer, snap *snapshot.Snapshot, l limits) ([]Row, error) {
	groups := aggregate.Summarize(snap.SurgicalEncounters, bySpecialty, func(acc *specialtyCost, s snapshot.SurgicalEncounter) {
		acc.cases++
		los, ok := c.Float(s.LengthOfStay)
		addTo(&acc.los, los, ok)
		cost, ok := money(s.TotalCost)
		addTo(&acc.cost, cost, ok)
	})
	for i := range groups {
		g := &groups[i].Value
		g.los.Mean = aggregate.SafeDivide(g.los.Sum, float64(g.los.Values))
		g.cost.Mean = aggregate.SafeDivide(g.cost.Sum, float64(g.cost.Values))
	}

	groups = aggregate.FilterMinSample(groups, l.minSample)
	groups = aggregate.TopN(groups, l.top, aggregate.Desc(specialtyAvgCost), aggregate.Desc(specialtyAvgLOS))

	rows := make([]Row, 0, len(groups))
	for _, g := range groups {
		s := g.Value
		rows = append(rows, Row{g.Key, s.cases, nullable(s.los.Mean), nullable(s.cost.Mean)})
	}
	return rows, nil
}

// specialtyProfit totals cost and profit for one specialty.
type specialtyProfit struct {
	cases  int
	cost   float64
	profit float64
	margin *float64
}

func (s specialtyProfit) SampleSize() int { return s.cases }

func surgicalProfitBySpecialty(_ *coerce.Coercer, snap *snapshot.Snapshot, l limits) ([]Row, error) {
	groups := aggregate.Summarize(snap.SurgicalEncounters, bySpecialty, func(acc *specialtyProfit, s snapshot.SurgicalEncounter) {
		acc.cases++
		if s.TotalCost != nil {
			acc.cost += *s.TotalCost
		}
		if s.TotalProfit != nil {
			acc.profit += *s.TotalProfit
		}
	})
	// margin is profit over revenue, where revenue is cost plus profit
	for i := range groups {
		p := &groups[i].Value
		p.margin = aggregate.SafeDivide(p.profit, p.cost+p.profit)
	}

	groups = aggregate.FilterMinSample(groups, l.minSample)
	groups = aggregate.TopN(groups, l.top, aggregate.Desc(func(p specialtyProfit) *float64 { return p.margin }))

	rows := make([]Row, 0, len(groups))
	for _, g := range groups {
		p := g.Value
		rows = append(rows, Row{g.Key, p.cases, p.cost, p.profit, nullable(p.margin)})
	}
	return rows, nil
}

type resourceKey struct {
	resourceType string
	name         string
}

func surgicalResourceCost(_ *coerce.Coercer, snap *snapshot.Snapshot, l limits) ([]Row, error) {
	known := make(map[string]struct{}, len(snap.SurgicalEncounters))
	for _, s := range snap.SurgicalEncounters {
		known[s.ID] = struct{}{}
	}

	usage := make([]snapshot.SurgicalResourceUsage, 0, len(snap.SurgicalCosts))
	for _, u := range snap.SurgicalCosts {
		if u.SurgicalEncounterID == nil {
			continue
		}
		if _, ok := known[*u.SurgicalEncounterID]; ok {
			usage = append(usage, u)
		}
	}

	groups := aggregate.SumBy(usage,
		func(u snapshot.SurgicalResourceUsage) resourceKey {
			return resourceKey{resourceType: u.ResourceType, name: u.ResourceName}
		},
		func(u snapshot.SurgicalResourceUsage) (float64, bool) { return money(u.Cost) },
	)
	groups = aggregate.FilterMinSample(groups, l.minSample)
	groups = aggregate.TopN(groups, l.top, aggregate.Desc(func(s aggregate.Sum) *float64 {
		if s.Values == 0 {
			return nil
		}
		return aggregate.Float(s.Total)
	}))

	rows := make([]Row, 0, len(groups))
	for _, g := range groups {
		s := g.Value
		rows = append(rows, Row{g.Key.resourceType, g.Key.name, s.Records, s.Total, nullable(aggregate.SafeDivide(s.Total, float64(s.Values)))})
	}
	return rows, nil
}
