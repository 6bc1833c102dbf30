package api

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hoangvle/recall-cycle/internal/gate"
)

// usageCollector exposes the persisted usage counters as gauges. Reading
// at scrape time keeps the metrics consistent with usage.json without a
// second bookkeeping path.
type usageCollector struct {
	gate     *gate.Gate
	provider string

	dayTotal  *prometheus.Desc
	hourTotal *prometheus.Desc
	byType    *prometheus.Desc
}

func newUsageCollector(g *gate.Gate, provider string) *usageCollector {
	return &usageCollector{
		gate:     g,
		provider: provider,
		dayTotal: prometheus.NewDesc(
			"recall_cycle_usage_day_total",
			"Successful provider calls so far this UTC day.",
			[]string{"provider"}, nil),
		hourTotal: prometheus.NewDesc(
			"recall_cycle_usage_hour_total",
			"Successful provider calls so far this UTC hour.",
			[]string{"provider"}, nil),
		byType: prometheus.NewDesc(
			"recall_cycle_usage_calls",
			"Successful provider calls this UTC day by call type.",
			[]string{"provider", "call_type"}, nil),
	}
}

func (uc *usageCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- uc.dayTotal
	ch <- uc.hourTotal
	ch <- uc.byType
}

func (uc *usageCollector) Collect(ch chan<- prometheus.Metric) {
	if uc.gate == nil {
		return
	}
	snap, err := uc.gate.Usage(uc.provider)
	if err != nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(uc.dayTotal, prometheus.GaugeValue,
		float64(snap.DayTotal), snap.Provider)
	ch <- prometheus.MustNewConstMetric(uc.hourTotal, prometheus.GaugeValue,
		float64(snap.HourTotal), snap.Provider)
	for callType, n := range snap.ByType {
		ch <- prometheus.MustNewConstMetric(uc.byType, prometheus.GaugeValue,
			float64(n), snap.Provider, callType)
	}
}
