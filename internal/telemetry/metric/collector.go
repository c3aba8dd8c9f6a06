package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StateFunc reports the local state sampled at collection time.
type StateFunc func() (configurations int, sessionRecords int, err error)

// Collector exposes local store state as gauges.
type Collector struct {
	state StateFunc

	configurations *prometheus.Desc
	sessionRecords *prometheus.Desc
	up             *prometheus.Desc
}

// NewCollector creates a collector that samples state on every scrape.
func NewCollector(state StateFunc) *Collector {
	return &Collector{
		state: state,
		configurations: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "configurations"),
			"Host configurations in the credential store.",
			nil, nil,
		),
		sessionRecords: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "session_records"),
			"Active session records on disk.",
			nil, nil,
		),
		up: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "state_up"),
			"Whether local state could be read.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.configurations
	ch <- c.sessionRecords
	ch <- c.up
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	configs, records, err := c.state()
	if err != nil {
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 0)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 1)
	ch <- prometheus.MustNewConstMetric(c.configurations, prometheus.GaugeValue, float64(configs))
	ch <- prometheus.MustNewConstMetric(c.sessionRecords, prometheus.GaugeValue, float64(records))
}
