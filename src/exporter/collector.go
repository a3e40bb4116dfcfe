package exporter

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"restic-exporter/src/metrics"
	"restic-exporter/src/state"
)

// Source is the read side of one monitored target.
type Source interface {
	Name() string
	State() state.TargetState
}

// Collector exposes the published state of every source. It only reads
// state cells, so a scrape never waits on repository I/O.
type Collector struct {
	sources []Source
	descs   map[metrics.Family]*prometheus.Desc
	log     *slog.Logger
}

var _ prometheus.Collector = (*Collector)(nil)

func New(sources []Source, log *slog.Logger) *Collector {
	if log == nil {
		log = slog.Default()
	}
	descs := make(map[metrics.Family]*prometheus.Desc)
	for _, f := range metrics.Families() {
		descs[f] = prometheus.NewDesc(
			prometheus.BuildFQName(metrics.Namespace, "", f.Name()),
			f.Help(),
			f.Labels(), nil,
		)
	}
	return &Collector{sources: sources, descs: descs, log: log}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, f := range metrics.Families() {
		ch <- c.descs[f]
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, src := range c.sources {
		st := src.State()
		if !st.Ready {
			c.log.Debug("repository is not ready yet", "target", src.Name())
			continue
		}
		res := metrics.Map(src.Name(), st)
		c.logWarnings(src.Name(), res.Warnings)
		for _, o := range res.Observations {
			m, err := prometheus.NewConstMetric(c.descs[o.Family], prometheus.GaugeValue, o.Value, o.Labels...)
			if err != nil {
				ch <- prometheus.NewInvalidMetric(c.descs[o.Family], err)
				continue
			}
			ch <- m
		}
	}
}

func (c *Collector) logWarnings(target string, warnings []metrics.Warning) {
	for _, w := range warnings {
		switch w.Kind {
		case metrics.WarningMissingSummary:
			c.log.Debug(w.Kind.String(), "target", target, "snapshot_id", w.SnapshotID)
		default:
			c.log.Warn(w.Kind.String(), "target", target, "snapshot_id", w.SnapshotID)
		}
	}
}

// Ready reports whether every usable source has published a ready state.
// Sources that expose Disabled() and report true are not waited for.
func Ready(sources []Source) bool {
	for _, src := range sources {
		if d, ok := src.(interface{ Disabled() bool }); ok && d.Disabled() {
			continue
		}
		if !src.State().Ready {
			return false
		}
	}
	return true
}
