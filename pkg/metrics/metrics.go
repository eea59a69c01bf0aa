package metrics

import (
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
)

// Sources a Get can be answered from.
const (
	SourceMemtable = "memtable"
	SourceTable    = "table"
	SourceMiss     = "miss"
)

// Metrics holds the collectors for a single storage engine.
type Metrics struct {
	// Sets counts accepted writes.
	Sets prometheus.Counter
	// Gets counts reads by the component that answered them.
	Gets *prometheus.CounterVec
	// Flushes counts memtable flushes into the table.
	Flushes prometheus.Counter
	// FlushDuration is the latency of a flush, merge and rewrite included.
	FlushDuration prometheus.Histogram
	Clears        prometheus.Counter

	MemtableRecords prometheus.Gauge
	TableRecords    prometheus.Gauge
}

// New creates the collectors and registers them on reg. A nil reg leaves them
// unregistered, which is useful for embedding without exposing metrics.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Sets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cobble_sets_total",
			Help: "Total number of accepted writes",
		}),
		Gets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cobble_gets_total",
			Help: "Total number of reads by answering component",
		}, []string{"source"}),
		Flushes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cobble_flushes_total",
			Help: "Total number of memtable flushes",
		}),
		FlushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cobble_flush_duration_seconds",
			Help:    "Memtable flush latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		Clears: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cobble_clears_total",
			Help: "Total number of clear operations",
		}),
		MemtableRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cobble_memtable_records",
			Help: "Number of records buffered in the memtable",
		}),
		TableRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cobble_table_records",
			Help: "Number of records in the sorted table",
		}),
	}

	if reg == nil {
		return m, nil
	}

	var result *multierror.Error
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Sets,
		m.Gets,
		m.Flushes,
		m.FlushDuration,
		m.Clears,
		m.MemtableRecords,
		m.TableRecords,
	}
}
