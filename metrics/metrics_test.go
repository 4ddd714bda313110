package metrics_test

import (
	"context"
	"testing"
	"time"

	"github.com/influx6/mgoquery/db/pool"
	"github.com/influx6/mgoquery/metrics"
	"github.com/influx6/mgoquery/tests"
	"github.com/prometheus/client_golang/prometheus"
)

//==============================================================================

type source pool.Stats

func (s source) Stats() pool.Stats {
	return pool.Stats(s)
}

// gather returns every sample value gathered from reg keyed by metric name.
func gather(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to gather metrics: %v", tests.Failed, err)
	}

	values := make(map[string]float64)
	for _, family := range families {
		for _, m := range family.GetMetric() {
			switch {
			case m.GetGauge() != nil:
				values[family.GetName()] += m.GetGauge().GetValue()
			case m.GetCounter() != nil:
				values[family.GetName()] += m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				values[family.GetName()] += float64(m.GetHistogram().GetSampleCount())
			}
		}
	}

	return values
}

//==============================================================================

// TestPoolCollector validates the exported pool snapshot.
func TestPoolCollector(t *testing.T) {
	t.Logf("Given the need to export pool statistics")
	{
		t.Logf("\tWhen scraping a busy pool")
		{
			reg := prometheus.NewRegistry()
			reg.MustRegister(metrics.NewPoolCollector("think", source{
				Total:        4,
				Idle:         1,
				Acquired:     3,
				Max:          5,
				AcquireCount: 42,
				Timeouts:     2,
				Draining:     true,
			}))

			values := gather(t, reg)

			want := map[string]float64{
				"mgoquery_pool_connections":              4,
				"mgoquery_pool_idle_connections":         1,
				"mgoquery_pool_acquired_connections":     3,
				"mgoquery_pool_max_connections":          5,
				"mgoquery_pool_draining":                 1,
				"mgoquery_pool_acquires_total":           42,
				"mgoquery_pool_acquire_timeouts_total":   2,
				"mgoquery_pool_constructing_connections": 0,
			}

			for name, value := range want {
				got, ok := values[name]
				if !ok || got != value {
					t.Fatalf("\t%s\tShould have exported %s as %v: %v", tests.Failed, name, value, got)
				}
			}
			t.Logf("\t%s\tShould have exported every pool statistic", tests.Success)
		}

		t.Logf("\tWhen scraping a live pool")
		{
			p := pool.New(pool.Config[int]{
				Create:  func(ctx context.Context) (int, error) { return 1, nil },
				MaxSize: 3,
			})
			defer p.DrainAndClear()

			if err := p.AutoRelease(context.Background(), func(int) error { return nil }); err != nil {
				t.Fatalf("\t%s\tShould have leased a connection: %v", tests.Failed, err)
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(metrics.NewPoolCollector("live", p))

			values := gather(t, reg)
			if values["mgoquery_pool_max_connections"] != 3 || values["mgoquery_pool_acquires_total"] != 1 {
				t.Fatalf("\t%s\tShould have read the pool on scrape: %v", tests.Failed, values)
			}
			t.Logf("\t%s\tShould have read the pool on scrape", tests.Success)
		}
	}
}

// TestOperations validates operation counters.
func TestOperations(t *testing.T) {
	t.Logf("Given the need to count operations")
	{
		t.Logf("\tWhen observing outcomes")
		{
			reg := prometheus.NewRegistry()
			ops := metrics.NewOperations(reg)

			ops.Observe("select", "ok", time.Millisecond)
			ops.Observe("select", "timeout", time.Second)
			ops.Observe("add", "ok", time.Millisecond)

			values := gather(t, reg)
			if values["mgoquery_operations_total"] != 3 || values["mgoquery_operation_duration_seconds"] != 3 {
				t.Fatalf("\t%s\tShould have counted three operations: %v", tests.Failed, values)
			}
			t.Logf("\t%s\tShould have counted three operations", tests.Success)
		}

		t.Logf("\tWhen observing without metrics")
		{
			var ops *metrics.Operations
			ops.Observe("select", "ok", time.Millisecond)
			t.Logf("\t%s\tShould have ignored the observation", tests.Success)
		}
	}
}
