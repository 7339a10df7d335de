package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncrementRejected("write")
	m.IncrementRejected("write")
	m.IncrementRejected("read")
	m.IncrementCheckErrors()

	assert.InDelta(t, 2, testutil.ToFloat64(m.Rejected.WithLabelValues("write")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Rejected.WithLabelValues("read")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.CheckErrors), 0)
}
