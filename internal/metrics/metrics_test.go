package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/magicbus/internal/bus"
	"github.com/Iron-Ham/magicbus/internal/errors"
)

type ping struct{}
type orphan struct{}

func newInstrumentedBus(t *testing.T) (*bus.Bus, *Collector) {
	t.Helper()

	c := NewCollector(prometheus.NewRegistry(), "")
	b, err := bus.New(c.Returned, c.Failed, c.Observe)
	require.NoError(t, err)
	return b, c
}

func TestCollectorCountsDeliveries(t *testing.T) {
	b, c := newInstrumentedBus(t)

	_, err := bus.Handle(b, func(ping) error { return nil })
	require.NoError(t, err)
	_, err = bus.Handle(b, func(any) error { return nil })
	require.NoError(t, err)

	require.NoError(t, b.Post(ping{}))
	require.NoError(t, b.Post(ping{}))

	require.Equal(t, 4.0, testutil.ToFloat64(c.DeliveriesTotal.WithLabelValues("metrics.ping")))
	require.Equal(t, 0.0, testutil.ToFloat64(c.ReturnedTotal.WithLabelValues("metrics.ping")))
}

func TestCollectorCountsFailuresAndReturns(t *testing.T) {
	b, c := newInstrumentedBus(t)

	_, err := bus.Handle(b, func(ping) error { return errors.New("nope") })
	require.NoError(t, err)

	require.NoError(t, b.Post(ping{}))
	require.NoError(t, b.Post(orphan{}))

	require.Equal(t, 1.0, testutil.ToFloat64(c.FailuresTotal.WithLabelValues("metrics.ping")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.DeliveriesTotal.WithLabelValues("metrics.ping")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.ReturnedTotal.WithLabelValues("metrics.orphan")))
}

func TestCollectorNamespace(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg, "orders")
	c.Returned(bus.ReturnedMessage{Message: orphan{}})

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	require.Equal(t, "orders_returned_total", families[0].GetName())
}

func TestCollectorDuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg, "")
	require.Panics(t, func() { NewCollector(reg, "") })
}

func TestTypeLabel(t *testing.T) {
	require.Equal(t, "unknown", TypeLabel(nil))
	require.Equal(t, "*metrics.ping", TypeLabel(&ping{}))
}
