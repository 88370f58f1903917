// Package metrics exports Prometheus counters for message bus traffic.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Iron-Ham/magicbus/internal/bus"
)

const defaultNamespace = "magicbus"

// Collector counts delivery attempts, recoverable failures and returned
// messages by message type. Its methods match the bus callback signatures.
type Collector struct {
	DeliveriesTotal *prometheus.CounterVec
	FailuresTotal   *prometheus.CounterVec
	ReturnedTotal   *prometheus.CounterVec
}

// NewCollector registers the bus counters on reg under namespace.
// An empty namespace defaults to "magicbus".
func NewCollector(reg prometheus.Registerer, namespace string) *Collector {
	if namespace == "" {
		namespace = defaultNamespace
	}
	factory := promauto.With(reg)

	return &Collector{
		DeliveriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Total number of delivery attempts by message type",
		}, []string{"type"}),
		FailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Total number of recoverable mailbox failures by message type",
		}, []string{"type"}),
		ReturnedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "returned_total",
			Help:      "Total number of posted messages that matched no mailbox, by message type",
		}, []string{"type"}),
	}
}

// Observe records a delivery attempt. Use it as the bus observer.
func (c *Collector) Observe(_ bus.Mailbox, message any) {
	c.DeliveriesTotal.WithLabelValues(TypeLabel(message)).Inc()
}

// Failed records a recoverable failure. Use it as, or chain it into, the
// bus failure callback.
func (c *Collector) Failed(m bus.FailedMessage) {
	c.FailuresTotal.WithLabelValues(TypeLabel(m.Message)).Inc()
}

// Returned records a dead letter. Use it as, or chain it into, the bus
// returned callback.
func (c *Collector) Returned(m bus.ReturnedMessage) {
	c.ReturnedTotal.WithLabelValues(TypeLabel(m.Message)).Inc()
}

// TypeLabel is the label value used for a message.
func TypeLabel(message any) string {
	if message == nil {
		return "unknown"
	}
	return fmt.Sprintf("%T", message)
}
