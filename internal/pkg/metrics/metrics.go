// Package metrics exposes the relay's Prometheus instruments.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the relay, gateway and reaper report into.
type Recorder interface {
	ConnectionOpened()
	ConnectionClosed()
	RecordAuth(result string)
	RecordBind(result string)
	RecordRelay(direction, result string)
	RecordReap(result string)
	RecordDiskReport(temperature, powerOnHours, percentageUsed, dataReadGB, dataWrittenGB float64)
}

// Collector records into a Prometheus registry.
type Collector struct {
	connections prometheus.Gauge
	auth        *prometheus.CounterVec
	bind        *prometheus.CounterVec
	relay       *prometheus.CounterVec
	reap        *prometheus.CounterVec
	disk        *prometheus.GaugeVec
}

// NewCollector creates the instruments and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_connections",
			Help: "Open realtime connections.",
		}),
		auth: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_auth_total",
			Help: "Connection authentication attempts by result.",
		}, []string{"result"}),
		bind: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_bind_total",
			Help: "Channel bind attempts by result.",
		}, []string{"result"}),
		relay: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_messages_total",
			Help: "Relayed messages by direction and result.",
		}, []string{"direction", "result"}),
		reap: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_reaped_identities_total",
			Help: "Reaper outcomes per identity.",
		}, []string{"result"}),
		disk: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "smart_disk_metric",
			Help: "Latest value from the disk health report.",
		}, []string{"field"}),
	}

	reg.MustRegister(c.connections, c.auth, c.bind, c.relay, c.reap, c.disk)
	return c
}

func (c *Collector) ConnectionOpened() { c.connections.Inc() }
func (c *Collector) ConnectionClosed() { c.connections.Dec() }

func (c *Collector) RecordAuth(result string) { c.auth.WithLabelValues(result).Inc() }
func (c *Collector) RecordBind(result string) { c.bind.WithLabelValues(result).Inc() }

func (c *Collector) RecordRelay(direction, result string) {
	c.relay.WithLabelValues(direction, result).Inc()
}

func (c *Collector) RecordReap(result string) { c.reap.WithLabelValues(result).Inc() }

// RecordDiskReport sets the disk gauges to the latest report.
func (c *Collector) RecordDiskReport(temperature, powerOnHours, percentageUsed, dataReadGB, dataWrittenGB float64) {
	c.disk.WithLabelValues("temperature").Set(temperature)
	c.disk.WithLabelValues("power_on_hours").Set(powerOnHours)
	c.disk.WithLabelValues("percentage_used").Set(percentageUsed)
	c.disk.WithLabelValues("data_read_gb").Set(dataReadGB)
	c.disk.WithLabelValues("data_written_gb").Set(dataWrittenGB)
}

// Handler serves the Prometheus exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) ConnectionOpened() {}
func (Nop) ConnectionClosed() {}
func (Nop) RecordAuth(string) {}
func (Nop) RecordBind(string) {}
func (Nop) RecordRelay(string, string) {}
func (Nop) RecordReap(string) {}
func (Nop) RecordDiskReport(float64, float64, float64, float64, float64) {}
