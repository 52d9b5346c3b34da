package adapter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/srediag/plugin-dylib/api"
)

// PrometheusObserver exports manager lifecycle events as Prometheus metrics.
type PrometheusObserver struct {
	librariesOpened  prometheus.Counter
	librariesClosed  *prometheus.CounterVec
	librariesOpen    prometheus.Gauge
	pluginsLoaded    prometheus.Counter
	pluginsUnloaded  *prometheus.CounterVec
	pluginsInstalled prometheus.Gauge
	loadFailures     *prometheus.CounterVec
}

var _ api.Observer = (*PrometheusObserver)(nil)

// NewPrometheusObserver registers the observer's collectors with reg.
// A nil reg registers with prometheus.DefaultRegisterer.
func NewPrometheusObserver(reg prometheus.Registerer, namespace string) *PrometheusObserver {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &PrometheusObserver{
		librariesOpened: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "libraries_opened_total",
			Help:      "Total number of dynamic libraries opened.",
		}),
		librariesClosed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "libraries_closed_total",
			Help:      "Total number of dynamic library close attempts.",
		}, []string{"result"}),
		librariesOpen: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "libraries_open",
			Help:      "Number of dynamic libraries currently open.",
		}),
		pluginsLoaded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plugins_loaded_total",
			Help:      "Total number of plugins installed.",
		}),
		pluginsUnloaded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plugins_unloaded_total",
			Help:      "Total number of plugins removed from the directory.",
		}, []string{"result"}),
		pluginsInstalled: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "plugins_installed",
			Help:      "Number of plugins currently installed.",
		}),
		loadFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "load_failures_total",
			Help:      "Total number of failed library loads by failure kind.",
		}, []string{"kind"}),
	}
}

func (o *PrometheusObserver) LibraryOpened(string) {
	o.librariesOpened.Inc()
	o.librariesOpen.Inc()
}

func (o *PrometheusObserver) LibraryClosed(_ string, err error) {
	o.librariesClosed.WithLabelValues(result(err)).Inc()
	if err == nil {
		o.librariesOpen.Dec()
	}
}

func (o *PrometheusObserver) PluginLoaded(string, string) {
	o.pluginsLoaded.Inc()
	o.pluginsInstalled.Inc()
}

func (o *PrometheusObserver) PluginUnloaded(_, _ string, err error) {
	o.pluginsUnloaded.WithLabelValues(result(err)).Inc()
	o.pluginsInstalled.Dec()
}

func (o *PrometheusObserver) LoadFailed(_ string, err error) {
	o.loadFailures.WithLabelValues(failureKind(err)).Inc()
}
