// Package metrics expone los contadores Prometheus del engine.
// Register se llama una vez; los Record* son no-op seguros si nadie
// registró (tests, herramientas CLI).
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once
	rerr error

	loginsTotal      *prometheus.CounterVec
	refreshTotal     *prometheus.CounterVec
	lockoutsTotal    prometheus.Counter
	artifactsTotal   *prometheus.CounterVec
	migrationsTotal  *prometheus.CounterVec
	maintenanceSwept *prometheus.CounterVec
	sweepDuration    prometheus.Histogram
)

// Register inicializa y registra las métricas. Devuelve el handler
// para /metrics.
func Register(reg prometheus.Registerer) (http.Handler, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	once.Do(func() {
		loginsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authcore_logins_total",
			Help: "Intentos de login por resultado",
		}, []string{"result"}) // ok|bad_credentials|locked|disabled

		refreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authcore_refresh_total",
			Help: "Rotaciones de refresh token por resultado",
		}, []string{"result"}) // ok|revoked|expired|invalid

		lockoutsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authcore_lockouts_total",
			Help: "Logins rechazados por cuenta bloqueada",
		})

		artifactsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authcore_email_artifacts_total",
			Help: "Artefactos de email por propósito y evento",
		}, []string{"purpose", "event"}) // event: issued|consumed|rejected

		migrationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authcore_schema_migrations_total",
			Help: "Columnas aplicadas u omitidas por migraciones de esquema",
		}, []string{"result"}) // applied|skipped|failed

		maintenanceSwept = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authcore_maintenance_rows_total",
			Help: "Filas purgadas por el barrido de mantenimiento",
		}, []string{"category"})

		sweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "authcore_maintenance_duration_seconds",
			Help:    "Duración del barrido de mantenimiento",
			Buckets: []float64{0.05, 0.1, 0.5, 1.0, 5.0, 30.0},
		})

		for _, c := range []prometheus.Collector{
			loginsTotal, refreshTotal, lockoutsTotal,
			artifactsTotal, migrationsTotal, maintenanceSwept, sweepDuration,
		} {
			if err := reg.Register(c); err != nil {
				if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
					rerr = err
					return
				}
			}
		}
	})
	if rerr != nil {
		return nil, rerr
	}
	return promhttp.Handler(), nil
}

func RecordLogin(result string) {
	if loginsTotal != nil {
		loginsTotal.WithLabelValues(result).Inc()
	}
	if result == "locked" && lockoutsTotal != nil {
		lockoutsTotal.Inc()
	}
}

func RecordRefresh(result string) {
	if refreshTotal != nil {
		refreshTotal.WithLabelValues(result).Inc()
	}
}

func RecordArtifact(purpose, event string) {
	if artifactsTotal != nil {
		artifactsTotal.WithLabelValues(purpose, event).Inc()
	}
}

func RecordMigration(result string, n int) {
	if migrationsTotal != nil && n > 0 {
		migrationsTotal.WithLabelValues(result).Add(float64(n))
	}
}

func RecordMaintenance(category string, rows int, d time.Duration) {
	if maintenanceSwept != nil {
		maintenanceSwept.WithLabelValues(category).Add(float64(rows))
	}
	if sweepDuration != nil && d > 0 {
		sweepDuration.Observe(d.Seconds())
	}
}
