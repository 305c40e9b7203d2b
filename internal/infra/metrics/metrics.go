package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	SectionsBuildSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sections_build_seconds",
		Help:    "Время построения секций чата",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"variant"})

	SectionsBuiltTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sections_built_total",
		Help: "Количество построенных раскладок чата",
	}, []string{"variant"})

	MessagesGroupedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "messages_grouped_total",
		Help: "Количество сообщений, прошедших через группировку",
	}, []string{"variant"})

	DuplicateIDErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sections_duplicate_id_errors_total",
		Help: "Отказы построения из-за повторяющихся идентификаторов",
	})

	DroppedRepliesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sections_dropped_replies_total",
		Help: "Ответы, не попавшие в режим answer: нет родителя или ответ на ответ",
	})

	SectionsCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sections_cache_total",
		Help: "Обращения к кэшу секций",
	}, []string{"result"})

	RebuildJobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rebuild_jobs_total",
		Help: "Обработанные задачи пересчёта",
	}, []string{"status"})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		SectionsBuildSeconds,
		SectionsBuiltTotal,
		MessagesGroupedTotal,
		DuplicateIDErrors,
		DroppedRepliesTotal,
		SectionsCacheTotal,
		RebuildJobsTotal,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObserveSectionsBuild записывает длительность и объём построения.
func ObserveSectionsBuild(variant string, messages int, start time.Time, err error) {
	if err != nil {
		return
	}
	SectionsBuildSeconds.WithLabelValues(variant).Observe(time.Since(start).Seconds())
	SectionsBuiltTotal.WithLabelValues(variant).Inc()
	MessagesGroupedTotal.WithLabelValues(variant).Add(float64(messages))
}

// ObserveCache учитывает попадание или промах кэша секций.
func ObserveCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	SectionsCacheTotal.WithLabelValues(result).Inc()
}

// ObserveRebuildJob учитывает итог обработки задачи пересчёта.
func ObserveRebuildJob(status string) {
	if status == "" {
		status = "unknown"
	}
	RebuildJobsTotal.WithLabelValues(status).Inc()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}
