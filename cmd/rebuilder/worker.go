package main

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"chat-timeline/internal/domain"
	"chat-timeline/internal/infra/metrics"
	"chat-timeline/internal/usecase/grouping"
)

type jobWorker struct {
	log     zerolog.Logger
	queue   domain.RebuildQueue
	service domain.SectionService
	limiter *rate.Limiter
	// pause между ошибками чтения очереди
	backoff time.Duration
}

const maxDeliveryAttempts = 5

type jobOutcome int

const (
	jobOutcomeCompleted jobOutcome = iota
	jobOutcomeRetry
	jobOutcomeRejected
)

func (w *jobWorker) Run(ctx context.Context) {
	backoff := w.backoff
	if backoff == 0 {
		backoff = time.Second
	}
	for {
		job, ack, err := w.queue.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			w.log.Error().Err(err).Msg("rebuilder: ошибка чтения очереди")
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			continue
		}
		w.process(ctx, job, ack)
	}
}

func (w *jobWorker) process(ctx context.Context, job domain.RebuildJob, ack domain.RebuildAckFunc) {
	attempt := job.Attempt
	if attempt < 1 {
		attempt = 1
	}
	jobLog := w.log.With().
		Str("job_id", job.ID).
		Str("chat_id", job.ChatID).
		Str("cause", string(job.Cause)).
		Int("attempt", attempt).
		Logger()

	if job.ChatID == "" {
		jobLog.Error().Msg("rebuilder: получена задача без чата, подтверждаем и пропускаем")
		metrics.ObserveRebuildJob("rejected")
		if err := ack(domain.AckDone); err != nil {
			jobLog.Error().Err(err).Msg("rebuilder: не удалось подтвердить задачу без чата")
		}
		return
	}

	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			w.requeue(ack, jobLog, "rebuilder: остановка до обработки, задача возвращена в очередь")
			return
		}
	}

	switch w.handleJob(ctx, job, jobLog) {
	case jobOutcomeCompleted:
		metrics.ObserveRebuildJob("completed")
		if err := ack(domain.AckDone); err != nil {
			jobLog.Error().Err(err).Msg("rebuilder: не удалось подтвердить задачу")
		}
	case jobOutcomeRejected:
		metrics.ObserveRebuildJob("rejected")
		if err := ack(domain.AckReject); err != nil {
			jobLog.Error().Err(err).Msg("rebuilder: не удалось отклонить задачу")
		}
	case jobOutcomeRetry:
		if ctx.Err() != nil {
			// пересчёт прерван остановкой, попытка не засчитывается
			w.requeue(ack, jobLog, "rebuilder: остановка во время пересчёта, задача возвращена в очередь")
			return
		}
		if attempt >= maxDeliveryAttempts {
			jobLog.Error().Msg("rebuilder: достигнут предел попыток, отбрасываем задачу")
			metrics.ObserveRebuildJob("exhausted")
			if err := ack(domain.AckReject); err != nil {
				jobLog.Error().Err(err).Msg("rebuilder: не удалось отклонить задачу")
			}
			return
		}
		retry := job
		retry.Attempt = attempt + 1
		if err := w.queue.Enqueue(ctx, retry); err != nil {
			jobLog.Error().Err(err).Msg("rebuilder: не удалось поставить повтор")
			w.requeue(ack, jobLog, "rebuilder: исходная задача возвращена в очередь")
			return
		}
		jobLog.Warn().Msg("rebuilder: задача завершилась ошибкой, повторим позже")
		metrics.ObserveRebuildJob("retry")
		if err := ack(domain.AckDone); err != nil {
			jobLog.Error().Err(err).Msg("rebuilder: не удалось подтвердить исходную задачу")
		}
	}
}

func (w *jobWorker) requeue(ack domain.RebuildAckFunc, jobLog zerolog.Logger, msg string) {
	metrics.ObserveRebuildJob("requeued")
	if err := ack(domain.AckRequeue); err != nil {
		jobLog.Error().Err(err).Msg("rebuilder: не удалось вернуть задачу в очередь")
		return
	}
	jobLog.Warn().Msg(msg)
}

func (w *jobWorker) handleJob(ctx context.Context, job domain.RebuildJob, jobLog zerolog.Logger) jobOutcome {
	start := time.Now()
	err := w.service.Rebuild(ctx, job)
	switch {
	case err == nil:
		jobLog.Info().Dur("duration", time.Since(start)).Msg("rebuilder: секции пересчитаны")
		return jobOutcomeCompleted
	case errors.Is(err, grouping.ErrDuplicateID), errors.Is(err, domain.ErrInvalidChatID):
		// повтор не поможет, пока данные не исправят
		jobLog.Error().Err(err).Msg("rebuilder: данные чата некорректны")
		return jobOutcomeRejected
	default:
		jobLog.Error().Err(err).Msg("rebuilder: ошибка пересчёта")
		return jobOutcomeRetry
	}
}
