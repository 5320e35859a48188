// pgqueue.go — реализация очереди заданий на PostgreSQL.
// Захват заданий через SELECT ... FOR UPDATE SKIP LOCKED: несколько
// worker-ов могут опрашивать очередь параллельно без взаимных блокировок.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/gofilehub/internal/repository"
)

// Prometheus метрики очереди
var (
	// jobsEnqueuedTotal — количество принятых заданий по типам.
	jobsEnqueuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fh_queue_jobs_enqueued_total",
		Help: "Общее количество заданий, принятых очередью",
	}, []string{"type"})

	// jobsAckedTotal — количество успешно обработанных заданий.
	jobsAckedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fh_queue_jobs_acked_total",
		Help: "Общее количество успешно обработанных заданий",
	}, []string{"type"})

	// jobsFailedTotal — количество неудач по типам и исходам.
	jobsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fh_queue_jobs_failed_total",
		Help: "Общее количество неудачных обработок заданий",
	}, []string{"type", "outcome"}) // outcome: retry | dead

	// jobsReclaimedTotal — задания, возвращённые после падения consumer-а.
	jobsReclaimedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fh_queue_jobs_reclaimed_total",
		Help: "Общее количество заданий, возвращённых в очередь после падения consumer-а",
	})
)

// PGQueue — очередь заданий поверх таблицы jobs.
type PGQueue struct {
	db           repository.DBTX
	pollInterval time.Duration
	retryBackoff time.Duration
	reclaimAfter time.Duration
	maxAttempts  int
	logger       *slog.Logger

	mu     sync.Mutex
	closed bool
}

// Options — параметры очереди.
type Options struct {
	// PollInterval — интервал опроса в Receive (по умолчанию 500ms)
	PollInterval time.Duration
	// RetryBackoff — базовая задержка повторной доставки (по умолчанию 5s)
	RetryBackoff time.Duration
	// ReclaimAfter — срок, после которого захваченное, но не завершённое
	// задание считается брошенным упавшим consumer-ом (по умолчанию 5m).
	// Должен превышать таймаут обработки задания.
	ReclaimAfter time.Duration
	// MaxAttempts — лимит попыток до dead-letter (по умолчанию 5)
	MaxAttempts int
}

// New создаёт очередь поверх PostgreSQL.
func New(db repository.DBTX, opts Options, logger *slog.Logger) *PGQueue {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 5 * time.Second
	}
	if opts.ReclaimAfter <= 0 {
		opts.ReclaimAfter = 5 * time.Minute
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}

	return &PGQueue{
		db:           db,
		pollInterval: opts.PollInterval,
		retryBackoff: opts.RetryBackoff,
		reclaimAfter: opts.ReclaimAfter,
		maxAttempts:  opts.MaxAttempts,
		logger:       logger.With(slog.String("component", "queue")),
	}
}

// Enqueue помещает задание в очередь. Долговечность — коммит INSERT.
func (q *PGQueue) Enqueue(ctx context.Context, jobType string, payload any) error {
	if q.isClosed() {
		return ErrClosed
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ошибка сериализации payload: %w", err)
	}

	_, err = q.db.Exec(ctx,
		`INSERT INTO jobs (job_type, payload, max_attempts) VALUES ($1, $2, $3)`,
		jobType, data, q.maxAttempts,
	)
	if err != nil {
		return fmt.Errorf("ошибка постановки задания в очередь: %w", err)
	}

	jobsEnqueuedTotal.WithLabelValues(jobType).Inc()
	q.logger.Debug("Задание поставлено в очередь", slog.String("type", jobType))
	return nil
}

// Receive блокируется до появления задания или отмены контекста.
// Захват через FOR UPDATE SKIP LOCKED, FIFO best-effort по job_id.
func (q *PGQueue) Receive(ctx context.Context) (*Job, error) {
	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()

	for {
		if q.isClosed() {
			return nil, ErrClosed
		}

		q.reclaim(ctx)

		job, err := q.claim(ctx)
		if err != nil {
			return nil, err
		}
		if job != nil {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// reclaim возвращает в очередь задания, брошенные упавшими consumer-ами:
// running с locked_at старше reclaimAfter снова становятся queued.
// Попытка уже засчитана при захвате, поэтому лимит max_attempts
// ограничивает и количество падений.
func (q *PGQueue) reclaim(ctx context.Context) {
	tag, err := q.db.Exec(ctx, `
		UPDATE jobs
		SET status = 'queued', locked_at = NULL, updated_at = now()
		WHERE status = 'running' AND locked_at < now() - make_interval(secs => $1)`,
		q.reclaimAfter.Seconds(),
	)
	if err != nil {
		q.logger.Error("Ошибка возврата брошенных заданий", slog.String("error", err.Error()))
		return
	}

	if n := tag.RowsAffected(); n > 0 {
		jobsReclaimedTotal.Add(float64(n))
		q.logger.Warn("Задания упавшего consumer-а возвращены в очередь",
			slog.Int64("count", n),
			slog.Duration("reclaim_after", q.reclaimAfter),
		)
	}
}

// claim пытается захватить одно готовое задание.
// Возвращает (nil, nil), если готовых заданий нет.
func (q *PGQueue) claim(ctx context.Context) (*Job, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE jobs
		SET status = 'running', attempts = attempts + 1,
		    locked_at = now(), updated_at = now()
		WHERE job_id = (
			SELECT job_id FROM jobs
			WHERE status = 'queued' AND run_after <= now()
			ORDER BY job_id
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING job_id, job_type, payload, attempts, max_attempts`)

	var job Job
	err := row.Scan(&job.ID, &job.Type, &job.Payload, &job.Attempts, &job.MaxAttempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка захвата задания: %w", err)
	}
	return &job, nil
}

// Ack подтверждает успешную обработку задания.
func (q *PGQueue) Ack(ctx context.Context, job *Job) error {
	_, err := q.db.Exec(ctx,
		`UPDATE jobs SET status = 'done', locked_at = NULL, updated_at = now() WHERE job_id = $1`,
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("ошибка подтверждения задания %d: %w", job.ID, err)
	}

	jobsAckedTotal.WithLabelValues(job.Type).Inc()
	return nil
}

// Fail фиксирует неудачу обработки.
// Терминальная неудача или исчерпание попыток — dead-letter;
// иначе задание возвращается в очередь с линейным backoff.
func (q *PGQueue) Fail(ctx context.Context, job *Job, cause error, terminal bool) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	if terminal || job.Attempts >= job.MaxAttempts {
		_, err := q.db.Exec(ctx, `
			UPDATE jobs
			SET status = 'dead', locked_at = NULL, last_error = $2, updated_at = now()
			WHERE job_id = $1`,
			job.ID, msg,
		)
		if err != nil {
			return fmt.Errorf("ошибка перевода задания %d в dead-letter: %w", job.ID, err)
		}

		jobsFailedTotal.WithLabelValues(job.Type, "dead").Inc()
		q.logger.Warn("Задание переведено в dead-letter",
			slog.Int64("job_id", job.ID),
			slog.String("type", job.Type),
			slog.Int("attempts", job.Attempts),
			slog.String("error", msg),
		)
		return nil
	}

	backoff := time.Duration(job.Attempts) * q.retryBackoff
	_, err := q.db.Exec(ctx, `
		UPDATE jobs
		SET status = 'queued', locked_at = NULL, last_error = $2,
		    run_after = now() + make_interval(secs => $3), updated_at = now()
		WHERE job_id = $1`,
		job.ID, msg, backoff.Seconds(),
	)
	if err != nil {
		return fmt.Errorf("ошибка возврата задания %d в очередь: %w", job.ID, err)
	}

	jobsFailedTotal.WithLabelValues(job.Type, "retry").Inc()
	q.logger.Info("Задание возвращено в очередь для повтора",
		slog.Int64("job_id", job.ID),
		slog.String("type", job.Type),
		slog.Int("attempts", job.Attempts),
		slog.Duration("backoff", backoff),
	)
	return nil
}

// Close закрывает очередь: новые Enqueue/Receive возвращают ErrClosed.
// Захваченные задания дорабатываются вызывающим кодом.
func (q *PGQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

func (q *PGQueue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
