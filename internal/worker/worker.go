// Пакет worker — consumer-цикл очереди заданий.
// Каждое задание обрабатывается одной логической задачей с явным
// результатом успех/неудача; side-effect callback-ов нет.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bigkaa/gofilehub/internal/queue"
	"github.com/bigkaa/gofilehub/internal/service"
)

// receiveErrBackoff — пауза consumer-а после ошибки получения задания.
const receiveErrBackoff = time.Second

// Handler — обработчик заданий одного типа.
type Handler interface {
	Process(ctx context.Context, job *queue.Job) error
}

// Worker — пул consumer-горутин очереди заданий.
type Worker struct {
	jobs        queue.Queue
	handlers    map[string]Handler
	concurrency int
	jobTimeout  time.Duration
	logger      *slog.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New создаёт worker.
// handlers — маппинг тип задания -> обработчик.
// jobTimeout ограничивает обработку одного задания; зависшее задание
// прерывается и уходит на повторную доставку.
func New(
	jobs queue.Queue,
	handlers map[string]Handler,
	concurrency int,
	jobTimeout time.Duration,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		jobs:        jobs,
		handlers:    handlers,
		concurrency: concurrency,
		jobTimeout:  jobTimeout,
		logger:      logger.With(slog.String("component", "worker")),
	}
}

// Start запускает consumer-горутины.
// Вызывается один раз при старте приложения.
func (w *Worker) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.run(runCtx, i)
	}

	w.logger.Info("Worker запущен",
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
	)
}

// Stop останавливает consumer-горутины и дожидается завершения
// текущих заданий.
func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	w.logger.Info("Worker остановлен")
}

// run — цикл одной consumer-горутины.
func (w *Worker) run(ctx context.Context, id int) {
	defer w.wg.Done()

	logger := w.logger.With(slog.Int("consumer", id))

	for {
		job, err := w.jobs.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, queue.ErrClosed) {
				return
			}
			logger.Error("Ошибка получения задания", slog.String("error", err.Error()))
			// Пауза перед повтором: недоступная очередь не должна
			// опрашиваться в плотном цикле
			select {
			case <-ctx.Done():
				return
			case <-time.After(receiveErrBackoff):
			}
			continue
		}

		w.handle(ctx, job, logger)
	}
}

// handle обрабатывает одно задание: dispatch по типу, таймаут,
// явный Ack или Fail.
func (w *Worker) handle(ctx context.Context, job *queue.Job, logger *slog.Logger) {
	handler, ok := w.handlers[job.Type]
	if !ok {
		// Неизвестный тип — терминальная неудача, повтор бессмыслен
		w.finish(job, errors.New("неизвестный тип задания"), true, logger)
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	err := handler.Process(jobCtx, job)
	cancel()

	if err != nil {
		w.finish(job, err, service.IsTerminal(err), logger)
		return
	}
	w.finish(job, nil, false, logger)
}

// finish фиксирует результат обработки в очереди.
// Ack/Fail выполняются на отдельном контексте: остановка worker-а
// не должна терять результат уже выполненного задания.
func (w *Worker) finish(job *queue.Job, procErr error, terminal bool, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if procErr == nil {
		if err := w.jobs.Ack(ctx, job); err != nil {
			// Подтверждение не прошло — at-least-once допускает
			// повторную доставку уже обработанного задания
			logger.Error("Ошибка подтверждения задания",
				slog.Int64("job_id", job.ID),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	logger.Warn("Задание завершилось с ошибкой",
		slog.Int64("job_id", job.ID),
		slog.String("type", job.Type),
		slog.Bool("terminal", terminal),
		slog.String("error", procErr.Error()),
	)

	if err := w.jobs.Fail(ctx, job, procErr, terminal); err != nil {
		logger.Error("Ошибка фиксации неудачи задания",
			slog.Int64("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}
}
