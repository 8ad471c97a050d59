package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"renamewiki-system/internal/events"
	"renamewiki-system/internal/repositories"
	"renamewiki-system/internal/services"
	"renamewiki-system/pkg/constants"
	apperrors "renamewiki-system/pkg/errors"
	"renamewiki-system/pkg/eventbus"

	"go.uber.org/zap"
)

const (
	jobQueueKey = "renamewiki:jobs"

	// Максимальное время работы скрипта переименования.
	jobTimeout = 2 * time.Hour

	popTimeout = 5 * time.Second
)

// renameJobPayload - задание в очереди: заявка и имя обработчика,
// запустившего переименование. От его имени пишутся записи журнала.
type renameJobPayload struct {
	RequestID int    `json:"request_id"`
	Username  string `json:"username"`
}

// RenameJobRunner выполняет фоновые переименования. Очередь живет в Redis:
// обработчик кладет туда задание, воркер забирает его блокирующим чтением.
type RenameJobRunner struct {
	factory *services.RequestManagerFactory
	cache   repositories.CacheRepositoryInterface
	bus     *eventbus.Bus
	hooks   *HookRegistry
	logger  *zap.Logger
}

func NewRenameJobRunner(
	factory *services.RequestManagerFactory,
	cache repositories.CacheRepositoryInterface,
	bus *eventbus.Bus,
	hooks *HookRegistry,
	logger *zap.Logger,
) *RenameJobRunner {
	return &RenameJobRunner{
		factory: factory,
		cache:   cache,
		bus:     bus,
		hooks:   hooks,
		logger:  logger,
	}
}

// Enqueue ставит заявку в очередь на переименование.
func (r *RenameJobRunner) Enqueue(ctx context.Context, requestID int, username string) error {
	raw, err := json.Marshal(renameJobPayload{RequestID: requestID, Username: username})
	if err != nil {
		return err
	}
	return r.cache.PushJob(ctx, jobQueueKey, string(raw))
}

// Run крутит цикл воркера до отмены контекста.
func (r *RenameJobRunner) Run(ctx context.Context) {
	r.logger.Info("Воркер переименований запущен")
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Воркер переименований остановлен")
			return
		default:
		}

		payload, err := r.cache.PopJob(ctx, jobQueueKey, popTimeout)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, context.Canceled) {
				continue
			}
			r.logger.Error("Ошибка чтения очереди заданий", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		var job renameJobPayload
		if err := json.Unmarshal([]byte(payload), &job); err != nil || job.RequestID == 0 {
			r.logger.Error("Некорректное задание в очереди", zap.String("payload", payload))
			continue
		}

		jobCtx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		r.process(jobCtx, job)
		cancel()
	}
}

// process проводит заявку по пути starting -> inprogress -> complete/failed.
func (r *RenameJobRunner) process(ctx context.Context, job renameJobPayload) {
	requestID := job.RequestID

	// Записи журнала привязываются к обработчику из задания. Для заданий
	// старого формата без имени остается служебная учётная запись.
	actor := job.Username
	if actor == "" {
		actor = string(constants.ActorStatusUpdate)
	}

	m := r.factory.NewManager()
	if err := m.LoadFromID(ctx, requestID); err != nil {
		r.logger.Error("Не удалось загрузить заявку для задания",
			zap.Int("requestID", requestID), zap.Error(err))
		return
	}
	if !m.Exists() {
		r.logger.Warn("Задание ссылается на несуществующую заявку", zap.Int("requestID", requestID))
		return
	}
	if m.Status() != constants.StatusStarting {
		r.logger.Warn("Заявка уже не ждет запуска, задание пропущено",
			zap.Int("requestID", requestID), zap.String("status", string(m.Status())))
		return
	}

	if err := r.markInProgress(ctx, m, actor); err != nil {
		r.logger.Error("Не удалось перевести заявку в работу",
			zap.Int("requestID", requestID), zap.Error(err))
		return
	}

	command := m.Command()
	outputPath := filepath.Join(os.TempDir(), fmt.Sprintf("renamewiki-%d.log", requestID))
	r.hooks.RunGetFile(&outputPath, m)

	r.logger.Info("Запуск скрипта переименования",
		zap.Int("requestID", requestID),
		zap.String("command", command),
		zap.String("output", outputPath),
	)

	output, runErr := runScript(ctx, command)
	if writeErr := os.WriteFile(outputPath, output, 0o644); writeErr != nil {
		r.logger.Warn("Не удалось сохранить вывод скрипта", zap.Error(writeErr))
	}

	if runErr != nil {
		r.markFailed(ctx, m, actor, runErr)
		return
	}
	r.markComplete(ctx, m, actor, outputPath)
}

func runScript(ctx context.Context, command string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	return cmd.CombinedOutput()
}

func (r *RenameJobRunner) markInProgress(ctx context.Context, m *services.RequestManager, actor string) error {
	if err := m.StartAtomic(ctx); err != nil {
		return err
	}
	defer m.Abort(ctx)

	if err := m.SetStatus(ctx, constants.StatusInProgress); err != nil {
		return err
	}
	if err := m.LogStatusUpdate(ctx, actor, nil, constants.StatusInProgress); err != nil {
		return err
	}
	return m.EndAtomic(ctx)
}

func (r *RenameJobRunner) markComplete(ctx context.Context, m *services.RequestManager, actor string, outputPath string) {
	err := func() error {
		if err := m.StartAtomic(ctx); err != nil {
			return err
		}
		defer m.Abort(ctx)

		if err := m.SetStatus(ctx, constants.StatusComplete); err != nil {
			return err
		}
		if err := m.LogStatusUpdate(ctx, actor, nil, constants.StatusComplete); err != nil {
			return err
		}
		if err := m.AddComment(ctx, nil, string(constants.ActorExtension),
			fmt.Sprintf("Переименование %s -> %s выполнено.", m.OldWiki(), m.NewWiki())); err != nil {
			return err
		}
		return m.EndAtomic(ctx)
	}()
	if err != nil {
		r.logger.Error("Не удалось зафиксировать успешное переименование",
			zap.Int("requestID", m.ID()), zap.Error(err))
		return
	}

	if err := r.hooks.RunAfterRenameWiki(ctx, outputPath, m); err != nil {
		r.logger.Error("Ошибка в хуке AfterRenameWiki",
			zap.Int("requestID", m.ID()), zap.Error(err))
	}

	r.logger.Info("Переименование выполнено", zap.Int("requestID", m.ID()))
}

func (r *RenameJobRunner) markFailed(ctx context.Context, m *services.RequestManager, actor string, cause error) {
	err := func() error {
		if err := m.StartAtomic(ctx); err != nil {
			return err
		}
		defer m.Abort(ctx)

		if err := m.SetStatus(ctx, constants.StatusFailed); err != nil {
			return err
		}
		if err := m.LogStatusUpdate(ctx, actor, nil, constants.StatusFailed); err != nil {
			return err
		}
		if err := m.AddComment(ctx, nil, string(constants.ActorExtension),
			fmt.Sprintf("Переименование завершилось с ошибкой: %v", cause)); err != nil {
			return err
		}
		return m.EndAtomic(ctx)
	}()
	if err != nil {
		r.logger.Error("Не удалось зафиксировать ошибку переименования",
			zap.Int("requestID", m.ID()), zap.Error(err))
		return
	}

	r.bus.Publish(ctx, events.RenameFailedEvent{
		RequestID: m.ID(),
		OldWiki:   m.OldWiki(),
		NewWiki:   m.NewWiki(),
		Reason:    cause.Error(),
	})

	r.logger.Error("Переименование завершилось с ошибкой",
		zap.Int("requestID", m.ID()), zap.Error(cause))
}
