package listeners

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"renamewiki-system/internal/entities"
	"renamewiki-system/internal/events"
	"renamewiki-system/internal/repositories"
	"renamewiki-system/pkg/config"
	"renamewiki-system/pkg/constants"
	"renamewiki-system/pkg/eventbus"
	"renamewiki-system/pkg/telegram"
)

// NotificationListener рассылает уведомления об изменениях заявок.
// Получатели - участники заявки (автор и комментаторы) без самого
// инициатора действия, плюс списки наблюдателей из конфигурации.
type NotificationListener struct {
	userRepo    repositories.UserRepositoryInterface
	commentRepo repositories.CommentRepositoryInterface
	requestRepo repositories.RequestRepositoryInterface
	pool        repositories.Querier
	telegram    telegram.ServiceInterface
	cfg         config.RenameWikiConfig
	serverCfg   config.ServerConfig
	logger      *zap.Logger
}

func NewNotificationListener(
	userRepo repositories.UserRepositoryInterface,
	commentRepo repositories.CommentRepositoryInterface,
	requestRepo repositories.RequestRepositoryInterface,
	pool repositories.Querier,
	telegramSvc telegram.ServiceInterface,
	cfg config.RenameWikiConfig,
	serverCfg config.ServerConfig,
	logger *zap.Logger,
) *NotificationListener {
	return &NotificationListener{
		userRepo:    userRepo,
		commentRepo: commentRepo,
		requestRepo: requestRepo,
		pool:        pool,
		telegram:    telegramSvc,
		cfg:         cfg,
		serverCfg:   serverCfg,
		logger:      logger,
	}
}

func (l *NotificationListener) Register(bus *eventbus.Bus) {
	bus.Subscribe(events.RequestCreatedEvent{}.Name(), l.handleRequestCreated)
	bus.Subscribe(events.RequestCommentedEvent{}.Name(), l.handleRequestCommented)
	bus.Subscribe(events.RequestStatusChangedEvent{}.Name(), l.handleStatusChanged)
	bus.Subscribe(events.RenameFailedEvent{}.Name(), l.handleRenameFailed)
	l.logger.Info("NotificationListener подписан на события заявок")
}

func (l *NotificationListener) handleRequestCreated(ctx context.Context, event eventbus.Event) error {
	e, ok := event.(events.RequestCreatedEvent)
	if !ok {
		return nil
	}

	watchers, err := l.userRepo.FindUsersByNames(ctx, l.cfg.UsersNotifiedOnAllRequests)
	if err != nil {
		return err
	}
	watchers = l.filterWatchers(ctx, watchers, e.Private)

	message := fmt.Sprintf(
		"Новая заявка на переименование вики #%d: %s -> %s (автор: %s)\n%s/requests/%d",
		e.RequestID, e.OldWiki, e.NewWiki, e.RequesterName, l.serverCfg.BaseURL, e.RequestID,
	)
	l.send(ctx, watchers, constants.NotificationNewRequest, message)
	return nil
}

// filterWatchers оставляет только обработчиков заявок; о приватной заявке
// уведомляются лишь те, кто имеет право её видеть.
func (l *NotificationListener) filterWatchers(ctx context.Context, users []entities.User, private bool) []entities.User {
	filtered := make([]entities.User, 0, len(users))
	for _, user := range users {
		capabilities, err := l.userRepo.GetUserCapabilities(ctx, user.ID)
		if err != nil {
			l.logger.Warn("Не удалось получить права наблюдателя",
				zap.Int("userID", user.ID), zap.Error(err))
			continue
		}

		canHandle, canViewPrivate := false, false
		for _, capability := range capabilities {
			switch capability {
			case constants.CapabilityHandle:
				canHandle = true
			case constants.CapabilityViewPrivate:
				canViewPrivate = true
			}
		}
		if !canHandle || (private && !canViewPrivate) {
			continue
		}
		filtered = append(filtered, user)
	}
	return filtered
}

func (l *NotificationListener) handleRequestCommented(ctx context.Context, event eventbus.Event) error {
	e, ok := event.(events.RequestCommentedEvent)
	if !ok {
		return nil
	}

	recipients, err := l.involvedUsers(ctx, e.RequestID, e.ActorID)
	if err != nil {
		return err
	}

	message := fmt.Sprintf(
		"Новый комментарий к заявке #%d от %s:\n%s\n%s/requests/%d",
		e.RequestID, e.Actor, e.Comment, l.serverCfg.BaseURL, e.RequestID,
	)
	l.send(ctx, recipients, constants.NotificationComment, message)
	return nil
}

func (l *NotificationListener) handleStatusChanged(ctx context.Context, event eventbus.Event) error {
	e, ok := event.(events.RequestStatusChangedEvent)
	if !ok {
		return nil
	}

	recipients, err := l.involvedUsers(ctx, e.RequestID, e.ActorID)
	if err != nil {
		return err
	}

	message := fmt.Sprintf(
		"Статус заявки #%d изменён: %s -> %s (%s)\n%s/requests/%d",
		e.RequestID, e.OldStatus, e.NewStatus, e.Actor, l.serverCfg.BaseURL, e.RequestID,
	)
	l.send(ctx, recipients, constants.NotificationStatusUpdate, message)
	return nil
}

func (l *NotificationListener) handleRenameFailed(ctx context.Context, event eventbus.Event) error {
	e, ok := event.(events.RenameFailedEvent)
	if !ok {
		return nil
	}

	watchers, err := l.userRepo.FindUsersByNames(ctx, l.cfg.UsersNotifiedOnFailedRenames)
	if err != nil {
		return err
	}

	message := fmt.Sprintf(
		"Переименование %s -> %s (заявка #%d) завершилось с ошибкой: %s",
		e.OldWiki, e.NewWiki, e.RequestID, e.Reason,
	)
	l.send(ctx, watchers, constants.NotificationStatusUpdate, message)
	return nil
}

// involvedUsers собирает участников заявки без инициатора события.
func (l *NotificationListener) involvedUsers(ctx context.Context, requestID int, actorID *int) ([]entities.User, error) {
	ids, err := l.commentRepo.FindInvolvedUserIDs(ctx, l.pool, requestID)
	if err != nil {
		return nil, err
	}

	req, err := l.requestRepo.FindRequest(ctx, l.pool, requestID)
	if err != nil {
		return nil, err
	}

	seen := make(map[int]struct{}, len(ids)+1)
	recipients := make([]int, 0, len(ids)+1)
	for _, id := range append(ids, req.RequesterID) {
		if actorID != nil && id == *actorID {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		recipients = append(recipients, id)
	}

	return l.userRepo.FindUsersByIDs(ctx, l.pool, recipients)
}

func (l *NotificationListener) send(ctx context.Context, users []entities.User, notificationType string, message string) {
	for _, user := range users {
		if !user.TelegramChatID.Valid || user.TelegramChatID.Int64 == 0 {
			continue
		}
		if err := l.telegram.SendMessage(ctx, user.TelegramChatID.Int64, message); err != nil {
			l.logger.Error("Не удалось отправить уведомление",
				zap.String("type", notificationType),
				zap.Int("userID", user.ID),
				zap.Error(err),
			)
		}
	}
}
