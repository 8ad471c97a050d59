package services

import (
	"context"
	"fmt"
	"strings"

	"renamewiki-system/internal/entities"
	"renamewiki-system/internal/events"
	"renamewiki-system/internal/platform"
	"renamewiki-system/internal/repositories"
	"renamewiki-system/pkg/config"
	"renamewiki-system/pkg/constants"
	apperrors "renamewiki-system/pkg/errors"
	"renamewiki-system/pkg/eventbus"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// RequestManagerFactory создает менеджеры отдельных заявок. Сам менеджер
// одноразовый: он держит загруженную заявку и, возможно, открытую
// транзакцию, поэтому его нельзя разделять между запросами.
type RequestManagerFactory struct {
	db          repositories.Database
	requestRepo repositories.RequestRepositoryInterface
	commentRepo repositories.CommentRepositoryInterface
	logRepo     repositories.LogRepositoryInterface
	userRepo    repositories.UserRepositoryInterface
	directory   platform.WikiDirectory
	bus         *eventbus.Bus
	cfg         config.RenameWikiConfig
	logger      *zap.Logger
}

func NewRequestManagerFactory(
	db repositories.Database,
	requestRepo repositories.RequestRepositoryInterface,
	commentRepo repositories.CommentRepositoryInterface,
	logRepo repositories.LogRepositoryInterface,
	userRepo repositories.UserRepositoryInterface,
	directory platform.WikiDirectory,
	bus *eventbus.Bus,
	cfg config.RenameWikiConfig,
	logger *zap.Logger,
) *RequestManagerFactory {
	return &RequestManagerFactory{
		db:          db,
		requestRepo: requestRepo,
		commentRepo: commentRepo,
		logRepo:     logRepo,
		userRepo:    userRepo,
		directory:   directory,
		bus:         bus,
		cfg:         cfg,
		logger:      logger,
	}
}

// NewManager возвращает менеджер без загруженной заявки.
func (f *RequestManagerFactory) NewManager() *RequestManager {
	return &RequestManager{factory: f}
}

// RequestManager инкапсулирует всю работу с одной заявкой: чтение полей,
// точечные обновления, комментарии, журнал и отложенные уведомления.
type RequestManager struct {
	factory *RequestManagerFactory

	id     int
	entity *entities.RenameRequest

	// tx не nil внутри атомарной секции. Все изменения до EndAtomic
	// выполняются в этой транзакции.
	tx pgx.Tx

	// События копятся и публикуются только после фиксации транзакции,
	// чтобы слушатели не увидели незакоммиченные данные.
	pendingEvents []eventbus.Event
}

// querier возвращает активную транзакцию либо пул.
func (m *RequestManager) querier() repositories.Querier {
	if m.tx != nil {
		return m.tx
	}
	return m.factory.db
}

// LoadFromID загружает заявку. Отсутствующая заявка не является ошибкой:
// Exists() после загрузки вернет false.
func (m *RequestManager) LoadFromID(ctx context.Context, id int) error {
	m.id = id

	req, err := m.factory.requestRepo.FindRequest(ctx, m.querier(), id)
	if err != nil {
		if err == apperrors.ErrNotFound {
			m.entity = nil
			return nil
		}
		return err
	}
	m.entity = req
	return nil
}

// CreateNew сохраняет новую заявку и привязывает менеджер к ней.
// Вызывается внутри атомарной секции.
func (m *RequestManager) CreateNew(ctx context.Context, req *entities.RenameRequest) error {
	id, err := m.factory.requestRepo.CreateRequest(ctx, m.querier(), req)
	if err != nil {
		return err
	}
	return m.LoadFromID(ctx, id)
}

func (m *RequestManager) Exists() bool {
	return m.entity != nil
}

func (m *RequestManager) mustExist() error {
	if m.entity == nil {
		return apperrors.ErrNotFound
	}
	return nil
}

func (m *RequestManager) ID() int          { return m.id }
func (m *RequestManager) OldWiki() string  { return m.entity.OldWiki }
func (m *RequestManager) NewWiki() string  { return m.entity.NewWiki }
func (m *RequestManager) Reason() string   { return m.entity.Reason }
func (m *RequestManager) RequesterID() int { return m.entity.RequesterID }
func (m *RequestManager) IsLocked() bool   { return m.entity.Locked }

func (m *RequestManager) RequesterName() string { return m.entity.RequesterName }

func (m *RequestManager) Status() constants.RequestStatus { return m.entity.Status }

func (m *RequestManager) Entity() *entities.RenameRequest { return m.entity }

// IsPrivate сообщает, приватна ли заявка. При forced=true учитывается
// только приватность самой вики на платформе: так заявку нельзя открыть,
// пока вики закрыта настройками.
func (m *RequestManager) IsPrivate(forced bool) bool {
	platformPrivate := m.factory.directory.IsPrivateWiki(m.entity.OldWiki)
	if forced {
		return platformPrivate
	}
	return m.entity.Private || platformPrivate
}

// LogType возвращает тип журнала с учетом приватности заявки.
func (m *RequestManager) LogType() string {
	if m.IsPrivate(false) {
		return constants.LogTypePrivate
	}
	return constants.LogTypePublic
}

// StartAtomic открывает транзакцию и перечитывает заявку с блокировкой
// строки. Вложенные атомарные секции не поддерживаются.
func (m *RequestManager) StartAtomic(ctx context.Context) error {
	if m.tx != nil {
		return fmt.Errorf("атомарная секция уже открыта")
	}

	tx, err := m.factory.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("не удалось начать транзакцию: %w", err)
	}
	m.tx = tx

	if m.id != 0 {
		req, err := m.factory.requestRepo.FindRequestForUpdate(ctx, tx, m.id)
		if err != nil {
			_ = tx.Rollback(ctx)
			m.tx = nil
			return err
		}
		m.entity = req
	}
	return nil
}

// EndAtomic фиксирует транзакцию и публикует накопленные события.
func (m *RequestManager) EndAtomic(ctx context.Context) error {
	if m.tx == nil {
		return fmt.Errorf("атомарная секция не открыта")
	}

	err := m.tx.Commit(ctx)
	m.tx = nil
	if err != nil {
		return fmt.Errorf("ошибка при коммите транзакции: %w", err)
	}

	m.flushEvents(ctx)
	return nil
}

// Abort откатывает транзакцию и сбрасывает накопленные события.
func (m *RequestManager) Abort(ctx context.Context) {
	if m.tx == nil {
		return
	}
	if err := m.tx.Rollback(ctx); err != nil && err != pgx.ErrTxClosed {
		m.factory.logger.Error("Ошибка при откате транзакции заявки",
			zap.Int("requestID", m.id), zap.Error(err))
	}
	m.tx = nil
	m.pendingEvents = nil
}

func (m *RequestManager) queueEvent(event eventbus.Event) {
	if m.tx != nil {
		m.pendingEvents = append(m.pendingEvents, event)
		return
	}
	m.factory.bus.Publish(context.Background(), event)
}

func (m *RequestManager) flushEvents(ctx context.Context) {
	for _, event := range m.pendingEvents {
		m.factory.bus.Publish(ctx, event)
	}
	m.pendingEvents = nil
}

// SetStatus переводит заявку в новый статус. Неопределенные переходы
// отвергаются до обращения к базе.
func (m *RequestManager) SetStatus(ctx context.Context, status constants.RequestStatus) error {
	if err := m.mustExist(); err != nil {
		return err
	}
	if !status.IsValid() {
		return apperrors.ErrBadRequest
	}
	if !m.entity.Status.CanTransitionTo(status) {
		return apperrors.ErrStateConflict
	}

	if err := m.factory.requestRepo.SetStatus(ctx, m.querier(), m.id, status); err != nil {
		return err
	}
	m.entity.Status = status
	return nil
}

func (m *RequestManager) SetPrivate(ctx context.Context, private bool) error {
	if err := m.mustExist(); err != nil {
		return err
	}

	// Приватность, навязанную платформой, снять нельзя.
	if !private && m.factory.directory.IsPrivateWiki(m.entity.OldWiki) {
		return apperrors.ErrPrivacyForced
	}

	if err := m.factory.requestRepo.SetPrivate(ctx, m.querier(), m.id, private); err != nil {
		return err
	}
	m.entity.Private = private
	return nil
}

func (m *RequestManager) SetLocked(ctx context.Context, locked bool) error {
	if err := m.mustExist(); err != nil {
		return err
	}
	if err := m.factory.requestRepo.SetLocked(ctx, m.querier(), m.id, locked); err != nil {
		return err
	}
	m.entity.Locked = locked
	return nil
}

func (m *RequestManager) SetOldWiki(ctx context.Context, oldWiki string) error {
	if err := m.mustExist(); err != nil {
		return err
	}
	if !m.factory.directory.IsLocalWiki(oldWiki) {
		return apperrors.ErrUnknownTargetWiki
	}
	if err := m.factory.requestRepo.SetOldWiki(ctx, m.querier(), m.id, oldWiki); err != nil {
		return err
	}
	m.entity.OldWiki = oldWiki
	return nil
}

func (m *RequestManager) SetNewWiki(ctx context.Context, newWiki string) error {
	if err := m.mustExist(); err != nil {
		return err
	}
	if err := m.factory.requestRepo.SetNewWiki(ctx, m.querier(), m.id, newWiki); err != nil {
		return err
	}
	m.entity.NewWiki = newWiki
	return nil
}

func (m *RequestManager) SetReason(ctx context.Context, reason string) error {
	if err := m.mustExist(); err != nil {
		return err
	}
	if err := m.factory.requestRepo.SetReason(ctx, m.querier(), m.id, reason); err != nil {
		return err
	}
	m.entity.Reason = reason
	return nil
}

// AddComment добавляет комментарий. Для машинных комментариев userID
// передается как nil, а actor должен быть одним из зарезервированных имён.
// Уведомления участникам не рассылаются, если автор - системный актор.
func (m *RequestManager) AddComment(ctx context.Context, userID *int, actor string, text string) error {
	if err := m.mustExist(); err != nil {
		return err
	}

	comment := &entities.RequestComment{
		RequestID: m.id,
		UserID:    userID,
		Actor:     actor,
		Comment:   text,
	}
	if _, err := m.factory.commentRepo.CreateComment(ctx, m.querier(), comment); err != nil {
		return err
	}

	if constants.IsSystemActor(actor) {
		return nil
	}

	m.queueEvent(events.RequestCommentedEvent{
		RequestID: m.id,
		ActorID:   userID,
		Actor:     actor,
		Comment:   text,
		Private:   m.IsPrivate(false),
	})
	return nil
}

func (m *RequestManager) GetComments(ctx context.Context) ([]entities.RequestComment, error) {
	if err := m.mustExist(); err != nil {
		return nil, err
	}
	return m.factory.commentRepo.FindByRequestID(ctx, m.id)
}

// GetInvolvedUserIDs возвращает автора заявки и всех комментировавших,
// без повторов.
func (m *RequestManager) GetInvolvedUserIDs(ctx context.Context) ([]int, error) {
	if err := m.mustExist(); err != nil {
		return nil, err
	}

	ids, err := m.factory.commentRepo.FindInvolvedUserIDs(ctx, m.querier(), m.id)
	if err != nil {
		return nil, err
	}

	seen := make(map[int]struct{}, len(ids)+1)
	involved := make([]int, 0, len(ids)+1)
	for _, id := range append([]int{m.entity.RequesterID}, ids...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		involved = append(involved, id)
	}
	return involved, nil
}

func (m *RequestManager) log(ctx context.Context, action, actor string, userID *int, params map[string]string) error {
	entry := &entities.AuditLogEntry{
		RequestID: m.id,
		LogType:   m.LogType(),
		Action:    action,
		Actor:     actor,
		UserID:    userID,
		Target:    m.entity.NewWiki,
		Params:    params,
	}
	return m.factory.logRepo.CreateLogEntry(ctx, m.querier(), entry)
}

// LogRequest пишет запись о подаче заявки.
func (m *RequestManager) LogRequest(ctx context.Context, actor string, userID *int) error {
	if err := m.mustExist(); err != nil {
		return err
	}
	return m.log(ctx, constants.LogActionRequest, actor, userID, map[string]string{
		"old_wiki": m.entity.OldWiki,
		"new_wiki": m.entity.NewWiki,
	})
}

// LogStarted пишет запись о запуске фонового переименования. Исполнителем
// записи числится обработчик, нажавший запуск, а не служебная учётная запись.
func (m *RequestManager) LogStarted(ctx context.Context, actor string, userID *int) error {
	if err := m.mustExist(); err != nil {
		return err
	}
	return m.log(ctx, constants.LogActionStarted, actor, userID, map[string]string{
		"old_wiki": m.entity.OldWiki,
		"new_wiki": m.entity.NewWiki,
	})
}

// LogStatusUpdate пишет запись о смене статуса.
func (m *RequestManager) LogStatusUpdate(ctx context.Context, actor string, userID *int, status constants.RequestStatus) error {
	if err := m.mustExist(); err != nil {
		return err
	}
	return m.log(ctx, constants.LogActionStatusUpdate, actor, userID, map[string]string{
		"status": string(status),
	})
}

// QueueStatusChangeNotification откладывает уведомление о смене статуса
// до конца атомарной секции.
func (m *RequestManager) QueueStatusChangeNotification(actorID *int, actor string, oldStatus, newStatus constants.RequestStatus) {
	m.queueEvent(events.RequestStatusChangedEvent{
		RequestID: m.id,
		ActorID:   actorID,
		Actor:     actor,
		OldStatus: oldStatus,
		NewStatus: newStatus,
		Private:   m.IsPrivate(false),
	})
}

// QueueCreatedNotification откладывает уведомление о новой заявке.
func (m *RequestManager) QueueCreatedNotification() {
	m.queueEvent(events.RequestCreatedEvent{
		RequestID:     m.id,
		OldWiki:       m.entity.OldWiki,
		NewWiki:       m.entity.NewWiki,
		Private:       m.IsPrivate(false),
		RequesterID:   m.entity.RequesterID,
		RequesterName: m.entity.RequesterName,
	})
}

// Command собирает команду переименования. Подстановки заменяются
// буквально: шаблон задает оператор платформы, а не пользователь.
func (m *RequestManager) Command() string {
	replacer := strings.NewReplacer(
		"{IP}", m.factory.cfg.InstallPath,
		"{oldwiki}", m.entity.OldWiki,
		"{newwiki}", m.entity.NewWiki,
	)
	return replacer.Replace(m.factory.cfg.ScriptCommand)
}
