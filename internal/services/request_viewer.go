package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"renamewiki-system/internal/dto"
	"renamewiki-system/internal/entities"
	"renamewiki-system/internal/platform"
	"renamewiki-system/internal/repositories"
	"renamewiki-system/pkg/config"
	"renamewiki-system/pkg/constants"
	apperrors "renamewiki-system/pkg/errors"
	"renamewiki-system/pkg/utils"

	"go.uber.org/zap"
)

// Время, в течение которого повтор одинакового комментария из той же
// сессии считается случайной повторной отправкой формы.
const duplicateCommentTTL = 12 * time.Hour

type RequestViewerInterface interface {
	GetRequest(ctx context.Context, id int) (*dto.RequestResponseDTO, error)
	SubmitAction(ctx context.Context, id int, action dto.HandleRequestActionDTO) (*dto.RequestResponseDTO, error)
}

// RequestViewer реализует просмотр заявки и обработку действий над ней:
// комментарии, правки автора и решения обработчиков.
type RequestViewer struct {
	factory   *RequestManagerFactory
	userRepo  repositories.UserRepositoryInterface
	cache     repositories.CacheRepositoryInterface
	jobs      JobQueueInterface
	directory platform.WikiDirectory
	cfg       config.RenameWikiConfig
	logger    *zap.Logger
}

func NewRequestViewer(
	factory *RequestManagerFactory,
	userRepo repositories.UserRepositoryInterface,
	cache repositories.CacheRepositoryInterface,
	jobs JobQueueInterface,
	directory platform.WikiDirectory,
	cfg config.RenameWikiConfig,
	logger *zap.Logger,
) RequestViewerInterface {
	return &RequestViewer{
		factory:   factory,
		userRepo:  userRepo,
		cache:     cache,
		jobs:      jobs,
		directory: directory,
		cfg:       cfg,
		logger:    logger,
	}
}

// canSee проверяет видимость заявки: приватные заявки доступны только
// автору и пользователям с отдельным правом.
func (v *RequestViewer) canSee(m *RequestManager, userID int, caps map[string]bool) bool {
	if !m.IsPrivate(false) {
		return true
	}
	return m.RequesterID() == userID || caps[constants.CapabilityViewPrivate]
}

func (v *RequestViewer) GetRequest(ctx context.Context, id int) (*dto.RequestResponseDTO, error) {
	userID, err := utils.GetUserIDFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	caps := utils.GetCapabilitiesFromCtx(ctx)

	m := v.factory.NewManager()
	if err := m.LoadFromID(ctx, id); err != nil {
		return nil, err
	}
	if !m.Exists() || !v.canSee(m, userID, caps) {
		return nil, apperrors.ErrNotFound
	}

	return v.buildView(ctx, m, userID, caps)
}

func (v *RequestViewer) buildView(ctx context.Context, m *RequestManager, userID int, caps map[string]bool) (*dto.RequestResponseDTO, error) {
	comments, err := m.GetComments(ctx)
	if err != nil {
		return nil, err
	}

	commentDTOs := make([]dto.RequestCommentDTO, 0, len(comments))
	for _, c := range comments {
		commentDTOs = append(commentDTOs, dto.RequestCommentDTO{
			ID:        c.ID,
			Actor:     c.Actor,
			Comment:   c.Comment,
			CreatedAt: c.CreatedAt.Local().Format("2006-01-02 15:04:05"),
		})
	}

	status := m.Status()

	// Заявки заблокированных на платформе пользователей отображаются
	// как отклонённые независимо от фактического статуса.
	requester, err := v.userRepo.FindUserByID(ctx, m.RequesterID())
	if err != nil {
		return nil, err
	}
	if requester.Locked {
		status = constants.StatusDeclined
	}

	view := &dto.RequestResponseDTO{
		ID:             m.ID(),
		OldWiki:        m.OldWiki(),
		NewWiki:        m.NewWiki(),
		Reason:         m.Reason(),
		Private:        m.IsPrivate(false),
		Status:         string(status),
		Requester:      m.RequesterName(),
		Locked:         m.IsLocked(),
		Comments:       commentDTOs,
		CanHandle:      caps[constants.CapabilityHandle],
		CanEdit:        m.RequesterID() == userID || caps[constants.CapabilityHandle],
		PrivacyForced:  m.IsPrivate(true),
		HelpURL:        v.cfg.HelpURL,
		InterwikiAlias: v.directory.InterwikiAlias(m.OldWiki()),
	}
	if createdAt := m.Entity().CreatedAt; createdAt != nil {
		view.CreatedAt = createdAt.Local().Format("2006-01-02 15:04:05")
	}
	return view, nil
}

func (v *RequestViewer) SubmitAction(ctx context.Context, id int, action dto.HandleRequestActionDTO) (*dto.RequestResponseDTO, error) {
	userID, err := utils.GetUserIDFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	caps := utils.GetCapabilitiesFromCtx(ctx)

	user, err := v.userRepo.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Blocked {
		return nil, apperrors.ErrForbidden
	}

	m := v.factory.NewManager()
	if err := m.LoadFromID(ctx, id); err != nil {
		return nil, err
	}
	if !m.Exists() || !v.canSee(m, userID, caps) {
		return nil, apperrors.ErrNotFound
	}

	// Блокировка запрещает все действия, кроме самой блокировки:
	// иначе заявку было бы нечем разблокировать.
	if m.IsLocked() && action.Action != "lock" {
		return nil, apperrors.ErrRequestLocked
	}

	switch action.Action {
	case "comment":
		err = v.submitComment(ctx, m, user, action)
	case "edit":
		err = v.submitEdit(ctx, m, user, caps, action)
	case "handle":
		err = v.submitHandle(ctx, m, user, caps, action)
	case "lock":
		err = v.submitLock(ctx, m, user, caps, action)
	default:
		err = apperrors.ErrBadRequest
	}
	if err != nil {
		return nil, err
	}

	if err := m.LoadFromID(ctx, id); err != nil {
		return nil, err
	}
	return v.buildView(ctx, m, userID, caps)
}

// isDuplicateComment сравнивает текст с последним комментарием, отправленным
// из этой же сессии, чтобы отсечь повторную отправку формы.
func (v *RequestViewer) isDuplicateComment(ctx context.Context, requestID int, text string) bool {
	sessionID := utils.GetSessionIDFromCtx(ctx)
	if sessionID == "" {
		return false
	}

	key := v.lastCommentKey(sessionID, requestID)
	previous, err := v.cache.Get(ctx, key)
	if err != nil {
		return false
	}
	return previous == text
}

func (v *RequestViewer) rememberComment(ctx context.Context, requestID int, text string) {
	sessionID := utils.GetSessionIDFromCtx(ctx)
	if sessionID == "" {
		return
	}

	key := v.lastCommentKey(sessionID, requestID)
	if err := v.cache.Set(ctx, key, text, duplicateCommentTTL); err != nil {
		v.logger.Warn("Не удалось запомнить последний комментарий сессии", zap.Error(err))
	}
}

func (v *RequestViewer) lastCommentKey(sessionID string, requestID int) string {
	return fmt.Sprintf("renamewiki:last_comment:%s:%d", sessionID, requestID)
}

func (v *RequestViewer) submitComment(ctx context.Context, m *RequestManager, user *entities.User, action dto.HandleRequestActionDTO) error {
	text := strings.TrimSpace(action.Comment.String)
	if !action.Comment.Valid || text == "" {
		return apperrors.NewInvalidInputError("Комментарий не может быть пустым.")
	}

	if v.isDuplicateComment(ctx, m.ID(), text) {
		return apperrors.ErrDuplicateComment
	}

	if err := m.StartAtomic(ctx); err != nil {
		return err
	}
	defer m.Abort(ctx)

	if err := m.AddComment(ctx, &user.ID, user.Username, text); err != nil {
		return err
	}
	if err := m.EndAtomic(ctx); err != nil {
		return err
	}

	v.rememberComment(ctx, m.ID(), text)
	return nil
}

func (v *RequestViewer) submitEdit(ctx context.Context, m *RequestManager, user *entities.User, caps map[string]bool, action dto.HandleRequestActionDTO) error {
	if m.RequesterID() != user.ID && !caps[constants.CapabilityHandle] {
		return apperrors.ErrForbidden
	}

	if err := m.StartAtomic(ctx); err != nil {
		return err
	}
	defer m.Abort(ctx)

	changed := make([]string, 0, 4)

	if action.OldWiki.Valid && action.OldWiki.String != m.OldWiki() {
		if err := m.SetOldWiki(ctx, action.OldWiki.String); err != nil {
			return err
		}
		changed = append(changed, "old_wiki")
	}
	if action.NewWiki.Valid && action.NewWiki.String != m.NewWiki() {
		if err := validateNewWikiName(v.directory, action.NewWiki.String); err != nil {
			return err
		}
		if err := m.SetNewWiki(ctx, action.NewWiki.String); err != nil {
			return err
		}
		changed = append(changed, "new_wiki")
	}
	if action.Reason.Valid && action.Reason.String != m.Reason() {
		if strings.TrimSpace(action.Reason.String) == "" {
			return apperrors.NewInvalidInputError("Обоснование не может быть пустым.")
		}
		if err := m.SetReason(ctx, action.Reason.String); err != nil {
			return err
		}
		changed = append(changed, "reason")
	}
	if action.Private.Valid && action.Private.Bool != m.Entity().Private {
		// Переключать приватность могут только пользователи, которым
		// видны приватные заявки.
		if !caps[constants.CapabilityViewPrivate] {
			return apperrors.ErrForbidden
		}
		if err := m.SetPrivate(ctx, action.Private.Bool); err != nil {
			return err
		}
		changed = append(changed, "private")
	}

	if len(changed) == 0 {
		return apperrors.ErrNoChanges
	}

	if m.Status() == constants.StatusDeclined {
		// Правка отклонённой заявки открывает её заново.
		oldStatus := m.Status()
		if err := m.SetStatus(ctx, constants.StatusPending); err != nil {
			return err
		}
		if err := m.AddComment(ctx, nil, string(constants.ActorStatusUpdate),
			fmt.Sprintf("Заявка изменена (%s) пользователем %s и открыта заново.", strings.Join(changed, ", "), user.Username)); err != nil {
			return err
		}
		if err := m.LogStatusUpdate(ctx, user.Username, &user.ID, constants.StatusPending); err != nil {
			return err
		}
		m.QueueStatusChangeNotification(&user.ID, user.Username, oldStatus, constants.StatusPending)
	} else {
		if err := m.AddComment(ctx, nil, string(constants.ActorStatusUpdate),
			fmt.Sprintf("Заявка изменена (%s) пользователем %s.", strings.Join(changed, ", "), user.Username)); err != nil {
			return err
		}
	}

	return m.EndAtomic(ctx)
}

func (v *RequestViewer) submitHandle(ctx context.Context, m *RequestManager, user *entities.User, caps map[string]bool, action dto.HandleRequestActionDTO) error {
	if !caps[constants.CapabilityHandle] {
		return apperrors.ErrForbidden
	}
	if !action.Status.Valid || action.Status.String == "" {
		return apperrors.NewInvalidInputError("Не указан целевой статус заявки.")
	}

	if err := m.StartAtomic(ctx); err != nil {
		return err
	}
	defer m.Abort(ctx)

	oldStatus := m.Status()

	switch action.Status.String {
	case "submit-start":
		// Запуск фонового переименования.
		if constants.IsConflictStatus(oldStatus) {
			return apperrors.ErrStateConflict
		}
		if err := m.SetStatus(ctx, constants.StatusStarting); err != nil {
			return err
		}
		if err := m.LogStarted(ctx, user.Username, &user.ID); err != nil {
			return err
		}
		if err := m.AddComment(ctx, nil, string(constants.ActorExtension),
			"Запущено фоновое переименование вики."); err != nil {
			return err
		}
		m.QueueStatusChangeNotification(&user.ID, user.Username, oldStatus, constants.StatusStarting)

		if err := m.EndAtomic(ctx); err != nil {
			return err
		}

		if v.cfg.EnableAutomatedJob {
			// Статус starting уже зафиксирован, поэтому ошибка очереди
			// не отменяет действие: заявку можно перезапустить вручную.
			if err := v.jobs.Enqueue(ctx, m.ID(), user.Username); err != nil {
				v.logger.Error("Не удалось поставить задание переименования в очередь",
					zap.Int("requestID", m.ID()), zap.Error(err))
			}
		} else {
			v.afterHandleComment(ctx, m, user, action)
		}
		return nil

	case string(constants.StatusDeclined):
		if oldStatus == constants.StatusDeclined {
			return apperrors.ErrStateConflict
		}
		if err := m.SetStatus(ctx, constants.StatusDeclined); err != nil {
			return err
		}
	default:
		target := constants.RequestStatus(action.Status.String)
		if !target.IsValid() {
			return apperrors.NewInvalidInputError("Неизвестный статус заявки.")
		}
		// При выключенном фоновом задании обработчик ведет заявку вручную
		// и сам завершает её из inprogress; при включенном любой
		// конфликтный статус меняет только воркер.
		manualInProgress := oldStatus == constants.StatusInProgress && !v.cfg.EnableAutomatedJob
		if constants.IsConflictStatus(oldStatus) && !manualInProgress {
			return apperrors.ErrStateConflict
		}
		if err := m.SetStatus(ctx, target); err != nil {
			return err
		}
	}

	newStatus := m.Status()
	if err := m.LogStatusUpdate(ctx, user.Username, &user.ID, newStatus); err != nil {
		return err
	}
	if err := m.AddComment(ctx, nil, string(constants.ActorStatusUpdate),
		fmt.Sprintf("Статус заявки изменён: %s -> %s.", oldStatus, newStatus)); err != nil {
		return err
	}
	m.QueueStatusChangeNotification(&user.ID, user.Username, oldStatus, newStatus)

	if err := m.EndAtomic(ctx); err != nil {
		return err
	}

	// При включенном фоновом задании свободный комментарий обработчика
	// отбрасывается, статус меняет только воркер с машинными комментариями.
	if !v.cfg.EnableAutomatedJob {
		v.afterHandleComment(ctx, m, user, action)
	}
	return nil
}

// submitLock ставит либо снимает блокировку заявки. Заблокированная заявка
// не принимает никакие другие действия до снятия блокировки.
func (v *RequestViewer) submitLock(ctx context.Context, m *RequestManager, user *entities.User, caps map[string]bool, action dto.HandleRequestActionDTO) error {
	if !caps[constants.CapabilityHandle] {
		return apperrors.ErrForbidden
	}
	if !action.Locked.Valid {
		return apperrors.NewInvalidInputError("Не указано целевое состояние блокировки.")
	}
	if action.Locked.Bool == m.IsLocked() {
		return apperrors.ErrNoChanges
	}

	if err := m.StartAtomic(ctx); err != nil {
		return err
	}
	defer m.Abort(ctx)

	if err := m.SetLocked(ctx, action.Locked.Bool); err != nil {
		return err
	}

	text := fmt.Sprintf("Заявка заблокирована пользователем %s.", user.Username)
	if !action.Locked.Bool {
		text = fmt.Sprintf("Блокировка заявки снята пользователем %s.", user.Username)
	}
	if err := m.AddComment(ctx, nil, string(constants.ActorStatusUpdate), text); err != nil {
		return err
	}

	return m.EndAtomic(ctx)
}

// afterHandleComment добавляет необязательный комментарий обработчика
// отдельной записью после основного действия.
func (v *RequestViewer) afterHandleComment(ctx context.Context, m *RequestManager, user *entities.User, action dto.HandleRequestActionDTO) {
	text := strings.TrimSpace(action.Comment.String)
	if !action.Comment.Valid || text == "" {
		return
	}
	if v.isDuplicateComment(ctx, m.ID(), text) {
		return
	}
	if err := m.AddComment(ctx, &user.ID, user.Username, text); err != nil {
		v.logger.Error("Не удалось сохранить комментарий обработчика",
			zap.Int("requestID", m.ID()), zap.Error(err))
		return
	}
	v.rememberComment(ctx, m.ID(), text)
}

// validateNewWikiName проверяет новый идентификатор вики: он должен
// оканчиваться на "wiki" и не совпадать с существующей вики.
func validateNewWikiName(directory platform.WikiDirectory, newWiki string) error {
	if !strings.HasSuffix(newWiki, "wiki") {
		return apperrors.NewInvalidInputError("Новый идентификатор вики должен оканчиваться на \"wiki\".")
	}
	if directory.IsLocalWiki(newWiki) {
		return apperrors.NewInvalidInputError("Вики с таким идентификатором уже существует.")
	}
	return nil
}
