package services

import (
	"context"
	"strings"

	"renamewiki-system/internal/dto"
	"renamewiki-system/internal/entities"
	"renamewiki-system/internal/platform"
	"renamewiki-system/internal/repositories"
	"renamewiki-system/pkg/constants"
	apperrors "renamewiki-system/pkg/errors"
	"renamewiki-system/pkg/utils"

	"go.uber.org/zap"
)

type SubmissionServiceInterface interface {
	CreateRequest(ctx context.Context, data dto.CreateRenameRequestDTO) (int, error)
}

// SubmissionService обрабатывает подачу новых заявок на переименование.
type SubmissionService struct {
	factory     *RequestManagerFactory
	requestRepo repositories.RequestRepositoryInterface
	userRepo    repositories.UserRepositoryInterface
	directory   platform.WikiDirectory
	logger      *zap.Logger
}

func NewSubmissionService(
	factory *RequestManagerFactory,
	requestRepo repositories.RequestRepositoryInterface,
	userRepo repositories.UserRepositoryInterface,
	directory platform.WikiDirectory,
	logger *zap.Logger,
) SubmissionServiceInterface {
	return &SubmissionService{
		factory:     factory,
		requestRepo: requestRepo,
		userRepo:    userRepo,
		directory:   directory,
		logger:      logger,
	}
}

func (s *SubmissionService) CreateRequest(ctx context.Context, data dto.CreateRenameRequestDTO) (int, error) {
	userID, err := utils.GetUserIDFromCtx(ctx)
	if err != nil {
		return 0, err
	}

	caps := utils.GetCapabilitiesFromCtx(ctx)
	if !caps[constants.CapabilityRequest] {
		return 0, apperrors.ErrForbidden
	}

	user, err := s.userRepo.FindUserByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	if user.Blocked {
		return 0, apperrors.ErrForbidden
	}

	if !s.directory.IsLocalWiki(data.OldWiki) {
		return 0, apperrors.ErrUnknownTargetWiki
	}
	if err := validateNewWikiName(s.directory, data.NewWiki); err != nil {
		return 0, err
	}
	if strings.TrimSpace(data.Reason) == "" {
		return 0, apperrors.NewInvalidInputError("Обоснование не может быть пустым.")
	}

	exists, err := s.requestRepo.ExistsActiveForWiki(ctx, data.OldWiki)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, apperrors.NewInvalidInputError("По этой вики уже есть незакрытая заявка.")
	}

	// Приватность вики, закрытой на уровне платформы, не обсуждается.
	private := data.Private || s.directory.IsPrivateWiki(data.OldWiki)

	m := s.factory.NewManager()
	if err := m.StartAtomic(ctx); err != nil {
		return 0, err
	}
	defer m.Abort(ctx)

	req := &entities.RenameRequest{
		OldWiki:     data.OldWiki,
		NewWiki:     data.NewWiki,
		Reason:      data.Reason,
		Private:     private,
		Status:      constants.StatusPending,
		RequesterID: userID,
	}
	if err := m.CreateNew(ctx, req); err != nil {
		return 0, err
	}
	if err := m.LogRequest(ctx, user.Username, &user.ID); err != nil {
		return 0, err
	}
	m.QueueCreatedNotification()

	if err := m.EndAtomic(ctx); err != nil {
		return 0, err
	}

	s.logger.Info("Подана заявка на переименование вики",
		zap.Int("requestID", m.ID()),
		zap.String("oldWiki", data.OldWiki),
		zap.String("newWiki", data.NewWiki),
	)
	return m.ID(), nil
}
