package services

import (
	"context"

	"renamewiki-system/internal/dto"
	"renamewiki-system/internal/entities"
	"renamewiki-system/internal/repositories"
	"renamewiki-system/pkg/constants"
	"renamewiki-system/pkg/utils"

	"go.uber.org/zap"
)

type QueueServiceInterface interface {
	ListRequests(ctx context.Context, params utils.QueryParams) (*dto.RequestListResponseDTO, error)
	ExportRequests(ctx context.Context, params utils.QueryParams) ([]dto.RequestListItemDTO, error)
}

// QueueService отвечает за очередь заявок: постраничный список с фильтрами
// и выгрузку для отчета.
type QueueService struct {
	requestRepo repositories.RequestRepositoryInterface
	userRepo    repositories.UserRepositoryInterface
	db          repositories.Database
	logger      *zap.Logger
}

func NewQueueService(
	requestRepo repositories.RequestRepositoryInterface,
	userRepo repositories.UserRepositoryInterface,
	db repositories.Database,
	logger *zap.Logger,
) QueueServiceInterface {
	return &QueueService{
		requestRepo: requestRepo,
		userRepo:    userRepo,
		db:          db,
		logger:      logger,
	}
}

func (s *QueueService) ListRequests(ctx context.Context, params utils.QueryParams) (*dto.RequestListResponseDTO, error) {
	items, total, err := s.list(ctx, params)
	if err != nil {
		return nil, err
	}
	return &dto.RequestListResponseDTO{List: items, TotalCount: total}, nil
}

// ExportRequests отдает все строки очереди под отчет, без пагинации.
func (s *QueueService) ExportRequests(ctx context.Context, params utils.QueryParams) ([]dto.RequestListItemDTO, error) {
	params.Limit = 10000
	params.Offset = 0
	items, _, err := s.list(ctx, params)
	return items, err
}

func (s *QueueService) list(ctx context.Context, params utils.QueryParams) ([]dto.RequestListItemDTO, uint64, error) {
	userID, err := utils.GetUserIDFromCtx(ctx)
	if err != nil {
		return nil, 0, err
	}
	caps := utils.GetCapabilitiesFromCtx(ctx)

	// По умолчанию очередь показывает только ожидающие заявки,
	// "*" снимает фильтр по статусу.
	if _, ok := params.Filters["status"]; !ok {
		params.Filters["status"] = string(constants.StatusPending)
	}
	if params.Filters["status"] == "*" {
		delete(params.Filters, "status")
	}

	requests, total, err := s.requestRepo.ListRequests(ctx, params, userID, caps[constants.CapabilityViewPrivate])
	if err != nil {
		return nil, 0, err
	}

	lockedRequesters, err := s.lockedRequesters(ctx, requests)
	if err != nil {
		return nil, 0, err
	}

	items := make([]dto.RequestListItemDTO, 0, len(requests))
	for _, req := range requests {
		status := req.Status
		if lockedRequesters[req.RequesterID] {
			status = constants.StatusDeclined
		}

		item := dto.RequestListItemDTO{
			ID:        req.ID,
			OldWiki:   req.OldWiki,
			NewWiki:   req.NewWiki,
			Private:   req.Private,
			Status:    string(status),
			Requester: req.RequesterName,
		}
		if req.CreatedAt != nil {
			item.CreatedAt = req.CreatedAt.Local().Format("2006-01-02 15:04:05")
		}
		items = append(items, item)
	}
	return items, total, nil
}

// lockedRequesters возвращает авторов из выборки, заблокированных на платформе.
func (s *QueueService) lockedRequesters(ctx context.Context, requests []entities.RenameRequest) (map[int]bool, error) {
	ids := make([]int, 0, len(requests))
	seen := make(map[int]struct{}, len(requests))
	for _, req := range requests {
		if _, ok := seen[req.RequesterID]; ok {
			continue
		}
		seen[req.RequesterID] = struct{}{}
		ids = append(ids, req.RequesterID)
	}

	users, err := s.userRepo.FindUsersByIDs(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}

	locked := make(map[int]bool, len(users))
	for _, u := range users {
		if u.Locked {
			locked[u.ID] = true
		}
	}
	return locked, nil
}
