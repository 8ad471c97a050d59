package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"renamewiki-system/internal/repositories"

	"go.uber.org/zap"
)

const permissionCacheTTL = 5 * time.Minute

type PermissionServiceInterface interface {
	GetUserCapabilities(ctx context.Context, userID int) (map[string]bool, error)
	InvalidateUser(ctx context.Context, userID int) error
}

// PermissionService отдает права пользователя с коротким кешем в Redis:
// права читаются на каждом запросе, ходить за ними в базу каждый раз
// не нужно.
type PermissionService struct {
	userRepo repositories.UserRepositoryInterface
	cache    repositories.CacheRepositoryInterface
	logger   *zap.Logger
}

func NewPermissionService(
	userRepo repositories.UserRepositoryInterface,
	cache repositories.CacheRepositoryInterface,
	logger *zap.Logger,
) *PermissionService {
	return &PermissionService{
		userRepo: userRepo,
		cache:    cache,
		logger:   logger,
	}
}

func permissionCacheKey(userID int) string {
	return fmt.Sprintf("renamewiki:capabilities:%d", userID)
}

func (s *PermissionService) GetUserCapabilities(ctx context.Context, userID int) (map[string]bool, error) {
	key := permissionCacheKey(userID)

	if cached, err := s.cache.Get(ctx, key); err == nil {
		var capabilities []string
		if err := json.Unmarshal([]byte(cached), &capabilities); err == nil {
			return toCapabilityMap(capabilities), nil
		}
	}

	capabilities, err := s.userRepo.GetUserCapabilities(ctx, userID)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(capabilities); err == nil {
		if err := s.cache.Set(ctx, key, string(encoded), permissionCacheTTL); err != nil {
			s.logger.Warn("Не удалось закешировать права пользователя",
				zap.Int("userID", userID), zap.Error(err))
		}
	}

	return toCapabilityMap(capabilities), nil
}

func (s *PermissionService) InvalidateUser(ctx context.Context, userID int) error {
	return s.cache.Del(ctx, permissionCacheKey(userID))
}

func toCapabilityMap(capabilities []string) map[string]bool {
	result := make(map[string]bool, len(capabilities))
	for _, capability := range capabilities {
		result[capability] = true
	}
	return result
}
