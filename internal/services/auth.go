package services

import (
	"context"
	"errors"

	"renamewiki-system/internal/dto"
	"renamewiki-system/internal/repositories"
	apperrors "renamewiki-system/pkg/errors"
	"renamewiki-system/pkg/service"
	"renamewiki-system/pkg/utils"

	"go.uber.org/zap"
)

type AuthServiceInterface interface {
	Login(ctx context.Context, data dto.LoginDTO) (*dto.AuthResponseDTO, error)
	Refresh(ctx context.Context, data dto.RefreshTokenDTO) (*dto.AuthResponseDTO, error)
}

type AuthService struct {
	userRepo   repositories.UserRepositoryInterface
	jwtService service.JWTService
	logger     *zap.Logger
}

func NewAuthService(
	userRepo repositories.UserRepositoryInterface,
	jwtService service.JWTService,
	logger *zap.Logger,
) AuthServiceInterface {
	return &AuthService{
		userRepo:   userRepo,
		jwtService: jwtService,
		logger:     logger,
	}
}

func (s *AuthService) Login(ctx context.Context, data dto.LoginDTO) (*dto.AuthResponseDTO, error) {
	user, err := s.userRepo.FindUserByLogin(ctx, data.Login)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}

	if user.Locked {
		return nil, apperrors.ErrForbidden
	}

	if err := utils.ComparePasswords(user.Password, data.Password); err != nil {
		s.logger.Warn("Неудачная попытка входа", zap.String("login", data.Login))
		return nil, apperrors.ErrInvalidCredentials
	}

	return s.buildResponse(ctx, user.ID)
}

func (s *AuthService) Refresh(ctx context.Context, data dto.RefreshTokenDTO) (*dto.AuthResponseDTO, error) {
	claims, err := s.jwtService.ValidateToken(data.RefreshToken)
	if err != nil {
		return nil, err
	}
	if !claims.IsRefreshToken {
		return nil, apperrors.ErrInvalidToken
	}

	return s.buildResponse(ctx, claims.UserID)
}

func (s *AuthService) buildResponse(ctx context.Context, userID int) (*dto.AuthResponseDTO, error) {
	user, err := s.userRepo.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Locked {
		return nil, apperrors.ErrForbidden
	}

	capabilities, err := s.userRepo.GetUserCapabilities(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	accessToken, refreshToken, err := s.jwtService.GenerateTokens(user.ID)
	if err != nil {
		return nil, err
	}

	return &dto.AuthResponseDTO{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User: dto.UserPublicDTO{
			ID:           user.ID,
			Username:     user.Username,
			Email:        user.Email,
			RoleID:       user.RoleID,
			Capabilities: capabilities,
		},
	}, nil
}
