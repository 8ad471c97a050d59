package middleware

import (
	"context"
	"strings"

	"renamewiki-system/pkg/contextkeys"
	apperrors "renamewiki-system/pkg/errors"
	"renamewiki-system/pkg/service"
	"renamewiki-system/pkg/utils"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// CapabilityResolver отдает набор прав пользователя по его ID.
type CapabilityResolver interface {
	GetUserCapabilities(ctx context.Context, userID int) (map[string]bool, error)
}

type AuthMiddleware struct {
	jwtService   service.JWTService
	capabilities CapabilityResolver
	logger       *zap.Logger
}

func NewAuthMiddleware(jwtSvc service.JWTService, capabilities CapabilityResolver, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService:   jwtSvc,
		capabilities: capabilities,
		logger:       logger,
	}
}

// Auth - это основная функция middleware.
func (m *AuthMiddleware) Auth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		// 1. Извлекаем токен из заголовка
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			m.logger.Warn("AuthMiddleware: Пустой заголовок Authorization")
			return utils.ErrorResponse(c, apperrors.ErrEmptyAuthHeader)
		}

		// 2. Проверяем формат заголовка "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			m.logger.Warn("AuthMiddleware: Неверный формат заголовка Authorization")
			return utils.ErrorResponse(c, apperrors.ErrInvalidAuthHeader)
		}

		tokenString := parts[1]

		// 3. Валидируем токен
		claims, err := m.jwtService.ValidateToken(tokenString)
		if err != nil {
			m.logger.Warn("AuthMiddleware: Ошибка валидации токена", zap.Error(err))
			return utils.ErrorResponse(c, err) // ErrorResponse сам определит нужный статус (401)
		}

		// 4. Убеждаемся, что это не refresh токен
		if claims.IsRefreshToken {
			m.logger.Warn("AuthMiddleware: Попытка доступа с refresh токеном")
			return utils.ErrorResponse(c, apperrors.ErrTokenIsNotAccess)
		}

		// 5. Загружаем права пользователя
		caps, err := m.capabilities.GetUserCapabilities(c.Request().Context(), claims.UserID)
		if err != nil {
			m.logger.Error("AuthMiddleware: Не удалось загрузить права пользователя",
				zap.Int("userID", claims.UserID), zap.Error(err))
			return utils.ErrorResponse(c, err)
		}

		// 6. Записываем UserID, идентификатор сессии (jti) и права
		// в контекст запроса для дальнейшего использования
		ctx := c.Request().Context()
		ctx = context.WithValue(ctx, contextkeys.UserIDKey, claims.UserID)
		ctx = context.WithValue(ctx, contextkeys.SessionIDKey, claims.ID)
		ctx = context.WithValue(ctx, contextkeys.UserCapabilitiesKey, caps)
		c.SetRequest(c.Request().WithContext(ctx))

		m.logger.Info("AuthMiddleware: Пользователь успешно аутентифицирован", zap.Int("userID", claims.UserID))

		// 7. Если все в порядке, передаем управление следующему обработчику
		return next(c)
	}
}
