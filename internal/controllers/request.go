package controllers

import (
	"net/http"
	"strconv"

	"renamewiki-system/internal/dto"
	"renamewiki-system/internal/services"
	apperrors "renamewiki-system/pkg/errors"
	"renamewiki-system/pkg/utils"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type RequestController struct {
	submission services.SubmissionServiceInterface
	viewer     services.RequestViewerInterface
	logger     *zap.Logger
}

func NewRequestController(
	submission services.SubmissionServiceInterface,
	viewer services.RequestViewerInterface,
	logger *zap.Logger,
) *RequestController {
	return &RequestController{
		submission: submission,
		viewer:     viewer,
		logger:     logger,
	}
}

func (c *RequestController) CreateRequest(ctx echo.Context) error {
	var payload dto.CreateRenameRequestDTO

	if err := ctx.Bind(&payload); err != nil {
		c.logger.Error("CreateRequest: ошибка привязки данных", zap.Error(err))
		return utils.ErrorResponse(ctx, apperrors.NewInvalidInputError("Неверный формат данных заявки"))
	}
	if err := ctx.Validate(&payload); err != nil {
		return utils.ErrorResponse(ctx, err)
	}

	id, err := c.submission.CreateRequest(ctx.Request().Context(), payload)
	if err != nil {
		c.logger.Error("Ошибка при создании заявки", zap.Error(err))
		return utils.ErrorResponse(ctx, err)
	}
	return utils.SuccessResponse(ctx, map[string]int{"id": id}, "Заявка успешно создана", http.StatusCreated)
}

func (c *RequestController) GetRequest(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return utils.ErrorResponse(ctx, echo.NewHTTPError(http.StatusBadRequest, "Некорректный идентификатор заявки"))
	}

	res, err := c.viewer.GetRequest(ctx.Request().Context(), id)
	if err != nil {
		return utils.ErrorResponse(ctx, err)
	}
	return utils.SuccessResponse(ctx, res, "Заявка успешно получена", http.StatusOK)
}

func (c *RequestController) SubmitAction(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return utils.ErrorResponse(ctx, echo.NewHTTPError(http.StatusBadRequest, "Некорректный идентификатор заявки"))
	}

	var payload dto.HandleRequestActionDTO
	if err := ctx.Bind(&payload); err != nil {
		c.logger.Error("SubmitAction: ошибка привязки данных", zap.Error(err))
		return utils.ErrorResponse(ctx, apperrors.NewInvalidInputError("Неверный формат данных действия"))
	}
	if err := ctx.Validate(&payload); err != nil {
		return utils.ErrorResponse(ctx, err)
	}

	res, err := c.viewer.SubmitAction(ctx.Request().Context(), id, payload)
	if err != nil {
		c.logger.Warn("Действие над заявкой отклонено",
			zap.Int("requestID", id),
			zap.String("action", payload.Action),
			zap.Error(err))
		return utils.ErrorResponse(ctx, err)
	}
	return utils.SuccessResponse(ctx, res, "Действие выполнено", http.StatusOK)
}
