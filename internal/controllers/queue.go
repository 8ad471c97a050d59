package controllers

import (
	"fmt"
	"net/http"
	"time"

	"renamewiki-system/internal/dto"
	"renamewiki-system/internal/services"
	"renamewiki-system/pkg/utils"

	"github.com/labstack/echo/v4"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

type QueueController struct {
	queueService services.QueueServiceInterface
	logger       *zap.Logger
}

func NewQueueController(
	queueService services.QueueServiceInterface,
	logger *zap.Logger,
) *QueueController {
	return &QueueController{
		queueService: queueService,
		logger:       logger,
	}
}

func (c *QueueController) ListRequests(ctx echo.Context) error {
	params := utils.ParseQuery(ctx.Request().URL.Query())

	res, err := c.queueService.ListRequests(ctx.Request().Context(), params)
	if err != nil {
		c.logger.Error("Ошибка при получении очереди заявок", zap.Error(err))
		return utils.ErrorResponse(ctx, err)
	}
	return utils.SuccessResponse(ctx, res.List, "Очередь заявок успешно получена", http.StatusOK, res.TotalCount)
}

// ExportRequests выгружает очередь заявок в xlsx.
func (c *QueueController) ExportRequests(ctx echo.Context) error {
	params := utils.ParseQuery(ctx.Request().URL.Query())

	items, err := c.queueService.ExportRequests(ctx.Request().Context(), params)
	if err != nil {
		c.logger.Error("Ошибка при выгрузке очереди заявок", zap.Error(err))
		return utils.ErrorResponse(ctx, err)
	}
	return c.respondWithXLSX(ctx, items)
}

var queueHeaders = []string{
	"№", "Старая вики", "Новая вики", "Статус", "Заявитель", "Приватная", "Дата подачи",
}

func queueRowToSlice(item dto.RequestListItemDTO) []interface{} {
	private := "нет"
	if item.Private {
		private = "да"
	}
	return []interface{}{
		item.ID, item.OldWiki, item.NewWiki, item.Status, item.Requester, private, item.CreatedAt,
	}
}

func (c *QueueController) respondWithXLSX(ctx echo.Context, items []dto.RequestListItemDTO) error {
	f := excelize.NewFile()
	sheet := "Очередь переименований"
	f.SetSheetName("Sheet1", sheet)
	f.SetSheetRow(sheet, "A1", &queueHeaders)
	style, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	f.SetCellStyle(sheet, "A1", "G1", style)

	for i, item := range items {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := queueRowToSlice(item)
		f.SetSheetRow(sheet, cell, &row)
	}
	f.SetColWidth(sheet, "B", "C", 25)
	f.SetColWidth(sheet, "E", "E", 25)
	f.SetColWidth(sheet, "G", "G", 20)

	fileName := fmt.Sprintf("renamewiki_queue_%s.xlsx", time.Now().Format("2006-01-02"))
	ctx.Response().Header().Set(echo.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	ctx.Response().Header().Set("Content-Disposition", "attachment; filename="+fileName)
	ctx.Response().WriteHeader(http.StatusOK)
	return f.Write(ctx.Response().Writer)
}
