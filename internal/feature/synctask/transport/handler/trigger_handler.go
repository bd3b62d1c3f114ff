package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"stock_sync/internal/feature/synctask/domain/entity"
	"stock_sync/internal/feature/synctask/transport/http/dto"
	"stock_sync/internal/feature/synctask/usecase"
)

// TaskCoordinator はバックグラウンド同期の起動と状態取得のインターフェースです。
// Following Go convention: interfaces are defined by the consumer (handler), not the provider (usecase).
type TaskCoordinator interface {
	Trigger(ctx context.Context) (string, error)
	Status(ctx context.Context) entity.Status
}

// TriggerHandler は同期タスクのWebhookを処理します。
type TriggerHandler struct {
	coord TaskCoordinator
}

// NewTriggerHandler は新しい TriggerHandler を作成します。
func NewTriggerHandler(coord TaskCoordinator) *TriggerHandler {
	return &TriggerHandler{coord: coord}
}

// Trigger は同期タスクを起動し、完了を待たずに202を返します。
// 実行中の場合は429を返します。
func (h *TriggerHandler) Trigger(c *gin.Context) {
	runID, err := h.coord.Trigger(c.Request.Context())
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, dto.TriggerResponse{
			Status:  dto.StatusSuccess,
			Message: dto.MessageAccepted,
			RunID:   runID,
		})
	case errors.Is(err, usecase.ErrAlreadyRunning):
		c.JSON(http.StatusTooManyRequests, dto.TriggerResponse{
			Status:  dto.StatusError,
			Message: dto.MessageAlreadyRunning,
		})
	case errors.Is(err, usecase.ErrShuttingDown):
		c.JSON(http.StatusServiceUnavailable, dto.TriggerResponse{
			Status:  dto.StatusError,
			Message: dto.MessageShuttingDown,
		})
	default:
		slog.Error("failed to trigger sync task", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// Status は実行中かどうかと直近の実行結果を返します。
func (h *TriggerHandler) Status(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, h.coord.Status(c.Request.Context()))
}
