package router

import (
	"github.com/gin-gonic/gin"

	synctaskhandler "stock_sync/internal/feature/synctask/transport/handler"
	"stock_sync/internal/platform/http/handler"
	"stock_sync/internal/platform/webhookauth"
)

func NewRouter(trigger *synctaskhandler.TriggerHandler) *gin.Engine {
	r := gin.Default()

	// 認証不要
	// 導通確認用
	r.GET("/", handler.Index)
	r.GET("/healthz", handler.Health)
	r.HEAD("/healthz", handler.Health)
	r.OPTIONS("/healthz", handler.Health)

	// 認証必須のルート
	// webhookauth.Required() ミドルウェアを適用
	// → Authorization: Bearer <WEBHOOK_TOKEN> が必要になる
	hook := r.Group("/webhook")
	hook.Use(webhookauth.Required())
	{
		// 同期タスクの起動（完了を待たずに 202 を返す）
		hook.POST("", trigger.Trigger)
		hook.GET("/status", trigger.Status)
	}

	return r
}
