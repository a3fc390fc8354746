// 包 http 对账服务的 REST 接口
package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/prams2104/opspilot/internal/reconciliation/application"
	"github.com/prams2104/opspilot/internal/reconciliation/domain"
	"github.com/prams2104/opspilot/pkg/logger"
)

// Handler HTTP 处理器
type Handler struct {
	engine *application.Engine
	repo   domain.Repository
}

// NewHandler 创建 HTTP 处理器
func NewHandler(engine *application.Engine, repo domain.Repository) *Handler {
	return &Handler{engine: engine, repo: repo}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/", h.Root)
	router.GET("/health", h.Health)

	api := router.Group("/api/v1")
	{
		api.POST("/trades", h.CreateTrade)
		api.GET("/trades", h.ListTrades)
		api.GET("/issues", h.ListIssues)
		api.POST("/reconcile", h.Reconcile)
	}
}

// Root 服务横幅
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "OpsPilot API - Operations Reconciliation Copilot"})
}

// Health 健康检查
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

// CreateTradeRequest 交易创建请求
type CreateTradeRequest struct {
	TradeID    string          `json:"trade_id" binding:"required"`
	Trader     string          `json:"trader" binding:"required"`
	Instrument string          `json:"instrument" binding:"required"`
	Quantity   decimal.Decimal `json:"quantity" binding:"required"`
	Price      decimal.Decimal `json:"price" binding:"required"`
	Side       string          `json:"side" binding:"required"`
}

// CreateTrade 创建交易，状态默认 pending
func (h *Handler) CreateTrade(c *gin.Context) {
	var req CreateTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	side := domain.TradeSide(req.Side)
	if side != domain.SideBuy && side != domain.SideSell {
		c.JSON(http.StatusBadRequest, gin.H{"error": "side must be BUY or SELL"})
		return
	}
	if !req.Quantity.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity must be positive"})
		return
	}

	trade := &domain.Trade{
		TradeID:    req.TradeID,
		Trader:     req.Trader,
		Instrument: req.Instrument,
		Quantity:   req.Quantity,
		Price:      req.Price,
		Side:       side,
		Timestamp:  time.Now(),
		Status:     domain.StatusPending,
	}

	if err := h.repo.CreateTrade(c.Request.Context(), trade); err != nil {
		logger.Error(c.Request.Context(), "Failed to create trade", "trade_id", req.TradeID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, trade)
}

// ListTrades 列出全部交易
func (h *Handler) ListTrades(c *gin.Context) {
	trades, err := h.repo.ListTrades(c.Request.Context(), "")
	if err != nil {
		logger.Error(c.Request.Context(), "Failed to list trades", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, trades)
}

// ListIssues 列出未解决的问题
func (h *Handler) ListIssues(c *gin.Context) {
	issues, err := h.repo.ListOpenIssues(c.Request.Context())
	if err != nil {
		logger.Error(c.Request.Context(), "Failed to list issues", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, issues)
}

// Reconcile 执行一次对账，返回问题与异常汇总
func (h *Handler) Reconcile(c *gin.Context) {
	result, err := h.engine.Run(c.Request.Context())
	if err != nil {
		logger.Error(c.Request.Context(), "Reconciliation run failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}
