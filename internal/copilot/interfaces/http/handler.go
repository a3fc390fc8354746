// 包 http copilot 的 REST 接口
package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/prams2104/opspilot/internal/copilot/application"
	"github.com/prams2104/opspilot/internal/reconciliation/infrastructure/persistence"
	"github.com/prams2104/opspilot/pkg/logger"
)

// Handler copilot HTTP 处理器
type Handler struct {
	service *application.Service
}

// NewHandler 创建 HTTP 处理器
func NewHandler(service *application.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1/copilot")
	{
		api.POST("/explain/:id", h.ExplainIssue)
		api.POST("/query", h.Query)
	}
}

// ExplainIssue 生成并回填问题解释
func (h *Handler) ExplainIssue(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid issue id"})
		return
	}

	explanation, err := h.service.ExplainIssue(c.Request.Context(), uint(id))
	if err != nil {
		if errors.Is(err, persistence.ErrIssueNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "issue not found"})
			return
		}
		logger.Error(c.Request.Context(), "Failed to explain issue", "issue_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"explanation": explanation})
}

// QueryRequest 自然语言问题请求
type QueryRequest struct {
	Query string `json:"query" binding:"required"`
}

// Query 回答自然语言问题
func (h *Handler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	answer, err := h.service.AnswerQuery(c.Request.Context(), req.Query)
	if err != nil {
		logger.Error(c.Request.Context(), "Failed to answer query", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"answer": answer})
}
