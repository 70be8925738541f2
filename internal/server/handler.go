package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/user/catalog-chat/internal/auth"
	"github.com/user/catalog-chat/internal/catalog"
	"github.com/user/catalog-chat/internal/chat"
	"github.com/user/catalog-chat/internal/gateway"
	"github.com/user/catalog-chat/internal/store"
)

const (
	defaultTemperature = 0.2
	defaultMaxTokens   = 512
	maxMessages        = 50
)

type Handler struct {
	chat           *chat.Client
	catalog        *catalog.Client
	usageStore     store.UsageStore
	defaultCatalog string
	defaultSchema  string
	wg             sync.WaitGroup
}

func NewHandler(chatClient *chat.Client, catalogClient *catalog.Client, usageStore store.UsageStore, defaultCatalog, defaultSchema string) *Handler {
	return &Handler{
		chat:           chatClient,
		catalog:        catalogClient,
		usageStore:     usageStore,
		defaultCatalog: defaultCatalog,
		defaultSchema:  defaultSchema,
	}
}

func (h *Handler) Register(r *gin.Engine) {
	r.POST("/v1/chat", h.Chat)
	r.GET("/v1/tables", h.ListTables)
	r.GET("/v1/tables/:table", h.GetTable)
	r.GET("/v1/tables/:table/lineage", h.GetLineage)
	r.GET("/v1/tools", h.ListTools)
	r.POST("/v1/tools/execute", h.ExecuteTool)
}

// Shutdown waits for all async tasks to complete
func (h *Handler) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type ChatRequest struct {
	Messages    []chat.Message `json:"messages" binding:"required"`
	Temperature *float64       `json:"temperature"`
	MaxTokens   *int           `json:"max_tokens"`
}

func (h *Handler) Chat(c *gin.Context) {
	start := time.Now()

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}
	if len(req.Messages) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "At least one message is required"})
		return
	}
	if len(req.Messages) > maxMessages {
		slog.Warn("Too many messages", "count", len(req.Messages))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Too many messages in conversation (max: 50)"})
		return
	}

	temperature := defaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := defaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	reply, err := h.chat.Complete(c.Request.Context(), req.Messages, temperature, maxTokens)
	h.logUsage(c, start, err)
	if err != nil {
		writeFailure(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

func (h *Handler) ListTables(c *gin.Context) {
	start := time.Now()
	catalogName, schemaName := h.scope(c)

	tables, err := h.catalog.ListTables(c.Request.Context(), catalogName, schemaName)
	h.logUsage(c, start, err)
	if err != nil {
		writeFailure(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"catalog": catalogName,
		"schema":  schemaName,
		"tables":  tables,
	})
}

func (h *Handler) GetTable(c *gin.Context) {
	start := time.Now()
	catalogName, schemaName := h.scope(c)

	details, err := h.catalog.GetTable(c.Request.Context(), catalogName, schemaName, c.Param("table"))
	h.logUsage(c, start, err)
	if err != nil {
		writeFailure(c, err)
		return
	}

	c.JSON(http.StatusOK, details)
}

func (h *Handler) GetLineage(c *gin.Context) {
	start := time.Now()
	catalogName, schemaName := h.scope(c)

	lineage, err := h.catalog.GetLineage(c.Request.Context(), catalogName, schemaName, c.Param("table"))
	h.logUsage(c, start, err)
	if err != nil {
		writeFailure(c, err)
		return
	}

	c.JSON(http.StatusOK, lineage)
}

func (h *Handler) ListTools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": catalog.FunctionDefinitions()})
}

type ExecuteToolRequest struct {
	Name      string            `json:"name" binding:"required"`
	Arguments map[string]string `json:"arguments"`
}

func (h *Handler) ExecuteTool(c *gin.Context) {
	start := time.Now()

	var req ExecuteToolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.catalog.ExecuteTool(c.Request.Context(), req.Name, req.Arguments)
	h.logUsage(c, start, err)
	if err != nil {
		writeFailure(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}

// scope resolves the catalog/schema pair, letting the query string override
// the configured defaults.
func (h *Handler) scope(c *gin.Context) (string, string) {
	catalogName := c.Query("catalog")
	if catalogName == "" {
		catalogName = h.defaultCatalog
	}
	schemaName := c.Query("schema")
	if schemaName == "" {
		schemaName = h.defaultSchema
	}
	return catalogName, schemaName
}

// writeFailure maps a classified backend failure onto an HTTP response for
// the UI. API errors keep the upstream status when it is a client error;
// everything else reads as a bad gateway.
func writeFailure(c *gin.Context, err error) {
	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) {
		status := apiErr.Status
		if status < 400 || status >= 500 {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"error_code": apiErr.Code, "error": apiErr.Message})
		return
	}

	var authErr *auth.Error
	if errors.As(err, &authErr) {
		slog.Error("Backend authentication failed", "error", authErr)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Backend authentication failed"})
		return
	}

	slog.Error("Backend call failed", "error", err)
	c.JSON(http.StatusBadGateway, gin.H{"error": "Backend unavailable", "details": err.Error()})
}

// logUsage persists one outcome record per handled request (async).
func (h *Handler) logUsage(c *gin.Context, start time.Time, callErr error) {
	if h.usageStore == nil {
		return
	}

	record := &store.UsageRecord{
		RequestID: uuid.New().String(),
		Timestamp: start.Format(time.RFC3339Nano),
		Route:     c.FullPath(),
		Outcome:   classifyOutcome(callErr),
		LatencyMs: time.Since(start).Milliseconds(),
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()

		// Retry Logic (Simple backing off)
		for i := 0; i < 3; i++ {
			if err := h.usageStore.LogUsage(context.Background(), record); err != nil {
				slog.Error("Failed to log usage, retrying", "attempt", i+1, "error", err)
				time.Sleep(time.Duration(100*(i+1)) * time.Millisecond)
				continue
			}
			break
		}
	}()
}

func classifyOutcome(err error) string {
	if err == nil {
		return "success"
	}
	var authErr *auth.Error
	if errors.As(err, &authErr) {
		return "auth_error"
	}
	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) {
		return "api_error"
	}
	return "transport_error"
}
