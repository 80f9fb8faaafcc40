package signalapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tpush/internal/fusion"
	"tpush/internal/logger"
	symbolpkg "tpush/internal/pkg/symbol"
	"tpush/internal/signal"

	"github.com/gin-gonic/gin"
)

const analyzeTimeout = 60 * time.Second

// SignalService 由应用层实现：分析并落库后返回最终信号。
type SignalService interface {
	Analyze(ctx context.Context, symbol string, scope ...signal.ProviderKind) (signal.TradingSignal, error)
	AnalyzeBatch(ctx context.Context, symbols []string, concurrency int) map[string]fusion.BatchResult
}

// HistoryReader 提供信号流水查询。
type HistoryReader interface {
	ListRecent(ctx context.Context, symbol string, limit, offset int) ([]signal.TradingSignal, error)
	CountBySymbol(ctx context.Context, symbol string) (int, error)
	GetByTraceID(ctx context.Context, traceID string) (signal.TradingSignal, bool, error)
}

// Router 暴露 /api/signal 下的分析与查询接口。
type Router struct {
	service SignalService
	history HistoryReader
}

func NewRouter(service SignalService, history HistoryReader) *Router {
	return &Router{service: service, history: history}
}

// Register 将路由挂载到给定分组下。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/analyze/:symbol", r.handleAnalyzeSymbol)
	group.POST("/analyze", r.handleAnalyzeBatch)
	if r.history != nil {
		group.GET("/history", r.handleHistory)
		group.GET("/trace/:trace_id", r.handleTraceDetail)
	}
}

func (r *Router) handleAnalyzeSymbol(c *gin.Context) {
	raw := strings.TrimSpace(c.Param("symbol"))
	sym := symbolpkg.Normalize(raw)
	if sym == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid symbol: " + raw})
		return
	}
	scope, ok := parseProviderScope(c.Query("providers"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown provider in providers query"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), analyzeTimeout)
	defer cancel()
	sig, err := r.service.Analyze(ctx, sym, scope...)
	if err != nil {
		logger.Errorf("[api] analyze failed ip=%s symbol=%s err=%v", c.ClientIP(), sym, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	logger.Infof("[api] analyze ip=%s symbol=%s action=%s confidence=%.3f trace=%s",
		c.ClientIP(), sym, sig.FinalAction, sig.FinalConfidence, sig.TraceID)
	c.JSON(http.StatusOK, gin.H{"signal": sig})
}

type batchAnalyzeRequest struct {
	Symbols        []string `json:"symbols"`
	MaxConcurrency int      `json:"max_concurrency"`
}

func (r *Router) handleAnalyzeBatch(c *gin.Context) {
	var req batchAnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	symbols := symbolpkg.NormalizeList(req.Symbols)
	if len(symbols) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbols 不能为空"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), analyzeTimeout)
	defer cancel()
	results := r.service.AnalyzeBatch(ctx, symbols, req.MaxConcurrency)

	signals := make([]signal.TradingSignal, 0, len(results))
	failures := make(map[string]string)
	for sym, res := range results {
		if res.Err != nil {
			failures[sym] = res.Err.Error()
			continue
		}
		signals = append(signals, res.Signal)
	}
	logger.Infof("[api] batch analyze ip=%s symbols=%d ok=%d failed=%d",
		c.ClientIP(), len(symbols), len(signals), len(failures))
	c.JSON(http.StatusOK, gin.H{
		"signals":  signals,
		"failures": failures,
	})
}

func (r *Router) handleHistory(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Query("symbol")))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	ctx := c.Request.Context()
	signals, err := r.history.ListRecent(ctx, symbol, limit, offset)
	if err != nil {
		logger.Errorf("[api] signal history failed ip=%s symbol=%s err=%v", c.ClientIP(), symbol, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	total, err := r.history.CountBySymbol(ctx, symbol)
	if err != nil {
		logger.Warnf("[api] signal history count failed ip=%s symbol=%s err=%v", c.ClientIP(), symbol, err)
		total = -1
	}
	c.JSON(http.StatusOK, gin.H{
		"signals":     signals,
		"total_count": total,
	})
}

func (r *Router) handleTraceDetail(c *gin.Context) {
	traceID := strings.TrimSpace(c.Param("trace_id"))
	if traceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "trace_id 必填"})
		return
	}
	sig, found, err := r.history.GetByTraceID(c.Request.Context(), traceID)
	if err != nil {
		logger.Errorf("[api] trace detail failed ip=%s trace=%s err=%v", c.ClientIP(), traceID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "signal not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"signal": sig})
}

func parseProviderScope(raw string) ([]signal.ProviderKind, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	var scope []signal.ProviderKind
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		kind, ok := signal.ParseProviderKind(part)
		if !ok {
			return nil, false
		}
		scope = append(scope, kind)
	}
	return scope, true
}
