package api

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chu0802/CryptoTrader/internal/model"
	"github.com/chu0802/CryptoTrader/internal/storage"
)

// Handler serves the read-only visualization API: stored run results and
// candle history. Nothing here mutates trading state.
type Handler struct {
	repo   *storage.Repository
	store  *storage.FileStore
	logger *zap.Logger
}

func NewHandler(repo *storage.Repository, store *storage.FileStore, logger *zap.Logger) *Handler {
	return &Handler{
		repo:   repo,
		store:  store,
		logger: logger,
	}
}

type klineResponse struct {
	Time  time.Time `json:"time"`
	Open  string    `json:"open"`
	High  string    `json:"high"`
	Low   string    `json:"low"`
	Close string    `json:"close"`
}

func toKLineResponse(candles []model.KLine) []klineResponse {
	out := make([]klineResponse, 0, len(candles))
	for _, k := range candles {
		out = append(out, klineResponse{
			Time:  k.Timestamp,
			Open:  k.Open.String(),
			High:  k.High.String(),
			Low:   k.Low.String(),
			Close: k.Close.String(),
		})
	}
	return out
}

// GetHistoryKLines returns the most recent candles for a symbol from the
// database mirror.
func (h *Handler) GetHistoryKLines(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 || limit > 1000 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	candles, err := h.repo.RecentCandles(c.Request.Context(), symbol, limit)
	if err != nil {
		h.logger.Error("failed to query klines", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, toKLineResponse(candles))
}

// GetResults returns the snapshot log of a finished or running strategy.
// The mode query selects between backtest and trader results.
func (h *Handler) GetResults(c *gin.Context) {
	mode := c.DefaultQuery("mode", "backtest")
	if mode != "backtest" && mode != "trader" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid mode"})
		return
	}

	snapshots, err := h.store.LoadResults(mode, c.Param("strategy"), c.Param("symbol"))
	if err != nil {
		if os.IsNotExist(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no results"})
			return
		}
		h.logger.Error("failed to load results", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, snapshots)
}

// GetProfitHistory returns the per-step profit curve of a backtest run.
func (h *Handler) GetProfitHistory(c *gin.Context) {
	history, err := h.store.LoadProfitHistory("backtest", c.Param("strategy"), c.Param("symbol"))
	if err != nil {
		if os.IsNotExist(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no profit history"})
			return
		}
		h.logger.Error("failed to load profit history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, history)
}
