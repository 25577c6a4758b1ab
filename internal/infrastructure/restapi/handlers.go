package restapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"buybot/internal/app/port"
	"buybot/internal/app/service"
	"buybot/internal/domain/entity"
	"buybot/internal/pkg/utils"

	"github.com/gin-gonic/gin"
)

// StateInspector exposes detector baselines and lets operators drop one.
type StateInspector interface {
	port.MonitorStateReader
	Forget(tokenAddress string) bool
}

// BatchReporter exposes the outcome of the last monitor batch.
type BatchReporter interface {
	LastReport() (service.BatchReport, bool)
}

// APIResponse is the envelope of every /api/v1 response.
type APIResponse struct {
	Data          any    `json:"data,omitempty"`
	Error         string `json:"error,omitempty"`
	StatusMessage string `json:"status_message,omitempty"`
}

// Handler serves the subscription, leaderboard and monitor endpoints.
type Handler struct {
	registry    port.SubscriptionRegistry
	leaderboard port.Leaderboard
	snapshots   port.SnapshotProvider
	states      StateInspector
	batches     BatchReporter
	logger      port.Logger
}

func NewHandler(
	registry port.SubscriptionRegistry,
	leaderboard port.Leaderboard,
	snapshots port.SnapshotProvider,
	states StateInspector,
	batches BatchReporter,
	l port.Logger,
) *Handler {
	return &Handler{
		registry:    registry,
		leaderboard: leaderboard,
		snapshots:   snapshots,
		states:      states,
		batches:     batches,
		logger:      l,
	}
}

type trackRequest struct {
	TokenAddress    string  `json:"tokenAddress" binding:"required"`
	ChatID          int64   `json:"chatId" binding:"required"`
	MinBuyAmountUSD float64 `json:"minBuyAmountUsd"`
}

type setMinRequest struct {
	MinBuyAmountUSD *float64 `json:"minBuyAmountUsd" binding:"required"`
}

type recordBuyRequest struct {
	Buyer     string  `json:"buyer" binding:"required"`
	AmountUSD float64 `json:"amountUsd" binding:"required"`
}

type leaderboardView struct {
	TokenAddress string              `json:"tokenAddress"`
	TopBuyers    []entity.BuyerStats `json:"topBuyers"`
	TotalBuyers  int                 `json:"totalBuyers"`
	TotalVolume  float64             `json:"totalVolume"`
}

type buyerView struct {
	Stats entity.BuyerStats `json:"stats"`
	Rank  int               `json:"rank"`
}

type trackedTokenView struct {
	TokenAddress string                `json:"tokenAddress"`
	Subscribers  []entity.Subscription `json:"subscribers"`
}

func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, entity.ErrInvalidAddress), errors.Is(err, entity.ErrInvalidAmount):
		status = http.StatusBadRequest
	case errors.Is(err, entity.ErrAlreadyTracked):
		status = http.StatusConflict
	case errors.Is(err, entity.ErrNotTracked), errors.Is(err, entity.ErrNoData):
		status = http.StatusNotFound
	case errors.Is(err, entity.ErrUpstreamUnavailable):
		status = http.StatusBadGateway
	}
	c.JSON(status, APIResponse{Error: err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, APIResponse{Error: msg})
}

func tokenParam(c *gin.Context) (string, bool) {
	token, ok := utils.NormalizeAddress(c.Param("token"))
	if !ok {
		badRequest(c, "invalid token address")
		return "", false
	}
	return token, true
}

func chatIDParam(c *gin.Context, raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		badRequest(c, "invalid chat id")
		return 0, false
	}
	return id, true
}

// ListSubscriptions returns the subscriptions of ?chatId=, or every tracked token without it.
func (h *Handler) ListSubscriptions(c *gin.Context) {
	if raw := c.Query("chatId"); raw != "" {
		chatID, ok := chatIDParam(c, raw)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, APIResponse{Data: h.registry.ListTracked(chatID)})
		return
	}
	grouped := h.registry.Snapshot()
	out := make([]trackedTokenView, 0, len(grouped))
	for token, subs := range grouped {
		out = append(out, trackedTokenView{TokenAddress: token, Subscribers: subs})
	}
	sortTracked(out)
	c.JSON(http.StatusOK, APIResponse{Data: out})
}

func (h *Handler) Track(c *gin.Context) {
	var req trackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	sub, err := h.registry.Track(req.TokenAddress, req.ChatID, req.MinBuyAmountUSD)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, APIResponse{Data: sub})
}

func (h *Handler) Untrack(c *gin.Context) {
	chatID, ok := chatIDParam(c, c.Param("chatId"))
	if !ok {
		return
	}
	if err := h.registry.Untrack(c.Param("token"), chatID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) SetMinBuyAmount(c *gin.Context) {
	chatID, ok := chatIDParam(c, c.Param("chatId"))
	if !ok {
		return
	}
	var req setMinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	n, err := h.registry.SetMinBuyAmount(chatID, *req.MinBuyAmountUSD)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, APIResponse{Data: gin.H{"updated": n}})
}

// LeaderboardTokens lists tokens that have recorded buys.
func (h *Handler) LeaderboardTokens(c *gin.Context) {
	c.JSON(http.StatusOK, APIResponse{Data: h.leaderboard.Tokens()})
}

// Leaderboard returns top buyers (?limit=, default 10) and totals.
func (h *Handler) Leaderboard(c *gin.Context) {
	token, ok := tokenParam(c)
	if !ok {
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(c, "invalid limit")
			return
		}
		limit = n
	}
	c.JSON(http.StatusOK, APIResponse{Data: leaderboardView{
		TokenAddress: token,
		TopBuyers:    h.leaderboard.GetTopBuyers(token, limit),
		TotalBuyers:  h.leaderboard.GetTotalBuyers(token),
		TotalVolume:  h.leaderboard.GetTotalVolume(token),
	}})
}

func (h *Handler) Buyer(c *gin.Context) {
	token, ok := tokenParam(c)
	if !ok {
		return
	}
	buyer := strings.ToLower(strings.TrimSpace(c.Param("buyer")))
	stats, found := h.leaderboard.GetBuyerStats(token, buyer)
	if !found {
		c.JSON(http.StatusNotFound, APIResponse{Error: "buyer not ranked", Data: buyerView{Rank: entity.NotRanked}})
		return
	}
	c.JSON(http.StatusOK, APIResponse{Data: buyerView{Stats: stats, Rank: h.leaderboard.GetBuyerRank(token, buyer)}})
}

// RecordBuy lets external indexers attribute buys to real wallets.
func (h *Handler) RecordBuy(c *gin.Context) {
	token, ok := tokenParam(c)
	if !ok {
		return
	}
	var req recordBuyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	stats, err := h.leaderboard.RecordBuy(token, req.Buyer, req.AmountUSD)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, APIResponse{Data: buyerView{Stats: stats, Rank: h.leaderboard.GetBuyerRank(token, stats.Address)}})
}

func (h *Handler) ClearToken(c *gin.Context) {
	token, ok := tokenParam(c)
	if !ok {
		return
	}
	h.leaderboard.ClearTokenData(token)
	h.logger.Info("Leaderboard cleared via API", "token", token)
	c.Status(http.StatusNoContent)
}

func (h *Handler) ClearAll(c *gin.Context) {
	h.leaderboard.ClearAllData()
	h.logger.Info("All leaderboards cleared via API")
	c.Status(http.StatusNoContent)
}

func (h *Handler) MonitorStates(c *gin.Context) {
	c.JSON(http.StatusOK, APIResponse{Data: h.states.States()})
}

func (h *Handler) MonitorState(c *gin.Context) {
	token, ok := tokenParam(c)
	if !ok {
		return
	}
	st, found := h.states.State(token)
	if !found {
		c.JSON(http.StatusNotFound, APIResponse{Error: "token has no baseline yet"})
		return
	}
	c.JSON(http.StatusOK, APIResponse{Data: st})
}

// ForgetState drops a token's baseline; the next check re-seeds it without alerting.
func (h *Handler) ForgetState(c *gin.Context) {
	token, ok := tokenParam(c)
	if !ok {
		return
	}
	if !h.states.Forget(token) {
		c.JSON(http.StatusNotFound, APIResponse{Error: "token has no baseline yet"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) LastBatch(c *gin.Context) {
	report, ok := h.batches.LastReport()
	if !ok {
		c.JSON(http.StatusOK, APIResponse{StatusMessage: "no batch has run yet"})
		return
	}
	c.JSON(http.StatusOK, APIResponse{Data: report})
}

// Snapshot returns the current snapshot of a token, fetching when the cache is cold.
func (h *Handler) Snapshot(c *gin.Context) {
	token, ok := tokenParam(c)
	if !ok {
		return
	}
	snap, found := h.snapshots.Fetch(c.Request.Context(), token)
	if !found {
		c.JSON(http.StatusNotFound, APIResponse{Error: "no pair on the configured chain"})
		return
	}
	c.JSON(http.StatusOK, APIResponse{Data: snap})
}

// PairSnapshot serves one pool by its address, whichever token it belongs to.
func (h *Handler) PairSnapshot(c *gin.Context) {
	pair, ok := utils.NormalizeAddress(c.Param("pair"))
	if !ok {
		badRequest(c, "invalid pair address")
		return
	}
	snap, found := h.snapshots.FetchPair(c.Request.Context(), pair)
	if !found {
		c.JSON(http.StatusNotFound, APIResponse{Error: "pair not found on the configured chain"})
		return
	}
	c.JSON(http.StatusOK, APIResponse{Data: snap})
}

func (h *Handler) Search(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		badRequest(c, "missing query parameter q")
		return
	}
	results, err := h.snapshots.Search(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, APIResponse{Data: results})
}
