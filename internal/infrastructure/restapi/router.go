package restapi

import (
	"net/http"
	"sort"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouterOptions carries the handlers mounted outside /api/v1.
type RouterOptions struct {
	Metrics http.Handler     // /metrics, optional
	Stream  http.HandlerFunc // /ws/buys, optional
	Logger  *zap.Logger
}

// SetupRouter builds the gin engine with CORS, zap request logging and recovery.
func SetupRouter(h *Handler, opts RouterOptions) *gin.Engine {
	router := gin.New()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsConfig))
	if opts.Logger != nil {
		router.Use(ZapLoggerMiddleware(opts.Logger))
	}
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics))
	}
	if opts.Stream != nil {
		router.GET("/ws/buys", gin.WrapF(opts.Stream))
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/subscriptions", h.ListSubscriptions)
		v1.POST("/subscriptions", h.Track)
		v1.DELETE("/subscriptions/:chatId/:token", h.Untrack)
		v1.PUT("/subscriptions/:chatId/min", h.SetMinBuyAmount)

		v1.GET("/leaderboard", h.LeaderboardTokens)
		v1.DELETE("/leaderboard", h.ClearAll)
		v1.GET("/leaderboard/:token", h.Leaderboard)
		v1.DELETE("/leaderboard/:token", h.ClearToken)
		v1.POST("/leaderboard/:token/buys", h.RecordBuy)
		v1.GET("/leaderboard/:token/buyers/:buyer", h.Buyer)

		v1.GET("/monitor/states", h.MonitorStates)
		v1.GET("/monitor/states/:token", h.MonitorState)
		v1.DELETE("/monitor/states/:token", h.ForgetState)
		v1.GET("/monitor/last-batch", h.LastBatch)

		v1.GET("/snapshots/:token", h.Snapshot)
		v1.GET("/pairs/:pair", h.PairSnapshot)
		v1.GET("/search", h.Search)
	}

	return router
}

// ZapLoggerMiddleware logs one line per request.
func ZapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	logger = logger.Named("HTTP")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			logger.Warn(c.Errors.String(), fields...)
			return
		}
		logger.Debug("Request handled", fields...)
	}
}

func sortTracked(v []trackedTokenView) {
	sort.Slice(v, func(i, j int) bool { return v[i].TokenAddress < v[j].TokenAddress })
}
