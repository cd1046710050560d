package matchmaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
)

// API is the HTTP surface: an unauthenticated health check and a status
// snapshot. There is deliberately no mutating endpoint here.
type API struct {
	mm     *Matchmaker
	config *APIConfig
	logger *slog.Logger

	engine     *gin.Engine
	httpServer *http.Server
}

func newAPI(m *Matchmaker, cfg *APIConfig) *API {
	if m.config.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	a := &API{
		mm:     m,
		config: cfg,
		logger: slog.New(m.logHandler).With(loggerNameKey, "api"),
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	if len(cfg.CORS.AllowOrigins) > 0 {
		engine.Use(
			cors.New(
				cors.Config{
					AllowOrigins:     cfg.CORS.AllowOrigins,
					AllowMethods:     cfg.CORS.AllowMethods,
					AllowHeaders:     cfg.CORS.AllowHeaders,
					ExposeHeaders:    cfg.CORS.ExposeHeaders,
					AllowCredentials: cfg.CORS.AllowCredentials,
					MaxAge:           cfg.CORS.MaxAge,
				},
			),
		)
	}

	engine.GET("/health", a.getHealth)
	engine.GET("/api/status", a.getStatus)

	a.engine = engine
	a.httpServer = &http.Server{
		Addr:              cfg.Listen,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
	return a
}

func (a *API) getHealth(c *gin.Context) {
	c.JSON(
		http.StatusOK,
		gin.H{
			"status": "ok",
			"uptime": time.Since(a.mm.startedAt).String(),
		},
	)
}

type apiStatusResponse struct {
	Version       string `json:"version"`
	Environment   string `json:"environment"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Paused        bool   `json:"paused"`
	Guilds        int64  `json:"guilds"`
	ActiveAds     int64  `json:"active_ads"`
	AdsPosted     int64  `json:"ads_posted"`
	Connects      int64  `json:"connects"`
	Reports       int64  `json:"reports"`
	GatewayMS     int64  `json:"gateway_latency_ms"`
}

func (a *API) getStatus(c *gin.Context) {
	m := a.mm

	var guildCount int64
	if err := m.db.Model(&BotGuild{}).Count(&guildCount).Error; err != nil {
		a.logger.Error("error counting guilds", tint.Err(err))
	}
	var activeAds int64
	err := m.db.Model(&Ad{}).Where(
		"status = ? AND expires_at > ?",
		AdStatusActive,
		time.Now().UnixMilli(),
	).Count(&activeAds).Error
	if err != nil {
		a.logger.Error("error counting ads", tint.Err(err))
	}

	adsPosted, _ := counterValue(m.writeDB, counterAdsPosted)
	connects, _ := counterValue(m.writeDB, counterConnects)
	reports, _ := counterValue(m.writeDB, counterReports)

	c.JSON(
		http.StatusOK,
		apiStatusResponse{
			Version:       Version,
			Environment:   m.config.Environment,
			UptimeSeconds: int64(time.Since(m.startedAt).Seconds()),
			Paused:        m.Paused(),
			Guilds:        guildCount,
			ActiveAds:     activeAds,
			AdsPosted:     adsPosted,
			Connects:      connects,
			Reports:       reports,
			GatewayMS:     m.discord.session.HeartbeatLatency().Milliseconds(),
		},
	)
}

// Serve runs the HTTP server until ctx is cancelled.
func (a *API) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("api listening", "addr", a.config.Listen)
		errCh <- a.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			5*time.Second,
		)
		defer cancel()
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("api shutdown error: %w", err)
		}
		return nil
	}
}
