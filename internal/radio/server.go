package radio

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arung-agamani/denpa-hub/config"
	"github.com/arung-agamani/denpa-hub/internal/auth"
	"github.com/arung-agamani/denpa-hub/internal/playlist"
	"github.com/arung-agamani/denpa-hub/internal/radio/handler"
)

// Server is the hub's ambient HTTP surface: live channel streaming, play
// history, playlist management, renderer control, and DJ authentication.
// It replaces the teacher's track/playlist-library CRUD server, which
// addressed audio files directly rather than through a channel/renderer
// pipeline.
type Server struct {
	config     *config.Config
	auth       *auth.Auth
	httpServer *http.Server
}

// Deps bundles everything NewServer needs to wire routes without importing
// every leaf package's constructor arguments directly into its own
// signature.
type Deps struct {
	Config    *config.Config
	Auth      *auth.Auth
	Channels  []*handler.ChannelEntry
	Playlists *playlist.Manager
	Renderers *handler.RendererRegistry
}

// NewServer builds the gin engine and registers every route. Mirrors the
// teacher's securityHeaders-wrapped-mux construction, adapted onto gin
// since gin is already the framework the rest of internal/radio (and its
// handler package) is built on.
func NewServer(deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(SecurityHeadersMiddleware())

	authHandlers := handler.NewAuthHandlers(deps.Auth)
	channelHandlers := handler.NewChannelHandlers(deps.Channels)
	playlistHandlers := handler.NewPlaylistHandlers(deps.Playlists)
	rendererHandlers := handler.NewRendererHandlers(deps.Renderers)
	spaHandler := handler.NewSPAHandler(deps.Config.Server.WebDir)

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Live streaming and history are mounted directly as http.Handlers so
	// StreamHandler keeps full control over flushing.
	channelHandlers.Mount(engine)

	api := engine.Group("/api")
	{
		api.POST("/auth/login", authHandlers.Login)
		api.GET("/auth/verify", AuthRequired(deps.Auth), authHandlers.VerifyToken)

		api.GET("/channels", channelHandlers.List)
		api.GET("/channels/:slug", channelHandlers.Get)

		api.GET("/renderers", rendererHandlers.List)
		api.GET("/renderers/:id/status", rendererHandlers.Status)
		api.GET("/renderers/:id/queue", rendererHandlers.GetQueue)

		protected := api.Group("/")
		protected.Use(AuthRequired(deps.Auth))
		{
			protected.POST("/renderers/:id/play-uri", rendererHandlers.PlayURI)
			protected.POST("/renderers/:id/play", rendererHandlers.Play)
			protected.POST("/renderers/:id/pause", rendererHandlers.Pause)
			protected.POST("/renderers/:id/stop", rendererHandlers.Stop)
			protected.POST("/renderers/:id/seek", rendererHandlers.Seek)
			protected.PUT("/renderers/:id/volume", rendererHandlers.SetVolume)
			protected.PUT("/renderers/:id/queue", rendererHandlers.SetQueue)

			protected.GET("/playlists", playlistHandlers.List)
			protected.POST("/playlists", playlistHandlers.Create)
			protected.GET("/playlists/:id", playlistHandlers.Get)
			protected.DELETE("/playlists/:id", playlistHandlers.Delete)
			protected.POST("/playlists/:id/items", playlistHandlers.PushItem)
			protected.DELETE("/playlists/:id/items/:index", playlistHandlers.RemoveItem)
		}
	}

	// SPA static file serving must be last: it falls back to index.html for
	// any path not already claimed above.
	engine.NoRoute(spaHandler.Handle)

	return &Server{
		config: deps.Config,
		auth:   deps.Auth,
		httpServer: &http.Server{
			Addr:         ":" + deps.Config.Server.Port,
			Handler:      engine,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 0, // streaming responses have no fixed write deadline
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		slog.Info("HTTP server starting", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}
