package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CrowderSoup/flow-board/database"
	"github.com/CrowderSoup/flow-board/handlers"
	"github.com/CrowderSoup/flow-board/services"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "server",
	Short:   "Run the flow-board server",
	Long: `Run the flow-board server: the document API under /api/docs/, magic link
authentication under /api/auth/, the health check at /api/health, the
cross-tab websocket relay at /api/ws, and the static frontend.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if port, _ := cmd.Flags().GetString("port"); port != "" {
			v.Set("port", port)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.ValidateServer(); err != nil {
			return err
		}
		services.SetupLogging(cfg)

		// Initialize database
		db, err := database.InitDB(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close()

		// Initialize services
		authService := services.NewAuthService(cfg)
		documentService := database.NewDocumentService(db)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		// Initialize WebSocket hub
		hub := services.NewHub()
		go hub.Run(ctx)

		r := handlers.NewRouter(authService, documentService, hub, cfg.StaticDir, cfg.AllowedOrigins)

		// Setup CORS
		c := cors.New(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "Authorization"},
			AllowCredentials: true,
		})

		server := &http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      c.Handler(r),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		go func() {
			<-ctx.Done()
			log.Printf("Shutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Printf("Error during shutdown: %v", err)
			}
		}()

		log.Printf("Server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringP("port", "p", "", "port to listen on (default 3001)")

	rootCmd.AddCommand(serveCmd)
}
