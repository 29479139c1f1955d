package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/er587/wedding-gallery-application/internal/config"
	"github.com/er587/wedding-gallery-application/internal/constants"
	"github.com/er587/wedding-gallery-application/internal/database"
	"github.com/er587/wedding-gallery-application/internal/suggest"
	"github.com/er587/wedding-gallery-application/internal/tagging"
	"github.com/er587/wedding-gallery-application/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the face tagging API server.
The server exposes the person registry, face tag submission and moderation,
detector-backed identity suggestions and the overlay renderer under /api/v1.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().String("session-secret", "", "Secret for verifying identity tokens")
	serveCmd.Flags().Bool("no-detector", false, "Disable detection and suggestion endpoints")
}

// resolveServeOptions resolves listen address and secrets from flags and environment variables.
func resolveServeOptions(cmd *cobra.Command) web.Options {
	opts := web.Options{
		Port:           mustGetInt(cmd, "port"),
		Host:           mustGetString(cmd, "host"),
		SessionSecret:  mustGetString(cmd, "session-secret"),
		AllowedOrigins: os.Getenv("WEB_ALLOWED_ORIGINS"),
	}
	if opts.SessionSecret == "" {
		opts.SessionSecret = os.Getenv("WEB_SESSION_SECRET")
	}
	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &opts.Port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		opts.Host = envHost
	}
	return opts
}

// saveHNSWIndex saves the face HNSW index to disk during shutdown.
func saveHNSWIndex() {
	if rebuilder := database.GetFaceHNSWRebuilder(); rebuilder != nil {
		if err := rebuilder.SaveHNSWIndex(); err != nil {
			fmt.Printf("Warning: failed to save face HNSW index: %v\n", err)
		} else {
			fmt.Println("Face HNSW index saved to disk")
		}
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	opts := resolveServeOptions(cmd)
	if err := opts.Validate(); err != nil {
		return err
	}

	fmt.Printf("Connecting to PostgreSQL database...\n")
	repos, err := openStore(cfg)
	if err != nil {
		return err
	}
	ctx := context.Background()

	initFaceHNSW(ctx, repos.FaceTags, cfg.Database.HNSWIndexPath)

	service, err := newTaggingService(ctx, cfg.Policy)
	if err != nil {
		return err
	}
	services := web.Services{
		Tags:      service,
		Queue:     tagging.NewQueue(repos.FaceTags, cfg.Policy.Queue),
		Rebuilder: database.GetFaceHNSWRebuilder(),
	}

	if !mustGetBool(cmd, "no-detector") {
		var suggester *suggest.Suggester
		suggester, err = newSuggester(ctx, cfg)
		if err != nil {
			return err
		}
		services.Suggester = suggester
		fmt.Printf("Face detector: %s\n", cfg.Detector.URL)
	}

	server := web.NewServer(cfg, services, opts)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		saveHNSWIndex()

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, constants.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting face tagging API on http://%s:%d/api/v1\n", opts.Host, opts.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
