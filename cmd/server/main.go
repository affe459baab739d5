// Recorder server - owns the capture session and serves the WebSocket, REST and gRPC surfaces
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GriffinCanCode/screenrec/internal/artifact"
	"github.com/GriffinCanCode/screenrec/internal/config"
	"github.com/GriffinCanCode/screenrec/internal/encoder"
	"github.com/GriffinCanCode/screenrec/internal/rpc"
	"github.com/GriffinCanCode/screenrec/internal/screen"
	"github.com/GriffinCanCode/screenrec/internal/server"
	"github.com/GriffinCanCode/screenrec/internal/session"
)

func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	store := artifact.NewStore()
	hub := server.NewHub()

	manager, err := session.New(session.Options{
		Provider: screen.NewProvider(screen.Options{
			FrameRate:        cfg.CaptureFrameRate,
			SceneCutDistance: cfg.SceneCutDistance,
		}),
		Encoders: encoder.NewFactory(encoder.Options{
			Path:          cfg.FFmpegPath,
			FrameRate:     cfg.CaptureFrameRate,
			ChunkInterval: cfg.ChunkInterval,
			StopTimeout:   cfg.StopTimeout,
		}),
		Sink:        store,
		Presenter:   hub,
		Formats:     cfg.FormatCandidates,
		Filename:    cfg.DownloadFilename,
		StopTimeout: cfg.FinalizeTimeout(),
	})
	if err != nil {
		slog.Error("invalid recorder configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := manager.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("session manager error", "error", err)
		}
	}()

	// Start HTTP server
	srv := server.New(manager, hub, store.Handler(cfg.DownloadFilename))
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("recorder server starting", "http", cfg.HTTPAddr, "grpc", cfg.GRPCAddr, "formats", cfg.FormatCandidates)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	// Start gRPC control plane
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		slog.Error("failed to listen", "addr", cfg.GRPCAddr, "error", err)
		os.Exit(1)
	}
	grpcServer := rpc.NewGRPCServer(rpc.NewServer(manager, store))
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			slog.Error("grpc server error", "error", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	grpcServer.GracefulStop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
	if err := manager.Close(shutdownCtx); err != nil {
		slog.Error("session teardown error", "error", err)
	}
	cancel()
	slog.Info("shutdown complete")
}
