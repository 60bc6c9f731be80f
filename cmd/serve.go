package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/workmate/internal/auth"
	"github.com/ziadkadry99/workmate/internal/chat"
	"github.com/ziadkadry99/workmate/internal/preload"
	"github.com/ziadkadry99/workmate/internal/server"
	"github.com/ziadkadry99/workmate/internal/workspace"
)

var serverPort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the workmate API server",
	Long:  `Starts the REST and websocket API for chat, projects, tasks, profile and dashboard, with caching and predictive preloading.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = serverPort
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer log.Sync()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		gw, err := createGateway(cfg, log)
		if err != nil {
			return err
		}

		c := createCache(ctx, cfg, log)
		defer c.Close()
		go c.Run(ctx, cfg.Cache.SweepInterval)

		chatSvc := chat.NewService(chat.NewStore(database), gw, c, chatConfig(cfg), log)
		wsSvc := workspace.NewService(workspace.NewStore(database), c, log)
		preloader := preload.New(preload.StandardTargets(wsSvc, chatSvc), preload.Config{
			RouteCap:   cfg.Preload.RouteCap,
			ProjectCap: cfg.Preload.ProjectCap,
		}, log)
		if cfg.Preload.Enabled {
			go preloader.Run(ctx, cfg.Preload.Interval)
		}

		srv := server.New(server.Config{
			Port:            cfg.Server.Port,
			AllowAll:        cfg.Server.AllowAllOrigins,
			AllowHeaderUser: cfg.Auth.AllowHeaderUser,
		}, auth.NewTokenStore(database), c, log)

		r := srv.Router()
		chat.RegisterRoutes(r, chatSvc)
		workspace.RegisterRoutes(r, wsSvc)
		preload.RegisterRoutes(r, preloader)

		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		fmt.Fprintf(os.Stderr, "workmate server %s starting on port %d\n", Version, cfg.Server.Port)
		fmt.Fprintf(os.Stderr, "  Database: %s\n", database.Path())
		fmt.Fprintf(os.Stderr, "  Gateway:  %s\n", cfg.Gateway.Platform)

		err = srv.Start()
		chatSvc.Wait()
		preloader.Wait()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	},
}

func init() {
	serveCmd.Flags().IntVar(&serverPort, "port", 8080, "Port to listen on (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}
