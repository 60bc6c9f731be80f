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

	"github.com/ziadkadry99/workmate/internal/proxy"
)

var proxyPort int

var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Run the local LLM proxy for browser clients",
	Long: `Starts a small HTTP relay on localhost that forwards chat requests to the
configured provider. Browser clients reach it through the gateway's proxy
strategy, so the provider key never leaves this machine.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		port := cfg.Server.ProxyPort
		if cmd.Flags().Changed("port") {
			port = proxyPort
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer log.Sync()

		provider, err := createLLMProvider(cfg, log)
		if err != nil {
			return fmt.Errorf("creating LLM provider: %w", err)
		}
		srv := proxy.New(provider, cfg.Model, log)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		fmt.Fprintf(os.Stderr, "workmate proxy on http://localhost:%d (provider=%s, model=%s)\n", port, cfg.Provider, cfg.Model)
		if err := srv.Start(port); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	proxyCmd.Flags().IntVar(&proxyPort, "port", 3001, "Port to listen on (overrides server.proxy_port)")
	rootCmd.AddCommand(proxyCmd)
}
