package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/radiotag/service-provider/internal/auth"
	"github.com/radiotag/service-provider/internal/config"
	"github.com/radiotag/service-provider/internal/database"
	"github.com/radiotag/service-provider/internal/identity"
	"github.com/radiotag/service-provider/internal/logging"
	"github.com/radiotag/service-provider/internal/server"
	"github.com/radiotag/service-provider/internal/tags"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "tag-service",
		Short: "RadioTAG service provider",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("ap-authorization-uri", defaults.GetString("ap.authorization_uri"), "Authorization provider token verification endpoint")
	cmd.PersistentFlags().String("ap-base-uri", defaults.GetString("ap.base_uri"), "Authorization provider base URI advertised in challenges")
	cmd.PersistentFlags().String("ap-request-format", defaults.GetString("ap.request_format"), "Verification request format (form, json, scoped)")
	cmd.PersistentFlags().Int("ap-rejected-status", defaults.GetInt("ap.rejected_status"), "Status the provider uses for rejected tokens (401 or 404)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "ap.authorization_uri", "ap-authorization-uri")
	bindFlag(cmd, "ap.base_uri", "ap-base-uri")
	bindFlag(cmd, "ap.request_format", "ap-request-format")
	bindFlag(cmd, "ap.rejected_status", "ap-rejected-status")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	provider, err := auth.NewProvider(auth.ProviderConfig{
		AuthorizationURI:  appConfig.Provider.AuthorizationURI,
		AccessToken:       appConfig.Provider.AccessToken,
		Domain:            appConfig.ServiceDomain,
		ServiceProviderID: appConfig.ServiceProviderID,
		RequestFormat:     auth.RequestFormat(appConfig.Provider.RequestFormat),
		RejectedStatus:    appConfig.Provider.RejectedStatus,
		Timeout:           appConfig.Provider.Timeout,
		Logger:            logger,
	})
	if err != nil {
		return err
	}

	reconciler, err := identity.NewReconciler(identity.ReconcilerConfig{Database: db})
	if err != nil {
		return err
	}

	tagService, err := tags.NewService(tags.ServiceConfig{Database: db})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Verifier:   provider,
		Reconciler: reconciler,
		TagService: tagService,
		Challenge: server.ChallengeConfig{
			ProviderName:      appConfig.Provider.Name,
			ProviderBaseURI:   appConfig.Provider.BaseURI,
			AuthorizationURI:  appConfig.Provider.AuthorizationURI,
			Modes:             appConfig.Provider.Modes,
			Style:             server.ChallengeStyle(appConfig.ChallengeStyle),
			ServiceProviderID: appConfig.ServiceProviderID,
		},
		ServiceName: appConfig.ServiceName,
		CORS: server.CORSConfig{
			Enabled:        appConfig.CORSEnabled,
			AllowedOrigins: appConfig.CORSAllowedOrigins,
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
