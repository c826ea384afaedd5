package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tessen/internal/dispatch"
	"tessen/modules/forwarddigest"
	"tessen/modules/help"
	"tessen/modules/pingpong"
	"tessen/pkg/botapi"
	"tessen/pkg/tessen"
)

const (
	envConfigFile = "TESSEN_CONFIG_FILE"
	envBotToken   = "TESSEN_BOT_TOKEN"

	defaultConfigFilePath   = "config/bot.json"
	alternateConfigFilePath = "bin/config/bot.json"

	modePolling = "polling"
	modeWebhook = "webhook"

	defaultListenAddr      = ":8080"
	defaultWebhookPath     = "/updates"
	defaultPollTimeout     = 30 * time.Second
	defaultQuietPeriod     = time.Second
	defaultShutdownTimeout = 10 * time.Second
)

type appConfig struct {
	logLevel slog.Level

	token      string
	apiBaseURL string

	mode        string
	listenAddr  string
	webhookPath string
	pollTimeout time.Duration

	quietPeriod     time.Duration
	shutdownTimeout time.Duration
}

type fileConfig struct {
	LogLevel string         `json:"log_level"`
	Token    string         `json:"token"`
	API      fileAPIConfig  `json:"api"`
	Intake   fileIntake     `json:"intake"`
	Dispatch fileDispatcher `json:"dispatch"`
}

type fileAPIConfig struct {
	BaseURL string `json:"base_url"`
}

type fileIntake struct {
	Mode        string `json:"mode"`
	ListenAddr  string `json:"listen_addr"`
	WebhookPath string `json:"webhook_path"`
	PollTimeout string `json:"poll_timeout"`
}

type fileDispatcher struct {
	QuietPeriod     string `json:"quiet_period"`
	ShutdownTimeout string `json:"shutdown_timeout"`
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.logLevel}))
	slog.SetDefault(logger)

	clientOptions := []botapi.ClientOption{}
	if cfg.apiBaseURL != "" {
		clientOptions = append(clientOptions, botapi.WithBaseURL(cfg.apiBaseURL))
	}
	bot, err := botapi.NewClient(cfg.token, clientOptions...)
	if err != nil {
		return fmt.Errorf("new bot client: %w", err)
	}

	private, public, err := buildRegistries(logger)
	if err != nil {
		return fmt.Errorf("build registries: %w", err)
	}

	dispatcher, err := dispatch.New(bot, private, public,
		dispatch.WithLogger(logger),
		dispatch.WithQuietPeriod(cfg.quietPeriod),
	)
	if err != nil {
		return fmt.Errorf("new dispatcher: %w", err)
	}
	defer dispatcher.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	me, err := bot.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("probe bot account: %w", err)
	}
	logger.Info("bot started", "username", me.Username, "mode", cfg.mode)

	switch cfg.mode {
	case modeWebhook:
		return runWebhook(ctx, logger, cfg, dispatcher)
	default:
		return runPolling(ctx, logger, cfg, bot, dispatcher)
	}
}

// runPolling drives the dispatcher from a getUpdates long-poll loop until the
// context is cancelled. Transport failures back off briefly instead of
// spinning against an unreachable endpoint.
func runPolling(
	ctx context.Context,
	logger *slog.Logger,
	cfg appConfig,
	bot *botapi.Client,
	dispatcher *dispatch.Dispatcher,
) error {
	var offset int64
	for {
		if ctx.Err() != nil {
			return nil
		}

		updates, next, err := bot.GetUpdates(ctx, offset, cfg.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("poll updates", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(3 * time.Second):
			}
			continue
		}
		offset = next

		for _, update := range updates {
			if err := dispatcher.HandleUpdate(ctx, &update); err != nil {
				logger.Warn("handle update", "update_id", update.UpdateID, "error", err)
			}
		}
	}
}

// runWebhook serves the dispatcher behind an HTTP endpoint until the context
// is cancelled, then drains in-flight requests within the shutdown timeout.
func runWebhook(
	ctx context.Context,
	logger *slog.Logger,
	cfg appConfig,
	dispatcher *dispatch.Dispatcher,
) error {
	mux := http.NewServeMux()
	mux.Handle(cfg.webhookPath, tessen.NewWebhookHandler(dispatcher.HandleUpdate, logger))

	server := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve webhook: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown webhook server: %w", err)
	}

	return nil
}

// buildRegistries assembles the private and public scope registries from the
// bundled handler modules.
func buildRegistries(logger *slog.Logger) (*tessen.Registry, *tessen.Registry, error) {
	privateReg := tessen.Registration{Handlers: make(map[string]tessen.Handler)}
	publicReg := tessen.Registration{Handlers: make(map[string]tessen.Handler)}

	pingpong.New().Register(&privateReg)
	pingpong.New().Register(&publicReg)
	help.New().Register(&privateReg)
	forwarddigest.New(logger).Register(&privateReg)

	private, err := tessen.NewRegistry(privateReg)
	if err != nil {
		return nil, nil, fmt.Errorf("private registry: %w", err)
	}
	public, err := tessen.NewRegistry(publicReg)
	if err != nil {
		return nil, nil, fmt.Errorf("public registry: %w", err)
	}

	return private, public, nil
}

func loadConfig() (appConfig, error) {
	cfg := defaultAppConfig()

	configFile, err := resolveConfigFilePath()
	if err != nil {
		return appConfig{}, err
	}
	if configFile != "" {
		if err := applyConfigFile(&cfg, configFile); err != nil {
			return appConfig{}, err
		}
	}

	if token := strings.TrimSpace(os.Getenv(envBotToken)); token != "" {
		cfg.token = token
	}
	if err := validateAppConfig(&cfg); err != nil {
		return appConfig{}, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// resolveConfigFilePath locates the config file, preferring the environment
// override. A missing file is not an error: the token can arrive via
// environment alone.
func resolveConfigFilePath() (string, error) {
	if configFile := strings.TrimSpace(os.Getenv(envConfigFile)); configFile != "" {
		return configFile, nil
	}

	candidates := []string{defaultConfigFilePath, alternateConfigFilePath}
	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil {
			if info.IsDir() {
				return "", fmt.Errorf("config file %s is a directory", candidate)
			}
			return candidate, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat config file %s: %w", candidate, err)
		}
	}

	return "", nil
}

func defaultAppConfig() appConfig {
	return appConfig{
		logLevel: slog.LevelInfo,

		mode:        modePolling,
		listenAddr:  defaultListenAddr,
		webhookPath: defaultWebhookPath,
		pollTimeout: defaultPollTimeout,

		quietPeriod:     defaultQuietPeriod,
		shutdownTimeout: defaultShutdownTimeout,
	}
}

func applyConfigFile(cfg *appConfig, path string) error {
	if cfg == nil {
		return fmt.Errorf("apply config file: nil config")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var parsed fileConfig
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if rawLevel := strings.TrimSpace(parsed.LogLevel); rawLevel != "" {
		level, err := parseLogLevel(rawLevel)
		if err != nil {
			return fmt.Errorf("parse log_level: %w", err)
		}
		cfg.logLevel = level
	}

	if token := strings.TrimSpace(parsed.Token); token != "" {
		cfg.token = token
	}
	if baseURL := strings.TrimSpace(parsed.API.BaseURL); baseURL != "" {
		cfg.apiBaseURL = baseURL
	}

	if mode := strings.ToLower(strings.TrimSpace(parsed.Intake.Mode)); mode != "" {
		cfg.mode = mode
	}
	if addr := strings.TrimSpace(parsed.Intake.ListenAddr); addr != "" {
		cfg.listenAddr = addr
	}
	if webhookPath := strings.TrimSpace(parsed.Intake.WebhookPath); webhookPath != "" {
		cfg.webhookPath = webhookPath
	}
	if rawTimeout := strings.TrimSpace(parsed.Intake.PollTimeout); rawTimeout != "" {
		timeout, err := parsePositiveDuration(rawTimeout)
		if err != nil {
			return fmt.Errorf("parse intake.poll_timeout: %w", err)
		}
		cfg.pollTimeout = timeout
	}

	if rawQuiet := strings.TrimSpace(parsed.Dispatch.QuietPeriod); rawQuiet != "" {
		quiet, err := parsePositiveDuration(rawQuiet)
		if err != nil {
			return fmt.Errorf("parse dispatch.quiet_period: %w", err)
		}
		cfg.quietPeriod = quiet
	}
	if rawShutdown := strings.TrimSpace(parsed.Dispatch.ShutdownTimeout); rawShutdown != "" {
		timeout, err := parsePositiveDuration(rawShutdown)
		if err != nil {
			return fmt.Errorf("parse dispatch.shutdown_timeout: %w", err)
		}
		cfg.shutdownTimeout = timeout
	}

	return nil
}

func validateAppConfig(cfg *appConfig) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if strings.TrimSpace(cfg.token) == "" {
		return fmt.Errorf("bot token is required; set token in the config file or %s", envBotToken)
	}
	if cfg.mode != modePolling && cfg.mode != modeWebhook {
		return fmt.Errorf("intake.mode must be %q or %q, got %q", modePolling, modeWebhook, cfg.mode)
	}
	if cfg.mode == modeWebhook && !strings.HasPrefix(cfg.webhookPath, "/") {
		return fmt.Errorf("intake.webhook_path must start with /")
	}

	return nil
}

func parsePositiveDuration(raw string) (time.Duration, error) {
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("must be > 0")
	}

	return parsed, nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unsupported level %q", raw)
	}
}
