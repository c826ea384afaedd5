package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "bot.json")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	return path
}

func TestApplyConfigFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		contents string
		wantErr  bool
		assert   func(t *testing.T, cfg appConfig)
	}{
		{
			name: "full config",
			contents: `{
				"log_level": "debug",
				"token": "123:FILE",
				"api": {"base_url": "https://bot-api.internal"},
				"intake": {"mode": "webhook", "listen_addr": ":9000", "webhook_path": "/hooks/tg", "poll_timeout": "25s"},
				"dispatch": {"quiet_period": "1500ms", "shutdown_timeout": "5s"}
			}`,
			assert: func(t *testing.T, cfg appConfig) {
				if cfg.logLevel != slog.LevelDebug {
					t.Errorf("log level = %v, want debug", cfg.logLevel)
				}
				if cfg.token != "123:FILE" {
					t.Errorf("token = %s", cfg.token)
				}
				if cfg.apiBaseURL != "https://bot-api.internal" {
					t.Errorf("base url = %s", cfg.apiBaseURL)
				}
				if cfg.mode != modeWebhook || cfg.listenAddr != ":9000" || cfg.webhookPath != "/hooks/tg" {
					t.Errorf("intake = %s %s %s", cfg.mode, cfg.listenAddr, cfg.webhookPath)
				}
				if cfg.quietPeriod != 1500*time.Millisecond {
					t.Errorf("quiet period = %s", cfg.quietPeriod)
				}
				if cfg.shutdownTimeout != 5*time.Second {
					t.Errorf("shutdown timeout = %s", cfg.shutdownTimeout)
				}
			},
		},
		{
			name:     "empty object keeps defaults",
			contents: `{}`,
			assert: func(t *testing.T, cfg appConfig) {
				if cfg.mode != modePolling {
					t.Errorf("mode = %s, want polling", cfg.mode)
				}
				if cfg.quietPeriod != defaultQuietPeriod {
					t.Errorf("quiet period = %s, want default", cfg.quietPeriod)
				}
				if cfg.pollTimeout != defaultPollTimeout {
					t.Errorf("poll timeout = %s, want default", cfg.pollTimeout)
				}
			},
		},
		{
			name:     "malformed json",
			contents: `{"log_level": }`,
			wantErr:  true,
		},
		{
			name:     "bad log level",
			contents: `{"log_level": "loud"}`,
			wantErr:  true,
		},
		{
			name:     "non-positive quiet period",
			contents: `{"dispatch": {"quiet_period": "-1s"}}`,
			wantErr:  true,
		},
		{
			name:     "unparseable poll timeout",
			contents: `{"intake": {"poll_timeout": "soon"}}`,
			wantErr:  true,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			cfg := defaultAppConfig()
			err := applyConfigFile(&cfg, writeTempConfig(t, testCase.contents))
			if testCase.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("apply config: %v", err)
			}
			testCase.assert(t, cfg)
		})
	}
}

func TestValidateAppConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(cfg *appConfig)
		wantErr bool
	}{
		{
			name:   "valid polling config",
			mutate: func(cfg *appConfig) { cfg.token = "123:OK" },
		},
		{
			name:    "missing token",
			mutate:  func(cfg *appConfig) {},
			wantErr: true,
		},
		{
			name: "unknown mode",
			mutate: func(cfg *appConfig) {
				cfg.token = "123:OK"
				cfg.mode = "carrier-pigeon"
			},
			wantErr: true,
		},
		{
			name: "webhook path without leading slash",
			mutate: func(cfg *appConfig) {
				cfg.token = "123:OK"
				cfg.mode = modeWebhook
				cfg.webhookPath = "updates"
			},
			wantErr: true,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			cfg := defaultAppConfig()
			testCase.mutate(&cfg)
			err := validateAppConfig(&cfg)
			if testCase.wantErr && err == nil {
				t.Fatal("expected an error")
			}
			if !testCase.wantErr && err != nil {
				t.Fatalf("validate: %v", err)
			}
		})
	}
}

func TestLoadConfigEnvTokenOverridesFile(t *testing.T) {
	path := writeTempConfig(t, `{"token": "123:FILE"}`)
	t.Setenv(envConfigFile, path)
	t.Setenv(envBotToken, "456:ENV")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.token != "456:ENV" {
		t.Fatalf("token = %s, want the environment override", cfg.token)
	}
}

func TestBuildRegistriesWiresAllModules(t *testing.T) {
	t.Parallel()

	private, public, err := buildRegistries(slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("build registries: %v", err)
	}

	if len(private.Rules()) == 0 {
		t.Fatal("private registry has no trigger rules")
	}
	if _, found := private.Forwards(); !found {
		t.Fatal("private registry is missing the forwards consumer")
	}
	if len(public.Rules()) == 0 {
		t.Fatal("public registry has no trigger rules")
	}
	if _, found := public.Forwards(); found {
		t.Fatal("public registry must not consume forward batches")
	}
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw     string
		want    slog.Level
		wantErr bool
	}{
		{raw: "debug", want: slog.LevelDebug},
		{raw: " INFO ", want: slog.LevelInfo},
		{raw: "warning", want: slog.LevelWarn},
		{raw: "error", want: slog.LevelError},
		{raw: "loud", wantErr: true},
	}

	for _, testCase := range tests {
		level, err := parseLogLevel(testCase.raw)
		if testCase.wantErr {
			if err == nil {
				t.Errorf("parseLogLevel(%q): expected an error", testCase.raw)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseLogLevel(%q): %v", testCase.raw, err)
			continue
		}
		if level != testCase.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", testCase.raw, level, testCase.want)
		}
	}
}
