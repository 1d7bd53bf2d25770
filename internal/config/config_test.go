package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

const validJSON = `{
  "telegram": {"token": "123:abc", "owner_user_ids": [42], "poll_timeout": "10s"},
  "logging": {"level": "info", "console": true},
  "storage": {"driver": "file", "path": "./data/promo.json"},
  "promo": {"command_delay": "1s", "refresh_schedule": "0 3 * * *"}
}`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()
	m := NewManager(writeFile(t, "config.json", validJSON))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" || !slices.Equal(cfg.Telegram.OwnerUserIDs, []int64{42}) {
		t.Fatalf("telegram = %+v", cfg.Telegram)
	}
	if m.Get() != cfg {
		t.Fatal("Get did not return the committed config")
	}
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	body := `
telegram:
  token: "123:abc"
  owner_user_ids: [42, 43]
storage:
  driver: redis
  addr: 127.0.0.1:6379
  db: 2
promo:
  publish_schedule: "@daily"
  publish_chat: -100123
  publish_range: "0_500"
  publish_lists: 2
  publish_labels: ["★", "✦"]
`
	cfg, err := NewManager(writeFile(t, "config.yaml", body)).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Driver != "redis" || cfg.Storage.DB != 2 {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if cfg.Promo.PublishChat != -100123 || len(cfg.Promo.PublishLabels) != 2 {
		t.Fatalf("promo = %+v", cfg.Promo)
	}
}

func TestDecodeStrict(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		body string
		want error
	}{
		{name: "unknown field", body: `{"telegram": {"token": "x", "nope": 1}}`},
		{name: "trailing data", body: `{} {}`, want: ErrTrailingData},
		{name: "bad json", body: `{"telegram":`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode("config.json", []byte(tc.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	base := func() *Config {
		return &Config{Telegram: TelegramConfig{Token: "t", OwnerUserIDs: []int64{1}}}
	}
	cases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "ok", mutate: func(*Config) {}},
		{name: "no token", mutate: func(c *Config) { c.Telegram.Token = " " }, wantErr: "telegram.token"},
		{name: "no owners", mutate: func(c *Config) { c.Telegram.OwnerUserIDs = nil }, wantErr: "owner_user_ids"},
		{name: "group log", mutate: func(c *Config) { c.Telegram.GroupLog = "logs" }, wantErr: "group_log"},
		{name: "duration", mutate: func(c *Config) { c.Promo.CommandDelay = "soon" }, wantErr: "promo.command_delay"},
		{name: "negative duration", mutate: func(c *Config) { c.Metadata.Timeout = "-1s" }, wantErr: "metadata.timeout"},
		{name: "driver", mutate: func(c *Config) { c.Storage.Driver = "etcd" }, wantErr: "storage.driver"},
		{name: "sqlite path", mutate: func(c *Config) { c.Storage.Driver = "sqlite" }, wantErr: "storage.path"},
		{name: "redis addr", mutate: func(c *Config) { c.Storage.Driver = "redis" }, wantErr: "storage.addr"},
		{name: "timezone", mutate: func(c *Config) { c.Scheduler.Timezone = "Mars/Base" }, wantErr: "scheduler.timezone"},
		{name: "schedule", mutate: func(c *Config) { c.Promo.CleanSchedule = "whenever" }, wantErr: "promo.clean_schedule"},
		{name: "publish chat", mutate: func(c *Config) { c.Promo.PublishSchedule = "1h" }, wantErr: "publish_chat"},
		{name: "publish range", mutate: func(c *Config) {
			c.Promo.PublishSchedule, c.Promo.PublishChat, c.Promo.PublishRange = "1h", 1, "huge"
		}, wantErr: "publish_range"},
		{name: "observability addr", mutate: func(c *Config) {
			c.Observability = ObservabilityConfig{Enabled: true, Addr: "9464"}
		}, wantErr: "observability.addr"},
		{name: "observability timeout", mutate: func(c *Config) { c.Observability.ReadTimeout = "later" }, wantErr: "observability.read_timeout"},
		{name: "publish labels", mutate: func(c *Config) {
			c.Promo.PublishSchedule, c.Promo.PublishChat, c.Promo.PublishLists = "1h", 1, 3
			c.Promo.PublishLabels = []string{"a"}
		}, wantErr: "publish_labels"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := base()
			tc.mutate(c)
			err := Validate(c)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("Validate err = %v, want mention of %q", err, tc.wantErr)
			}
		})
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	d, err := ParseDurationOrDefault("x", "", 2*time.Second)
	if err != nil || d != 2*time.Second {
		t.Fatalf("empty = %v, %v", d, err)
	}
	d, err = ParseDurationOrDefault("x", "250ms", time.Second)
	if err != nil || d != 250*time.Millisecond {
		t.Fatalf("250ms = %v, %v", d, err)
	}
	if _, err := ParseDurationOrDefault("x", "-2s", time.Second); err == nil {
		t.Fatal("expected error for negative duration")
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()
	oldCfg := &Config{
		Telegram: TelegramConfig{Token: "a", OwnerUserIDs: []int64{1}},
		Storage:  StorageConfig{Driver: "file", Path: "x"},
		Promo:    PromoConfig{PublishLabels: []string{"★"}},
	}
	newCfg := &Config{
		Telegram: TelegramConfig{Token: "a", OwnerUserIDs: []int64{1, 2}},
		Storage:  StorageConfig{Driver: "redis", Addr: "h:1", Password: "secret"},
		Promo:    PromoConfig{PublishLabels: []string{"★", "✦"}},

		Observability: ObservabilityConfig{Enabled: true},
	}
	sections, attrs := SummarizeConfigChange(oldCfg, newCfg)
	if !slices.Equal(sections, []string{"observability", "promo", "storage", "telegram"}) {
		t.Fatalf("sections = %v", sections)
	}
	if len(attrs) == 0 {
		t.Fatal("expected attrs")
	}
	if got := RestartRequired(oldCfg, newCfg); !slices.Equal(got, []string{"storage"}) {
		t.Fatalf("RestartRequired = %v", got)
	}

	if s, _ := SummarizeConfigChange(oldCfg, oldCfg); len(s) != 0 {
		t.Fatalf("identical configs reported %v", s)
	}
}

func TestWatchPublishesValidChanges(t *testing.T) {
	path := writeFile(t, "config.json", validJSON)
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Watch(ctx)
	}()

	// Let the watcher register the directory before writing.
	time.Sleep(100 * time.Millisecond)

	// An invalid edit is rejected and never published.
	if err := os.WriteFile(path, []byte(`{"telegram": {"token": ""}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(600 * time.Millisecond)
	select {
	case cfg := <-sub:
		t.Fatalf("invalid config published: %+v", cfg)
	default:
	}

	updated := strings.Replace(validJSON, `"level": "info"`, `"level": "debug"`, 1)
	if err := os.WriteFile(path, []byte(updated), 0o600); err != nil {
		t.Fatal(err)
	}
	select {
	case cfg := <-sub:
		if cfg.Logging.Level != "debug" {
			t.Fatalf("published level = %q", cfg.Logging.Level)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no config published")
	}
	cancel()
	<-done
}
