package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("OWNER_IDS", "7 9")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, []int64{7, 9}, cfg.OwnerIDs)
	assert.Equal(t, "gpt-4.1", cfg.ChatModel)
	assert.Equal(t, 100, cfg.FreeImageLimit)
	assert.Equal(t, 100, cfg.FreeTTSLimit)
	assert.Equal(t, "file", cfg.StorageDriver)
	assert.Equal(t, 60*time.Second, cfg.ChatTimeout)
	assert.Equal(t, defaultSystemPrompt, cfg.SystemPrompt)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	base, err := LoadConfig()
	require.NoError(t, err)

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing token", mutate: func(c *Config) { c.TelegramBotToken = "" }, wantErr: true},
		{name: "unknown driver", mutate: func(c *Config) { c.StorageDriver = "redis" }, wantErr: true},
		{name: "postgres without dsn", mutate: func(c *Config) { c.StorageDriver = "postgres" }, wantErr: true},
		{name: "postgres with dsn", mutate: func(c *Config) {
			c.StorageDriver = "postgres"
			c.PgURL = "postgres://bot@localhost/bot"
		}},
		{name: "zero sweep interval", mutate: func(c *Config) { c.SweepInterval = 0 }, wantErr: true},
		{name: "negative limit", mutate: func(c *Config) { c.FreeImageLimit = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestLocation(t *testing.T) {
	loc, err := Config{Timezone: "Local"}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	loc, err = Config{Timezone: "UTC"}.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())

	_, err = Config{Timezone: "Mars/Olympus"}.Location()
	assert.Error(t, err)
}

func TestOpenStoresFileDriver(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		StorageDriver:    "file",
		PremiumUsersFile: filepath.Join(dir, "premium_users.json"),
		UsageDataFile:    filepath.Join(dir, "usage_data.json"),
		FreeImageLimit:   3,
		FreeTTSLimit:     1,
		Timezone:         "UTC",
	}

	st, err := openStores(context.Background(), cfg)
	require.NoError(t, err)
	defer st.close()

	assert.Nil(t, st.db)
	assert.Zero(t, st.premium.Count())
	assert.Equal(t, 3, st.usage.RemainingImages(context.Background(), 5))

	_, err = st.premium.Add(context.Background(), 5)
	require.NoError(t, err)

	reopened, err := openStores(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, reopened.premium.IsPremium(5))
}

func TestPremiumCommands(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PREMIUM_USERS_FILE", filepath.Join(dir, "premium_users.json"))
	t.Setenv("USAGE_DATA_FILE", filepath.Join(dir, "usage_data.json"))
	t.Setenv("LOG_LEVEL", "error")

	run := func(args ...string) (string, error) {
		var out bytes.Buffer
		cmd := newRootCommand()
		cmd.SetOut(&out)
		cmd.SetArgs(args)
		err := cmd.Execute()
		return out.String(), err
	}

	out, err := run("premium", "add", "42")
	require.NoError(t, err)
	assert.Contains(t, out, "user 42: premium=true changed=true")

	out, err = run("premium", "add", "42")
	require.NoError(t, err)
	assert.Contains(t, out, "changed=false")

	out, err = run("premium", "list")
	require.NoError(t, err)
	assert.Equal(t, "42\n", out)

	out, err = run("usage", "show", "42")
	require.NoError(t, err)
	assert.Contains(t, out, "PREMIUM")
	assert.Contains(t, out, "true")
	assert.NoFileExists(t, filepath.Join(dir, "usage_data.json"))

	_, err = run("premium", "remove", "abc")
	assert.Error(t, err)

	out, err = run("premium", "remove", "42")
	require.NoError(t, err)
	assert.Contains(t, out, "premium=false changed=true")
}

func TestServeRequiresToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("LOG_LEVEL", "error")

	cmd := newRootCommand()
	cmd.SetArgs([]string{"serve"})

	assert.ErrorContains(t, cmd.Execute(), "invalid config")
}
