package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  host: 0.0.0.0\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30, cfg.Server.RateLimitPerMin)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "memory", cfg.Queue.Backend)
	assert.Equal(t, 256, cfg.Queue.Size)
	assert.Equal(t, 24*time.Hour, cfg.JWT.TTL)
	assert.Equal(t, "arkesel", cfg.SMS.Provider)
	assert.Equal(t, "Acolatse", cfg.SMS.OTPSender)
	assert.Equal(t, "AcolatseVodziHall", cfg.SMS.AnnouncementSender)
	assert.Equal(t, "@every 1m", cfg.OTP.SweepSchedule)
	assert.False(t, cfg.OTP.SingleUse)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
database:
  driver: memory
  host: db
  port: 5432
  user: app
  password: pw
  dbname: blinddate
  sslmode: disable
jwt:
  secret: from-file
  ttl: 2h
sms:
  provider: log
  api_key: file-key
otp:
  single_use: true
  sweep_schedule: "@every 30s"
`)
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("PORT", "7000")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, 2*time.Hour, cfg.JWT.TTL)
	assert.True(t, cfg.OTP.SingleUse)
	assert.Equal(t, "@every 30s", cfg.OTP.SweepSchedule)
	assert.Equal(t, "host=db port=5432 user=app password=pw dbname=blinddate sslmode=disable", cfg.Database.DSN())

	t.Setenv("DATABASE_URL", "postgres://u@h/db")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://u@h/db", cfg.Database.DSN())
}

func TestSMSKeyIsReadAtCallTime(t *testing.T) {
	c := SMSConfig{APIKey: "file-key"}
	t.Setenv("SMS_API_KEY", "")
	assert.Equal(t, "file-key", c.Key())

	t.Setenv("SMS_API_KEY", "rotated")
	assert.Equal(t, "rotated", c.Key())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "server: [unclosed"))
	assert.Error(t, err)
}
