package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	cfg := FromViper(newViper())

	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, 30, cfg.InstructionalDays)
	assert.Equal(t, 75.0, cfg.FlagThreshold)
	assert.Equal(t, 30, cfg.DailyWindow)
	assert.Equal(t, 1500*time.Millisecond, cfg.VerifyDelay)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.False(t, cfg.CloudinaryEnabled())
}

func TestFromViperOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("ACCESS_TTL", "5m")
	t.Setenv("VERIFY_DELAY", "not-a-duration")
	t.Setenv("INSTRUCTIONAL_DAYS", "45")
	t.Setenv("RATE_LIMIT_PER_MIN", "-3")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test ,")
	t.Setenv("FACE_SKIP", "false")

	cfg := FromViper(newViper())

	assert.Equal(t, "sqlite", cfg.StoreDriver)
	assert.Equal(t, 5*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 1500*time.Millisecond, cfg.VerifyDelay)
	assert.Equal(t, 45, cfg.InstructionalDays)
	assert.Equal(t, 120, cfg.RateLimitPerMin)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.False(t, cfg.FaceSkip)
}

func TestLocation(t *testing.T) {
	tests := []struct {
		name string
		tz   string
		want string
	}{
		{name: "default local", tz: "Local", want: time.Local.String()},
		{name: "empty", tz: "", want: time.Local.String()},
		{name: "utc", tz: "UTC", want: "UTC"},
		{name: "unknown falls back", tz: "Mars/Olympus", want: time.Local.String()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, App{Timezone: tt.tz}.Location().String())
		})
	}
}

func TestVerifyDelayAndThreshold(t *testing.T) {
	tests := []struct {
		name      string
		delay     string
		threshold string
		wantDelay time.Duration
		wantFlag  float64
	}{
		{name: "zero disables delay", delay: "0", threshold: "80", wantDelay: 0, wantFlag: 80},
		{name: "zero seconds", delay: "0s", threshold: "100", wantDelay: 0, wantFlag: 100},
		{name: "explicit delay", delay: "250ms", threshold: "62.5", wantDelay: 250 * time.Millisecond, wantFlag: 62.5},
		{name: "negative delay", delay: "-1s", threshold: "75", wantDelay: 1500 * time.Millisecond, wantFlag: 75},
		{name: "threshold not a number", delay: "1s", threshold: "high", wantDelay: time.Second, wantFlag: 75},
		{name: "threshold zero", delay: "1s", threshold: "0", wantDelay: time.Second, wantFlag: 75},
		{name: "threshold above 100", delay: "1s", threshold: "120", wantDelay: time.Second, wantFlag: 75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("VERIFY_DELAY", tt.delay)
			t.Setenv("FLAG_THRESHOLD", tt.threshold)

			cfg := FromViper(newViper())
			assert.Equal(t, tt.wantDelay, cfg.VerifyDelay)
			assert.Equal(t, tt.wantFlag, cfg.FlagThreshold)
		})
	}
}
