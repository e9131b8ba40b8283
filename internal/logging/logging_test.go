package logging_test

import (
	"bytes"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"

	"github.com/nc9/sanity-go/internal/logging"
	"github.com/nc9/sanity-go/pkg/sanity"
)

var _ sanity.Logger = (*logging.Logger)(nil)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want hclog.Level
	}{
		{"", hclog.Info},
		{"DEBUG", hclog.Debug},
		{"debug", hclog.Debug},
		{"INFO", hclog.Info},
		{"WARNING", hclog.Warn},
		{"warn", hclog.Warn},
		{"ERROR", hclog.Error},
		{"CRITICAL", hclog.Error},
		{"nonsense", hclog.Info},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, logging.ParseLevel(tt.in))
		})
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := logging.New("WARN", &buf)
	logger.Debug("hidden debug", nil)
	logger.Info("hidden info", nil)
	logger.Warn("visible warn", map[string]interface{}{"status_code": 429})
	logger.Error("visible error", map[string]interface{}{"b": 2, "a": 1})

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible warn")
	assert.Contains(t, out, "status_code=429")
	assert.Contains(t, out, "sanity:")
	assert.Regexp(t, `a=1 b=2`, out)
}

func TestNewNull(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() {
		logging.NewNull().Error("dropped", map[string]interface{}{"k": "v"})
	})
}
