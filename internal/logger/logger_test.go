package logger

import (
	"testing"

	"github.com/referralhub/backend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewInstallsGlobalLogger(t *testing.T) {
	for _, env := range []string{"development", "production"} {
		log, err := New(&config.Config{Environment: env})
		require.NoError(t, err, env)
		assert.Same(t, log, zap.L(), env)
	}
	zap.ReplaceGlobals(zap.NewNop())
}
