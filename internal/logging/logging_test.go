package logging

import (
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLevel(t *testing.T) {
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		log.SetLevel(log.InfoLevel)
	})

	require.NoError(t, Setup("debug", ""))
	assert.Equal(t, log.DebugLevel, log.GetLevel())

	assert.Error(t, Setup("chatty", ""))
}

func TestSetupRotatingFile(t *testing.T) {
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		log.SetLevel(log.InfoLevel)
	})

	file := filepath.Join(t.TempDir(), "binfill.log")
	require.NoError(t, Setup("info", file))
	log.Info("[Test] hello")

	data, err := os.ReadFile(file)
	require.NoError(t, err, "link to the current log file")
	assert.Contains(t, string(data), "[Test] hello")
}
