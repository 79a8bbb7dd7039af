package logging

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup(t *testing.T) {
	tests := []struct {
		name          string
		debug         bool
		newLog        bool
		console       bool
		expectedLevel logrus.Level
		expectedFile  string
		expectConsole bool
	}{
		{
			name:          "quiet",
			expectedLevel: logrus.InfoLevel,
			expectedFile:  "previous\n",
		},
		{
			name:          "console only",
			console:       true,
			expectedLevel: logrus.InfoLevel,
			expectedFile:  "previous\n",
			expectConsole: true,
		},
		{
			name:          "debug appends",
			debug:         true,
			expectedLevel: logrus.DebugLevel,
			expectedFile:  "previous\n",
		},
		{
			name:          "debug with new log truncates",
			debug:         true,
			newLog:        true,
			console:       true,
			expectedLevel: logrus.DebugLevel,
			expectConsole: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, FileName)
			require.NoError(t, os.WriteFile(path, []byte("previous\n"), 0o600))

			var console bytes.Buffer
			opts := Options{Debug: tt.debug, NewLog: tt.newLog, Dir: dir}
			if tt.console {
				opts.Console = &console
			}

			logger := logrus.New()
			closer, err := Setup(logger, opts)
			require.NoError(t, err)

			assert.Equal(t, tt.expectedLevel, logger.GetLevel())
			logger.Info("Reminder started")
			require.NoError(t, closer.Close())

			assert.Equal(t, tt.expectConsole, bytes.Contains(console.Bytes(), []byte("Reminder started")))

			content, err := os.ReadFile(path)
			require.NoError(t, err)
			if tt.debug {
				assert.Contains(t, string(content), "Reminder started")
				if tt.newLog {
					assert.NotContains(t, string(content), "previous")
				} else {
					assert.True(t, bytes.HasPrefix(content, []byte("previous\n")))
				}
			} else {
				assert.Equal(t, tt.expectedFile, string(content))
			}
		})
	}
}

func TestQuietLoggerDiscards(t *testing.T) {
	logger := logrus.New()
	_, err := Setup(logger, Options{})
	require.NoError(t, err)
	assert.Equal(t, io.Discard, logger.Out)
}

func TestTerminal(t *testing.T) {
	assert.Nil(t, Terminal(nil))

	f, err := os.CreateTemp(t.TempDir(), "not-a-tty")
	require.NoError(t, err)
	defer f.Close()
	assert.Nil(t, Terminal(f))
}
