package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		level   string
		format  string
		info    bool
		debug   bool
		wantErr bool
	}{
		{level: "debug", format: "console", info: true, debug: true},
		{level: "info", format: "json", info: true},
		{level: "", format: "", info: true},
		{level: "WARN", format: "console"},
		{level: "error", format: "json"},
		{level: "trace", format: "console", wantErr: true},
		{level: "info", format: "logfmt", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.format, func(t *testing.T) {
			logger, err := New(tt.level, tt.format)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.info, logger.V(DEFAULT).Enabled())
			assert.Equal(t, tt.debug, logger.V(DEBUG).Enabled())
		})
	}
}

func TestNewTestLogger(t *testing.T) {
	logger := NewTestLogger()
	assert.True(t, logger.V(DEBUG).Enabled())
}
