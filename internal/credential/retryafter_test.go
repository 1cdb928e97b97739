package credential

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExtractRetryDelay(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    time.Duration
		ok      bool
	}{
		{
			name:    "prose form with fraction",
			message: "429 You exceeded your current quota, please retry in 26.37s",
			want:    26370 * time.Millisecond,
			ok:      true,
		},
		{
			name:    "json detail field",
			message: `{"error": {"details": [{"retryDelay": "30s"}]}}`,
			want:    30 * time.Second,
			ok:      true,
		},
		{
			name:    "bare header value",
			message: "Retry-After: 30",
			want:    30 * time.Second,
			ok:      true,
		},
		{
			name:    "textual proto form",
			message: "retry_delay { seconds: 30 }",
			want:    30 * time.Second,
			ok:      true,
		},
		{
			name:    "no hint",
			message: "resource exhausted",
			ok:      false,
		},
		{
			name:    "zero delay rejected",
			message: "retry in 0s",
			ok:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractRetryDelay(tt.message)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
