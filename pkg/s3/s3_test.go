package s3

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTraceKey(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 7, 9, 23, 30, 0, 0, time.FixedZone("WIB", 7*3600))
	assert.Equal(t, "traces/2024/07/09/abc.json", TraceKey("abc", at))
}

func TestExtractKeyFromS3Url(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"https://bucket.s3.ap-southeast-1.amazonaws.com/traces/2024/07/09/abc.json", "traces/2024/07/09/abc.json"},
		{"traces/abc.json", "traces/abc.json"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, extractKeyFromS3Url(tt.in))
	}
}
