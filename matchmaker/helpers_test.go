package matchmaker

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelSlug(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"Somebody", 24, "somebody"},
		{"A!!B??C", 24, "a-b-c"},
		{"  spaces  everywhere  ", 24, "spaces-everywhere"},
		{"日本語", 24, "user"},
		{"", 24, "user"},
		{"---", 24, "user"},
		{"abcdefghij", 5, "abcde"},
		{"abcd-efghij", 5, "abcd"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, channelSlug(tt.in, tt.maxLen), "input %q", tt.in)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "hello", truncate("hello", 10))
	assert.Equal(t, "hel", truncate("hello", 3))
	// rune-safe on multibyte input
	assert.Equal(t, "héll", truncate("héllo", 4))
	assert.Equal(t, "日本", truncate("日本語", 2))
}

func TestHumanDuration(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "45s", humanDuration(45*time.Second))
	assert.Equal(t, "2h30m", humanDuration(2*time.Hour+30*time.Minute))
	assert.Equal(t, "1h", humanDuration(time.Hour))
	assert.Equal(t, "10m", humanDuration(10*time.Minute))
	assert.Equal(t, "0s", humanDuration(0))
}

func TestUserMention(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "<@12345>", userMention("12345"))
}

func TestGenerateRandomHexString(t *testing.T) {
	t.Parallel()

	s, err := generateRandomHexString(32)
	require.NoError(t, err)
	assert.Len(t, s, 32)

	other, err := generateRandomHexString(32)
	require.NoError(t, err)
	assert.NotEqual(t, s, other)
}

func TestStructToSlogValueRedaction(t *testing.T) {
	t.Parallel()

	type secretive struct {
		Name  string `json:"name"`
		Token string `json:"token" log:"[redacted]"`
		Empty string `json:"empty"`
	}
	v := structToSlogValue(secretive{Name: "bot", Token: "hunter2"})
	require.Equal(t, slog.KindGroup, v.Kind())

	attrs := map[string]string{}
	for _, attr := range v.Group() {
		attrs[attr.Key] = attr.Value.String()
	}
	assert.Equal(t, "bot", attrs["name"])
	assert.Equal(t, "[redacted]", attrs["token"])
	// empty fields are dropped
	_, ok := attrs["empty"]
	assert.False(t, ok)
}

func TestContextLogger(t *testing.T) {
	t.Parallel()

	_, ok := ContextLogger(context.Background())
	assert.False(t, ok)

	logger := slog.Default()
	ctx := WithLogger(context.Background(), logger)
	got, ok := ContextLogger(ctx)
	require.True(t, ok)
	assert.Same(t, logger, got)
}
