package gemini

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/chapterhouse/docbot/pkg/prompt"
	"github.com/chapterhouse/docbot/pkg/retry"
)

// testClient builds a Client with the generate and resolve steps stubbed,
// fast retries, and polishing off.
func testClient(generate func(context.Context, string) (string, error), resolve func(context.Context) error) *Client {
	c := &Client{
		cfg: Config{
			CallTimeout: time.Minute,
			Retry: retry.Policy{
				MaxAttempts: 3,
				BaseDelay:   time.Millisecond,
				MaxDelay:    time.Millisecond,
			},
		},
		prompts: prompt.NewBuilder(""),
		logger:  zap.NewNop(),
	}
	c.generateFn = generate
	c.resolveFn = resolve
	return c
}

func staleCacheErr() error {
	return genai.APIError{Code: 404, Message: "CachedContent not found"}
}

func TestAnswerBoundsEachAttemptWithDeadline(t *testing.T) {
	var sawDeadline bool
	c := testClient(func(ctx context.Context, _ string) (string, error) {
		_, sawDeadline = ctx.Deadline()
		return "ok", nil
	}, func(context.Context) error { return nil })

	answer, err := c.Answer(context.Background(), "How much salt?", nil)

	require.NoError(t, err)
	assert.Equal(t, "ok", answer)
	assert.True(t, sawDeadline, "upstream call context must carry a deadline")
}

func TestAnswerRetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	c := testClient(func(context.Context, string) (string, error) {
		calls++
		if calls < 2 {
			return "", genai.APIError{Code: 503, Message: "unavailable"}
		}
		return "eventually", nil
	}, func(context.Context) error { return nil })

	answer, err := c.Answer(context.Background(), "q", nil)

	require.NoError(t, err)
	assert.Equal(t, "eventually", answer)
	assert.Equal(t, 2, calls)
}

func TestAnswerRefreshesStaleCacheOnce(t *testing.T) {
	generates, resolves := 0, 0
	c := testClient(func(context.Context, string) (string, error) {
		generates++
		if generates == 1 {
			return "", staleCacheErr()
		}
		return "fresh", nil
	}, func(context.Context) error {
		resolves++
		return nil
	})

	answer, err := c.Answer(context.Background(), "q", nil)

	require.NoError(t, err)
	assert.Equal(t, "fresh", answer)
	assert.Equal(t, 1, resolves)
	assert.Equal(t, 2, generates)
}

func TestAnswerDoesNotRefreshTwice(t *testing.T) {
	generates, resolves := 0, 0
	c := testClient(func(context.Context, string) (string, error) {
		generates++
		return "", staleCacheErr()
	}, func(context.Context) error {
		resolves++
		return nil
	})

	_, err := c.Answer(context.Background(), "q", nil)

	require.Error(t, err)
	assert.Equal(t, 1, resolves, "a stale cache after refresh must fail, not loop")
	// Stale-cache errors are permanent, so each retry.Do round is one call
	assert.Equal(t, 2, generates)
}

func TestAnswerRefreshFailureSurfaces(t *testing.T) {
	generates := 0
	boom := errors.New("cache backend down")
	c := testClient(func(context.Context, string) (string, error) {
		generates++
		return "", staleCacheErr()
	}, func(context.Context) error {
		return boom
	})

	_, err := c.Answer(context.Background(), "q", nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, generates)
}

func TestAnswerPermanentErrorSkipsRefresh(t *testing.T) {
	resolves := 0
	denied := genai.APIError{Code: 401, Message: "unauthenticated"}
	c := testClient(func(context.Context, string) (string, error) {
		return "", denied
	}, func(context.Context) error {
		resolves++
		return nil
	})

	_, err := c.Answer(context.Background(), "q", nil)

	require.Error(t, err)
	assert.ErrorAs(t, err, &genai.APIError{})
	assert.Equal(t, 0, resolves, "only cache-not-found errors trigger a refresh")
}
