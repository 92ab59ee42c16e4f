package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pluginsite/registry/common/config"
	"github.com/pluginsite/registry/common/logger"
	"github.com/pluginsite/registry/common/models"
)

func testWorker() *RetryWorker {
	return &RetryWorker{
		cfg: config.RetryConfig{
			PollInterval: 5 * time.Second,
			MaxBackoff:   120 * time.Second,
		},
		logger: logger.New("error", "text"),
	}
}

func TestBackoffGrowsExponentially(t *testing.T) {
	w := testWorker()

	assert.Equal(t, 0*time.Second, w.backoff(0))
	assert.Equal(t, 1*time.Second, w.backoff(1))
	assert.Equal(t, 3*time.Second, w.backoff(2))
	assert.Equal(t, 7*time.Second, w.backoff(3))
	assert.Equal(t, 63*time.Second, w.backoff(6))
}

func TestBackoffIsCapped(t *testing.T) {
	w := testWorker()

	assert.Equal(t, 120*time.Second, w.backoff(7))
	assert.Equal(t, 120*time.Second, w.backoff(20))
	assert.Equal(t, 120*time.Second, w.backoff(1000))
}

func TestBackoffIsMonotonic(t *testing.T) {
	w := testWorker()
	prev := w.backoff(0)
	for tries := 1; tries < 40; tries++ {
		cur := w.backoff(tries)
		assert.GreaterOrEqual(t, cur, prev, "backoff shrank at %d tries", tries)
		prev = cur
	}
}

func TestDispatchUnknownMethodIsFatal(t *testing.T) {
	w := testWorker()

	err := w.dispatch(context.Background(), &models.Failure{
		Method: "frobnicate",
		Args:   []string{"github/jo/plugin"},
	})
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

func TestDispatchRejectsWrongArity(t *testing.T) {
	w := testWorker()

	err := w.dispatch(context.Background(), &models.Failure{
		Method: "processVersions",
		Args:   []string{"github/jo/plugin", "extra"},
	})
	assert.ErrorIs(t, err, ErrUnknownMethod)

	err = w.dispatch(context.Background(), &models.Failure{
		Method: "processRelease",
		Args:   []string{"github/jo/plugin"},
	})
	assert.ErrorIs(t, err, ErrUnknownMethod)
}
