package log

import (
	"context"
	"testing"
	"time"

	tassert "github.com/stretchr/testify/assert"
	"oss.terrastruct.com/util-go/assert"
)

func TestWithTimeout(t *testing.T) {
	ctx := context.Background()

	t.Setenv("CANVAS_TIMEOUT", "")
	bounded, cancel := WithTimeout(ctx, 0)
	defer cancel()
	_, ok := bounded.Deadline()
	tassert.False(t, ok)

	t.Setenv("CANVAS_TIMEOUT", "12")
	secs, ok := timeoutOverride()
	tassert.True(t, ok)
	assert.Equal(t, int64(12), secs)

	bounded, cancel = WithTimeout(ctx, time.Hour)
	defer cancel()
	deadline, ok := bounded.Deadline()
	tassert.True(t, ok)
	tassert.True(t, time.Until(deadline) <= 12*time.Second)

	t.Setenv("CANVAS_TIMEOUT", "soon")
	_, ok = timeoutOverride()
	tassert.False(t, ok)
}
