package tokenrefresh

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWarmer struct {
	calls  atomic.Int32
	window atomic.Int64
	err    error
}

func (f *fakeWarmer) Warm(ctx context.Context, window time.Duration) error {
	f.calls.Add(1)
	f.window.Store(int64(window))
	return f.err
}

func TestStartStop(t *testing.T) {
	fw := &fakeWarmer{}
	w := New(fw, &Config{Enabled: true, WorkerInterval: 20 * time.Millisecond})

	require.NoError(t, w.Start(context.Background()))
	assert.Error(t, w.Start(context.Background()), "second start must fail")

	assert.Eventually(t, func() bool { return fw.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(40*time.Millisecond), fw.window.Load())

	require.NoError(t, w.Stop())
	assert.Error(t, w.Stop())
}

func TestWorkerKeepsRunningOnError(t *testing.T) {
	fw := &fakeWarmer{err: errors.New("token endpoint down")}
	w := New(fw, &Config{WorkerInterval: 10 * time.Millisecond})

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	assert.Eventually(t, func() bool { return fw.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestNewDefaults(t *testing.T) {
	w := New(&fakeWarmer{}, nil)
	assert.Equal(t, 5*time.Minute, w.c.WorkerInterval)

	w = New(&fakeWarmer{}, &Config{})
	assert.Equal(t, 5*time.Minute, w.c.WorkerInterval)
}
