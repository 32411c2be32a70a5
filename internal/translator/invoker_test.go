package translator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted replies with replies[i] on call i; calls past the end repeat
// the last reply.
type scripted struct {
	mu      sync.Mutex
	replies []reply
	calls   int
	texts   []string
}

type reply struct {
	text string
	err  error
}

func (s *scripted) Translate(_ context.Context, text, _, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	r := s.replies[min(s.calls, len(s.replies)-1)]
	s.calls++
	return r.text, r.err
}

func (s *scripted) Name() string { return "scripted" }

// recordSleep returns a Sleeper that records waits without sleeping.
func recordSleep() (Sleeper, *[]time.Duration) {
	var waits []time.Duration
	return func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}, &waits
}

func TestInvokeSucceedsFirstTime(t *testing.T) {
	sleep, waits := recordSleep()
	b := &scripted{replies: []reply{{text: "The system supports multiple users."}}}
	iv := NewInvoker(b, "zh-CN", "en", InvokerOptions{Sleep: sleep})

	out := iv.Invoke(context.Background(), "系统支持多用户。")
	require.True(t, out.OK())
	assert.Equal(t, "The system supports multiple users.", out.Text)
	assert.Len(t, out.Attempts, 1)
	assert.Zero(t, out.Retries())
	assert.Empty(t, *waits)
}

func TestInvokeRetriesThenSucceeds(t *testing.T) {
	sleep, waits := recordSleep()
	boom := errors.New("connection reset")
	b := &scripted{replies: []reply{{err: boom}, {err: boom}, {text: "Done."}}}
	iv := NewInvoker(b, "zh-CN", "en", InvokerOptions{Sleep: sleep})

	out := iv.Invoke(context.Background(), "完成。")
	require.True(t, out.OK())
	assert.Equal(t, "Done.", out.Text)
	require.Len(t, out.Attempts, 3)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *waits)
	assert.Equal(t, 3*time.Second, (*waits)[0]+(*waits)[1])
	assert.Equal(t, 2*time.Second, out.Attempts[2].WaitBefore)
	assert.ErrorIs(t, out.Attempts[0].Err, boom)
	assert.Equal(t, 2, out.Retries())
}

func TestInvokeGivesUpAfterMaxAttempts(t *testing.T) {
	sleep, waits := recordSleep()
	boom := errors.New("503 service unavailable")
	b := &scripted{replies: []reply{{err: boom}}}
	iv := NewInvoker(b, "zh-CN", "en", InvokerOptions{Sleep: sleep})

	out := iv.Invoke(context.Background(), "文本")
	require.False(t, out.OK())
	assert.ErrorIs(t, out.Err, boom)
	assert.Len(t, out.Attempts, DefaultMaxAttempts)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}, *waits)

	var total time.Duration
	for _, w := range *waits {
		total += w
	}
	assert.Equal(t, 15*time.Second, total)
	assert.Empty(t, out.Text)
}

func TestInvokeTreatsBlankReplyAsFailure(t *testing.T) {
	sleep, _ := recordSleep()
	b := &scripted{replies: []reply{{text: ""}, {text: "  \n\t "}, {text: "ok"}}}
	iv := NewInvoker(b, "zh-CN", "en", InvokerOptions{Sleep: sleep})

	out := iv.Invoke(context.Background(), "好")
	require.True(t, out.OK())
	assert.Equal(t, "ok", out.Text)
	require.Len(t, out.Attempts, 3)
	assert.ErrorIs(t, out.Attempts[0].Err, ErrEmptyResponse)
	assert.ErrorIs(t, out.Attempts[1].Err, ErrEmptyResponse)
}

func TestInvokeRecoversBackendPanic(t *testing.T) {
	sleep, _ := recordSleep()
	calls := 0
	b := Func(func(ctx context.Context, text, _, _ string) (string, error) {
		calls++
		if calls == 1 {
			panic("nil map")
		}
		return "fine", nil
	})
	out := NewInvoker(b, "zh-CN", "en", InvokerOptions{Sleep: sleep}).Invoke(context.Background(), "x")
	require.True(t, out.OK())
	assert.Contains(t, out.Attempts[0].Err.Error(), "backend panic")
}

func TestInvokeEnforcesTimeout(t *testing.T) {
	sleep, _ := recordSleep()
	b := Func(func(ctx context.Context, text, _, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	iv := NewInvoker(b, "zh-CN", "en", InvokerOptions{
		MaxAttempts: 1,
		BaseTimeout: 20 * time.Millisecond,
		MaxTimeout:  20 * time.Millisecond,
		Sleep:       sleep,
	})
	out := iv.Invoke(context.Background(), "慢")
	require.False(t, out.OK())
	assert.ErrorIs(t, out.Err, context.DeadlineExceeded)
	assert.Contains(t, out.Err.Error(), "timed out")
}

func TestInvokeStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	boom := errors.New("rate limited")
	b := Func(func(context.Context, string, string, string) (string, error) {
		cancel()
		return "", boom
	})
	sleep, waits := recordSleep()
	out := NewInvoker(b, "zh-CN", "en", InvokerOptions{Sleep: sleep}).Invoke(ctx, "x")
	require.False(t, out.OK())
	assert.ErrorIs(t, out.Err, context.Canceled)
	assert.Len(t, out.Attempts, 1)
	assert.Empty(t, *waits)
}

func TestTimeoutScalesWithLength(t *testing.T) {
	iv := NewInvoker(Func(nil), "zh-CN", "en", InvokerOptions{})
	tests := []struct {
		runes int
		want  time.Duration
	}{
		{0, 30 * time.Second},
		{99, 30 * time.Second},
		{100, 31 * time.Second},
		{800, 38 * time.Second},
		{15000, 180 * time.Second},
		{100000, 180 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, iv.Timeout(strings.Repeat("字", tt.runes)), "runes=%d", tt.runes)
	}
}

func TestBackoffSchedule(t *testing.T) {
	iv := NewInvoker(Func(nil), "zh-CN", "en", InvokerOptions{})
	want := []time.Duration{0, time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
	for n := 1; n <= 5; n++ {
		assert.Equal(t, want[n-1], iv.Backoff(n), "attempt %d", n)
	}
}

func TestContextSleepHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	err := ContextSleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
	assert.NoError(t, ContextSleep(context.Background(), time.Millisecond))
}
