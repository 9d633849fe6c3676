package clitask

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"stock-chatbot/src/helpers"
	"stock-chatbot/src/logger"
	"stock-chatbot/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// -----------------------------------------------------------------------------

type inbox struct {
	mu    sync.Mutex
	texts map[int64][]string
}

func (i *inbox) Deliver(_ context.Context, userID int64, text string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.texts == nil {
		i.texts = make(map[int64][]string)
	}
	i.texts[userID] = append(i.texts[userID], text)
	return nil
}

func (i *inbox) received(userID int64) []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.texts[userID]...)
}

func newTestRunner(maxLines, timeoutSeconds int) (*Runner, *inbox) {
	box := &inbox{}
	cfg := &models.MConfig{CLI: models.MCLIConfig{Enabled: true, MaxLines: maxLines, TimeoutSeconds: timeoutSeconds}}
	return NewRunner(cfg, box, logger.NewNop("cli")), box
}

// -----------------------------------------------------------------------------

func TestSplitArgs(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"uptime", []string{"uptime"}},
		{"  ls   -la /tmp ", []string{"ls", "-la", "/tmp"}},
		{`echo 'a b' "c \"d\""`, []string{"echo", "a b", `c "d"`}},
		{`echo a\ b`, []string{"echo", "a b"}},
		{`echo ''`, []string{"echo", ""}},
		{"echo $HOME; rm -rf /", []string{"echo", "$HOME;", "rm", "-rf", "/"}},
	}
	for _, tc := range cases {
		got, err := SplitArgs(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	_, err := SplitArgs(`echo "open`)
	assert.ErrorIs(t, err, errUnterminatedQuote)
}

func TestRunReportsOutput(t *testing.T) {
	r, box := newTestRunner(20, 5)
	defer r.Shutdown()

	id, err := r.Start(7, `echo "hello world"`)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(box.received(7)) == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "🖥️ CLI 결과 ("+id+")\nhello world", box.received(7)[0])
	assert.Eventually(t, func() bool { return r.Running() == 0 }, time.Second, 10*time.Millisecond)
}

func TestRunCapsLines(t *testing.T) {
	r, box := newTestRunner(3, 5)
	defer r.Shutdown()

	_, err := r.Start(7, "seq 1 1000")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(box.received(7)) == 1 }, 5*time.Second, 10*time.Millisecond)
	out := box.received(7)[0]
	assert.Contains(t, out, "\n1\n2\n3\n")
	assert.NotContains(t, out, "\n4")
	assert.True(t, strings.HasSuffix(out, "✂️ 출력이 3줄에서 잘렸습니다."))
}

func TestRunTimesOut(t *testing.T) {
	r, box := newTestRunner(20, 1)
	defer r.Shutdown()

	_, err := r.Start(7, "sleep 10")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(box.received(7)) == 1 }, 5*time.Second, 20*time.Millisecond)
	out := box.received(7)[0]
	assert.Contains(t, out, "출력 없음")
	assert.Contains(t, out, "⏱️ 1s 제한 시간을 넘겨 중단했습니다.")
}

func TestRunMissingBinary(t *testing.T) {
	r, box := newTestRunner(20, 5)
	defer r.Shutdown()

	_, err := r.Start(7, "definitely-not-a-real-binary-xyz")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(box.received(7)) == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.True(t, strings.HasPrefix(box.received(7)[0], "❌ CLI 실행 오류"))
}

func TestStartRejectsBadInput(t *testing.T) {
	r, _ := newTestRunner(20, 5)
	defer r.Shutdown()

	_, err := r.Start(7, `echo "open`)
	var ve *helpers.ValidationError
	assert.ErrorAs(t, err, &ve)

	_, err = r.Start(7, "   ")
	assert.ErrorAs(t, err, &ve)
}

func TestShutdownStopsTasks(t *testing.T) {
	r, box := newTestRunner(20, 30)

	_, err := r.Start(7, "sleep 30")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		r.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not return")
	}
	assert.Len(t, box.received(7), 1)

	_, err = r.Start(7, "echo late")
	assert.ErrorIs(t, err, ErrStopped)
}
