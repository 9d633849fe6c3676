package clitask

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"stock-chatbot/src/helpers"
	"stock-chatbot/src/interfaces"
	"stock-chatbot/src/logger"
	"stock-chatbot/src/models"

	"github.com/google/uuid"
)

const (
	defaultMaxLines = 20
	defaultTimeout  = 30 * time.Second
	stderrLimit     = 4096
)

var ErrStopped = errors.New("cli runner stopped")

// -----------------------------------------------------------------------------

// Runner executes /cli commands in the background. Output goes back to the
// requester through the notifier once the process ends or hits a cap.
type Runner struct {
	Config   *models.MConfig
	Notifier interfaces.INotifier
	Journal  interfaces.IJournal
	Logger   *logger.Logger

	maxLines int
	timeout  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	stopped bool
	running map[string]string
}

// -----------------------------------------------------------------------------

func NewRunner(cfg *models.MConfig, notifier interfaces.INotifier, log *logger.Logger) *Runner {
	maxLines := cfg.CLI.MaxLines
	if maxLines <= 0 {
		maxLines = defaultMaxLines
	}
	timeout := time.Duration(cfg.CLI.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		Config:   cfg,
		Notifier: notifier,
		Logger:   log,
		maxLines: maxLines,
		timeout:  timeout,
		ctx:      ctx,
		cancel:   cancel,
		running:  make(map[string]string),
	}
}

// -----------------------------------------------------------------------------

// Start validates command and launches it, returning the task id
func (r *Runner) Start(userID int64, command string) (string, error) {
	argv, err := SplitArgs(command)
	if err != nil {
		return "", helpers.NewValidationError("명령어를 해석할 수 없습니다: " + err.Error())
	}
	if len(argv) == 0 {
		return "", helpers.NewValidationError("실행할 명령어가 없습니다.")
	}

	id := uuid.NewString()

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return "", ErrStopped
	}
	r.running[id] = command
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.Logger.Error("CLI task %s panicked: %v", id, rec)
			}
			r.mu.Lock()
			delete(r.running, id)
			r.mu.Unlock()
		}()
		r.run(id, userID, argv)
	}()

	return id, nil
}

// -----------------------------------------------------------------------------

// Running returns the number of tasks still in flight
func (r *Runner) Running() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.running)
}

// -----------------------------------------------------------------------------

// Shutdown kills running tasks and waits for their reports
func (r *Runner) Shutdown() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
}

// -----------------------------------------------------------------------------

func (r *Runner) run(id string, userID int64, argv []string) {
	ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
	defer cancel()

	r.Logger.Info("CLI task %s: %s", id, strings.Join(argv, " "))

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.WaitDelay = time.Second
	var stderr bytes.Buffer
	cmd.Stderr = &limitedWriter{buf: &stderr, limit: stderrLimit}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		r.report(id, userID, fmt.Sprintf("❌ CLI 실행 오류 (%s): %v", id, err))
		return
	}
	if err := cmd.Start(); err != nil {
		r.report(id, userID, fmt.Sprintf("❌ CLI 실행 오류 (%s): %v", id, err))
		return
	}

	var lines []string
	capped := false
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if len(lines) == r.maxLines {
			capped = true
			cancel()
			break
		}
		lines = append(lines, scanner.Text())
	}
	waitErr := cmd.Wait()
	timedOut := !capped && errors.Is(ctx.Err(), context.DeadlineExceeded)

	if len(lines) == 0 && stderr.Len() > 0 {
		lines = firstLines(stderr.String(), r.maxLines)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🖥️ CLI 결과 (%s)\n", id)
	if len(lines) == 0 {
		b.WriteString("출력 없음")
	} else {
		b.WriteString(strings.Join(lines, "\n"))
	}
	switch {
	case capped:
		fmt.Fprintf(&b, "\n\n✂️ 출력이 %d줄에서 잘렸습니다.", r.maxLines)
	case timedOut:
		fmt.Fprintf(&b, "\n\n⏱️ %s 제한 시간을 넘겨 중단했습니다.", r.timeout)
	case waitErr != nil && r.ctx.Err() == nil:
		fmt.Fprintf(&b, "\n\n⚠️ 종료 상태: %v", waitErr)
	}

	r.report(id, userID, b.String())
}

// -----------------------------------------------------------------------------

func (r *Runner) report(id string, userID int64, text string) {
	// Shutdown cancels r.ctx; the report still goes out
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := r.Notifier.Deliver(ctx, userID, text)
	if err != nil {
		r.Logger.Warning("CLI task %s report to %d failed: %v", id, userID, err)
	}

	if r.Journal != nil {
		entry := models.MJournalEntry{
			UserID:    userID,
			Kind:      models.JournalCLI,
			Symbol:    id,
			Text:      text,
			Delivered: err == nil,
			CreatedAt: time.Now(),
		}
		if jerr := r.Journal.Record(ctx, []models.MJournalEntry{entry}); jerr != nil {
			r.Logger.Warning("CLI task %s journal failed: %v", id, jerr)
		}
	}
}

// -----------------------------------------------------------------------------

func firstLines(s string, n int) []string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	return lines
}

// limitedWriter keeps the first limit bytes and discards the rest
type limitedWriter struct {
	buf   *bytes.Buffer
	limit int
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	if room := w.limit - w.buf.Len(); room > 0 {
		if len(p) > room {
			w.buf.Write(p[:room])
		} else {
			w.buf.Write(p)
		}
	}
	return len(p), nil
}
