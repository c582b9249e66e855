package usecase

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/iamvkosarev/telegpt/config"
	"github.com/iamvkosarev/telegpt/internal/model"
	"github.com/iamvkosarev/telegpt/pkg/local"
)

const defaultTimerSeconds = 10

var (
	TextSecondsLeft = local.NewSet("%d seconds left", local.NewTrans(local.Rus, "Осталось секунд: %d"))
	TextWellDone    = local.NewSet("You did well %s  💪", local.NewTrans(local.Rus, "Отлично справился, %s 💪"))
)

var DefaultPhrases = []string{
	"Push now — victory won't wait!",
	"One step closer!",
	"Do it now, thank yourself later.",
	"If it's tough, you're growing.",
	"Seconds matter — don't stall!",
	"Motivation: ON. Let's go!",
	"Every 'just a bit more' builds greatness.",
	"You're closer than you think.",
	"Crush it. Shock yourself.",
	"Don't quit. This moment counts.",
}

type TimerUsecaseDeps struct {
	Phrases []string

	// RandIntN defaults to math/rand/v2.IntN.
	RandIntN func(n int) int
}

// TimerUsecase is a countdown going idle -> running -> finished.
type TimerUsecase struct {
	TimerUsecaseDeps
	total int

	mu       sync.Mutex
	state    model.TimerState
	name     string
	seconds  int
	phrase   string
	progress int
}

func NewTimerUsecase(deps TimerUsecaseDeps, cfg config.Timer) *TimerUsecase {
	if len(deps.Phrases) == 0 {
		deps.Phrases = DefaultPhrases
	}
	if deps.RandIntN == nil {
		deps.RandIntN = rand.IntN
	}
	total := cfg.Seconds
	if total <= 0 {
		total = defaultTimerSeconds
	}
	return &TimerUsecase{
		TimerUsecaseDeps: deps,
		total:            total,
		seconds:          -1,
	}
}

// Start (re)starts the countdown. A blank name is rejected.
func (t *TimerUsecase) Start(name string) (model.TimerSnapshot, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.TimerSnapshot{}, model.ErrBlankName
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = model.TimerStateRunning
	t.name = name
	t.seconds = t.total
	t.progress = 0
	t.phrase = t.Phrases[t.RandIntN(len(t.Phrases))]
	return t.snapshot(), nil
}

// Tick advances a running countdown by one second. Progress is taken from the value
// before the decrement, so it trails the remaining seconds by one tick.
func (t *TimerUsecase) Tick() model.TimerSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != model.TimerStateRunning || t.seconds <= 0 {
		return t.snapshot()
	}
	t.progress = (t.total - t.seconds) * 100 / t.total
	t.seconds--
	if t.seconds == 0 {
		t.state = model.TimerStateFinished
	}
	return t.snapshot()
}

func (t *TimerUsecase) Reset() model.TimerSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = model.TimerStateIdle
	t.seconds = -1
	t.phrase = ""
	t.progress = 0
	return t.snapshot()
}

func (t *TimerUsecase) Snapshot() model.TimerSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot()
}

// Run ticks once per value received from ticks and reports every snapshot to notify.
// It returns when the countdown leaves the running state or ctx is done.
func (t *TimerUsecase) Run(
	ctx context.Context,
	ticks <-chan time.Time,
	notify func(model.TimerSnapshot),
) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticks:
			snap := t.Tick()
			notify(snap)
			if snap.State != model.TimerStateRunning {
				return nil
			}
		}
	}
}

// StatusText is the headline shown under the timer.
func StatusText(snap model.TimerSnapshot, language local.Language) string {
	switch {
	case snap.State == model.TimerStateRunning && snap.Seconds > 0:
		return TextSecondsLeft.Format(language, snap.Seconds)
	case snap.State == model.TimerStateFinished:
		return TextWellDone.Format(language, snap.Name)
	default:
		return ""
	}
}

func (t *TimerUsecase) snapshot() model.TimerSnapshot {
	return model.TimerSnapshot{
		State:    t.state,
		Name:     t.name,
		Seconds:  t.seconds,
		Phrase:   t.phrase,
		Progress: t.progress,
	}
}

const progressBarWidth = 10

// ProgressBar renders a percentage as a fixed width bar, e.g. "[####......] 40%".
func ProgressBar(percent int) string {
	percent = max(0, min(100, percent))
	filled := percent * progressBarWidth / 100
	return fmt.Sprintf(
		"[%s%s] %d%%", strings.Repeat("#", filled), strings.Repeat(".", progressBarWidth-filled), percent,
	)
}

// FormatTimer renders a snapshot as the phrase, status line and progress bar.
func FormatTimer(snap model.TimerSnapshot, language local.Language) string {
	lines := make([]string, 0, 3)
	if snap.Phrase != "" {
		lines = append(lines, snap.Phrase)
	}
	if status := StatusText(snap, language); status != "" {
		lines = append(lines, status)
	}
	switch snap.State {
	case model.TimerStateRunning:
		lines = append(lines, ProgressBar(snap.Progress))
	case model.TimerStateFinished:
		lines = append(lines, "🎉🎉🎉")
	}
	return strings.Join(lines, "\n")
}
