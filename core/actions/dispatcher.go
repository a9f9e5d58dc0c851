package actions

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-assistant/core/intent"
	"go.opentelemetry.io/otel/attribute"
)

const (
	Step              = 10
	MinVolume         = 0
	MaxVolume         = 100
	DefaultVolume     = 50
	MinBrightness     = 20
	MaxBrightness     = 150
	DefaultBrightness = 100
)

// Panel is the UI panel the dispatcher last put on screen.
type Panel string

const (
	PanelNone    Panel = "none"
	PanelResults Panel = "results"
	PanelPlayer  Panel = "player"
)

// Outcome tells the assistant what to do once an action was dispatched.
type Outcome struct {
	// FollowUp is spoken after the reply when set.
	FollowUp string
	// Relisten requests listening again after the re-listen delay.
	Relisten bool
	// ForceIdle stops everything and returns to idle.
	ForceIdle bool
}

type handler func(ctx context.Context, action intent.ClassifiedAction) Outcome

// Dispatcher maps classified actions to their effects.
type Dispatcher struct {
	searcher   intent.Searcher
	launcher   MediaLauncher
	display    Display
	browser    Browser
	notifier   Notifier
	notes      NoteKeeper
	forecaster Forecaster

	messages          Messages
	relisten          RelistenPolicy
	relistenOnUnknown bool
	now               func() time.Time

	handlers map[intent.ActionKind]handler

	mu         sync.Mutex
	volume     int
	brightness int
	media      MediaHandle
	panel      Panel
	results    []intent.MediaResult
	timers     map[uuid.UUID]*time.Timer
}

type Option func(*Dispatcher)

func WithSearcher(searcher intent.Searcher) Option {
	return func(d *Dispatcher) { d.searcher = searcher }
}

func WithMediaLauncher(launcher MediaLauncher) Option {
	return func(d *Dispatcher) { d.launcher = launcher }
}

func WithDisplay(display Display) Option {
	return func(d *Dispatcher) { d.display = display }
}

func WithBrowser(browser Browser) Option {
	return func(d *Dispatcher) { d.browser = browser }
}

func WithNotifier(notifier Notifier) Option {
	return func(d *Dispatcher) { d.notifier = notifier }
}

func WithNoteKeeper(notes NoteKeeper) Option {
	return func(d *Dispatcher) { d.notes = notes }
}

func WithForecaster(forecaster Forecaster) Option {
	return func(d *Dispatcher) { d.forecaster = forecaster }
}

func WithMessages(messages Messages) Option {
	return func(d *Dispatcher) { d.messages = messages }
}

func WithRelistenPolicy(policy RelistenPolicy) Option {
	return func(d *Dispatcher) { d.relisten = policy }
}

// WithRelistenOnUnknown makes unrecognized actions listen again, giving the
// user a chance to rephrase.
func WithRelistenOnUnknown(enabled bool) Option {
	return func(d *Dispatcher) { d.relistenOnUnknown = enabled }
}

func WithVolume(level int) Option {
	return func(d *Dispatcher) { d.volume = clamp(level, MinVolume, MaxVolume) }
}

func WithBrightness(level int) Option {
	return func(d *Dispatcher) { d.brightness = clamp(level, MinBrightness, MaxBrightness) }
}

func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		messages:   DefaultMessages(),
		relisten:   DefaultRelistenPolicy(),
		now:        time.Now,
		volume:     DefaultVolume,
		brightness: DefaultBrightness,
		panel:      PanelNone,
		timers:     map[uuid.UUID]*time.Timer{},
	}
	for _, opt := range opts {
		opt(d)
	}

	d.handlers = map[intent.ActionKind]handler{
		intent.KindSearchMedia:     d.searchMedia,
		intent.KindPlayMedia:       d.playMedia,
		intent.KindPlaybackControl: d.controlPlayback,
		intent.KindSetVolume:       d.setVolume,
		intent.KindSetBrightness:   d.setBrightness,
		intent.KindOpenResource:    d.openResource,
		intent.KindGetWeather:      d.getWeather,
		intent.KindSetTimer:        d.setTimer,
		intent.KindAddNote:         d.addNote,
		intent.KindStopListening:   d.stopListening,
	}
	return d
}

// Dispatch performs the effect of action. Reply only and unknown actions have
// no effect beyond the reply that was already spoken.
func (d *Dispatcher) Dispatch(ctx context.Context, action intent.ClassifiedAction) Outcome {
	ctx, span := tracer.Start(ctx, "dispatch action")
	defer span.End()
	span.SetAttributes(attribute.String("action.kind", string(action.Kind)))

	if d == nil {
		return Outcome{}
	}

	var outcome Outcome
	if handle, ok := d.handlers[action.Kind]; ok {
		outcome = handle(ctx, action)
	}

	switch {
	case outcome.ForceIdle:
		outcome.Relisten = false
	case action.Kind == intent.KindUnknown:
		outcome.Relisten = d.relistenOnUnknown
	default:
		outcome.Relisten = d.relisten.Applies(action)
	}

	span.SetAttributes(
		attribute.Bool("action.relisten", outcome.Relisten),
		attribute.Bool("action.follow_up", outcome.FollowUp != ""),
	)
	return outcome
}

// Context reports the UI context sent along with the next utterance.
func (d *Dispatcher) Context() intent.Context {
	if d == nil {
		return intent.Context{ActivePanel: string(PanelNone)}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return intent.Context{ActivePanel: string(d.panel)}
}

func (d *Dispatcher) Volume() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.volume
}

func (d *Dispatcher) Brightness() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.brightness
}

func (d *Dispatcher) Results() []intent.MediaResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]intent.MediaResult{}, d.results...)
}

// Close cancels pending timers and stops active media.
func (d *Dispatcher) Close(ctx context.Context) error {
	if d == nil {
		return nil
	}

	d.mu.Lock()
	for id, timer := range d.timers {
		timer.Stop()
		delete(d.timers, id)
	}
	media := d.media
	d.media = nil
	d.mu.Unlock()

	if media != nil {
		if err := media.Stop(ctx); err != nil {
			return fmt.Errorf("failed to stop media: %w", err)
		}
	}
	return nil
}

func (d *Dispatcher) stopListening(context.Context, intent.ClassifiedAction) Outcome {
	return Outcome{ForceIdle: true}
}

func (d *Dispatcher) search(ctx context.Context, query string) ([]intent.MediaResult, error) {
	if d.searcher == nil {
		return nil, errors.New("no searcher configured")
	}
	return d.searcher.Search(ctx, query)
}

func (d *Dispatcher) searchMedia(ctx context.Context, action intent.ClassifiedAction) Outcome {
	results, err := d.search(ctx, searchQuery(action))
	if err != nil {
		logger.WarnContext(ctx, "Media search failed", "error", err)
		return Outcome{FollowUp: d.messages.SearchFailed}
	}
	if len(results) == 0 {
		return Outcome{FollowUp: d.messages.NoResults}
	}

	d.mu.Lock()
	d.results = results
	d.panel = PanelResults
	d.mu.Unlock()

	if d.display != nil {
		d.display.ShowResults(results)
	}
	return Outcome{}
}

func (d *Dispatcher) playMedia(ctx context.Context, action intent.ClassifiedAction) Outcome {
	results, err := d.search(ctx, searchQuery(action))
	if err != nil {
		logger.WarnContext(ctx, "Media search failed", "error", err)
		return Outcome{FollowUp: d.messages.SearchFailed}
	}
	if len(results) == 0 {
		return Outcome{FollowUp: d.messages.NoResults}
	}
	if d.launcher == nil {
		logger.WarnContext(ctx, "No media launcher configured", "media", results[0].ID)
		return Outcome{FollowUp: d.messages.PlaybackFailed}
	}

	d.mu.Lock()
	previous := d.media
	d.media = nil
	d.mu.Unlock()
	if previous != nil {
		if err := previous.Stop(ctx); err != nil {
			logger.WarnContext(ctx, "Failed to stop previous media", "error", err)
		}
	}

	media, err := d.launcher.Launch(ctx, results[0])
	if err != nil {
		logger.ErrorContext(ctx, "Failed to launch media", "media", results[0].ID, "error", err)
		d.mu.Lock()
		if d.media == nil && d.panel == PanelPlayer {
			d.panel = PanelNone
		}
		d.mu.Unlock()
		return Outcome{FollowUp: d.messages.PlaybackFailed}
	}

	d.mu.Lock()
	d.media = media
	d.results = results
	d.panel = PanelPlayer
	volume := d.volume
	d.mu.Unlock()

	if err := media.SetVolume(ctx, volume); err != nil {
		logger.WarnContext(ctx, "Failed to apply volume to media", "error", err)
	}
	return Outcome{}
}

func searchQuery(action intent.ClassifiedAction) string {
	if query := strings.TrimSpace(action.Params.Query); query != "" {
		return query
	}
	return strings.TrimSpace(action.Params.Text)
}

func (d *Dispatcher) controlPlayback(ctx context.Context, action intent.ClassifiedAction) Outcome {
	command := action.Command()
	if command == "" {
		logger.InfoContext(ctx, "Ignoring unknown playback command", "command", action.Params.Command)
		return Outcome{}
	}

	d.mu.Lock()
	media := d.media
	if command == intent.CommandStop && media != nil {
		d.media = nil
		d.panel = PanelNone
	}
	d.mu.Unlock()

	if media == nil {
		logger.InfoContext(ctx, "No active media for playback command", "command", command)
		return Outcome{}
	}

	var err error
	switch command {
	case intent.CommandPlay:
		err = media.Play(ctx)
	case intent.CommandPause:
		err = media.Pause(ctx)
	case intent.CommandStop:
		err = media.Stop(ctx)
	case intent.CommandNext:
		err = media.Next(ctx)
	case intent.CommandPrevious:
		err = media.Previous(ctx)
	}
	if err != nil {
		logger.WarnContext(ctx, "Playback command failed", "command", command, "error", err)
	}
	return Outcome{}
}

func (d *Dispatcher) setVolume(ctx context.Context, action intent.ClassifiedAction) Outcome {
	d.mu.Lock()
	level, ok := adjust(d.volume, action.Params, MinVolume, MaxVolume)
	if !ok {
		d.mu.Unlock()
		logger.InfoContext(ctx, "Volume left unchanged", "level", action.Params.Level, "direction", action.Params.Direction)
		return Outcome{}
	}
	d.volume = level
	media := d.media
	d.mu.Unlock()

	if media != nil {
		if err := media.SetVolume(ctx, level); err != nil {
			logger.WarnContext(ctx, "Failed to set media volume", "error", err)
		}
	}
	return Outcome{}
}

func (d *Dispatcher) setBrightness(ctx context.Context, action intent.ClassifiedAction) Outcome {
	d.mu.Lock()
	level, ok := adjust(d.brightness, action.Params, MinBrightness, MaxBrightness)
	if !ok {
		d.mu.Unlock()
		logger.InfoContext(ctx, "Brightness left unchanged", "level", action.Params.Level, "direction", action.Params.Direction)
		return Outcome{}
	}
	d.brightness = level
	d.mu.Unlock()

	if d.display != nil {
		d.display.SetBrightness(level)
	}
	return Outcome{}
}

// adjust applies an absolute level when one is given and a relative step
// otherwise. It reports false when the value stays unchanged because the
// parameters could not be used.
func adjust(current int, params intent.Params, lower, upper int) (int, bool) {
	if raw := strings.TrimSpace(params.Level); raw != "" {
		level, err := strconv.Atoi(strings.TrimSpace(strings.TrimSuffix(raw, "%")))
		if err != nil {
			return current, false
		}
		return clamp(level, lower, upper), true
	}

	switch strings.ToLower(strings.TrimSpace(params.Direction)) {
	case "up", "increase", "+":
		return clamp(current+Step, lower, upper), true
	case "down", "decrease", "-":
		return clamp(current-Step, lower, upper), true
	}
	return current, false
}

func clamp(value, lower, upper int) int {
	return min(max(value, lower), upper)
}

func (d *Dispatcher) openResource(ctx context.Context, action intent.ClassifiedAction) Outcome {
	target, err := NormalizeURL(action.Params.URL)
	if err != nil {
		logger.InfoContext(ctx, "Refusing to open resource", "url", action.Params.URL, "error", err)
		return Outcome{FollowUp: d.messages.InvalidURL}
	}
	if d.browser == nil {
		logger.WarnContext(ctx, "No browser configured", "url", target)
		return Outcome{FollowUp: d.messages.InvalidURL}
	}
	if err := d.browser.Open(ctx, target); err != nil {
		logger.ErrorContext(ctx, "Failed to open resource", "url", target, "error", err)
		return Outcome{FollowUp: d.messages.InvalidURL}
	}
	return Outcome{}
}

// NormalizeURL prefixes https:// when raw has no scheme and checks that the
// result names a host.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("empty url")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("failed to parse url: %w", err)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("url %q has no host", raw)
	}
	return parsed.String(), nil
}

func (d *Dispatcher) getWeather(ctx context.Context, action intent.ClassifiedAction) Outcome {
	if d.forecaster == nil {
		return Outcome{}
	}

	forecast, err := d.forecaster.Forecast(ctx, strings.TrimSpace(action.Params.Location))
	if err != nil {
		logger.WarnContext(ctx, "Weather lookup failed", "location", action.Params.Location, "error", err)
		return Outcome{FollowUp: d.messages.WeatherFailed}
	}
	return Outcome{FollowUp: forecast}
}

// maxTimerSeconds is the longest timer that still fits in a time.Duration.
const maxTimerSeconds = math.MaxInt64 / int64(time.Second)

func (d *Dispatcher) setTimer(ctx context.Context, action intent.ClassifiedAction) Outcome {
	seconds, err := strconv.ParseInt(strings.TrimSpace(action.Params.Duration), 10, 64)
	if err != nil || seconds < 0 || seconds > maxTimerSeconds {
		logger.InfoContext(ctx, "Ignoring timer with invalid duration", "duration", action.Params.Duration)
		return Outcome{}
	}

	duration := time.Duration(seconds) * time.Second
	timer := Timer{
		ID:        uuid.New(),
		Label:     strings.TrimSpace(action.Params.Text),
		ExpiresAt: d.now().Add(duration),
	}

	d.mu.Lock()
	d.timers[timer.ID] = time.AfterFunc(duration, func() { d.timerExpired(timer) })
	d.mu.Unlock()

	logger.InfoContext(ctx, "Timer scheduled", "id", timer.ID, "expires_at", timer.ExpiresAt)
	return Outcome{}
}

func (d *Dispatcher) timerExpired(timer Timer) {
	d.mu.Lock()
	_, pending := d.timers[timer.ID]
	delete(d.timers, timer.ID)
	d.mu.Unlock()

	if !pending {
		return
	}
	if d.notifier == nil {
		logger.Info("Timer expired", "id", timer.ID)
		return
	}
	d.notifier.TimerExpired(timer)
}

func (d *Dispatcher) addNote(ctx context.Context, action intent.ClassifiedAction) Outcome {
	text := strings.TrimSpace(action.Params.Text)
	if text == "" {
		text = strings.TrimSpace(action.Params.Query)
	}
	if text == "" || d.notes == nil {
		return Outcome{}
	}

	if err := d.notes.AddNote(ctx, text); err != nil {
		logger.ErrorContext(ctx, "Failed to save note", "error", err)
		return Outcome{FollowUp: d.messages.NoteFailed}
	}
	return Outcome{}
}
