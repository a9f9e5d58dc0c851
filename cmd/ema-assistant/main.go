package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	assistant "github.com/koscakluka/ema-assistant/core"
	"github.com/koscakluka/ema-assistant/core/actions"
	"github.com/koscakluka/ema-assistant/core/audio"
	"github.com/koscakluka/ema-assistant/core/audio/clip"
	"github.com/koscakluka/ema-assistant/core/audio/miniaudio"
	"github.com/koscakluka/ema-assistant/core/audio/portaudio"
	"github.com/koscakluka/ema-assistant/core/intent"
	"github.com/koscakluka/ema-assistant/core/llms"
	"github.com/koscakluka/ema-assistant/core/llms/groq"
	"github.com/koscakluka/ema-assistant/core/llms/openai"
	"github.com/koscakluka/ema-assistant/core/playback"
	"github.com/koscakluka/ema-assistant/core/search/youtube"
	"github.com/koscakluka/ema-assistant/core/speechtotext"
	"github.com/koscakluka/ema-assistant/core/speechtotext/deepgram"
	"github.com/koscakluka/ema-assistant/core/store"
	"github.com/koscakluka/ema-assistant/core/texttospeech"
	deepgramtts "github.com/koscakluka/ema-assistant/core/texttospeech/deepgram"
	"github.com/koscakluka/ema-assistant/core/weather/wttr"
	"github.com/koscakluka/ema-assistant/internal/config"
	"github.com/koscakluka/ema-assistant/internal/control"
	"github.com/koscakluka/ema-assistant/internal/proxy"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

// device is implemented by both audio backends.
type device interface {
	audio.CaptureDevice
	playback.SinkOpener
	Close()
}

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	proxyAddr := cli.StringP("proxy", "p", "", "Socks proxy address for API calls")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	logFile := cli.String("log-file", "ema-assistant.log", "Log file used while the terminal UI is running")
	backend := cli.StringP("audio", "a", "miniaudio", "Audio backend (miniaudio or portaudio)")
	voice := cli.String("voice", "", "Set and remember the speaking voice")
	listVoices := cli.Bool("list-voices", false, "Print the available voices and exit")
	headless := cli.Bool("headless", false, "Run without the terminal UI")
	cli.Parse()

	if *listVoices {
		for _, v := range deepgramtts.GetAvailableVoices() {
			fmt.Println(v)
		}
		return
	}

	closeLog, err := setupLogging(*logLevel, *headless, *logFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to set up logging:", err)
		os.Exit(1)
	}
	defer closeLog()

	if err := run(*envFile, *proxyAddr, *backend, *voice, *headless); err != nil {
		log.Error("Assistant stopped", "err", err)
		closeLog()
		os.Exit(1)
	}
}

func setupLogging(level string, headless bool, path string) (func(), error) {
	options := &tint.Options{Level: logLevelMap[level]}
	if headless {
		log.SetDefault(log.New(tint.NewHandler(os.Stdout, options)))
		return func() {}, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	options.NoColor = true
	log.SetDefault(log.New(tint.NewHandler(f, options)))
	return func() { _ = f.Close() }, nil
}

func run(envFile, proxyAddr, backend, voice string, headless bool) error {
	log.Info("Booting up")

	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	httpClient, err := proxy.NewSocksClient(proxyAddr, 30*time.Second)
	if err != nil {
		return fmt.Errorf("failed to dial socks proxy %s: %w", proxyAddr, err)
	}

	prefs, err := store.Open(ctx, cfg.StorePath, store.WithDefaults(store.Preferences{Voice: cfg.Voice}))
	if err != nil {
		return err
	}
	defer prefs.Close()
	log.Debug("Loaded preferences", "path", cfg.StorePath)

	dev, err := openDevice(backend)
	if err != nil {
		return fmt.Errorf("failed to open audio device: %w", err)
	}
	defer dev.Close()
	log.Debug("Opened audio device", "backend", backend)

	recognizer, err := deepgram.NewRecognizer(dev,
		deepgram.WithRecognitionOptions(speechtotext.WithLanguage(cfg.Language)))
	if err != nil {
		return fmt.Errorf("failed to create recognizer: %w", err)
	}

	tts, err := deepgramtts.NewTextToSpeechClient(deepgramtts.WithSpeechOptions(
		texttospeech.WithEncodingInfo(dev.EncodingInfo()),
		texttospeech.WithHTTPClient(httpClient),
	))
	if err != nil {
		return fmt.Errorf("failed to create speech client: %w", err)
	}
	if err := applyVoice(ctx, tts, prefs, voice); err != nil {
		return err
	}

	clips := clip.NewPlayer()
	player := playback.NewPlayer(
		playback.WithSinkOpener(dev),
		playback.WithSynthesizer(tts),
		playback.WithFallback(playback.ClipSpeaker{Renderer: tts, Player: clips}),
	)

	classifier, err := newClassifier(cfg, httpClient)
	if err != nil {
		return fmt.Errorf("failed to create classifier: %w", err)
	}
	resolverOptions := []intent.ResolverOption{intent.WithRetry(cfg.ClassifyAttempts, cfg.ClassifyBackoff)}
	if searcher, err := youtube.NewClient(youtube.WithHTTPClient(httpClient)); err != nil {
		log.Warn("Media search disabled", "err", err)
	} else {
		resolverOptions = append(resolverOptions, intent.WithSearcher(searcher))
	}
	resolver := intent.NewResolver(classifier, resolverOptions...)

	front := newFrontend(headless)
	desk := newDesktop()
	dispatcher := actions.NewDispatcher(
		actions.WithSearcher(resolver),
		actions.WithMediaLauncher(desk),
		actions.WithBrowser(desk),
		actions.WithDisplay(front),
		actions.WithNotifier(front),
		actions.WithNoteKeeper(prefs),
		actions.WithForecaster(wttr.NewClient(wttr.WithHTTPClient(httpClient))),
		actions.WithRelistenOnUnknown(cfg.RelistenOnUnknown),
	)

	a := assistant.NewAssistant(
		assistant.WithRecognizer(recognizer),
		assistant.WithResolver(resolver),
		assistant.WithDispatcher(dispatcher),
		assistant.WithSpeechOutput(player),
		assistant.WithDebounce(cfg.Debounce),
		assistant.WithRelistenDelay(cfg.RelistenDelay),
		assistant.WithCooldown(cfg.Cooldown),
		assistant.WithListeningCue(clips.Cue),
		assistant.WithOnStateChange(front.StateChanged),
		assistant.WithOnTranscript(front.Transcript),
		assistant.WithOnReply(front.Reply),
		assistant.WithOnStatus(front.Status),
	)
	defer func() {
		a.Close()
		closeCtx, cancelClose := context.WithTimeout(context.Background(), time.Second)
		defer cancelClose()
		if err := dispatcher.Close(closeCtx); err != nil {
			log.Warn("Failed to close dispatcher", "err", err)
		}
	}()

	server := control.NewServer(a, prefs)
	go func() {
		if err := server.Start(ctx, cfg.ControlAddr); err != nil {
			log.Error("Control API stopped", "err", err)
		}
	}()

	errs := make(chan error, 1)
	go func() { errs <- a.Run(ctx) }()
	log.Info("Boot up - successful")

	if err := front.Run(ctx, a); err != nil {
		return err
	}
	cancel()

	if err := <-errs; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func openDevice(backend string) (device, error) {
	switch backend {
	case "miniaudio":
		return miniaudio.NewClient()
	case "portaudio":
		return portaudio.NewClient(512)
	default:
		return nil, fmt.Errorf("unknown audio backend %q", backend)
	}
}

func newClassifier(cfg config.Config, httpClient *http.Client) (intent.Classifier, error) {
	opts := []llms.ClientOption{llms.WithHTTPClient(httpClient)}
	if cfg.ClassifierModel != "" {
		opts = append(opts, llms.WithModel(cfg.ClassifierModel))
	}

	switch cfg.Classifier {
	case config.ClassifierOpenAI:
		return openai.NewClassifier(opts...)
	default:
		return groq.NewClassifier(opts...)
	}
}

// applyVoice switches to the requested voice and remembers it, or restores
// the remembered one.
func applyVoice(ctx context.Context, tts *deepgramtts.TextToSpeechClient, prefs *store.Store, requested string) error {
	if requested != "" {
		if err := tts.SetVoice(requested); err != nil {
			return err
		}
		return prefs.SaveVoice(ctx, requested)
	}

	if stored := prefs.Voice(); stored != "" {
		if err := tts.SetVoice(stored); err != nil {
			log.Warn("Ignoring stored voice", "voice", stored, "err", err)
		}
	}
	return nil
}
