package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/voxpod/voxpod/pkg/audio/opus"
	"github.com/voxpod/voxpod/pkg/config"
	"github.com/voxpod/voxpod/pkg/gateway"
	"github.com/voxpod/voxpod/pkg/intent"
	"github.com/voxpod/voxpod/pkg/kv"
	"github.com/voxpod/voxpod/pkg/music"
	"github.com/voxpod/voxpod/pkg/scheduler"
	"github.com/voxpod/voxpod/pkg/speech"
	"github.com/voxpod/voxpod/pkg/storage"
	"github.com/voxpod/voxpod/pkg/store"
	"github.com/voxpod/voxpod/pkg/tool"
	"github.com/voxpod/voxpod/pkg/tool/builtin"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the gateway server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		return runServer(cmd.Context(), cfg)
	},
}

func runServer(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := kv.NewBadger(kv.BadgerOptions{Dir: filepath.Join(cfg.DataDir, "db")})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	st := store.New(db)

	blobs, err := openBlobs(ctx, cfg)
	if err != nil {
		return err
	}

	// Codec state is per stream: the factory hands every utterance,
	// synthesis round, and music stream its own decoder or encoder.
	codec := opus.Codec{}

	provider := speech.NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, codec)
	planner, err := newPlanner(ctx, cfg)
	if err != nil {
		return err
	}

	reg := tool.NewRegistry()
	srv := gateway.NewServer(gateway.Options{
		Store:    st,
		Blobs:    blobs,
		Decoders: codec,
		ASR:      provider,
		TTS:      provider,
		Planner:  planner,
		Router:   tool.NewRouter(),
		Tools:    reg,
		Executor: tool.NewExecutor(reg),
		Defaults: gateway.Defaults{
			ASRModel: cfg.OpenAI.ASRModel,
			TTSModel: cfg.OpenAI.TTSModel,
			TTSVoice: cfg.OpenAI.TTSVoice,
		},
	})
	if err := builtin.RegisterAll(reg, &builtin.Deps{
		Store:         st,
		Blobs:         blobs,
		Music:         music.NewService(codec),
		ASR:           provider,
		Pusher:        srv,
		WeatherAPIKey: cfg.Tools.WeatherAPIKey,
		WeatherCity:   cfg.Tools.WeatherCity,
		SearchAPIKey:  cfg.Tools.SearchAPIKey,
	}); err != nil {
		return fmt.Errorf("register tools: %w", err)
	}

	go func() {
		if err := scheduler.New(st, srv).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("reminder scheduler stopped", "error", err)
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/ws", srv)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	httpSrv := &http.Server{Addr: cfg.Listen, Handler: mux}

	errc := make(chan error, 1)
	go func() {
		slog.Info("gateway listening", "addr", cfg.Listen, "storage", cfg.Storage.Backend)
		errc <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// openBlobs builds the blob store named by the config.
func openBlobs(ctx context.Context, cfg *config.Config) (storage.BlobStore, error) {
	switch cfg.Storage.Backend {
	case "local":
		return storage.NewLocal(filepath.Join(cfg.DataDir, "blobs"))
	case "s3":
		opts := []func(*awsconfig.LoadOptions) error{}
		if cfg.Storage.S3.Region != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.Storage.S3.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.Storage.S3.Endpoint != "" {
				o.BaseEndpoint = &cfg.Storage.S3.Endpoint
				o.UsePathStyle = true
			}
		})
		return storage.NewS3(client, cfg.Storage.S3.Bucket, cfg.Storage.S3.Prefix), nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}

// newPlanner builds the planner mux. OpenAI is always available;
// Gemini joins when configured, and becomes the default when no OpenAI
// key is set. Devices override the provider per user config.
func newPlanner(ctx context.Context, cfg *config.Config) (intent.Planner, error) {
	def := "openai"
	if cfg.Gemini.APIKey != "" && cfg.OpenAI.APIKey == "" {
		def = "gemini"
	}
	mux := intent.NewMux(def)
	mux.Handle("openai", intent.NewOpenAIPlanner(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.ChatModel))
	if cfg.Gemini.APIKey != "" {
		p, err := intent.NewGeminiPlanner(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			return nil, fmt.Errorf("gemini planner: %w", err)
		}
		mux.Handle("gemini", p)
	}
	return mux, nil
}
