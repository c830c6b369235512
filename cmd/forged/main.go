// Command forged runs the render server: a websocket hub feeding the
// engine's bounded update channel, a frame loop on the render thread,
// and error envelopes pushed back to scene sources.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	forge "github.com/nodeforge/forge"
	"github.com/nodeforge/forge/assets"
	"github.com/nodeforge/forge/backend"
	wgpubackend "github.com/nodeforge/forge/backend/wgpu"
	"github.com/nodeforge/forge/plan"
	"github.com/nodeforge/forge/transport"
)

// serverConfig is the optional YAML config file.
type serverConfig struct {
	Addr       string `yaml:"addr"`
	QueueDepth int    `yaml:"queue_depth"`
	AssetRoot  string `yaml:"asset_root"`
	FrameRate  int    `yaml:"frame_rate"`
}

func defaultConfig() serverConfig {
	return serverConfig{
		Addr:       ":7341",
		QueueDepth: 16,
		AssetRoot:  "assets",
		FrameRate:  60,
	}
}

func loadConfig(path string) (serverConfig, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

func main() {
	configPath := flag.String("config", "", "YAML config file")
	scenePath := flag.String("scene", "", "initial scene document")
	useGPU := flag.Bool("gpu", false, "bind plans to a wgpu device instead of the headless backend")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	forge.SetLogger(log)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Error("forged: config", "error", err)
		os.Exit(1)
	}

	store := assets.NewDirStore(cfg.AssetRoot)
	var gpu backend.GPU
	if *useGPU {
		// Losing the device is the one fatal condition; scene errors
		// never are.
		asm, err := wgpubackend.New(assets.Loader(store))
		if err != nil {
			log.Error("forged: gpu init", "error", err)
			os.Exit(1)
		}
		gpu = asm
	} else {
		gpu = backend.NewHeadless()
	}

	engine, err := forge.New(forge.Config{GPU: gpu, QueueDepth: cfg.QueueDepth})
	if err != nil {
		log.Error("forged: engine init", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	if *scenePath != "" {
		raw, err := transport.LoadSceneFile(*scenePath)
		if err != nil {
			log.Error("forged: initial scene", "error", err)
			os.Exit(1)
		}
		if err := engine.Apply(raw); err != nil {
			log.Error("forged: initial scene rejected", "error", err)
			os.Exit(1)
		}
	}

	hub := transport.NewHub(log, cfg.QueueDepth)
	defer hub.Close()
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	server := &http.Server{Addr: cfg.Addr, Handler: mux}
	go func() {
		log.Info("forged: listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Error("forged: http server", "error", err)
			os.Exit(1)
		}
	}()

	runFrames(engine, hub, cfg.FrameRate, log)
}

// runFrames is the render loop: once per frame, drain at most one scene
// update from the hub, then render. Scene failures reply with an error
// envelope; successes broadcast the new plan description.
func runFrames(engine *forge.Engine, hub *transport.Hub, rate int, log *slog.Logger) {
	if rate <= 0 {
		rate = 60
	}
	tick := time.NewTicker(time.Second / time.Duration(rate))
	defer tick.Stop()

	for range tick.C {
		select {
		case update := <-hub.Scenes():
			if err := engine.Apply(update.Raw); err != nil {
				code, subject := forge.Classify(err)
				update.Reply(transport.ErrorEnvelope(update.RequestID, code, subject, err.Error()))
				break
			}
			desc := plan.Describe(engine.Plan())
			env, err := transport.NewEnvelope(transport.TypeRenderResult, desc)
			if err == nil {
				env.RequestID = update.RequestID
				hub.Broadcast(env)
			}
		default:
		}

		if err := engine.Step(); err != nil {
			log.Warn("forged: frame", "error", err)
		}
	}
}
