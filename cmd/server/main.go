package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	zerologlog "github.com/rs/zerolog/log"

	"humanornot/internal/agent"
	"humanornot/internal/ai/anthropic"
	"humanornot/internal/ai/gemini"
	"humanornot/internal/config"
	"humanornot/internal/game"
	"humanornot/internal/store/memory"
	"humanornot/internal/web"
	"humanornot/internal/ws"
)

const version = "v1.0.0"

func main() {
	var (
		showHelp    = flag.Bool("help", false, "Show help message")
		showVersion = flag.Bool("version", false, "Show version information")
		portFlag    = flag.String("port", "", "Port to listen on (overrides PORT env var)")
	)
	flag.BoolVar(showHelp, "h", false, "Show help message (shorthand)")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Parse()

	if *showHelp {
		fmt.Printf(`humanornot - social deduction chat between humans and AI agents

Usage: %s [options]

Options:
  -h, --help      Show this help message
  -v, --version   Show version information
  --port PORT     Port to listen on (default: 8080 or PORT env var)

Environment Variables:
  PORT                Port to listen on (default: 8080)
  PUBLIC_URL          Base URL used in join links and QR codes
  ANTHROPIC_API_KEY   Anthropic API key (claude agents)
  ANTHROPIC_MODEL     Anthropic model (default: claude-3-sonnet-20240229)
  GEMINI_API_KEY      Google Gemini API key (gemini agents)
  GEMINI_MODEL        Gemini model (default: gemini-1.5-pro)
  GENERATE_TIMEOUT    Per-backend generation timeout (default: 15s)
  REPLY_DELAY_MIN     Minimum simulated typing delay (default: 2s)
  REPLY_DELAY_MAX     Maximum simulated typing delay (default: 6s)

Without API keys agents still play, using canned fallback lines.
`, os.Args[0])
		return
	}

	if *showVersion {
		fmt.Printf("humanornot %s\n", version)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	port := *portFlag
	if port == "" {
		port = cfg.Port
	}

	// zerolog setup (human-friendly console)
	zerolog.TimeFieldFormat = time.RFC3339
	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	zerologlog.Logger = zerologlog.Output(cw)
	logger := zerologlog.Logger

	// Gin setup with custom logger (skip /socket.io noise)
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/socket.io") {
			return
		}
		zerologlog.Info().Str("path", path).Int("status", c.Writer.Status()).Dur("dur", time.Since(start)).Msg("http")
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC()})
	})

	st := memory.New()
	engine := agent.NewEngine(
		anthropic.New(cfg.AnthropicKey, cfg.AnthropicModel),
		gemini.New(cfg.GeminiKey, cfg.GeminiModel),
		cfg.GenerateTimeout,
		logger.With().Str("component", "engine").Logger(),
	)
	manager := game.NewManager(st, engine,
		game.Pacing{MinDelay: cfg.ReplyDelayMin, MaxDelay: cfg.ReplyDelayMax},
		logger.With().Str("component", "game").Logger(),
	)

	web.New(manager, cfg.PublicURL, logger.With().Str("component", "web").Logger()).Register(r)
	io := ws.New(manager, st, logger.With().Str("component", "ws").Logger()).Mount(r)
	defer io.Close()

	log.Printf("listening on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal(err)
	}
}
