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

	"github.com/fableforge/fableforge/internal/config"
	"github.com/fableforge/fableforge/internal/game"
	"github.com/fableforge/fableforge/internal/narrative"
	"github.com/fableforge/fableforge/internal/store"
	"github.com/fableforge/fableforge/internal/ws"
)

const version = "v1.0.0-dev"

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
		fmt.Printf(`Fableforge - Timer-driven AI storytelling party game

Usage: %s [options]

Options:
  -h, --help      Show this help message
  -v, --version   Show version information
  --port PORT     Port to listen on (default: 8080 or PORT env var)

Environment Variables:
  PORT                 Port to listen on (default: 8080)
  OPENAI_API_KEY       OpenAI API key (required for the narrative engine)
  OPENAI_BASE_URL      Custom OpenAI-compatible API base URL (optional)
  OPENAI_MODEL         Model to use (default: gpt-4o-mini)
  REDIS_ADDR           Redis address for session persistence (optional;
                       sessions are kept in memory when unset)
  REDIS_PASSWORD       Redis password
  REDIS_DB             Redis database number (default: 0)
  GAME_ROUNDS          Rounds per game (default: 3)
  ROUND_DURATION       Length of one round (default: 60s)
  LEASE_TTL            Push-subscription lease lifetime (default: 5m)
  ADVANCE_RETRY_DELAY  Delay before retrying a failed round advance (default: 5s)

Examples:
  %s                  Start server with default settings
  %s --port 3000      Start server on port 3000
`, os.Args[0], os.Args[0], os.Args[0])
		return
	}

	if *showVersion {
		fmt.Printf("Fableforge %s\n", version)
		return
	}

	// zerolog setup (human-friendly console)
	zerolog.TimeFieldFormat = time.RFC3339
	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	zerologlog.Logger = zerologlog.Output(cw)

	cfg, err := config.FromEnv()
	if err != nil {
		zerologlog.Fatal().Err(err).Msg("invalid configuration")
	}

	// Determine port
	port := *portFlag
	if port == "" {
		port = cfg.Port
	}

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
		status := c.Writer.Status()
		dur := time.Since(start)
		zerologlog.Info().Str("path", path).Int("status", status).Dur("dur", dur).Msg("http")
	})

	// Healthcheck
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC()})
	})

	// Session persistence
	var sessions game.Store
	if cfg.RedisAddr != "" {
		rs, err := store.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			zerologlog.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable")
		}
		defer rs.Close()
		sessions = rs
		zerologlog.Info().Str("addr", cfg.RedisAddr).Msg("persisting sessions to redis")
	} else {
		sessions = store.NewMemory()
		zerologlog.Warn().Msg("REDIS_ADDR unset, sessions are kept in memory only")
	}

	// Core wiring: narrative engine, directory, scheduler, session arena
	engine := narrative.New(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.Model)
	directory := game.NewDirectory(cfg.LeaseTTL)
	defer directory.Close()
	arena := game.NewArena(sessions, directory, game.NewScheduler(), engine, engine, game.Config{
		Rounds:        cfg.Rounds,
		RoundDuration: cfg.RoundDuration,
		LeaseTTL:      cfg.LeaseTTL,
		RetryDelay:    cfg.RetryDelay,
	})

	// Socket front end
	sock := ws.New(arena, directory)
	io := sock.Mount(r)
	defer io.Close()

	// Minimal REST surface: list open sessions
	r.GET("/api/sessions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sessions": directory.List()})
	})

	log.Printf("listening on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal(err)
	}
}
