package config

import (
	"flag"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
)

const (
	// DefaultPollInterval is shared by the reply poll and the discussion job poll.
	DefaultPollInterval = 2 * time.Second
	DefaultAPIURL       = "http://127.0.0.1:8000/api"
	DefaultAuthor       = "user"
)

type Config struct {
	APIURL           string
	TopicID          string
	Author           string
	PollInterval     time.Duration
	RequestTimeout   time.Duration
	ReplyMaxFailures int
	MaxTurns         int
	MaxBudgetUSD     float64
	LogFile          string
	LogLevel         string
	AltScreen        bool
	MarkdownStyle    string
	NodeID           int64
}

func (c Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// Load reads an optional .env file and then parses command-line flags whose
// defaults come from the environment.
func Load(args []string) (Config, error) {
	_ = godotenv.Load()
	return Parse(args, os.Stderr)
}

// Parse builds a Config from args; usage output goes to out. A -h/-help
// request returns an error matching flag.ErrHelp.
func Parse(args []string, out io.Writer) (Config, error) {
	fs := flag.NewFlagSet("roundtable-tui", flag.ContinueOnError)
	fs.SetOutput(out)

	cfg := Config{}
	fs.StringVar(&cfg.APIURL, "api-url", envOr("ROUNDTABLE_API_URL", DefaultAPIURL), "Forum API base URL")
	fs.StringVar(&cfg.TopicID, "topic", envOr("ROUNDTABLE_TOPIC", ""), "Topic id to open (empty shows the topic picker)")
	fs.StringVar(&cfg.Author, "author", envOr("ROUNDTABLE_AUTHOR", DefaultAuthor), "Author name used for new posts")
	pollSeconds := envOrInt("ROUNDTABLE_POLL_INTERVAL", int(DefaultPollInterval/time.Second))
	fs.IntVar(&pollSeconds, "poll-interval", pollSeconds, "Poll interval seconds for reply and discussion status")
	timeoutSeconds := envOrInt("ROUNDTABLE_REQUEST_TIMEOUT", 15)
	fs.IntVar(&timeoutSeconds, "request-timeout", timeoutSeconds, "Per-request timeout seconds")
	fs.IntVar(&cfg.ReplyMaxFailures, "reply-max-failures", envOrInt("ROUNDTABLE_REPLY_MAX_FAILURES", 3), "Consecutive status failures before a pending reply stops being tracked")
	fs.IntVar(&cfg.MaxTurns, "max-turns", envOrInt("ROUNDTABLE_MAX_TURNS", 60), "Turn cap sent when starting a discussion")
	fs.Float64Var(&cfg.MaxBudgetUSD, "max-budget", envOrFloat("ROUNDTABLE_MAX_BUDGET_USD", 5.0), "Budget cap (USD) sent when starting a discussion")
	fs.StringVar(&cfg.LogFile, "log-file", envOr("ROUNDTABLE_LOG_FILE", ""), "Write structured logs to this file")
	fs.StringVar(&cfg.LogLevel, "log-level", envOr("ROUNDTABLE_LOG_LEVEL", "info"), "Log level (debug|info|warn|error)")
	fs.BoolVar(&cfg.AltScreen, "alt-screen", envOrBool("ROUNDTABLE_ALT_SCREEN", true), "Use alternate screen buffer")
	fs.StringVar(&cfg.MarkdownStyle, "markdown-style", envOr("ROUNDTABLE_MARKDOWN_STYLE", "dark"), "Markdown style for post bodies (dark|light|notty|plain)")
	nodeID := envOrInt("ROUNDTABLE_NODE_ID", 1)
	fs.IntVar(&nodeID, "node-id", nodeID, "Snowflake node id for request ids (0-1023)")
	if err := fs.Parse(args); err != nil {
		return Config{}, errors.Wrap(err, "parse flags")
	}

	cfg.APIURL = strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	if cfg.APIURL == "" {
		return Config{}, errors.New("api-url must not be empty")
	}
	if !strings.HasPrefix(cfg.APIURL, "http://") && !strings.HasPrefix(cfg.APIURL, "https://") {
		return Config{}, errors.Newf("api-url must be an http(s) URL, got %q", cfg.APIURL)
	}
	cfg.TopicID = strings.TrimSpace(cfg.TopicID)
	cfg.Author = strings.TrimSpace(cfg.Author)
	if cfg.Author == "" {
		cfg.Author = DefaultAuthor
	}
	cfg.PollInterval = time.Duration(clampInt(pollSeconds, 1, 60)) * time.Second
	cfg.RequestTimeout = time.Duration(clampInt(timeoutSeconds, 1, 120)) * time.Second
	cfg.ReplyMaxFailures = clampInt(cfg.ReplyMaxFailures, 1, 10)
	cfg.MaxTurns = clampInt(cfg.MaxTurns, 10, 200)
	cfg.MaxBudgetUSD = clampFloat(cfg.MaxBudgetUSD, 0.1, 50)
	cfg.LogLevel = normalizeLevel(cfg.LogLevel)
	cfg.MarkdownStyle = normalizeStyle(cfg.MarkdownStyle)
	cfg.NodeID = int64(clampInt(nodeID, 0, 1023))
	return cfg, nil
}

func normalizeLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))
	switch normalized {
	case "debug", "info", "warn", "error":
		return normalized
	default:
		return "info"
	}
}

func normalizeStyle(style string) string {
	normalized := strings.ToLower(strings.TrimSpace(style))
	switch normalized {
	case "dark", "light", "notty", "plain":
		return normalized
	default:
		return "dark"
	}
}

func envOr(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if value == "" {
		return fallback
	}
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func clampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func clampFloat(value float64, min float64, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
