package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"divscan-go/internal/divergence"
	"divscan-go/internal/indicator"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Divergence holds the scan parameters; YAML keys match the optional override file
type Divergence struct {
	Oscillator            string  `yaml:"oscillator"`
	MAType                string  `yaml:"ma_type"`
	FastPeriod            int     `yaml:"fast_period"`
	SlowPeriod            int     `yaml:"slow_period"`
	SmoothingPeriod       int     `yaml:"smoothing_period"`
	RSIPeriod             int     `yaml:"rsi_period"`
	ConfirmWidth          int     `yaml:"confirm_width"`
	MinDivergenceStrength int     `yaml:"min_divergence_strength"`
	MaxBarsBack           int     `yaml:"max_bars_back"`
	PriceMinDelta         float64 `yaml:"price_min_delta"`
	OscMinDelta           float64 `yaml:"osc_min_delta"`
	ScanInterval          int     `yaml:"scan_interval"`
	DetectRegular         bool    `yaml:"detect_regular"`
	DetectHidden          bool    `yaml:"detect_hidden"`
}

type Config struct {
	NodeEnv          string
	Port             string
	MongoURI         string
	MongoDatabase    string
	BinanceBaseURL   string
	TelegramBotToken string
	TelegramChatID   string
	KlineInterval    string
	HistoryBars      int
	PollSchedule     string
	Workers          int
	Symbols          []string // seeds the watchlist when it is empty
	Divergence       Divergence
}

var AppConfig *Config

// Load reads environment variables and initializes the global config
func Load() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := &Config{
		NodeEnv:          getEnv("NODE_ENV", "development"),
		Port:             getEnv("PORT", "8080"),
		MongoURI:         getEnv("MONGO_URI", "mongodb://localhost:27017/divscan"),
		MongoDatabase:    getEnv("MONGO_DATABASE", "divscan"),
		BinanceBaseURL:   getEnv("BINANCE_BASE_URL", "https://api.binance.com"),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		KlineInterval:    getEnv("KLINE_INTERVAL", "1h"),
		HistoryBars:      getEnvAsInt("HISTORY_BARS", 300),
		PollSchedule:     getEnv("POLL_SCHEDULE", "@every 1m"),
		Workers:          getEnvAsInt("WORKERS", 5),
		Symbols:          getEnvAsSlice("SYMBOLS", "BTCUSDT,ETHUSDT,SOLUSDT,BNBUSDT,XRPUSDT"),
		Divergence: Divergence{
			Oscillator:            getEnv("OSCILLATOR", "macd"),
			MAType:                getEnv("MA_TYPE", "ema"),
			FastPeriod:            getEnvAsInt("FAST_PERIOD", 12),
			SlowPeriod:            getEnvAsInt("SLOW_PERIOD", 26),
			SmoothingPeriod:       getEnvAsInt("SMOOTHING_PERIOD", 9),
			RSIPeriod:             getEnvAsInt("RSI_PERIOD", 14),
			ConfirmWidth:          getEnvAsInt("CONFIRM_WIDTH", 3),
			MinDivergenceStrength: getEnvAsInt("MIN_DIVERGENCE_STRENGTH", 8),
			MaxBarsBack:           getEnvAsInt("MAX_BARS_BACK", 50),
			PriceMinDelta:         getEnvAsFloat("PRICE_MIN_DELTA", 1.0),
			OscMinDelta:           getEnvAsFloat("OSC_MIN_DELTA", 0.001),
			ScanInterval:          getEnvAsInt("SCAN_INTERVAL", 3),
			DetectRegular:         getEnvAsBool("DETECT_REGULAR", true),
			DetectHidden:          getEnvAsBool("DETECT_HIDDEN", true),
		},
	}

	if path := getEnv("DIVERGENCE_CONFIG", ""); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return err
		}
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	AppConfig = cfg
	log.Println("✅ Configuration loaded successfully")
	return nil
}

// applyFile overlays the divergence section of a YAML file; keys absent from
// the file keep their environment values.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read divergence config: %w", err)
	}

	var file struct {
		Divergence *Divergence `yaml:"divergence"`
	}
	file.Divergence = &c.Divergence
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse divergence config: %w", err)
	}

	log.Printf("📄 Divergence parameters loaded from %s", path)
	return nil
}

// Validate checks the values the scanner cannot run without
func (c *Config) Validate() error {
	d := c.Divergence
	switch {
	case d.ConfirmWidth < 2:
		return fmt.Errorf("confirm_width must be at least 2, got %d", d.ConfirmWidth)
	case d.MinDivergenceStrength < 0:
		return fmt.Errorf("min_divergence_strength must not be negative")
	case d.FastPeriod < 1 || d.SlowPeriod < 1 || d.SmoothingPeriod < 1:
		return fmt.Errorf("indicator periods must be positive")
	case d.RSIPeriod < 2:
		return fmt.Errorf("rsi_period must be at least 2, got %d", d.RSIPeriod)
	case d.MaxBarsBack < 1:
		return fmt.Errorf("max_bars_back must be positive")
	case d.ScanInterval < 1:
		return fmt.Errorf("scan_interval must be positive")
	case d.PriceMinDelta < 0 || d.OscMinDelta < 0:
		return fmt.Errorf("significance thresholds must not be negative")
	case c.Workers < 1:
		return fmt.Errorf("workers must be positive")
	}

	osc, err := d.oscillator()
	if err != nil {
		return err
	}

	// The oldest peak candidate needs its older neighbours and a defined oscillator value.
	width := max(d.ConfirmWidth, divergence.MinConfirmWidth)
	if need := osc.Warmup() + d.MaxBarsBack + width; c.HistoryBars < need {
		return fmt.Errorf("history_bars (%d) must be at least %d: %d oscillator warm-up + max_bars_back %d + confirm width %d",
			c.HistoryBars, need, osc.Warmup(), d.MaxBarsBack, width)
	}
	return nil
}

func (d Divergence) oscillator() (indicator.OscillatorConfig, error) {
	maType, err := indicator.ParseMAType(d.MAType)
	if err != nil {
		return indicator.OscillatorConfig{}, err
	}
	kind, err := indicator.ParseOscillatorKind(d.Oscillator)
	if err != nil {
		return indicator.OscillatorConfig{}, err
	}
	return indicator.OscillatorConfig{
		Kind:            kind,
		MAType:          maType,
		FastPeriod:      d.FastPeriod,
		SlowPeriod:      d.SlowPeriod,
		SmoothingPeriod: d.SmoothingPeriod,
		RSIPeriod:       d.RSIPeriod,
	}, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key, defaultValue string) []string {
	value := getEnv(key, defaultValue)
	if value == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnvAsInt(key string, defaultValue int) int {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("⚠️  Invalid integer for %s (%q), using %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Printf("⚠️  Invalid number for %s (%q), using %g", key, value, defaultValue)
		return defaultValue
	}
	return f
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("⚠️  Invalid boolean for %s (%q), using %v", key, value, defaultValue)
		return defaultValue
	}
	return b
}
