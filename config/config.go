package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Credentials is one partner site's login pair.
type Credentials struct {
	UserID   string
	Password string
}

// Config holds all application configuration loaded from environment
// variables.
type Config struct {
	DataDir        string
	UpdatedLogPath string
	CSVOutputPath  string
	HTMLOutputPath string

	Sources []string

	Headless      bool
	ChromeBin     string
	RatePerSecond float64

	PostgresEnabled  bool
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	dataDir := getEnv("DATA_DIR", "./data")

	return &Config{
		DataDir:        dataDir,
		UpdatedLogPath: getEnv("UPDATED_LOG_PATH", dataDir+"/updated.json"),
		CSVOutputPath:  getEnv("CSV_OUTPUT_PATH", "./output/merged.csv"),
		HTMLOutputPath: getEnv("HTML_OUTPUT_PATH", "./output/merged.html"),

		Sources: splitList(getEnv("SOURCES", "bukkaku_flie,ielove")),

		Headless:      getEnvBool("HEADLESS", true),
		ChromeBin:     getEnv("CHROME_BIN", ""),
		RatePerSecond: getEnvFloat("RATE_PER_SECOND", 0.5),

		PostgresEnabled:  getEnvBool("POSTGRES_ENABLED", false),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "markone"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "markone123"),
		PostgresDB:       getEnv("POSTGRES_DB", "property_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// SourceCredentials reads a partner site's login pair from
// <NAME>_USER_ID / <NAME>_PASSWORD (source name uppercased).
func (c *Config) SourceCredentials(source string) Credentials {
	key := strings.ToUpper(strings.ReplaceAll(source, "-", "_"))
	return Credentials{
		UserID:   getEnv(key+"_USER_ID", ""),
		Password: getEnv(key+"_PASSWORD", ""),
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}
