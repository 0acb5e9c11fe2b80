package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/Markiayn/Parser/models"
)

type Config struct {
	ChromePath        string
	PhotosDir         string
	MaxPhotos         int
	MaxPages          int
	MinRooms          int
	MinArea           float64
	Verbose           bool
	PriceUSDThreshold int

	DBPath      string
	DatabaseURL string // when set, Postgres is used instead of SQLite
	ProxyURL    string

	Telegram  TelegramConfig
	S3        S3Config
	CrawlCron string

	Site   *Site
	Cities []City
}

type TelegramConfig struct {
	BotToken string
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

// City is one partition: a city-scoped storage table and its two delivery
// channels. Immutable after load.
type City struct {
	Name     string
	RegionID int
	Table    string
	Channel1 string
	Channel2 string
	Hours    int // freshness window for crawled listings
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ChromePath:        getEnv("CHROME_PATH", "/usr/bin/chromium"),
		PhotosDir:         getEnv("PHOTOS_DIR", "photos"),
		MaxPhotos:         getEnvInt("MAX_PHOTOS", 5),
		MaxPages:          getEnvInt("MAX_PAGES", 2),
		MinRooms:          getEnvInt("MIN_ROOMS", 1),
		MinArea:           getEnvFloat("MIN_AREA", 25.0),
		Verbose:           os.Getenv("VERBOSE") == "true",
		PriceUSDThreshold: getEnvInt("PRICE_USD_THRESHOLD", 2000),
		DBPath:            getEnv("DB_PATH", "apartments.db"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		ProxyURL:          os.Getenv("PROXY_URL"),
		Telegram: TelegramConfig{
			BotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		CrawlCron: os.Getenv("CRAWL_CRON"),
	}

	if cfg.MaxPhotos > models.PhotoSlots {
		log.Printf("MAX_PHOTOS=%d exceeds the %d persisted slots, clamping", cfg.MaxPhotos, models.PhotoSlots)
		cfg.MaxPhotos = models.PhotoSlots
	}

	site, err := LoadSite("config/sites/domria.yaml")
	if err != nil {
		return nil, err
	}
	cfg.Site = site

	cfg.Cities = loadCities(os.Getenv)

	return cfg, nil
}

// loadCities walks the numbered CITY_n_* key blocks. The walk terminates at
// the first index whose required keys (name, id, table) are not all present.
func loadCities(getenv func(string) string) []City {
	var cities []City
	for i := 1; ; i++ {
		prefix := fmt.Sprintf("CITY_%d_", i)
		name := getenv(prefix + "NAME")
		idStr := getenv(prefix + "ID")
		table := getenv(prefix + "TABLE")
		if name == "" || idStr == "" || table == "" {
			break
		}

		regionID, err := strconv.Atoi(idStr)
		if err != nil {
			break
		}

		hours := 24
		if h, err := strconv.Atoi(getenv(prefix + "HOURS")); err == nil && h > 0 {
			hours = h
		}

		cities = append(cities, City{
			Name:     name,
			RegionID: regionID,
			Table:    table,
			Channel1: getenv(prefix + "CHANNEL1"),
			Channel2: getenv(prefix + "CHANNEL2"),
			Hours:    hours,
		})
	}
	return cities
}

// Validate checks the fatal setup requirements. Failures here abort startup
// before the scheduler is ever entered.
func (c *Config) Validate() error {
	if _, err := os.Stat(c.ChromePath); err != nil {
		return fmt.Errorf("browser binary not found at %s", c.ChromePath)
	}
	if c.Telegram.BotToken == "" || c.Telegram.BotToken == "your_bot_token_here" {
		return fmt.Errorf("telegram bot token is not configured")
	}
	if len(c.Cities) == 0 {
		return fmt.Errorf("no cities configured (CITY_1_NAME, CITY_1_ID, CITY_1_TABLE, ...)")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
