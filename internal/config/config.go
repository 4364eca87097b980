package config

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port     int
	DataPath string
	DBPath   string
	WorkPath string

	JWTSecret   string
	CORSOrigins []string

	// External tools
	YtdlpPath   string
	FFmpegPath  string
	FFprobePath string

	// Download limits
	MaxDownloadBytes int64

	// Job processing
	Workers           int
	FetchTimeout      time.Duration
	ExtractTimeout    time.Duration
	TranscribeTimeout time.Duration
	DeliveryTimeout   time.Duration

	// Transcription engine
	WhisperURL   string
	OpenAIAPIKey string

	// Email delivery (SMTP). Empty SMTPEmail disables the email channel.
	SMTPHost     string
	SMTPPort     int
	SMTPEmail    string
	SMTPPassword string

	// WhatsApp delivery (Twilio). Empty SID disables the whatsapp channel.
	TwilioAccountSID   string
	TwilioAuthToken    string
	TwilioWhatsAppFrom string

	// Optional frontend identifiers; absence disables the feature.
	GAMeasurementID string
	AdSensePubID    string

	// Rate limiting for submission endpoints
	RateLimit       int
	RateLimitWindow time.Duration
}

func Load() *Config {
	port, _ := strconv.Atoi(getEnv("PORT", "8080"))
	dataPath := getEnv("DATA_PATH", "/data")

	// JWT secret: require explicit setting or generate random
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			log.Fatalf("Failed to generate random JWT secret: %v", err)
		}
		jwtSecret = hex.EncodeToString(b)
		log.Println("WARNING: JWT_SECRET not set, using random secret. Sessions will not survive restarts. Set JWT_SECRET env var for persistent sessions.")
	}

	// CORS origins: comma-separated list or "*" (default)
	corsOrigins := []string{"*"}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		corsOrigins = make([]string, 0, len(origins))
		for _, o := range origins {
			o = strings.TrimSpace(o)
			if o != "" {
				corsOrigins = append(corsOrigins, o)
			}
		}
	}

	smtpPort, _ := strconv.Atoi(getEnv("SMTP_PORT", "587"))
	workers, _ := strconv.Atoi(getEnv("WORKERS", "2"))
	if workers < 1 {
		workers = 1
	}
	maxDownload, _ := strconv.ParseInt(getEnv("MAX_DOWNLOAD_BYTES", "209715200"), 10, 64) // 200MB
	rateLimit, _ := strconv.Atoi(getEnv("RATE_LIMIT", "30"))

	return &Config{
		Port:     port,
		DataPath: dataPath,
		DBPath:   getEnv("DB_PATH", dataPath+"/transcriber.db"),
		WorkPath: getEnv("WORK_PATH", dataPath+"/work"),

		JWTSecret:   jwtSecret,
		CORSOrigins: corsOrigins,

		YtdlpPath:   getEnv("YTDLP_PATH", "yt-dlp"),
		FFmpegPath:  getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath: getEnv("FFPROBE_PATH", "ffprobe"),

		MaxDownloadBytes: maxDownload,

		Workers:           workers,
		FetchTimeout:      getDuration("FETCH_TIMEOUT", 5*time.Minute),
		ExtractTimeout:    getDuration("EXTRACT_TIMEOUT", 2*time.Minute),
		TranscribeTimeout: getDuration("TRANSCRIBE_TIMEOUT", 30*time.Minute),
		DeliveryTimeout:   getDuration("DELIVERY_TIMEOUT", time.Minute),

		WhisperURL:   getEnv("WHISPER_URL", ""),
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),

		SMTPHost:     getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:     smtpPort,
		SMTPEmail:    getEnv("SMTP_EMAIL", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		TwilioAccountSID:   getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:    getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioWhatsAppFrom: getEnv("TWILIO_WHATSAPP_FROM", "whatsapp:+14155238886"),

		GAMeasurementID: getEnv("GA_MEASUREMENT_ID", ""),
		AdSensePubID:    getEnv("ADSENSE_PUB_ID", ""),

		RateLimit:       rateLimit,
		RateLimitWindow: getDuration("RATE_LIMIT_WINDOW", time.Minute),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("WARNING: invalid duration for %s, using default %s", key, fallback)
	}
	return fallback
}
