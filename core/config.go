package core

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Conf holds the application configuration loaded at start-up.
var Conf *Config

type (
	ServerConfig struct {
		Address            string
		Host               string
		DebugHost          string
		TokenExpiration    time.Duration
		TokenPurgeSchedule string
		ReadTimeout        time.Duration
		WriteTimeout       time.Duration
		ShutdownTimeout    time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	MailConfig struct {
		DefaultFromEmail string
		SendGridAPIKey   string
	}

	StorageConfig struct {
		Bucket          string
		CredentialsFile string
		CredentialsJSON string
		SignedURLExpiry time.Duration
	}

	AIConfig struct {
		APIKey      string
		BaseURL     string
		Model       string
		MaxTokens   int
		Temperature float32
		RateLimit   float64 // requests per minute and user
		RateBurst   int
	}

	RedisConfig struct {
		Address  string // empty disables the token cache
		Password string
		DB       int
		TokenTTL time.Duration
	}

	Config struct {
		Env             string
		AppName         string
		Debug           bool
		TestMode        bool
		SecretKey       string
		Build           string
		FrontendBaseURL string
		RollbarToken    string
		WorkDir         string

		Server   ServerConfig
		Database DatabaseConfig
		Mail     MailConfig
		Storage  StorageConfig
		AI       AIConfig
		Redis    RedisConfig
	}
)

func init() {
	Conf = NewConfig()
}

// NewConfig reads the configuration from the environment, optionally seeded by `config/.env.<env>`.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("appName", "InnerGrow")
	v.SetDefault("debug", true)
	v.SetDefault("secretKey", "k3u!8b@ls0d$w+2z&q_r^j9e#x(7v)f1n%c4p*h6g=t5y-m")
	v.SetDefault("build", "dev")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("serverAddress", ":8000")
	v.SetDefault("serverHost", "localhost:8000")
	v.SetDefault("debugHost", "localhost:4000")
	v.SetDefault("tokenExpiration", 30*24*time.Hour)
	v.SetDefault("tokenPurgeSchedule", "@hourly")
	v.SetDefault("readTimeout", 10*time.Second)
	v.SetDefault("writeTimeout", 60*time.Second)
	v.SetDefault("shutdownTimeout", 5*time.Second)
	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", 5432)
	v.SetDefault("dbName", "innergrow")
	v.SetDefault("dbUser", "innergrow")
	v.SetDefault("dbPassword", "innergrow")
	v.SetDefault("dbAdminUser", "postgres")
	v.SetDefault("dbAdminPassword", "postgres")
	v.SetDefault("dbDisableTLS", true)
	v.SetDefault("defaultFromEmail", "noreply@innergrow.ai")
	v.SetDefault("sendGridAPIKey", "")
	v.SetDefault("gcsBucket", "")
	v.SetDefault("gcsCredentialsFile", "")
	v.SetDefault("gcsCredentialsJSON", "")
	v.SetDefault("signedURLExpiry", 60*time.Minute)
	v.SetDefault("openAIAPIKey", "")
	v.SetDefault("openAIBaseURL", "")
	v.SetDefault("openAIModel", "gpt-3.5-turbo")
	v.SetDefault("openAIMaxTokens", 500)
	v.SetDefault("openAITemperature", 0.7)
	v.SetDefault("aiRateLimit", 6.0)
	v.SetDefault("aiRateBurst", 3)
	v.SetDefault("redisAddress", "")
	v.SetDefault("redisPassword", "")
	v.SetDefault("redisDB", 0)
	v.SetDefault("redisTokenTTL", 10*time.Minute)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	v.SetEnvPrefix(env)

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:             env,
		AppName:         v.GetString("appName"),
		Debug:           v.GetBool("debug") && env != "PROD",
		TestMode:        env == "TEST",
		SecretKey:       v.GetString("secretKey"),
		Build:           v.GetString("build"),
		FrontendBaseURL: v.GetString("frontendBaseURL"),
		RollbarToken:    v.GetString("rollbarToken"),
		WorkDir:         wd,
		Server: ServerConfig{
			Address:            v.GetString("serverAddress"),
			Host:               v.GetString("serverHost"),
			DebugHost:          v.GetString("debugHost"),
			TokenExpiration:    v.GetDuration("tokenExpiration"),
			TokenPurgeSchedule: v.GetString("tokenPurgeSchedule"),
			ReadTimeout:        v.GetDuration("readTimeout"),
			WriteTimeout:       v.GetDuration("writeTimeout"),
			ShutdownTimeout:    v.GetDuration("shutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("dbEngine"),
			Host:          v.GetString("dbHost"),
			Port:          v.GetInt("dbPort"),
			Name:          v.GetString("dbName"),
			User:          v.GetString("dbUser"),
			Password:      v.GetString("dbPassword"),
			AdminUser:     v.GetString("dbAdminUser"),
			AdminPassword: v.GetString("dbAdminPassword"),
			DisableTLS:    v.GetBool("dbDisableTLS"),
		},
		Mail: MailConfig{
			DefaultFromEmail: v.GetString("defaultFromEmail"),
			SendGridAPIKey:   v.GetString("sendGridAPIKey"),
		},
		Storage: StorageConfig{
			Bucket:          v.GetString("gcsBucket"),
			CredentialsFile: v.GetString("gcsCredentialsFile"),
			CredentialsJSON: v.GetString("gcsCredentialsJSON"),
			SignedURLExpiry: v.GetDuration("signedURLExpiry"),
		},
		AI: AIConfig{
			APIKey:      v.GetString("openAIAPIKey"),
			BaseURL:     v.GetString("openAIBaseURL"),
			Model:       v.GetString("openAIModel"),
			MaxTokens:   v.GetInt("openAIMaxTokens"),
			Temperature: float32(v.GetFloat64("openAITemperature")),
			RateLimit:   v.GetFloat64("aiRateLimit"),
			RateBurst:   v.GetInt("aiRateBurst"),
		},
		Redis: RedisConfig{
			Address:  v.GetString("redisAddress"),
			Password: v.GetString("redisPassword"),
			DB:       v.GetInt("redisDB"),
			TokenTTL: v.GetDuration("redisTokenTTL"),
		},
	}
}

// Address returns the host:port of the database server.
func (c DatabaseConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *Config) IsProd() bool { return c.Env == "PROD" }
