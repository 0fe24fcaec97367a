package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DataBackend identifica la implementación del cliente de datos
const (
	DataBackendPostgres = "postgres"
	DataBackendMemory   = "memory"
)

// Config representa la configuración del servidor
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	DataBackend string
	Redis       RedisConfig
	Cache       CacheConfig
	Inngest     InngestConfig
	Logging     LoggingConfig
	Email       EmailConfig
	Supabase    SupabaseConfig
	Admin       AdminConfig
}

// ServerConfig representa la configuración del servidor HTTP
type ServerConfig struct {
	Port    string
	Host    string
	Env     string
	BaseURL string
}

// DatabaseConfig representa la configuración de la base de datos
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// RedisConfig representa la configuración de Redis
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// CacheConfig representa la configuración del caché de consultas
type CacheConfig struct {
	TTL time.Duration
}

// InngestConfig representa la configuración de Inngest
type InngestConfig struct {
	EventKey   string
	SigningKey string
	AppID      string
	Dev        bool
}

// LoggingConfig representa la configuración de logging
type LoggingConfig struct {
	Level  string
	Format string
}

// EmailConfig representa la configuración de email
type EmailConfig struct {
	Host         string
	Port         int
	Username     string
	Password     string
	FromAddress  string
	FromName     string
	ResendAPIKey string
}

// SupabaseConfig representa la configuración del storage de Supabase
type SupabaseConfig struct {
	StorageEndpoint string
	StorageRegion   string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	PublicURL       string
}

// AdminConfig representa la configuración de acceso al panel
type AdminConfig struct {
	APIKey         string
	SessionHashKey string
	SessionTTL     time.Duration
}

// Load carga la configuración desde variables de entorno
func Load() (*Config, error) {
	// El archivo .env es opcional
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Port:    getEnv("SERVER_PORT", "8080"),
			Host:    getEnv("SERVER_HOST", "0.0.0.0"),
			Env:     getEnv("SERVER_ENV", "development"),
			BaseURL: getEnv("SERVER_BASE_URL", "http://localhost:8080"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("PGHOST", "localhost"),
			Port:     getEnv("PGPORT", "5432"),
			User:     getEnv("PGUSER", "postgres"),
			Password: getEnv("PGPASSWORD", "postgres"),
			Name:     getEnv("PGDATABASE", "nfse"),
			SSLMode:  getEnv("DB_SSLMODE", "require"),
		},
		DataBackend: getEnv("DATA_BACKEND", DataBackendPostgres),
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Cache: CacheConfig{
			TTL: getEnvAsDuration("CACHE_TTL", 15*time.Second),
		},
		Inngest: InngestConfig{
			EventKey:   getEnv("INNGEST_EVENT_KEY", ""),
			SigningKey: getEnv("INNGEST_SIGNING_KEY", ""),
			AppID:      getEnv("INNGEST_APP_ID", "nfse-dashboard"),
			Dev:        getEnvAsBool("INNGEST_DEV", true),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Email: EmailConfig{
			Host:         getEnv("SMTP_HOST", ""),
			Port:         getEnvAsInt("SMTP_PORT", 587),
			Username:     getEnv("SMTP_USERNAME", ""),
			Password:     getEnv("SMTP_PASSWORD", ""),
			FromAddress:  getEnv("EMAIL_FROM_ADDRESS", "sistema@empresa.com"),
			FromName:     getEnv("EMAIL_FROM_NAME", "Sistema NFSe"),
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
		},
		Supabase: SupabaseConfig{
			StorageEndpoint: getEnv("SUPABASE_STORAGE_ENDPOINT", ""),
			StorageRegion:   getEnv("SUPABASE_STORAGE_REGION", ""),
			AccessKeyID:     getEnv("SUPABASE_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("SUPABASE_SECRET_ACCESS_KEY", ""),
			Bucket:          getEnv("SUPABASE_STORAGE_BUCKET", "nfse-exports"),
			PublicURL:       getEnv("SUPABASE_PUBLIC_URL", ""),
		},
		Admin: AdminConfig{
			APIKey:         getEnv("ADMIN_API_KEY", ""),
			SessionHashKey: getEnv("SESSION_HASH_KEY", "change-me-session-hash-key-32-bytes!"),
			SessionTTL:     getEnvAsDuration("SESSION_TTL", 8*time.Hour),
		},
	}

	return config, nil
}

// getEnv obtiene una variable de entorno o retorna un valor por defecto
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt obtiene una variable de entorno como entero
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool obtiene una variable de entorno como booleano
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration obtiene una variable de entorno como duración
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// IsDevelopment retorna true si el entorno es de desarrollo
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction retorna true si el entorno es de producción
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// GetDSN retorna la cadena de conexión a la base de datos
func (c *Config) GetDSN() string {
	return "host=" + c.Database.Host +
		" port=" + c.Database.Port +
		" user=" + c.Database.User +
		" password=" + c.Database.Password +
		" dbname=" + c.Database.Name +
		" sslmode=" + c.Database.SSLMode
}

// GetRedisAddr retorna la dirección de Redis
func (c *Config) GetRedisAddr() string {
	return c.Redis.Host + ":" + c.Redis.Port
}

// RedisEnabled indica si se configuró un host de Redis
func (c *Config) RedisEnabled() bool {
	return c.Redis.Host != ""
}

// StorageEnabled indica si el storage de Supabase tiene credenciales
func (c *Config) StorageEnabled() bool {
	return c.Supabase.StorageEndpoint != "" && c.Supabase.AccessKeyID != "" && c.Supabase.SecretAccessKey != ""
}
