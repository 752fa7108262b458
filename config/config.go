package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort string `envconfig:"HTTP_PORT" default:"4242"`

	PubMedBaseURL string `envconfig:"PUBMED_BASE_URL" default:"https://eutils.ncbi.nlm.nih.gov/entrez/eutils"`
	PubMedAPIKey  string `envconfig:"PUBMED_API_KEY"`
	ItemsPerPage  int    `envconfig:"ITEMS_PER_PAGE" default:"10"`

	// DeepL-Zugang; ohne Key startet der Dienst nicht.
	DeepLAPIKey     string `envconfig:"DEEPL_API_KEY" required:"true"`
	DeepLBaseURL    string `envconfig:"DEEPL_BASE_URL" default:"https://api.deepl.com/v2"`
	DeepLSourceLang string `envconfig:"DEEPL_SOURCE_LANG" default:"EN"`
	DeepLTargetLang string `envconfig:"DEEPL_TARGET_LANG" default:"JA"`
	DeepLMaxChunk   int    `envconfig:"DEEPL_MAX_CHUNK_SIZE" default:"4000"`

	// Leer lassen, um den geplanten Refresh zu deaktivieren.
	CronSchedule string `envconfig:"CRON_SCHEDULE"`

	// Optionales S3-Archiv für rohe efetch-Seiten.
	ArchiveS3Key    string `envconfig:"ARCHIVE_S3_KEY"`
	ArchiveS3Secret string `envconfig:"ARCHIVE_S3_SECRET"`
	ArchiveS3URL    string `envconfig:"ARCHIVE_S3_URL"`
	ArchiveS3Region string `envconfig:"ARCHIVE_S3_REGION"`
	ArchiveS3Bucket string `envconfig:"ARCHIVE_S3_BUCKET"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// ArchiveEnabled meldet, ob das S3-Archiv konfiguriert ist.
func (c *Config) ArchiveEnabled() bool {
	return c.ArchiveS3URL != "" && c.ArchiveS3Bucket != ""
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
