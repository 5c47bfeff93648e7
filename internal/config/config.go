/**
 * @description
 * This package handles the configuration management for the person service.
 * Settings come from an optional .env file and the environment, read through
 * Viper, then normalised so the rest of the service can use them directly.
 *
 * @dependencies
 * - github.com/spf13/viper: configuration loading.
 * - github.com/sirupsen/logrus: warnings emitted while loading.
 */

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMongo    = "mongo"
	StorageDriverMemory   = "memory"

	EventDeliveryDirect = "direct"
	EventDeliveryOutbox = "outbox"
)

// Config holds all the configuration variables for the person service.
type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`

	StorageDriver string `mapstructure:"STORAGE_DRIVER"`
	DatabaseURL   string `mapstructure:"DATABASE_URL"`
	MongoURI      string `mapstructure:"MONGO_URI"`
	MongoDatabase string `mapstructure:"MONGO_DATABASE"`

	RabbitMQURL   string `mapstructure:"RABBITMQ_URL"`
	EventExchange string `mapstructure:"EVENT_EXCHANGE"`
	EventQueue    string `mapstructure:"EVENT_QUEUE"`
	EventDelivery string `mapstructure:"EVENT_DELIVERY"`

	KeycloakSchema       string `mapstructure:"KEYCLOAK_SCHEMA"`
	KeycloakHost         string `mapstructure:"KEYCLOAK_HOST"`
	KeycloakPort         string `mapstructure:"KEYCLOAK_PORT"`
	KeycloakRealm        string `mapstructure:"KEYCLOAK_REALM"`
	KeycloakClientID     string `mapstructure:"KEYCLOAK_CLIENT_ID"`
	KeycloakClientSecret string `mapstructure:"KEYCLOAK_CLIENT_SECRET"`
	KeycloakIssuer       string `mapstructure:"KEYCLOAK_ISSUER"`
	KeycloakAudience     string `mapstructure:"KEYCLOAK_AUDIENCE"`

	// Administrative user whose password-grant token drives the admin API.
	KeycloakAdminUsername string `mapstructure:"KEYCLOAK_ADMIN_USERNAME"`
	KeycloakAdminPassword string `mapstructure:"KEYCLOAK_ADMIN_PASSWORD"`

	RedisURL                   string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix       string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	MutationRateLimitPerMinute int    `mapstructure:"MUTATION_RATE_LIMIT_PER_MINUTE"`

	LogLevel        string `mapstructure:"LOG_LEVEL"`
	LogFormat       string `mapstructure:"LOG_FORMAT"`
	OTLPEndpoint    string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTELServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	OutboxPurgeSchedule  string `mapstructure:"OUTBOX_PURGE_SCHEDULE"`
	OutboxRetentionHours int    `mapstructure:"OUTBOX_RETENTION_HOURS"`

	EmployeeEmailDomain string `mapstructure:"EMPLOYEE_EMAIL_DOMAIN"`
}

// LoadConfig reads configuration from the optional .env file in path and from
// the environment.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("STORAGE_DRIVER", StorageDriverPostgres)
	viper.SetDefault("MONGO_DATABASE", "person")
	viper.SetDefault("EVENT_EXCHANGE", "omnixys.events")
	viper.SetDefault("EVENT_QUEUE", "person_service.system")
	viper.SetDefault("KEYCLOAK_SCHEMA", "http")
	viper.SetDefault("KEYCLOAK_HOST", "localhost")
	viper.SetDefault("KEYCLOAK_PORT", "8080")
	viper.SetDefault("KEYCLOAK_REALM", "camunda-platform")
	viper.SetDefault("KEYCLOAK_ADMIN_USERNAME", "admin")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "omnixys:person:rate_limit")
	viper.SetDefault("MUTATION_RATE_LIMIT_PER_MINUTE", 60)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "text")
	viper.SetDefault("OTEL_SERVICE_NAME", "person-service")
	viper.SetDefault("OUTBOX_PURGE_SCHEDULE", "@hourly")
	viper.SetDefault("OUTBOX_RETENTION_HOURS", 72)
	viper.SetDefault("EMPLOYEE_EMAIL_DOMAIN", "gentlecorp-systems.com")

	for _, key := range []string{
		"SERVER_PORT", "PORT",
		"STORAGE_DRIVER", "DATABASE_URL", "MONGO_URI", "MONGO_DATABASE",
		"RABBITMQ_URL", "EVENT_EXCHANGE", "EVENT_QUEUE", "EVENT_DELIVERY",
		"KEYCLOAK_SCHEMA", "KEYCLOAK_HOST", "KEYCLOAK_PORT", "KEYCLOAK_REALM",
		"KEYCLOAK_CLIENT_ID", "KEYCLOAK_CLIENT_SECRET", "KEYCLOAK_ISSUER", "KEYCLOAK_AUDIENCE",
		"KEYCLOAK_ADMIN_USERNAME", "KEYCLOAK_ADMIN_PASSWORD",
		"REDIS_URL", "REDIS_RATE_LIMIT_PREFIX", "MUTATION_RATE_LIMIT_PER_MINUTE",
		"LOG_LEVEL", "LOG_FORMAT", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_SERVICE_NAME",
		"OUTBOX_PURGE_SCHEDULE", "OUTBOX_RETENTION_HOURS",
		"EMPLOYEE_EMAIL_DOMAIN",
	} {
		_ = viper.BindEnv(key)
	}

	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			logrus.WithFields(logrus.Fields{"component": "config", "err": err}).
				Warn("failed to read config file; using environment values")
		}
		err = nil
	}

	if err = viper.Unmarshal(&config); err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.normalize()
	err = config.validate()
	return
}

func (c *Config) normalize() {
	c.StorageDriver = strings.ToLower(strings.TrimSpace(c.StorageDriver))
	c.EventDelivery = strings.ToLower(strings.TrimSpace(c.EventDelivery))
	if c.EventDelivery == "" {
		if c.StorageDriver == StorageDriverPostgres {
			c.EventDelivery = EventDeliveryOutbox
		} else {
			c.EventDelivery = EventDeliveryDirect
		}
	}
	c.KeycloakSchema = strings.TrimSuffix(strings.TrimSpace(c.KeycloakSchema), "://")
	c.KeycloakRealm = strings.TrimSpace(c.KeycloakRealm)
	c.RedisURL = strings.TrimSpace(c.RedisURL)
	c.RedisRateLimitPrefix = strings.TrimSpace(c.RedisRateLimitPrefix)
	if c.RedisRateLimitPrefix == "" {
		c.RedisRateLimitPrefix = "omnixys:person:rate_limit"
	}
	if c.MutationRateLimitPerMinute < 0 {
		c.MutationRateLimitPerMinute = 0
	}
	if c.OutboxRetentionHours <= 0 {
		c.OutboxRetentionHours = 72
	}
	c.EmployeeEmailDomain = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(c.EmployeeEmailDomain), "@"))
}

func (c *Config) validate() error {
	switch c.StorageDriver {
	case StorageDriverPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required for storage driver %q", c.StorageDriver)
		}
	case StorageDriverMongo:
		if strings.TrimSpace(c.MongoURI) == "" {
			return fmt.Errorf("MONGO_URI is required for storage driver %q", c.StorageDriver)
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}

	switch c.EventDelivery {
	case EventDeliveryDirect:
	case EventDeliveryOutbox:
		if c.StorageDriver == StorageDriverMongo {
			return fmt.Errorf("EVENT_DELIVERY=outbox is not supported with storage driver %q", c.StorageDriver)
		}
	default:
		return fmt.Errorf("unknown EVENT_DELIVERY %q", c.EventDelivery)
	}
	return nil
}

// KeycloakBaseURL is the root URL of the Keycloak server, without a trailing
// slash.
func (c Config) KeycloakBaseURL() string {
	base := fmt.Sprintf("%s://%s", c.KeycloakSchema, strings.TrimSpace(c.KeycloakHost))
	if port := strings.TrimSpace(c.KeycloakPort); port != "" {
		base += ":" + port
	}
	return base
}

// KeycloakIssuerURL is the expected "iss" claim of caller tokens.
func (c Config) KeycloakIssuerURL() string {
	if issuer := strings.TrimSpace(c.KeycloakIssuer); issuer != "" {
		return strings.TrimSuffix(issuer, "/")
	}
	return c.KeycloakBaseURL() + "/auth/realms/" + c.KeycloakRealm
}

// KeycloakJWKSURL is the realm's certificate endpoint.
func (c Config) KeycloakJWKSURL() string {
	return c.KeycloakBaseURL() + "/auth/realms/" + c.KeycloakRealm + "/protocol/openid-connect/certs"
}
