package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "collections-console", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "https://api.tiendanube.com/v1", cfg.Storefront.BaseURL)
		assert.Equal(t, "RobotWeb (24705)", cfg.Storefront.UserAgent)
		assert.Equal(t, 5*time.Second, cfg.Storefront.Timeout)
		assert.Equal(t, 8*time.Second, cfg.Financing.Timeout)
		assert.Equal(t, 3, cfg.Financing.Installments)
		assert.Equal(t, 374, cfg.Financing.OperatorUserID)
		assert.Equal(t, 465, cfg.Mail.Port)
		assert.Equal(t, DriverPostgres, cfg.Database.Driver)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.False(t, cfg.Redis.Enabled)
		assert.Equal(t, 30*time.Second, cfg.Guard.LockTTL)
		assert.Equal(t, "AR", cfg.App.PhoneRegion)
		assert.False(t, cfg.Database.AutoMigrate)
		assert.Zero(t, cfg.HTTP.ActionRateLimit)
	})

	t.Run("loads values from environment variables with CONSOLE prefix", func(t *testing.T) {
		t.Setenv("CONSOLE_APP_PORT", "9000")
		t.Setenv("CONSOLE_STOREFRONT_STORE_ID", "24705")
		t.Setenv("CONSOLE_STOREFRONT_ACCESS_TOKEN", "tn-token")
		t.Setenv("CONSOLE_FINANCING_API_KEY", "aria-key")
		t.Setenv("CONSOLE_FINANCING_TIMEOUT", "3s")
		t.Setenv("CONSOLE_DATABASE_DRIVER", "mysql")
		t.Setenv("CONSOLE_REDIS_ENABLED", "true")
		t.Setenv("CONSOLE_JWT_DEV_OPERATOR", "dev")
		t.Setenv("CONSOLE_HTTP_ACTION_RATE_LIMIT", "0.5")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "24705", cfg.Storefront.StoreID)
		assert.Equal(t, "tn-token", cfg.Storefront.AccessToken)
		assert.Equal(t, "aria-key", cfg.Financing.APIKey)
		assert.Equal(t, 3*time.Second, cfg.Financing.Timeout)
		assert.Equal(t, DriverMySQL, cfg.Database.Driver)
		assert.Equal(t, 3306, cfg.Database.Port)
		assert.True(t, cfg.Redis.Enabled)
		assert.Equal(t, "dev", cfg.JWT.DevOperator)
		assert.Equal(t, 0.5, cfg.HTTP.ActionRateLimit)
		assert.Equal(t, 1, cfg.HTTP.ActionRateBurst)
	})

	t.Run("rejects unknown database driver", func(t *testing.T) {
		t.Setenv("CONSOLE_DATABASE_DRIVER", "oracle")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.driver")
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		t.Setenv("CONSOLE_DATABASE_MAX_OPEN_CONNS", "5")
		t.Setenv("CONSOLE_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("jwt enabled requires a secret", func(t *testing.T) {
		t.Setenv("CONSOLE_JWT_ENABLED", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "jwt.secret")
	})
}

func TestValidate_Production(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{
			App:        AppConfig{Env: "production"},
			Storefront: StorefrontConfig{StoreID: "1", AccessToken: "t"},
			Financing:  FinancingConfig{APIKey: "k"},
			JWT:        JWTConfig{Enabled: true, Secret: "0123456789abcdef0123456789abcdef"},
			Database:   DatabaseConfig{Password: "secret"},
		}
		applyDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing storefront token", mutate: func(c *Config) { c.Storefront.AccessToken = "" }, wantErr: "storefront"},
		{name: "missing api key", mutate: func(c *Config) { c.Financing.APIKey = "" }, wantErr: "financing.api_key"},
		{name: "jwt disabled", mutate: func(c *Config) { c.JWT.Enabled = false }, wantErr: "jwt.enabled"},
		{name: "short secret", mutate: func(c *Config) { c.JWT.Secret = "short" }, wantErr: "32 characters"},
		{name: "wildcard cors", mutate: func(c *Config) { c.HTTP.CORSAllowOrigins = []string{"*"} }, wantErr: "cors"},
		{name: "sqlite needs no password", mutate: func(c *Config) {
			c.Database.Driver = DriverSQLite
			c.Database.Password = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name   string
		config DatabaseConfig
		want   string
	}{
		{
			name:   "postgres escapes credentials",
			config: DatabaseConfig{Driver: DriverPostgres, User: "app", Password: "p@ss word", Host: "db", Port: 5432, DBName: "collections", SSLMode: "require"},
			want:   "postgres://app:p%40ss%20word@db:5432/collections?sslmode=require",
		},
		{
			name:   "mysql",
			config: DatabaseConfig{Driver: DriverMySQL, User: "app", Password: "pw", Host: "db", Port: 3306, DBName: "collections"},
			want:   "app:pw@tcp(db:3306)/collections?charset=utf8mb4&parseTime=true&loc=UTC&multiStatements=true",
		},
		{
			name:   "sqlite",
			config: DatabaseConfig{Driver: DriverSQLite, DBName: "file:console.db"},
			want:   "file:console.db",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.config.DSN())
		})
	}
}
