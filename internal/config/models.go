package config

// DatabaseConfig represents the configuration for the historical email store
type DatabaseConfig struct {
	Driver     string
	MySQLDSN   string
	SQLitePath string
}

// TrainingConfig represents the configuration for corpus building and
// model selection
type TrainingConfig struct {
	MinSamples   int
	WindowDays   int
	MaxRows      int
	TestFraction float64
	Seed         int64
	MinNewEmails int
}

// CacheConfig represents the configuration for the signal cache
type CacheConfig struct {
	Type      string
	Enabled   bool
	RedisAddr string
}

// ModelsConfig represents the configuration for model storage and inference
type ModelsConfig struct {
	Dir                 string
	ImportanceThreshold float64
}

// GetDatabase returns the database configuration
func (c *Config) GetDatabase() DatabaseConfig {
	return DatabaseConfig{
		Driver:     c.GetString("database.driver"),
		MySQLDSN:   c.GetString("database.mysql_dsn"),
		SQLitePath: c.GetString("database.sqlite_path"),
	}
}

// GetTraining returns the training configuration
func (c *Config) GetTraining() TrainingConfig {
	return TrainingConfig{
		MinSamples:   c.GetInt("training.min_samples"),
		WindowDays:   c.GetInt("training.window_days"),
		MaxRows:      c.GetInt("training.max_rows"),
		TestFraction: c.GetFloat64("training.test_fraction"),
		Seed:         c.GetInt64("training.seed"),
		MinNewEmails: c.GetInt("training.min_new_emails"),
	}
}

// GetCache returns the signal cache configuration
func (c *Config) GetCache() CacheConfig {
	return CacheConfig{
		Type:      c.GetString("cache.type"),
		Enabled:   c.GetBool("cache.enabled"),
		RedisAddr: c.GetString("cache.redis_addr"),
	}
}

// GetModels returns the model storage configuration
func (c *Config) GetModels() ModelsConfig {
	return ModelsConfig{
		Dir:                 c.GetString("models.dir"),
		ImportanceThreshold: c.GetFloat64("models.importance_threshold"),
	}
}
