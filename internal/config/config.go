package config

// Config holds server configuration sourced from the environment
type Config struct {
	Port      string
	MongoURI  string
	MongoDB   string
	RedisAddr string
	JWTSecret string

	StaffUsername string
	StaffPassword string
}

// Load reads configuration from environment variables with local defaults
func Load() *Config {
	return &Config{
		Port:          getEnvOrDefault("PORT", "8080"),
		MongoURI:      getEnvOrDefault("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:       getEnvOrDefault("MONGO_DB", "proctorly"),
		RedisAddr:     getEnvOrDefault("REDIS_URI", "localhost:6379"),
		JWTSecret:     getEnvOrDefault("JWT_SECRET", "dev-secret-change-in-production"),
		StaffUsername: getEnvOrDefault("STAFF_USERNAME", "admin"),
		StaffPassword: getEnvOrDefault("STAFF_PASSWORD", "password123"),
	}
}
