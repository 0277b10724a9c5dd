// Package config loads typed configuration from the environment.
//
// It combines github.com/joho/godotenv, which reads dotenv files, with
// github.com/caarlos0/env/v11, which maps variables onto struct fields
// through `env` and `envDefault` tags.
//
//	type Config struct {
//		Dispatch dispatch.Config
//		HTTP     httptask.Config
//	}
//
//	cfg, err := config.Load[Config](config.WithEnvFiles(".env", ".env.local"))
//	if err != nil {
//		return err
//	}
//
// Values are resolved in this order, last one winning: envDefault tags,
// dotenv files in the order given, the process environment. Without
// WithEnvFiles a ./.env file is read when present. WithEnvironment replaces
// the process environment, which keeps tests hermetic.
package config
