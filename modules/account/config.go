package account

import "time"

// Config holds the account module configuration. PublicURL is the external
// base used to build absolute verification and reset links.
type Config struct {
	PublicURL      string        `env:"PUBLIC_URL,required"`
	SessionCookie  string        `env:"SESSION_COOKIE_NAME" envDefault:"session"`
	SessionMaxAge  time.Duration `env:"SESSION_MAX_AGE" envDefault:"720h"`
	VerifyTokenTTL time.Duration `env:"VERIFY_TOKEN_TTL" envDefault:"24h"`
	ResetTokenTTL  time.Duration `env:"RESET_TOKEN_TTL" envDefault:"1h"`
}
