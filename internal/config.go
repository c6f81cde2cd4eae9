package internal

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	BadgerFilepath  string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath   string `env:"BLUGE_FILEPATH,required=true"`
	LogLevel        string `env:"LOG_LEVEL,required=true"`
	AllowGroups     bool   `env:"ALLOW_GROUPS,default=false"`
	MaxSubscription *int   `env:"MAX_SUBSCRIPTIONS"`

	PollInterval      time.Duration `env:"POLL_INTERVAL,required=true" validate:"gt=0"`
	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL,required=true" validate:"gt=0"`
	TelemetryInterval time.Duration `env:"TELEMETRY_INTERVAL,required=true" validate:"gt=0"`
	RestartInterval   time.Duration `env:"RESTART_INTERVAL,required=true" validate:"gt=0"`
	FeedTimeout       time.Duration `env:"FEED_TIMEOUT,required=true" validate:"gt=0"`

	QueueSize       int `env:"QUEUE_SIZE,required=true" validate:"gt=0"`
	Parallelism     int `env:"PARALLELISM,required=true" validate:"gt=0"`
	MaxItemsPerPoll int `env:"MAX_ITEMS_PER_POLL,required=true" validate:"gt=0"`

	DeliveryMaxAttempts     int           `env:"DELIVERY_MAX_ATTEMPTS,required=true" validate:"gte=1"`
	DeliveryRetryBase       time.Duration `env:"DELIVERY_RETRY_BASE,required=true" validate:"gt=0"`
	DeliveryRetryMultiplier float64       `env:"DELIVERY_RETRY_MULTIPLIER,default=2.0" validate:"gte=1"`
	DeliveryRetryCap        time.Duration `env:"DELIVERY_RETRY_CAP,required=true" validate:"gt=0"`

	CensoredWordsPath string `env:"CENSORED_WORDS_PATH"`
	CharReplacement   string `env:"CHARACTER_REPLACEMENT,default=*"`
}

var validate = validator.New()

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.DeliveryRetryCap < c.DeliveryRetryBase {
		return fmt.Errorf("DELIVERY_RETRY_CAP must be >= DELIVERY_RETRY_BASE")
	}
	if _, err := CharacterRune(c.CharReplacement); err != nil {
		return err
	}
	return nil
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
