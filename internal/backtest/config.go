package backtest

import (
	"encoding/json"

	"github.com/ericfunman/boursicotor-sub000/pkg/errors"
	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"
)

// Config holds the simulation parameters for one backtest run. It is
// immutable for the duration of the run.
type Config struct {
	// InitialCapital is the starting capital for the run.
	InitialCapital float64 `yaml:"initial_capital" json:"initial_capital" validate:"required,gt=0"`
	// Commission is the commission rate as a fraction of notional (e.g. 0.001).
	Commission float64 `yaml:"commission" json:"commission" validate:"gte=0,lt=1"`
	// Slippage is the assumed adverse price movement as a fraction of price.
	Slippage float64 `yaml:"slippage" json:"slippage" validate:"gte=0,lt=1"`
	// MaxPositionSize caps the notional value of a single position. 0 means
	// no cap.
	MaxPositionSize float64 `yaml:"max_position_size" json:"max_position_size" validate:"gte=0"`
	// RiskPerTrade is the fraction of current capital committed per entry.
	RiskPerTrade float64 `yaml:"risk_per_trade" json:"risk_per_trade" validate:"required,gt=0,lte=1"`
}

// DefaultConfig returns a config with conservative retail defaults.
func DefaultConfig() Config {
	return Config{
		InitialCapital:  10000,
		Commission:      0.001,
		Slippage:        0.0005,
		MaxPositionSize: 0,
		RiskPerTrade:    0.1,
	}
}

// Validate validates the config.
func (c Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeBacktestConfigError, "invalid backtest config", err)
	}

	return nil
}

// ParseConfig parses and validates a YAML config.
func ParseConfig(data []byte) (Config, error) {
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeBacktestConfigError, "failed to parse backtest config", err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// ConfigSchema returns the JSON schema describing Config.
func ConfigSchema() (string, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = true
	schema := r.Reflect(&Config{})

	jsonSchemaBytes, err := json.Marshal(schema)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeBacktestConfigError, "failed to marshal config schema", err)
	}

	return string(jsonSchemaBytes), nil
}
