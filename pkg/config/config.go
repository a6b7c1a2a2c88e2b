// Package config defines the server's startup configuration and validates
// it with struct tags.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Config holds every knob the server needs at startup. The wire protocol
// recognizes no runtime configuration (§6): everything here is fixed before
// the accept loop starts.
type Config struct {
	// ListenAddr is the TCP address the Acceptor binds, e.g. "0.0.0.0:8080".
	ListenAddr string `validate:"required,hostname_port"`

	// DataDir is the root directory holding wal.log and lsm_db/.
	DataDir string `validate:"required"`

	// MetricsAddr, if non-empty, is the address a Prometheus /metrics
	// handler listens on. Empty disables the metrics endpoint.
	MetricsAddr string `validate:"omitempty,hostname_port"`
}

// Default returns the startup configuration: bind 0.0.0.0:8080 (§6), data
// under ./redka-data, metrics endpoint disabled. The WAL size limit and the
// level base size are compiled-in constants (wal.MaxSize, lsm.LevelBaseSize),
// not Config fields.
func Default() Config {
	return Config{
		ListenAddr:  "0.0.0.0:8080",
		DataDir:     "./redka-data",
		MetricsAddr: "",
	}
}

// Validate checks c against its struct tags and returns the first
// validation failure in a human-readable form.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	return nil
}

func formatValidationError(err error) error {
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	for _, e := range validationErrs {
		field := e.Field()
		tag := e.Tag()
		param := e.Param()

		switch tag {
		case "required":
			return fmt.Errorf("%s: field is required", field)
		case "gt":
			return fmt.Errorf("%s: must be greater than %s", field, param)
		case "hostname_port":
			return fmt.Errorf("%s: must be a host:port address", field)
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, tag)
		}
	}
	return err
}
