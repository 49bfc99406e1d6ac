package reader

import (
	"github.com/go-playground/validator/v10"

	"github.com/mblythe/vellum/logger"
)

// ParsingMode selects the fault policy for a document session.
type ParsingMode string

const (
	// Strict aborts on the first recoverable fault.
	Strict ParsingMode = "strict"
	// BestEffort records faults and substitutes safe values, aborting only
	// on I/O and allocation failures.
	BestEffort ParsingMode = "best-effort"
)

// Config carries the per-document session policy.
type Config struct {
	ParsingMode ParsingMode `validate:"oneof=strict best-effort"`
	// CacheCapacity is the number of resolved objects kept live by the
	// resolver's cache.
	CacheCapacity int `validate:"min=1"`
	// MaxResolveDepth bounds reference chains and page tree recursion.
	MaxResolveDepth int `validate:"min=1"`
	// MaxRepairScanSize caps how many bytes the repair scan will load when
	// the cross-reference table cannot be used.
	MaxRepairScanSize int64 `validate:"min=1"`
	Logger            logger.LogFunc
}

// NewDefaultConfig returns the best-effort defaults.
func NewDefaultConfig() *Config {
	return &Config{
		ParsingMode:       BestEffort,
		CacheCapacity:     32,
		MaxResolveDepth:   100,
		MaxRepairScanSize: 256 << 20,
	}
}

// Validate checks the configuration bounds.
func (cfg *Config) Validate() error {
	validate := validator.New()
	return validate.Struct(cfg)
}
