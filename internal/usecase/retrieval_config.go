package usecase

import (
	"fmt"
)

// AnalyzeConfig holds the context assembly limits of the analyze pipeline.
type AnalyzeConfig struct {
	// DefaultTopK is used when a request does not set TopK.
	DefaultTopK int
	// MaxTopK caps the TopK a request may ask for.
	MaxTopK int
	// RetrievalMultiplier widens the fused result before the top K are kept.
	RetrievalMultiplier int
	// StatuteLimit caps the distinct provisions looked up per request.
	StatuteLimit int
	// DarkZoneResolutionLimit caps the dark zones resolved per request.
	DarkZoneResolutionLimit int
	// StatuteSnippet, ResolutionSnippet and OriginalSnippet are rune limits
	// applied while assembling the context text.
	StatuteSnippet    int
	ResolutionSnippet int
	OriginalSnippet   int
}

// DefaultAnalyzeConfig returns the production limits.
func DefaultAnalyzeConfig() AnalyzeConfig {
	return AnalyzeConfig{
		DefaultTopK:             3,
		MaxTopK:                 50,
		RetrievalMultiplier:     2,
		StatuteLimit:            5,
		DarkZoneResolutionLimit: 3,
		StatuteSnippet:          500,
		ResolutionSnippet:       300,
		OriginalSnippet:         1000,
	}
}

// Validate checks if the configuration values are within acceptable ranges.
func (c AnalyzeConfig) Validate() error {
	if c.DefaultTopK <= 0 {
		return fmt.Errorf("defaultTopK must be positive, got %d", c.DefaultTopK)
	}
	if c.MaxTopK < c.DefaultTopK {
		return fmt.Errorf("maxTopK (%d) must not be below defaultTopK (%d)", c.MaxTopK, c.DefaultTopK)
	}
	if c.RetrievalMultiplier < 1 {
		return fmt.Errorf("retrievalMultiplier must be at least 1, got %d", c.RetrievalMultiplier)
	}
	if c.StatuteLimit < 0 || c.DarkZoneResolutionLimit < 0 {
		return fmt.Errorf("statute and dark zone limits must be non-negative")
	}
	if c.StatuteSnippet <= 0 || c.ResolutionSnippet <= 0 || c.OriginalSnippet <= 0 {
		return fmt.Errorf("snippet limits must be positive")
	}
	return nil
}
