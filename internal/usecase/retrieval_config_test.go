package usecase_test

import (
	"testing"

	"legal-rag/internal/usecase"

	"github.com/stretchr/testify/assert"
)

func TestAnalyzeConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *usecase.AnalyzeConfig)
		wantErr bool
	}{
		{"defaults", func(c *usecase.AnalyzeConfig) {}, false},
		{"zero default top k", func(c *usecase.AnalyzeConfig) { c.DefaultTopK = 0 }, true},
		{"max below default", func(c *usecase.AnalyzeConfig) { c.MaxTopK = 2 }, true},
		{"zero multiplier", func(c *usecase.AnalyzeConfig) { c.RetrievalMultiplier = 0 }, true},
		{"negative statute limit", func(c *usecase.AnalyzeConfig) { c.StatuteLimit = -1 }, true},
		{"statutes disabled", func(c *usecase.AnalyzeConfig) { c.StatuteLimit = 0; c.DarkZoneResolutionLimit = 0 }, false},
		{"zero snippet", func(c *usecase.AnalyzeConfig) { c.OriginalSnippet = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := usecase.DefaultAnalyzeConfig()
			tt.modify(&cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}
