package domain

import "strings"

// TokenCounter estimates the number of model tokens in a text.
type TokenCounter interface {
	Count(text string) int
}

// WordTokenCounter approximates tokens as 1.3 per whitespace-separated word.
type WordTokenCounter struct{}

func (WordTokenCounter) Count(text string) int {
	return int(float64(len(strings.Fields(text))) * 1.3)
}
