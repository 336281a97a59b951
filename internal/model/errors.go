package model

import "errors"

// Error taxonomy. Adapters and services wrap these with fmt.Errorf("...: %w", err).
var (
	ErrUpstreamUnavailable   = errors.New("upstream unavailable")
	ErrInvalidResponseFormat = errors.New("invalid response format")
	ErrPoolNotFound          = errors.New("pool not found")
	ErrInvalidIDFormat       = errors.New("invalid opportunity id format")
	ErrEnrichmentFailure     = errors.New("enrichment failure")
)
