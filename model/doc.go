// Package model defines the text-generation capability consumed by agents
// and the normalized request/response structures shared by all provider
// adapters (model/openai, model/anthropic). Retry classification of provider
// failures happens through StatusError; the retry package is the only place
// backoff logic lives.
package model
