// Package llm generates assistant responses. A Service abstracts the
// language-model provider; ResponseGenerator wraps one with the
// conversation history, the voice-oriented post-processing, and the
// fallback replies used when the provider is unavailable.
package llm
