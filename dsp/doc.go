// Package dsp implements the per-chunk audio conditioning stages of the
// call pipeline: acoustic echo cancellation and noise reduction.
//
// The stages are intentionally lightweight, real-time-feasible
// algorithms (NLMS adaptive filtering, spectral subtraction, spectral
// gating), not studio-grade processing. Every stage degrades safely: a
// chunk that cannot be processed is returned unmodified so the pipeline
// never loses audio to a DSP failure.
package dsp
