// Package pipeline binds the concrete stages to the two job kinds.
//
// Diary analysis runs Normalize, Transcribe, ClassifyEmotion,
// GenerateNarrative, GenerateTitle and GenerateAdvice in that order. The
// ClassifyEmotion step is guarded: a transcript shorter than the configured
// minimum ends the job FAILED before any emotion or generation call is made.
//
// Feedback analysis has a single ExtractKeywords step behind an entry guard
// that skips blank or too-short comments without running anything. Keyword
// rows are derived from the output and committed with the COMPLETED status.
//
// Each stage depends on a narrow capability interface so tests can swap in
// stubs; New wires the production implementations from config.
package pipeline
