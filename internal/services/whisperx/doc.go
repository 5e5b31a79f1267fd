// Package whisperx wraps the two external tools diary analysis depends on:
// ffmpeg, which normalizes uploaded audio to 16kHz mono WAV, and WhisperX
// (run through uvx), which turns that WAV into text.
//
// A Service is built once per process and shared by every job. Transcription
// is serialized through a counting semaphore sized by
// transcription.max_concurrent because each WhisperX run loads a full model
// into memory.
package whisperx
