// Package audio converts decoded capture buffers into canonical 16-bit mono PCM WAV
// payloads and decodes WAV captures back into float samples.
package audio
