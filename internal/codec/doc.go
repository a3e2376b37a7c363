// Package codec converts between float sample buffers and the WAV bytes
// exchanged with the conversation server, and resamples between device and
// wire rates.
package codec
