// Package events is the engine's notification sink.
//
// Components publish structured events (a completed sync, deleted or renamed tags)
// to a Bus. Callers either register handlers or take a buffered channel and poll it.
// Delivery is fire-and-forget: publishers never wait for acknowledgement, a slow
// channel subscriber loses events instead of blocking the engine, and a panicking
// handler is logged and skipped.
package events
