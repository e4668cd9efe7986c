// Package events defines the notifications emitted by the incentive engine.
// Each notification flattens into an Event with string attributes so an
// indexer can rebuild history without replaying the engine's arithmetic.
package events
