// Package sampling implements proof-of-storage challenges: a node asks for
// a challenge once per proof period, gets a pseudo-random chunk of an active
// knowledge collection, and earns score by proving it holds that chunk.
package sampling
