// Package devnet is an in-memory stand-in for every collaborator the
// incentive engines consume: a block and epoch clock, the knowledge
// collection directory, node identities, asks, publishing aggregates,
// token custody and reward pools. It lets incentived run without a chain
// and gives tests real wiring instead of per-call mocks.
package devnet
