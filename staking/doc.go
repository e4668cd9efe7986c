// Package staking settles delegator rewards from the score-per-stake
// accumulators without iterating over delegators. Each delegator carries a
// checkpoint per (epoch, node); moving stake settles the difference first,
// and claims walk epochs strictly in order.
//
// The package also owns the operator fee lifecycle (delayed fee changes,
// per-epoch fee settlement, fee withdrawal and restaking) and delayed
// withdrawal of delegated stake.
package staking
