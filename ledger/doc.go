// Package ledger is the persistent score and stake accumulator store.
//
// All mutations run inside Store.Update, one goleveldb transaction at a
// time. Each Update is opened with a Role and every writer method checks the
// role against a single permission table, so only the challenge engine, the
// proof verifier, the settlement engine and the parameter owner can touch
// their own records. Every accumulator change is also appended to a delta
// journal keyed by (epoch, sequence) so history can be replayed and audited
// independently of current values.
package ledger
