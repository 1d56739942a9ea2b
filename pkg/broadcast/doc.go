// Package broadcast propagates values to every node in the cluster using
// gossip anti-entropy.
//
// Each node stores the values it has seen in an append-only log, and keeps a
// cursor per neighbour recording how much of the log the neighbour has
// acknowledged. Each round sends every neighbour the suffix of the log past
// its cursor, and the cursor only moves once the neighbour acknowledges.
// So a failed transfer is simply included again in the next round.
//
// Values received from a neighbour are stored but never forwarded directly.
// They reach the rest of the cluster as the neighbour runs its own rounds.
package broadcast
