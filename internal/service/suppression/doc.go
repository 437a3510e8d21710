// Package suppression implements the do-not-send list.
//
// The service keeps a normalized in-memory index of suppressed addresses
// so the dispatch hot path can check membership without a database round
// trip. Mutations write through to the repository and update the index
// synchronously, so an address added here is skipped by any send that
// reaches it afterwards.
package suppression
