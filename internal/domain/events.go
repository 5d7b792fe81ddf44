package domain

import "time"

// Collection names the store partitions core state into.
type Collection string

const (
	CollectionAccounts      Collection = "accounts"
	CollectionTransactions  Collection = "transactions"
	CollectionOrders        Collection = "orders"
	CollectionBets          Collection = "bets"
	CollectionDares         Collection = "dares"
	CollectionMarketHistory Collection = "market_history"
	CollectionMeta          Collection = "meta"
)

// AllCollections lists every persisted collection in commit order.
var AllCollections = []Collection{
	CollectionAccounts,
	CollectionTransactions,
	CollectionOrders,
	CollectionBets,
	CollectionDares,
	CollectionMarketHistory,
	CollectionMeta,
}

// Event types
const (
	EventTypeAccountsChanged = "accounts.changed"
	EventTypeTransferPosted  = "transfer.posted"
	EventTypeOrderSubmitted  = "order.submitted"
	EventTypeOrderCancelled  = "order.cancelled"
	EventTypeBetCreated      = "bet.created"
	EventTypeWagerPlaced     = "bet.wager_placed"
	EventTypeBetResolved     = "bet.resolved"
	EventTypeDareCreated     = "dare.created"
	EventTypePledgeAdded     = "dare.pledged"
	EventTypeDareResolved    = "dare.resolved"
)

// ChangeEvent notifies downstream subscribers that a command committed.
// It carries what changed, not the new state; subscribers re-read.
type ChangeEvent struct {
	Seq         int64        `json:"seq"`
	Type        string       `json:"type"`
	AggregateID string       `json:"aggregateId,omitempty"`
	Collections []Collection `json:"collections"`
	At          time.Time    `json:"at"`
}
