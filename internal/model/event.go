package model

// Category classifies a decoded event.
type Category int

const (
	CategoryToken Category = iota
	CategorySwap
	CategoryLiquidity
	CategoryLending
	CategoryStaking
	CategoryYield
)

// String returns the sink measurement name for the category.
func (c Category) String() string {
	switch c {
	case CategoryToken:
		return "token_transfers"
	case CategorySwap:
		return "dex_swaps"
	case CategoryLiquidity:
		return "liquidity_events"
	case CategoryLending:
		return "lending_events"
	case CategoryStaking:
		return "staking_events"
	case CategoryYield:
		return "yield_events"
	default:
		return "unknown"
	}
}

// Event is a decoded log enriched with its originating position.
// A single log produces at most one Event.
type Event struct {
	Category    Category    `json:"-"`
	Name        string      `json:"event_name"`
	TxHash      string      `json:"tx_hash"`
	BlockNumber uint64      `json:"block_number"`
	LogIndex    uint64      `json:"log_index"`
	Timestamp   uint64      `json:"timestamp"`
	Contract    string      `json:"contract"`
	Payload     interface{} `json:"payload"`
}

// TokenTransferData is a decoded ERC-20/721/1155 transfer.
// Amount and TokenID are decimal strings so values above 64 bits survive
// the sink's field typing.
type TokenTransferData struct {
	Standard string `json:"standard"`
	From     string `json:"from"`
	To       string `json:"to"`
	Operator string `json:"operator,omitempty"`
	Amount   string `json:"amount"`
	TokenID  string `json:"token_id,omitempty"`
}

// SwapData is a decoded DEX swap. AmountIn/AmountOut are absolute values;
// Amount0/Amount1 keep the signed raw values for the two-word layout.
type SwapData struct {
	DexType   string `json:"dex_type"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	AmountIn  string `json:"amount_in"`
	AmountOut string `json:"amount_out"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
}

// LiquidityData is a decoded mint/burn liquidity change.
type LiquidityData struct {
	DexType   string `json:"dex_type"`
	EventType string `json:"event_type"`
	Provider  string `json:"provider"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
}

// LendingData is a decoded lending protocol event.
type LendingData struct {
	Protocol  string `json:"protocol"`
	EventType string `json:"event_type"`
	User      string `json:"user"`
	Token     string `json:"token"`
	Amount    string `json:"amount"`
}

// StakingData is a decoded staking event.
type StakingData struct {
	Protocol  string `json:"protocol"`
	EventType string `json:"event_type"`
	Staker    string `json:"staker"`
	Validator string `json:"validator,omitempty"`
	Amount    string `json:"amount"`
	Reward    string `json:"reward,omitempty"`
}

// YieldData is a decoded yield farming event.
type YieldData struct {
	Protocol  string `json:"protocol"`
	EventType string `json:"event_type"`
	Farmer    string `json:"farmer"`
	Token     string `json:"token"`
	Amount    string `json:"amount"`
}
