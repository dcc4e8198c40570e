package syncer

import "chainsync/internal/model"

// SyncStats accumulates progress counters for one run. Each processing call
// fills its own value and the caller merges, so nothing is shared across
// concurrent work.
type SyncStats struct {
	BlocksProcessed       uint64
	TransactionsProcessed uint64
	EventsDecoded         uint64
	TokenTransfers        uint64
	Swaps                 uint64
	LiquidityEvents       uint64
	LendingEvents         uint64
	StakingEvents         uint64
	YieldEvents           uint64
	RawLogs               uint64
	Errors                uint64
	SkippedBlocks         uint64
	BlocksPerSecond       float64
}

// Merge folds other into s. The rate is carried by the engine, not merged.
func (s *SyncStats) Merge(other SyncStats) {
	s.BlocksProcessed += other.BlocksProcessed
	s.TransactionsProcessed += other.TransactionsProcessed
	s.EventsDecoded += other.EventsDecoded
	s.TokenTransfers += other.TokenTransfers
	s.Swaps += other.Swaps
	s.LiquidityEvents += other.LiquidityEvents
	s.LendingEvents += other.LendingEvents
	s.StakingEvents += other.StakingEvents
	s.YieldEvents += other.YieldEvents
	s.RawLogs += other.RawLogs
	s.Errors += other.Errors
	s.SkippedBlocks += other.SkippedBlocks
}

// Record counts one decoded event under its category.
func (s *SyncStats) Record(category model.Category) {
	s.EventsDecoded++
	switch category {
	case model.CategoryToken:
		s.TokenTransfers++
	case model.CategorySwap:
		s.Swaps++
	case model.CategoryLiquidity:
		s.LiquidityEvents++
	case model.CategoryLending:
		s.LendingEvents++
	case model.CategoryStaking:
		s.StakingEvents++
	case model.CategoryYield:
		s.YieldEvents++
	}
}

// ewma smooths a rate sample into the running average.
func ewma(current, sample float64) float64 {
	if current == 0 {
		return sample
	}
	return current*0.9 + sample*0.1
}
