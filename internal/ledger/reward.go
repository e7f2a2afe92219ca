package ledger

import "xyron.node/xyn/internal/types"

// halvingEpoch returns floor(height / halvingInterval).
func halvingEpoch(height, halvingInterval uint64) uint64 {
	return height / halvingInterval
}

// baseReward returns initialReward / 2^epoch. Amounts are base units, so the
// result is exact for as many halvings as the initial reward has factors of
// two (ten for 36 tokens) and truncated to the base unit after that.
func baseReward(initialReward types.Amount, epoch uint64) types.Amount {
	if epoch >= 64 {
		return 0
	}
	return initialReward >> epoch
}

// clampReward limits reward to what is left under maxSupply.
func clampReward(reward, supply, maxSupply types.Amount) types.Amount {
	return min(reward, supplyLeft(supply, maxSupply))
}

// supplyLeft is maxSupply - supply, saturating at zero.
func supplyLeft(supply, maxSupply types.Amount) types.Amount {
	if supply >= maxSupply {
		return 0
	}
	return maxSupply - supply
}
