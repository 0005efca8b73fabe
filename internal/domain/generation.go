package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// GenerationSet groups the artifacts produced by a single job. It is created
// atomically with its generations and is the sole owner of them.
type GenerationSet struct {
	ID         string
	SetType    SetType
	Prompt     string
	Style      string
	Dimensions string
	CreatedAt  time.Time
}

// Generation is one persisted artifact. Tiered media files on the blob store
// are named by convention: the original under the generation id, downscaled
// tiers under {id}_o50, {id}_o20 and {id}_o04, client inputs under
// {id}_client and {id}_mask.
type Generation struct {
	ID            string
	SetID         string
	ModelID       string
	Prompt        string
	RevisedPrompt string
	Dimensions    string
	ByteSize      int64
	Cost          decimal.Decimal
	CostUnit      string
	Status        string
	Palette       []string
	CreatedAt     time.Time
}

// Tier suffixes for downscaled derivatives of a generation's original media.
const (
	TierSuffix50     = "_o50"
	TierSuffix20     = "_o20"
	TierSuffix04     = "_o04"
	FrameSuffix      = "_frame"
	ClientCopySuffix = "_client"
	MaskCopySuffix   = "_mask"
)
