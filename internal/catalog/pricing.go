package catalog

import "github.com/shopspring/decimal"

// Unit distinguishes the two mutually exclusive cost-accounting units.
type Unit string

const (
	UnitDollar Unit = "dollar"
	UnitCredit Unit = "credit"
)

type pricing struct {
	unit      Unit
	base      decimal.Decimal
	perSecond bool
	// quality multiplier applied when the request names a matching quality.
	quality map[string]decimal.Decimal
}

func dollars(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var priceTable = map[ModelCode]pricing{
	CodeOpenAIGPTImage: {
		unit: UnitDollar,
		base: dollars("0.04"),
		quality: map[string]decimal.Decimal{
			"low":  dollars("0.25"),
			"high": dollars("4.25"),
		},
	},
	CodeOpenAIDallE3: {
		unit: UnitDollar,
		base: dollars("0.04"),
		quality: map[string]decimal.Decimal{
			"hd": dollars("2"),
		},
	},
	CodeStabilityCore:        {unit: UnitCredit, base: dollars("3")},
	CodeStabilitySD3:         {unit: UnitCredit, base: dollars("6.5")},
	CodeBFLFluxPro:           {unit: UnitDollar, base: dollars("0.04")},
	CodeBFLFluxDev:           {unit: UnitDollar, base: dollars("0.025")},
	CodeReplicateFluxSchnell: {unit: UnitDollar, base: dollars("0.003")},
	CodeReplicateSDXL:        {unit: UnitDollar, base: dollars("0.0095")},
	CodeLumaRay2:             {unit: UnitDollar, base: dollars("0.08"), perSecond: true},
	CodeLumaRayFlash:         {unit: UnitDollar, base: dollars("0.02"), perSecond: true},
}

// CostUnit reports whether the model bills in credits or dollars. Unknown
// codes default to dollars so display formatting stays consistent.
func CostUnit(code ModelCode) Unit {
	if p, ok := priceTable[code]; ok {
		return p.unit
	}
	return UnitDollar
}

// EstimateCost is a pure lookup: base price per item, scaled by a quality
// multiplier when one applies, by duration for time-priced video models, and
// by the requested count. Dimensions participate only through quality tiers
// today but stay in the signature so callers never need to change.
func EstimateCost(code ModelCode, quality, dimensions string, count, durationSeconds int) decimal.Decimal {
	p, ok := priceTable[code]
	if !ok {
		return decimal.Zero
	}
	if count <= 0 {
		count = 1
	}
	per := p.base
	if mult, ok := p.quality[quality]; ok {
		per = per.Mul(mult)
	}
	if p.perSecond {
		seconds := durationSeconds
		if seconds <= 0 {
			seconds = 5
		}
		per = per.Mul(decimal.NewFromInt(int64(seconds)))
	}
	return per.Mul(decimal.NewFromInt(int64(count)))
}
