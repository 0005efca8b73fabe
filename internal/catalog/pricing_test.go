package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestEstimateCostBasePrice(t *testing.T) {
	got := EstimateCost(CodeReplicateFluxSchnell, "", "1024x1024", 1, 0)
	if !got.Equal(decimal.RequireFromString("0.003")) {
		t.Fatalf("cost = %s, want 0.003", got)
	}
}

func TestEstimateCostQualityMultiplier(t *testing.T) {
	base := EstimateCost(CodeOpenAIDallE3, "", "1024x1024", 1, 0)
	hd := EstimateCost(CodeOpenAIDallE3, "hd", "1024x1024", 1, 0)
	if !hd.Equal(base.Mul(decimal.NewFromInt(2))) {
		t.Fatalf("hd = %s, want double of %s", hd, base)
	}
}

func TestEstimateCostScalesWithCount(t *testing.T) {
	one := EstimateCost(CodeStabilityCore, "", "1024x1024", 1, 0)
	four := EstimateCost(CodeStabilityCore, "", "1024x1024", 4, 0)
	if !four.Equal(one.Mul(decimal.NewFromInt(4))) {
		t.Fatalf("four = %s, want 4x %s", four, one)
	}
}

func TestEstimateCostZeroCountPricedAsOne(t *testing.T) {
	zero := EstimateCost(CodeBFLFluxPro, "", "1024x1024", 0, 0)
	one := EstimateCost(CodeBFLFluxPro, "", "1024x1024", 1, 0)
	if !zero.Equal(one) {
		t.Fatalf("zero count = %s, want %s", zero, one)
	}
}

func TestEstimateCostVideoPerSecond(t *testing.T) {
	nine := EstimateCost(CodeLumaRay2, "", "", 1, 9)
	want := decimal.RequireFromString("0.72")
	if !nine.Equal(want) {
		t.Fatalf("9s cost = %s, want %s", nine, want)
	}

	// Missing duration falls back to the five second default.
	fallback := EstimateCost(CodeLumaRay2, "", "", 1, 0)
	if !fallback.Equal(decimal.RequireFromString("0.4")) {
		t.Fatalf("default duration cost = %s, want 0.4", fallback)
	}
}

func TestEstimateCostUnknownCode(t *testing.T) {
	if got := EstimateCost(ModelCode("nope"), "", "", 3, 0); !got.IsZero() {
		t.Fatalf("cost = %s, want zero", got)
	}
}

func TestCostUnit(t *testing.T) {
	if CostUnit(CodeStabilityCore) != UnitCredit {
		t.Fatal("stability should bill in credits")
	}
	if CostUnit(CodeOpenAIDallE3) != UnitDollar {
		t.Fatal("openai should bill in dollars")
	}
	if CostUnit(ModelCode("nope")) != UnitDollar {
		t.Fatal("unknown codes default to dollars")
	}
}
