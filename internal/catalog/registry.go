package catalog

import (
	"fmt"

	"mediaforge/internal/domain"
)

// ModelCode identifies the adapter protocol family a model belongs to. The
// set is closed: the provider registry dispatches exhaustively on it.
type ModelCode string

const (
	CodeOpenAIGPTImage       ModelCode = "openai_gpt_image"
	CodeOpenAIDallE3         ModelCode = "openai_dalle3"
	CodeStabilityCore        ModelCode = "stability_core"
	CodeStabilitySD3         ModelCode = "stability_sd3"
	CodeBFLFluxPro           ModelCode = "bfl_flux_pro"
	CodeBFLFluxDev           ModelCode = "bfl_flux_dev"
	CodeReplicateFluxSchnell ModelCode = "replicate_flux_schnell"
	CodeReplicateSDXL        ModelCode = "replicate_sdxl"
	CodeLumaRay2             ModelCode = "luma_ray2"
	CodeLumaRayFlash         ModelCode = "luma_ray_flash"
)

// ModelDescriptor describes one selectable model. Descriptors are built once
// at process start from the static table below and never mutated.
type ModelDescriptor struct {
	Provider   string
	ModelID    string
	Code       ModelCode
	SetType    domain.SetType
	Dimensions []string
	Durations  []int
	BaseURL    string
	StatusURL  string
	Active     bool
}

var models = []ModelDescriptor{
	{
		Provider:   "openai",
		ModelID:    "gpt-image-1",
		Code:       CodeOpenAIGPTImage,
		SetType:    domain.SetTypeImageEdit,
		Dimensions: []string{"1024x1024", "1536x1024", "1024x1536"},
		BaseURL:    "https://api.openai.com/v1",
		Active:     true,
	},
	{
		Provider:   "openai",
		ModelID:    "dall-e-3",
		Code:       CodeOpenAIDallE3,
		SetType:    domain.SetTypeImageGenerate,
		Dimensions: []string{"1024x1024", "1792x1024", "1024x1792"},
		BaseURL:    "https://api.openai.com/v1",
		Active:     true,
	},
	{
		Provider:   "stability",
		ModelID:    "stable-image-core",
		Code:       CodeStabilityCore,
		SetType:    domain.SetTypeImageGenerate,
		Dimensions: []string{"1024x1024", "1152x896", "896x1152", "1344x768"},
		BaseURL:    "https://api.stability.ai/v2beta",
		Active:     true,
	},
	{
		Provider:   "stability",
		ModelID:    "sd3.5-large",
		Code:       CodeStabilitySD3,
		SetType:    domain.SetTypeImageEdit,
		Dimensions: []string{"1024x1024", "1152x896", "896x1152"},
		BaseURL:    "https://api.stability.ai/v2beta",
		Active:     true,
	},
	{
		Provider:   "bfl",
		ModelID:    "flux-pro-1.1",
		Code:       CodeBFLFluxPro,
		SetType:    domain.SetTypeImageGenerate,
		Dimensions: []string{"1024x1024", "1440x768", "768x1440"},
		BaseURL:    "https://api.bfl.ai/v1",
		StatusURL:  "https://api.bfl.ai/v1/get_result",
		Active:     true,
	},
	{
		Provider:   "bfl",
		ModelID:    "flux-dev",
		Code:       CodeBFLFluxDev,
		SetType:    domain.SetTypeImageGenerate,
		Dimensions: []string{"1024x1024", "1440x768", "768x1440"},
		BaseURL:    "https://api.bfl.ai/v1",
		StatusURL:  "https://api.bfl.ai/v1/get_result",
		Active:     true,
	},
	{
		Provider:   "replicate",
		ModelID:    "flux-schnell",
		Code:       CodeReplicateFluxSchnell,
		SetType:    domain.SetTypeImageGenerate,
		Dimensions: []string{"1024x1024", "1024x1792", "1792x1024"},
		BaseURL:    "https://api.replicate.com/v1",
		Active:     true,
	},
	{
		Provider:   "replicate",
		ModelID:    "sdxl",
		Code:       CodeReplicateSDXL,
		SetType:    domain.SetTypeImageGenerate,
		Dimensions: []string{"1024x1024", "1216x832", "832x1216"},
		BaseURL:    "https://api.replicate.com/v1",
		Active:     true,
	},
	{
		Provider:  "luma",
		ModelID:   "ray-2",
		Code:      CodeLumaRay2,
		SetType:   domain.SetTypeVideoImage,
		Durations: []int{5, 9},
		BaseURL:   "https://api.lumalabs.ai/dream-machine/v1",
		Active:    true,
	},
	{
		Provider:  "luma",
		ModelID:   "ray-flash-2",
		Code:      CodeLumaRayFlash,
		SetType:   domain.SetTypeVideoText,
		Durations: []int{5, 9},
		BaseURL:   "https://api.lumalabs.ai/dream-machine/v1",
		Active:    false,
	},
}

// Lookup resolves a model id to its descriptor.
func Lookup(modelID string) (ModelDescriptor, error) {
	for _, m := range models {
		if m.ModelID == modelID {
			return m, nil
		}
	}
	return ModelDescriptor{}, fmt.Errorf("lookup %q: %w", modelID, domain.ErrUnknownModel)
}

// Active returns every descriptor flagged as selectable.
func Active() []ModelDescriptor {
	out := make([]ModelDescriptor, 0, len(models))
	for _, m := range models {
		if m.Active {
			out = append(out, m)
		}
	}
	return out
}

// SupportsDimensions reports whether the descriptor accepts the dimensions
// string. An empty dimensions list accepts anything.
func (m ModelDescriptor) SupportsDimensions(dims string) bool {
	if len(m.Dimensions) == 0 {
		return true
	}
	for _, d := range m.Dimensions {
		if d == dims {
			return true
		}
	}
	return false
}
