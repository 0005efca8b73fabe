package domain

import "github.com/shopspring/decimal"

// SetType enumerates supported generation workflows.
type SetType string

const (
	SetTypeImageGenerate SetType = "image_generate"
	SetTypeImageEdit     SetType = "image_edit"
	SetTypeVideoText     SetType = "video_text"
	SetTypeVideoImage    SetType = "video_image"
)

// IsVideo reports whether the set type produces video media.
func (t SetType) IsVideo() bool {
	return t == SetTypeVideoText || t == SetTypeVideoImage
}

// GenerationRequest is the canonical, backend-agnostic request shape. It is
// created by the caller, never mutated, and shared by every sub-request of a
// fan-out group.
type GenerationRequest struct {
	ModelID         string
	Prompt          string
	NegativePrompt  string
	Style           string
	Quality         string
	Variant         string
	Dimensions      string // "WxH", e.g. "1024x1792"
	ClientImage     string // base64, optional conditioning input
	ClientMask      string // base64, optional edit mask
	CredentialRef   string // overrides the provider default secret name
	Count           int
	DurationSeconds int
	MotionStrength  int
	EditRegion      string
}

// ResultStatus enumerates canonical per-sub-request outcomes.
type ResultStatus string

const (
	ResultGenerated ResultStatus = "generated"
	ResultFailed    ResultStatus = "failed"
)

// ErrorCode classifies canonical failures carried inside a GenerationResult.
type ErrorCode string

const (
	CodeGeneratorError    ErrorCode = "GENERATOR_ERROR"
	CodeModelError        ErrorCode = "MODEL_ERROR"
	CodeTransportError    ErrorCode = "TRANSPORT_ERROR"
	CodeTransformResponse ErrorCode = "TRANSFORM_RESPONSE_ERROR"
	CodeDecodeError       ErrorCode = "DECODE_ERROR"
	CodeStorageError      ErrorCode = "STORAGE_ERROR"
	CodePollTimeout       ErrorCode = "POLL_TIMEOUT"
	CodeUnknownModel      ErrorCode = "UNKNOWN_MODEL"
)

// GenerationResult is the canonical outcome of one sub-request. Adapters
// produce it; the orchestrator enriches it with artifact metadata on success.
type GenerationResult struct {
	Status        ResultStatus
	Payload       string // base64 media when Status is generated
	MIME          string
	ErrorCode     ErrorCode
	ErrorMessage  string
	Cost          decimal.Decimal
	RevisedPrompt string
	Palette       []string
	ByteSize      int64
	ArtifactID    string
}

// Failed reports whether the result carries a failure.
func (r GenerationResult) Failed() bool {
	return r.Status != ResultGenerated
}

// FailedResult builds a canonical failure with the given code and message.
func FailedResult(code ErrorCode, message string) GenerationResult {
	return GenerationResult{Status: ResultFailed, ErrorCode: code, ErrorMessage: message}
}
