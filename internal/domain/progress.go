package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// StrategyKind identifies which conversion strategy produced a task and
// which progress payload variant its message field carries.
type StrategyKind string

// Registered strategy kinds
const (
	StrategyLocal      StrategyKind = "local"
	StrategyCloudBatch StrategyKind = "cloud_batch"
	StrategyVision     StrategyKind = "vision"
)

// Progress payload errors
var (
	ErrUnknownStrategy = errors.New("unknown strategy kind")
	ErrEmptyProgress   = errors.New("progress payload cannot be empty")
)

// ProgressPayload is the strategy-specific detail carried in a task's
// message field. Each variant serializes with a strategy tag so polling
// clients can decode it deterministically.
type ProgressPayload interface {
	Kind() StrategyKind
}

// LocalProgress is reported by the synchronous in-process strategy.
type LocalProgress struct {
	SourceFile string `json:"source_file"`
	OutputPath string `json:"output_path,omitempty"`
}

// Kind returns the strategy tag for LocalProgress.
func (LocalProgress) Kind() StrategyKind { return StrategyLocal }

// CloudBatchProgress mirrors the remote batch job's per-unit progress.
// State carries the raw vendor state so clients see exactly what the
// remote service reported.
type CloudBatchProgress struct {
	BatchID   string `json:"batch_id"`
	State     string `json:"state"`
	Extracted int    `json:"extracted_pages"`
	Total     int    `json:"total_pages"`
	ZipURL    string `json:"zip_url,omitempty"`
}

// Kind returns the strategy tag for CloudBatchProgress.
func (CloudBatchProgress) Kind() StrategyKind { return StrategyCloudBatch }

// VisionProgress tracks per-page fan-out through the batch executor.
type VisionProgress struct {
	Model     string `json:"model"`
	Completed int    `json:"completed_pages"`
	Total     int    `json:"total_pages"`
	Failed    int    `json:"failed_pages,omitempty"`
}

// Kind returns the strategy tag for VisionProgress.
func (VisionProgress) Kind() StrategyKind { return StrategyVision }

// progressEnvelope wraps a payload with its strategy tag on the wire.
type progressEnvelope struct {
	Strategy StrategyKind    `json:"strategy"`
	Detail   json.RawMessage `json:"detail"`
}

// EncodeProgress serializes a progress payload into the tagged envelope
// stored in a task's message field.
func EncodeProgress(p ProgressPayload) (json.RawMessage, error) {
	if p == nil {
		return nil, ErrEmptyProgress
	}

	detail, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal progress detail: %w", err)
	}

	raw, err := json.Marshal(progressEnvelope{Strategy: p.Kind(), Detail: detail})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal progress envelope: %w", err)
	}

	return raw, nil
}

// DecodeProgress parses a task message back into its typed payload,
// dispatching on the envelope's strategy tag.
func DecodeProgress(raw json.RawMessage) (ProgressPayload, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyProgress
	}

	var env progressEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal progress envelope: %w", err)
	}

	switch env.Strategy {
	case StrategyLocal:
		var p LocalProgress
		if err := json.Unmarshal(env.Detail, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal local progress: %w", err)
		}
		return p, nil
	case StrategyCloudBatch:
		var p CloudBatchProgress
		if err := json.Unmarshal(env.Detail, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cloud batch progress: %w", err)
		}
		return p, nil
	case StrategyVision:
		var p VisionProgress
		if err := json.Unmarshal(env.Detail, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal vision progress: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, env.Strategy)
	}
}

// ParseStrategyKind validates a client-supplied strategy discriminator.
func ParseStrategyKind(s string) (StrategyKind, error) {
	switch StrategyKind(s) {
	case StrategyLocal, StrategyCloudBatch, StrategyVision:
		return StrategyKind(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}
