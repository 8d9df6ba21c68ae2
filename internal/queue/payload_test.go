package queue

import (
	"errors"
	"testing"
)

func TestPayloadValidate(t *testing.T) {
	tests := []struct {
		name    string
		payload Payload
		valid   bool
	}{
		{
			"valid cluster",
			Payload{Kind: KindIdentityCluster, Cluster: &ClusterPayload{
				SourceRefs: []string{"https://example.com/a.jpg"},
				BatchRef:   "batch-1",
			}},
			true,
		},
		{
			"cluster without images",
			Payload{Kind: KindIdentityCluster, Cluster: &ClusterPayload{BatchRef: "batch-1"}},
			false,
		},
		{
			"cluster without batch ref",
			Payload{Kind: KindIdentityCluster, Cluster: &ClusterPayload{SourceRefs: []string{"a"}}},
			false,
		},
		{
			"cluster threshold out of range",
			Payload{Kind: KindIdentityCluster, Cluster: &ClusterPayload{
				SourceRefs: []string{"a"}, BatchRef: "b", MatchThreshold: 1.5,
			}},
			false,
		},
		{
			"valid generate",
			Payload{Kind: KindConstrainedGenerate, Generate: &GeneratePayload{
				IdentityID:     1,
				PromptTemplate: "portrait, {face}",
			}},
			true,
		},
		{
			"generate without identity",
			Payload{Kind: KindConstrainedGenerate, Generate: &GeneratePayload{PromptTemplate: "x"}},
			false,
		},
		{
			"generate without prompt",
			Payload{Kind: KindConstrainedGenerate, Generate: &GeneratePayload{IdentityID: 1}},
			false,
		},
		{
			"unknown kind",
			Payload{Kind: "reticulate_splines"},
			false,
		},
		{
			"kind body mismatch",
			Payload{Kind: KindIdentityCluster, Generate: &GeneratePayload{IdentityID: 1, PromptTemplate: "x"}},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			if tt.valid && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tt.valid {
				if err == nil {
					t.Error("expected validation error")
				} else if !errors.Is(err, ErrInvalidPayload) {
					t.Errorf("expected ErrInvalidPayload, got %v", err)
				}
			}
		})
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	p := &Payload{Kind: KindConstrainedGenerate, Generate: &GeneratePayload{
		IdentityID:     7,
		PromptTemplate: "portrait, {face}",
		Variants:       4,
		MaxAttempts:    2,
	}}

	data, err := p.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := DecodePayload(data)
	if err != nil {
		t.Fatalf("DecodePayload failed: %v", err)
	}
	if decoded.Generate.IdentityID != 7 || decoded.Generate.Variants != 4 {
		t.Errorf("round trip lost fields: %+v", decoded.Generate)
	}
}

func TestDecodePayloadGarbage(t *testing.T) {
	if _, err := DecodePayload([]byte("not json")); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("expected ErrInvalidPayload, got %v", err)
	}
}

func TestEffectiveOptions(t *testing.T) {
	p := &GeneratePayload{}
	threshold, attempts, variants := p.EffectiveOptions(0, 0)
	if threshold != 0.75 || attempts != 3 || variants != 1 {
		t.Errorf("unexpected defaults: %v %d %d", threshold, attempts, variants)
	}

	threshold, attempts, _ = p.EffectiveOptions(0.8, 5)
	if threshold != 0.8 || attempts != 5 {
		t.Errorf("configured values should win: %v %d", threshold, attempts)
	}

	p = &GeneratePayload{ValidationThreshold: 0.9, MaxAttempts: 2, Variants: 4}
	threshold, attempts, variants = p.EffectiveOptions(0.8, 5)
	if threshold != 0.9 || attempts != 2 || variants != 4 {
		t.Errorf("payload overrides should win: %v %d %d", threshold, attempts, variants)
	}
}

func TestEffectiveMatchThreshold(t *testing.T) {
	p := &ClusterPayload{}
	if got := p.EffectiveMatchThreshold(0); got != 0.70 {
		t.Errorf("expected default threshold, got %v", got)
	}
	if got := p.EffectiveMatchThreshold(0.6); got != 0.6 {
		t.Errorf("expected configured threshold, got %v", got)
	}
	p.MatchThreshold = 0.85
	if got := p.EffectiveMatchThreshold(0.6); got != 0.85 {
		t.Errorf("expected payload threshold, got %v", got)
	}
}
