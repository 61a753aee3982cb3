package scoring

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
)

// mockExtractor is a mock feature-extraction provider for testing.
type mockExtractor struct {
	result    *VisionResult
	err       error
	callCount atomic.Int32
}

func (m *mockExtractor) Extract(ctx context.Context, imageURL string) (*VisionResult, error) {
	m.callCount.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *mockExtractor) Name() string {
	return "mock"
}

func TestService_Analyze(t *testing.T) {
	extractor := &mockExtractor{
		result: &VisionResult{
			Labels: []Label{{Description: "Sidewalk", Score: 0.9}},
		},
	}
	service := NewService(ServiceConfig{Extractor: extractor})

	analysis := service.Analyze(context.Background(), "https://imagery.test/a.jpg")

	if !analysis.OK() {
		t.Fatalf("expected successful analysis, got error %q", analysis.Error)
	}
	if !analysis.Score.Breakdown.Sidewalk.Detected {
		t.Error("expected sidewalk detection")
	}
}

func TestService_Analyze_CacheShortCircuits(t *testing.T) {
	extractor := &mockExtractor{result: &VisionResult{}}
	service := NewService(ServiceConfig{Extractor: extractor})

	first := service.Analyze(context.Background(), "https://imagery.test/a.jpg")
	second := service.Analyze(context.Background(), "https://imagery.test/a.jpg")

	if extractor.callCount.Load() != 1 {
		t.Errorf("expected 1 extractor call, got %d", extractor.callCount.Load())
	}
	if !reflect.DeepEqual(first.Score, second.Score) {
		t.Errorf("expected identical cached analysis:\n%+v\n%+v", first.Score, second.Score)
	}
}

func TestService_Analyze_DistinctURLsAnalyzedSeparately(t *testing.T) {
	extractor := &mockExtractor{result: &VisionResult{}}
	service := NewService(ServiceConfig{Extractor: extractor})

	_ = service.Analyze(context.Background(), "https://imagery.test/a.jpg")
	_ = service.Analyze(context.Background(), "https://imagery.test/b.jpg")

	if extractor.callCount.Load() != 2 {
		t.Errorf("expected 2 extractor calls, got %d", extractor.callCount.Load())
	}
}

func TestService_Analyze_ExtractionFailureFallsBack(t *testing.T) {
	extractor := &mockExtractor{err: errors.New("vision API unavailable")}
	service := NewService(ServiceConfig{Extractor: extractor})

	analysis := service.Analyze(context.Background(), "https://imagery.test/a.jpg")

	if analysis.OK() {
		t.Fatal("expected failed analysis")
	}
	if analysis.Score.Grade != GradeUnknown || analysis.Score.Overall != 5 {
		t.Errorf("expected neutral fallback score, got %+v", analysis.Score)
	}
}

func TestService_Analyze_FailuresNotCached(t *testing.T) {
	extractor := &mockExtractor{err: errors.New("transient failure")}
	service := NewService(ServiceConfig{Extractor: extractor})

	_ = service.Analyze(context.Background(), "https://imagery.test/a.jpg")

	// The failure clears; a retry should reach the extractor again.
	extractor.err = nil
	extractor.result = &VisionResult{}
	analysis := service.Analyze(context.Background(), "https://imagery.test/a.jpg")

	if !analysis.OK() {
		t.Error("expected retry after a transient failure to succeed")
	}
	if extractor.callCount.Load() != 2 {
		t.Errorf("expected 2 extractor calls, got %d", extractor.callCount.Load())
	}
}
