package ai

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"callscreen/internal/config"
	"callscreen/internal/errors"
	"callscreen/internal/types"
)

type fakeProvider struct {
	text    string
	profile types.ExtractedProfile
	err     error
	delay   time.Duration
	last    string
}

func (f *fakeProvider) wait(ctx context.Context) error {
	if f.delay == 0 {
		return nil
	}
	select {
	case <-time.After(f.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeProvider) ExtractProfile(ctx context.Context, doc types.Document) (types.ExtractedProfile, *TokenUsage, error) {
	if err := f.wait(ctx); err != nil {
		return types.ExtractedProfile{}, nil, err
	}
	return f.profile, &TokenUsage{InputTokens: 1, OutputTokens: 1, TotalTokens: 2}, f.err
}

func (f *fakeProvider) GenerateText(ctx context.Context, content string) (string, *TokenUsage, error) {
	f.last = content
	if err := f.wait(ctx); err != nil {
		return "", nil, err
	}
	return f.text, nil, f.err
}

func (f *fakeProvider) GetModelInfo(ctx context.Context) *ModelInfo {
	return &ModelInfo{Name: "fake", Available: true}
}

func (f *fakeProvider) GetCircuitBreakerStats() map[string]any { return map[string]any{} }

func (f *fakeProvider) Close() error { return nil }

func TestServiceGenerate(t *testing.T) {
	provider := &fakeProvider{text: "What is your notice period?"}
	svc := NewServiceWithProvider(provider, config.OperationInterview, time.Second, nil, nil)

	got, err := svc.Generate(context.Background(), "prompt body")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "What is your notice period?" {
		t.Errorf("Generate() = %q", got)
	}
	if provider.last != "prompt body" {
		t.Errorf("provider received %q", provider.last)
	}
}

func TestServiceTimeoutIsClassified(t *testing.T) {
	provider := &fakeProvider{text: "too late", delay: 200 * time.Millisecond}
	svc := NewServiceWithProvider(provider, config.OperationInterview, 20*time.Millisecond, nil, nil)

	_, err := svc.Generate(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if code := errors.CodeOf(err); code != errors.ErrCodeAITimeout {
		t.Errorf("code = %q, want %q", code, errors.ErrCodeAITimeout)
	}
	if !errors.IsType(err, errors.ErrorTypeAI) {
		t.Error("timeout must be an AI error")
	}
}

func TestServiceErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"plain failure", stderrors.New("503 unavailable"), errors.ErrCodeAIServiceFailed},
		{"parse failure kept", errors.NewAIError(errors.ErrCodeAIResponseInvalid, "bad json", nil), errors.ErrCodeAIResponseInvalid},
		{"deadline from provider", context.DeadlineExceeded, errors.ErrCodeAITimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewServiceWithProvider(&fakeProvider{err: tt.err}, config.OperationExtract, time.Second, nil, nil)
			_, err := svc.Extract(context.Background(), types.Document{Name: "cv.pdf", Data: []byte("%PDF-1.4")})
			if code := errors.CodeOf(err); code != tt.wantCode {
				t.Errorf("code = %q, want %q", code, tt.wantCode)
			}
		})
	}
}

func TestServiceExtract(t *testing.T) {
	want := types.ExtractedProfile{Name: "Grace", Skills: []string{"COBOL"}}
	svc := NewServiceWithProvider(&fakeProvider{profile: want}, config.OperationExtract, 0, nil, nil)

	got, err := svc.Extract(context.Background(), types.Document{Name: "cv.txt", Data: []byte("Grace")})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got.Name != want.Name || len(got.Skills) != 1 {
		t.Errorf("Extract() = %+v", got)
	}
}

func TestIsRetryableError(t *testing.T) {
	if isRetryableError(nil) {
		t.Error("nil is not retryable")
	}
	if isRetryableError(context.Canceled) {
		t.Error("cancellation is not retryable")
	}
	if isRetryableError(stderrors.New("invalid argument")) {
		t.Error("plain errors are not retryable")
	}
	for _, code := range []int{429, 500, 502, 503, 504} {
		if !isRetryableStatus(code) {
			t.Errorf("status %d should be retryable", code)
		}
	}
	if isRetryableStatus(400) {
		t.Error("status 400 should not be retryable")
	}
}

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		attempt int
		min     time.Duration
		max     time.Duration
	}{
		{1, time.Second, 1100 * time.Millisecond},
		{3, 4 * time.Second, 4400 * time.Millisecond},
		{10, 30 * time.Second, 30 * time.Second},
	}
	for _, tt := range tests {
		got := backoffDelay(tt.attempt)
		if got < tt.min || got > tt.max {
			t.Errorf("backoffDelay(%d) = %s, want within [%s, %s]", tt.attempt, got, tt.min, tt.max)
		}
	}
}
