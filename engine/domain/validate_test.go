package domain

import (
	"errors"
	"testing"
)

func TestValidateFilingRef_Valid(t *testing.T) {
	refs := []FilingRef{
		{Entity: "AAPL", DocType: "10-K", Period: "FY2023"},
		{Entity: "BRK.B", DocType: "10-Q", Period: "Q22024"},
		{Entity: "0000320193", DocType: "DEF 14A", Period: "FY2022"},
	}
	for _, r := range refs {
		if err := ValidateFilingRef(r); err != nil {
			t.Errorf("expected %v valid, got %v", r, err)
		}
	}
}

func TestValidateFilingRef_Invalid(t *testing.T) {
	cases := []struct {
		name string
		ref  FilingRef
		want error
	}{
		{"bad entity", FilingRef{Entity: "not a ticker", DocType: "10-K", Period: "FY2023"}, ErrInvalidEntity},
		{"bad doc type", FilingRef{Entity: "AAPL", DocType: "11-Z", Period: "FY2023"}, ErrInvalidDocType},
		{"bad period", FilingRef{Entity: "AAPL", DocType: "10-K", Period: "2023"}, ErrInvalidPeriod},
		{"bad quarter", FilingRef{Entity: "AAPL", DocType: "10-K", Period: "Q52023"}, ErrInvalidPeriod},
	}
	for _, tc := range cases {
		err := ValidateFilingRef(tc.ref)
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if !errors.Is(err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestValidateQuestion(t *testing.T) {
	if err := ValidateQuestion("What was total revenue in FY2023?"); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
	if err := ValidateQuestion("hi"); !errors.Is(err, ErrQuestionTooShort) {
		t.Errorf("expected too-short, got %v", err)
	}
	if err := ValidateQuestion("revenue; DROP TABLE documents"); !errors.Is(err, ErrQuestionUnsafe) {
		t.Errorf("expected unsafe, got %v", err)
	}
}

func TestDocID(t *testing.T) {
	ref := FilingRef{Entity: "aapl", DocType: "10-k", Period: "fy2023"}
	if got := ref.DocID(); got != "AAPL:10-K:FY2023" {
		t.Errorf("unexpected doc id %q", got)
	}
}

func TestStageError(t *testing.T) {
	err := NewStageError("embed", ErrEmbedding)
	if !errors.Is(err, ErrEmbedding) {
		t.Error("stage error should unwrap to sentinel")
	}
	if StageOf(err) != "embed" {
		t.Errorf("expected stage embed, got %q", StageOf(err))
	}
	if StageOf(ErrEmbedding) != "" {
		t.Error("untagged error should have no stage")
	}
}

func TestRetryable(t *testing.T) {
	if Retryable(NewStageError("extract", ErrExtraction)) {
		t.Error("extraction failures are permanent")
	}
	if Retryable(ErrDuplicate) {
		t.Error("duplicates are permanent")
	}
	if !Retryable(ErrRateLimited) {
		t.Error("rate limiting is transient")
	}
	if !Retryable(ErrAcquisition) {
		t.Error("acquisition failures are transient")
	}
}
