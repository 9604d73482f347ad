package models

import (
	"testing"

	"github.com/go-playground/validator/v10"
)

// The review body carries only the decision; the reviewed account is routed
// through the URL path.
func TestKYCReviewRequestDecisionOnly(t *testing.T) {
	v := validator.New()
	if err := v.Struct(&KYCReviewRequest{Decision: "APPROVED"}); err != nil {
		t.Fatalf("decision-only body rejected: %v", err)
	}
	if err := v.Struct(&KYCReviewRequest{Decision: "REJECTED", Note: "docs expired"}); err != nil {
		t.Fatalf("decision with note rejected: %v", err)
	}
	if err := v.Struct(&KYCReviewRequest{Decision: "MAYBE"}); err == nil {
		t.Fatalf("unknown decision accepted")
	}
}
