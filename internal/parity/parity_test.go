package parity

import "testing"

func TestNewHandlerFallsBackToNoOp(t *testing.T) {
	h := NewHandler("", false)
	caps := h.Capabilities()
	if caps.CanVerify || caps.CanRepair || caps.Name != "noop" {
		t.Fatalf("expected noop capabilities, got %+v", caps)
	}
}

func TestNoOpVerifyReportsUnsupported(t *testing.T) {
	h := NoOp{}
	report, err := h.Verify(nil, "/tmp")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Supported {
		t.Fatal("expected unsupported report from noop handler")
	}
}
