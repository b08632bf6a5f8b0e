package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/jvz-devx/usenet-dl-sub002/internal/domain"
	"github.com/jvz-devx/usenet-dl-sub002/internal/parity"
)

type fakeParity struct {
	caps      parity.Capabilities
	report    parity.Report
	outcome   parity.Outcome
	verifyErr error
	repairErr error
}

func (f fakeParity) Capabilities() parity.Capabilities { return f.caps }
func (f fakeParity) Verify(context.Context, string) (parity.Report, error) {
	return f.report, f.verifyErr
}
func (f fakeParity) Repair(context.Context, string) (parity.Outcome, error) {
	return f.outcome, f.repairErr
}

func TestVerifyAndRepairNoopHandlerFailsAtExactRepairMode(t *testing.T) {
	o := &Orchestrator{Parity: fakeParity{
		caps:   parity.Capabilities{CanVerify: true, CanRepair: false},
		report: parity.Report{Damaged: true},
	}}
	dl := &domain.Download{PostProcess: domain.PostProcessRepair}
	err := o.verifyAndRepair(context.Background(), dl, "/tmp/x")
	if !errors.Is(err, domain.ErrRepairUnavailable) {
		t.Fatalf("expected ErrRepairUnavailable at mode=Repair with a noop handler, got %v", err)
	}
}

func TestVerifyAndRepairNoopHandlerProceedsAboveRepairMode(t *testing.T) {
	o := &Orchestrator{Parity: fakeParity{
		caps:   parity.Capabilities{CanVerify: true, CanRepair: false},
		report: parity.Report{Damaged: true},
	}}
	dl := &domain.Download{PostProcess: domain.PostProcessUnpackAndCleanup}
	if err := o.verifyAndRepair(context.Background(), dl, "/tmp/x"); err != nil {
		t.Fatalf("expected proceed (nil error) above Repair mode with a noop handler, got %v", err)
	}
}

func TestVerifyAndRepairInsufficientBlocksFailsAtExactRepairMode(t *testing.T) {
	o := &Orchestrator{Parity: fakeParity{
		caps:    parity.Capabilities{CanVerify: true, CanRepair: true},
		report:  parity.Report{Damaged: true},
		outcome: parity.Outcome{Repaired: false},
	}}
	dl := &domain.Download{PostProcess: domain.PostProcessRepair}
	err := o.verifyAndRepair(context.Background(), dl, "/tmp/x")
	if !errors.Is(err, domain.ErrRepairUnavailable) {
		t.Fatalf("expected ErrRepairUnavailable at mode=Repair with insufficient blocks, got %v", err)
	}
}

func TestVerifyAndRepairInsufficientBlocksProceedsAboveRepairMode(t *testing.T) {
	o := &Orchestrator{Parity: fakeParity{
		caps:    parity.Capabilities{CanVerify: true, CanRepair: true},
		report:  parity.Report{Damaged: true},
		outcome: parity.Outcome{Repaired: false},
	}}
	dl := &domain.Download{PostProcess: domain.PostProcessUnpackAndCleanup}
	if err := o.verifyAndRepair(context.Background(), dl, "/tmp/x"); err != nil {
		t.Fatalf("expected proceed (nil error) above Repair mode with insufficient blocks, got %v", err)
	}
}

func TestVerifyAndRepairSuccessfulRepairProceeds(t *testing.T) {
	o := &Orchestrator{Parity: fakeParity{
		caps:    parity.Capabilities{CanVerify: true, CanRepair: true},
		report:  parity.Report{Damaged: true},
		outcome: parity.Outcome{Repaired: true},
	}}
	dl := &domain.Download{PostProcess: domain.PostProcessRepair}
	if err := o.verifyAndRepair(context.Background(), dl, "/tmp/x"); err != nil {
		t.Fatalf("expected proceed after a successful repair, got %v", err)
	}
}
