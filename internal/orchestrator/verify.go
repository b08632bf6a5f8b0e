package orchestrator

import (
	"context"

	"github.com/jvz-devx/usenet-dl-sub002/internal/domain"
)

// verifyAndRepair runs §4.6's parity handler against workDir. It skips
// entirely when the mode is below Verify or the handler is NoOp. When
// damage is found and repair is unavailable (mode below Repair, no repair
// capability, or a repair that fails for insufficient blocks, which is
// reported as RepairComplete{Success:false} first), it emits
// RepairSkipped; the stage then fails only when the mode is exactly
// Repair, and otherwise proceeds to extraction.
func (o *Orchestrator) verifyAndRepair(ctx context.Context, dl *domain.Download, workDir string) error {
	if dl.PostProcess < domain.PostProcessVerify || !o.Parity.Capabilities().CanVerify {
		return nil
	}

	o.publish(dl.ID, domain.EventVerifying, nil)
	report, err := o.Parity.Verify(ctx, workDir)
	if err != nil {
		return err
	}
	if !report.Damaged {
		o.publish(dl.ID, domain.EventVerifyComplete, nil)
		return nil
	}

	if dl.PostProcess < domain.PostProcessRepair || !o.Parity.Capabilities().CanRepair {
		o.publish(dl.ID, domain.EventRepairSkipped, nil)
		if dl.PostProcess == domain.PostProcessRepair {
			return domain.ErrRepairUnavailable
		}
		return nil
	}

	o.publish(dl.ID, domain.EventRepairing, domain.RepairingPayload{
		BlocksNeeded: report.BlocksNeeded, BlocksAvailable: report.BlocksAvailable,
	})
	outcome, err := o.Parity.Repair(ctx, workDir)
	if err != nil {
		return err
	}
	o.publish(dl.ID, domain.EventRepairComplete, domain.RepairCompletePayload{Success: outcome.Repaired})
	if !outcome.Repaired {
		o.publish(dl.ID, domain.EventRepairSkipped, nil)
		if dl.PostProcess == domain.PostProcessRepair {
			return domain.ErrRepairUnavailable
		}
		return nil
	}

	o.publish(dl.ID, domain.EventVerifyComplete, nil)
	return nil
}
