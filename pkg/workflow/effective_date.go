package workflow

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// effectiveActivation derives the activation state for an approved entity
// from its start date and today. Start date in the future means Scheduled;
// otherwise Active. A nil start date counts as already started.
func effectiveActivation(startDate *time.Time, today time.Time) ActiveInactive {
	if startDate != nil && startDate.After(dateOnly(today)) {
		return ActivationScheduled
	}
	return ActivationActive
}

// dateOnly truncates a timestamp to its calendar date.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SweepResult summarizes one effective-date sweep pass.
type SweepResult struct {
	FrameworksActivated   int
	FrameworksScheduled   int
	FrameworksDeactivated int
	PoliciesUpdated       int
	SLAsExpired           int
}

// SweepEffectiveDates re-evaluates ActiveInactive for every approved
// framework and policy, and expires SLAs past their expiry date. The sweep
// is idempotent: running it twice produces the same state. Inactive is
// sticky and never auto-reactivated.
func (e *Engine) SweepEffectiveDates() (*SweepResult, error) {
	today := dateOnly(e.now())
	res := &SweepResult{}

	err := e.db.Transaction(func(tx *gorm.DB) error {
		var frameworks []FrameworkRecord
		if err := tx.Where("status = ?", StatusApproved).Find(&frameworks).Error; err != nil {
			return fmt.Errorf("sweep: list approved frameworks: %w", err)
		}

		for i := range frameworks {
			fw := &frameworks[i]
			if fw.ActiveInactive == ActivationInactive {
				continue
			}

			want := fw.ActiveInactive
			switch {
			case fw.EndDate != nil && fw.EndDate.Before(today):
				want = ActivationInactive
			case fw.StartDate != nil && fw.StartDate.After(today):
				want = ActivationScheduled
			default:
				want = ActivationActive
			}
			if want == fw.ActiveInactive {
				continue
			}

			err := tx.Model(&FrameworkRecord{}).
				Where("tenant_id = ? AND id = ?", fw.TenantID, fw.ID).
				Update("active_inactive", want).Error
			if err != nil {
				return fmt.Errorf("sweep: update framework %d: %w", fw.ID, err)
			}
			switch want {
			case ActivationActive:
				res.FrameworksActivated++
			case ActivationScheduled:
				res.FrameworksScheduled++
			case ActivationInactive:
				res.FrameworksDeactivated++
			}

			// Children follow the framework, preserving their own Status.
			result := tx.Model(&PolicyRecord{}).
				Where("tenant_id = ? AND framework_id = ? AND active_inactive <> ?",
					fw.TenantID, fw.ID, ActivationInactive).
				Update("active_inactive", want)
			if result.Error != nil {
				return fmt.Errorf("sweep: update policies of framework %d: %w", fw.ID, result.Error)
			}
			res.PoliciesUpdated += int(result.RowsAffected)
		}

		result := tx.Model(&VendorSLARecord{}).
			Where("status = ? AND expiry_date IS NOT NULL AND expiry_date < ?", SLAActive, today).
			Update("status", SLAExpired)
		if result.Error != nil {
			return fmt.Errorf("sweep: expire slas: %w", result.Error)
		}
		res.SLAsExpired = int(result.RowsAffected)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("effective-date sweep complete",
		"activated", res.FrameworksActivated,
		"scheduled", res.FrameworksScheduled,
		"deactivated", res.FrameworksDeactivated,
		"policiesUpdated", res.PoliciesUpdated,
		"slasExpired", res.SLAsExpired)
	return res, nil
}
