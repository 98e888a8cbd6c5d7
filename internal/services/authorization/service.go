// Package authorization advances voucher batches through payment
// authorization. Two paths exist: direct authorization by a user holding the
// authorize permission, and a request/approve workflow for organizations
// that separate the duties. Approving a request also advances the batch, so
// both paths converge on the same AUTHORIZED state the download guard checks.
package authorization

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/gessa-sistemas/boletosgo/internal/apperrors"
	"github.com/gessa-sistemas/boletosgo/internal/models"
)

// Service runs the payment-authorization state machine.
type Service struct {
	db *gorm.DB
}

// NewService creates an authorization service on top of db.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// AuthorizeInput carries the direct PENDING -> AUTHORIZED transition.
type AuthorizeInput struct {
	BatchToken        string
	AuthorizationCode string
	AuthorizedBy      string
	PaymentDate       time.Time
	// EvidencePath is the stored payment-evidence image. Mandatory for
	// cash batches, optional for credit.
	EvidencePath string
	Notes        string
}

// Authorize moves a batch from PENDING to AUTHORIZED. The transition is
// rejected without state change when required fields are missing, when a
// cash batch lacks payment evidence, or when the batch is already
// authorized.
func (s *Service) Authorize(in AuthorizeInput) (*models.VoucherBatch, error) {
	if in.AuthorizationCode == "" || in.AuthorizedBy == "" || in.PaymentDate.IsZero() {
		return nil, apperrors.Validation("authorization code, authorizer and payment date are required")
	}

	var batch models.VoucherBatch
	err := s.db.Where("batch_token = ?", in.BatchToken).First(&batch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("batch", in.BatchToken)
	}
	if err != nil {
		return nil, apperrors.Persistence("lookup batch", err)
	}

	if batch.PaymentState == models.PaymentAuthorized {
		return nil, apperrors.Conflict("batch %s is already authorized", in.BatchToken)
	}
	if batch.PaymentType == models.PayCash && in.EvidencePath == "" {
		return nil, apperrors.Validation("a payment-evidence image is required for cash batches")
	}

	updates := map[string]interface{}{
		"payment_state":      models.PaymentAuthorized,
		"authorization_code": in.AuthorizationCode,
		"authorized_by":      in.AuthorizedBy,
		"payment_date":       in.PaymentDate,
	}
	if in.EvidencePath != "" {
		updates["payment_evidence_path"] = in.EvidencePath
	}
	if in.Notes != "" {
		updates["notes"] = in.Notes
	}

	// Conditional on the current state so a concurrent authorization
	// cannot apply twice.
	res := s.db.Model(&models.VoucherBatch{}).
		Where("batch_token = ? AND payment_state = ?", in.BatchToken, models.PaymentPending).
		Updates(updates)
	if res.Error != nil {
		return nil, apperrors.Persistence("authorize batch", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.Conflict("batch %s is already authorized", in.BatchToken)
	}

	if err := s.db.Where("batch_token = ?", in.BatchToken).First(&batch).Error; err != nil {
		return nil, apperrors.Persistence("reload batch", err)
	}
	return &batch, nil
}

// Request opens an authorization request for a batch. At most one PENDING
// request may exist per batch; a second one is rejected outright.
func (s *Service) Request(batchToken, requestedBy, justification string) (*models.AuthorizationRequest, error) {
	if justification == "" {
		return nil, apperrors.Validation("justification is required")
	}

	var batch models.VoucherBatch
	err := s.db.Where("batch_token = ?", batchToken).First(&batch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("batch", batchToken)
	}
	if err != nil {
		return nil, apperrors.Persistence("lookup batch", err)
	}

	var pending int64
	err = s.db.Model(&models.AuthorizationRequest{}).
		Where("batch_token = ? AND state = ?", batchToken, models.RequestPending).
		Count(&pending).Error
	if err != nil {
		return nil, apperrors.Persistence("check pending requests", err)
	}
	if pending > 0 {
		return nil, apperrors.Conflict("batch %s already has a pending authorization request", batchToken)
	}

	req := models.AuthorizationRequest{
		BatchToken:    batchToken,
		RequestedBy:   requestedBy,
		Justification: justification,
		State:         models.RequestPending,
	}
	if err := s.db.Create(&req).Error; err != nil {
		return nil, apperrors.Persistence("create authorization request", err)
	}
	return &req, nil
}

// Approve resolves a pending request and advances the underlying batch to
// AUTHORIZED in the same transaction, with the request id recorded as the
// authorization code. The observation note is optional.
func (s *Service) Approve(requestID uint, approvedBy, notes string) (*models.AuthorizationRequest, error) {
	return s.resolve(requestID, approvedBy, notes, models.RequestApproved)
}

// Reject resolves a pending request with a mandatory reason. The batch stays
// PENDING so a new request or a direct authorization can follow.
func (s *Service) Reject(requestID uint, rejectedBy, reason string) (*models.AuthorizationRequest, error) {
	if reason == "" {
		return nil, apperrors.Validation("a reason is required to reject an authorization request")
	}
	return s.resolve(requestID, rejectedBy, reason, models.RequestRejected)
}

func (s *Service) resolve(requestID uint, actor, notes, newState string) (*models.AuthorizationRequest, error) {
	if actor == "" {
		return nil, apperrors.Validation("acting user is required")
	}

	var req models.AuthorizationRequest
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", requestID).First(&req).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("authorization request", fmt.Sprintf("%d", requestID))
			}
			return apperrors.Persistence("lookup authorization request", err)
		}
		if req.State != models.RequestPending {
			return apperrors.Conflict("authorization request %d is already resolved", requestID)
		}

		now := time.Now().UTC()
		updates := map[string]interface{}{
			"state":       newState,
			"resolved_by": actor,
			"resolved_at": now,
		}
		if notes != "" {
			updates["notes"] = notes
		}

		res := tx.Model(&models.AuthorizationRequest{}).
			Where("id = ? AND state = ?", requestID, models.RequestPending).
			Updates(updates)
		if res.Error != nil {
			return apperrors.Persistence("resolve authorization request", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.Conflict("authorization request %d is already resolved", requestID)
		}

		if newState == models.RequestApproved {
			batchUpdates := map[string]interface{}{
				"payment_state":      models.PaymentAuthorized,
				"authorization_code": fmt.Sprintf("REQ-%d", requestID),
				"authorized_by":      actor,
				"payment_date":       now,
			}
			if err := tx.Model(&models.VoucherBatch{}).
				Where("batch_token = ? AND payment_state = ?", req.BatchToken, models.PaymentPending).
				Updates(batchUpdates).Error; err != nil {
				return apperrors.Persistence("advance batch state", err)
			}
		}

		req.State = newState
		req.ResolvedBy = &actor
		req.ResolvedAt = &now
		if notes != "" {
			req.Notes = &notes
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// ListRequests returns requests in the given state, or all of them when
// state is empty, newest first.
func (s *Service) ListRequests(state string) ([]models.AuthorizationRequest, error) {
	q := s.db.Order("created_at DESC")
	if state != "" {
		q = q.Where("state = ?", state)
	}
	var out []models.AuthorizationRequest
	if err := q.Find(&out).Error; err != nil {
		return nil, apperrors.Persistence("list authorization requests", err)
	}
	return out, nil
}

// History returns all authorization requests ever filed against a batch,
// newest first.
func (s *Service) History(batchToken string) ([]models.AuthorizationRequest, error) {
	var out []models.AuthorizationRequest
	err := s.db.Where("batch_token = ?", batchToken).
		Order("created_at DESC").Find(&out).Error
	if err != nil {
		return nil, apperrors.Persistence("list request history", err)
	}
	return out, nil
}

// Status reports whether a batch has an approved request, and returns the
// most recent one when it does.
func (s *Service) Status(batchToken string) (bool, *models.AuthorizationRequest, error) {
	var req models.AuthorizationRequest
	err := s.db.Where("batch_token = ? AND state = ?", batchToken, models.RequestApproved).
		Order("resolved_at DESC").First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, apperrors.Persistence("lookup approved request", err)
	}
	return true, &req, nil
}
