// Package redemption validates and consumes individual vouchers at the point
// of service. Every scan attempt, accepted or rejected, leaves a ScanEvent
// with whatever photo evidence the scanning station managed to capture.
package redemption

import (
	"context"
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/gessa-sistemas/boletosgo/internal/apperrors"
	"github.com/gessa-sistemas/boletosgo/internal/models"
)

// Distinguishable rejection reasons. Operators inspecting a rejected scan
// need to know which case they are looking at before escalating.
const (
	ReasonNotFound    = "voucher does not exist"
	ReasonAlreadyUsed = "voucher already used"
	ReasonExpired     = "voucher expired"
)

// Publisher receives every scan outcome, e.g. a websocket hub feeding the
// validator dashboard. May be nil.
type Publisher interface {
	Broadcast(v interface{})
}

// Service is the redemption engine.
type Service struct {
	db  *gorm.DB
	pub Publisher
	// now is swappable for boundary tests.
	now func() time.Time
}

// NewService creates a redemption service. pub may be nil.
func NewService(db *gorm.DB, pub Publisher) *Service {
	return &Service{db: db, pub: pub, now: time.Now}
}

// ValidationResult is the outcome of the pure validation decision.
type ValidationResult struct {
	Valid      bool            `json:"valid"`
	Reason     string          `json:"reason,omitempty"`
	Voucher    *models.Voucher `json:"voucher,omitempty"`
	RedeemedAt *time.Time      `json:"redeemedAt,omitempty"`
}

// Validate decides whether a voucher is redeemable. Read-only: recording the
// outcome together with evidence is the caller's job (see Redeem).
func (s *Service) Validate(id string) (*ValidationResult, error) {
	var v models.Voucher
	err := s.db.Where("id = ?", id).First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &ValidationResult{Valid: false, Reason: ReasonNotFound}, nil
	}
	if err != nil {
		return nil, apperrors.Persistence("lookup voucher", err)
	}

	if v.Redeemed {
		return &ValidationResult{
			Valid:      false,
			Reason:     ReasonAlreadyUsed,
			Voucher:    &v,
			RedeemedAt: v.RedeemedAt,
		}, nil
	}
	if v.Expired(s.now()) {
		return &ValidationResult{Valid: false, Reason: ReasonExpired, Voucher: &v}, nil
	}
	return &ValidationResult{Valid: true, Voucher: &v}, nil
}

// RedeemOutcome is the result of a redemption attempt.
type RedeemOutcome struct {
	Success       bool            `json:"success"`
	Reason        string          `json:"reason,omitempty"`
	Voucher       *models.Voucher `json:"voucher,omitempty"`
	RedeemedAt    *time.Time      `json:"redeemedAt,omitempty"`
	PhotoCaptured bool            `json:"photoCaptured"`
}

// Redeem consumes a voucher. photoPath is the already-persisted evidence
// photo, or empty when capture failed; capture failure never blocks the
// redemption decision, but the photo is attached to the ScanEvent either way.
//
// The redeemed flag is flipped with a conditional update so that of N
// concurrent attempts exactly one succeeds; the losers observe zero affected
// rows and are rejected as already used.
func (s *Service) Redeem(ctx context.Context, id, location, photoPath string) (*RedeemOutcome, error) {
	res, err := s.Validate(id)
	if err != nil {
		return nil, err
	}

	if !res.Valid {
		s.recordScan(id, res.Voucher, models.ScanRejected, res.Reason, location, photoPath)
		return &RedeemOutcome{
			Success:       false,
			Reason:        res.Reason,
			Voucher:       res.Voucher,
			RedeemedAt:    res.RedeemedAt,
			PhotoCaptured: photoPath != "",
		}, nil
	}

	now := s.now().UTC()
	update := s.db.WithContext(ctx).Model(&models.Voucher{}).
		Where("id = ? AND redeemed = ?", id, false).
		Updates(map[string]interface{}{
			"redeemed":    true,
			"redeemed_at": now,
			"location":    location,
		})
	if update.Error != nil {
		return nil, apperrors.Persistence("redeem voucher", update.Error)
	}
	if update.RowsAffected == 0 {
		// Lost the race against a concurrent scan of the same voucher.
		s.recordScan(id, res.Voucher, models.ScanRejected, ReasonAlreadyUsed, location, photoPath)
		return &RedeemOutcome{
			Success:       false,
			Reason:        ReasonAlreadyUsed,
			Voucher:       res.Voucher,
			PhotoCaptured: photoPath != "",
		}, nil
	}

	s.recordScan(id, res.Voucher, models.ScanSuccess, "", location, photoPath)

	res.Voucher.Redeemed = true
	res.Voucher.RedeemedAt = &now
	res.Voucher.Location = &location
	return &RedeemOutcome{
		Success:       true,
		Voucher:       res.Voucher,
		RedeemedAt:    &now,
		PhotoCaptured: photoPath != "",
	}, nil
}

// recordScan appends the ScanEvent and pushes it to the live feed. Failures
// are logged and swallowed: the redemption decision already happened and must
// not be rolled back over bookkeeping.
func (s *Service) recordScan(voucherID string, v *models.Voucher, eventType, reason, location, photoPath string) {
	event := models.ScanEvent{
		VoucherID: voucherID,
		Type:      eventType,
	}
	if v != nil {
		event.BatchToken = v.BatchToken
	}
	if reason != "" {
		event.RejectReason = &reason
	}
	if location != "" {
		event.Location = &location
	}
	if photoPath != "" {
		event.PhotoPath = &photoPath
	}

	if err := s.db.Create(&event).Error; err != nil {
		log.Printf("⚠️ Failed to record scan event for %s: %v", voucherID, err)
		return
	}
	if s.pub != nil {
		s.pub.Broadcast(event)
	}
}

// Rejections returns the rejected scan attempts against one voucher, newest
// first. Repeated rejections of the same voucher are the classic fraud
// pattern this view exists for.
func (s *Service) Rejections(voucherID string) ([]models.ScanEvent, error) {
	var out []models.ScanEvent
	err := s.db.Where("voucher_id = ? AND type = ?", voucherID, models.ScanRejected).
		Order("created_at DESC").Find(&out).Error
	if err != nil {
		return nil, apperrors.Persistence("list rejections", err)
	}
	return out, nil
}

// BatchScans returns the full scan history of a batch, newest first.
func (s *Service) BatchScans(batchToken string) ([]models.ScanEvent, error) {
	var out []models.ScanEvent
	err := s.db.Where("batch_token = ?", batchToken).
		Order("created_at DESC").Find(&out).Error
	if err != nil {
		return nil, apperrors.Persistence("list batch scans", err)
	}
	return out, nil
}

// VoucherPhotos returns every scan event of a voucher that carries a photo,
// newest first.
func (s *Service) VoucherPhotos(voucherID string) ([]models.ScanEvent, error) {
	var out []models.ScanEvent
	err := s.db.Where("voucher_id = ? AND photo_path IS NOT NULL", voucherID).
		Order("created_at DESC").Find(&out).Error
	if err != nil {
		return nil, apperrors.Persistence("list voucher photos", err)
	}
	return out, nil
}

// RecentScans returns the latest scan events across all batches, for the
// validator dashboard feed.
func (s *Service) RecentScans(limit int) ([]models.ScanEvent, error) {
	if limit <= 0 {
		limit = 10
	}
	var out []models.ScanEvent
	err := s.db.Order("created_at DESC").Limit(limit).Find(&out).Error
	if err != nil {
		return nil, apperrors.Persistence("list recent scans", err)
	}
	return out, nil
}

// LastActivity returns the timestamp of the most recent scan against a batch,
// or nil when the batch has never been scanned.
func (s *Service) LastActivity(batchToken string) (*time.Time, error) {
	var event models.ScanEvent
	err := s.db.Where("batch_token = ?", batchToken).
		Order("created_at DESC").First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Persistence("lookup last activity", err)
	}
	return &event.CreatedAt, nil
}
