// Package download bounds how many times a batch's rendered PDF may be
// fetched. Vouchers are redeemable for real meals, so every re-export is
// counted against a ceiling and tied to a human-readable justification.
package download

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/gessa-sistemas/boletosgo/internal/apperrors"
	"github.com/gessa-sistemas/boletosgo/internal/models"
)

// Reasons reported by CheckEligibility.
const (
	ReasonNotFound      = "batch not found"
	ReasonNotAuthorized = "batch not authorized"
)

// Service is the download-throttle guard.
type Service struct {
	db *gorm.DB
}

// NewService creates a download guard on top of db.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Eligibility is the outcome of CheckEligibility.
type Eligibility struct {
	Allowed     bool    `json:"allowed"`
	Reason      string  `json:"reason,omitempty"`
	Remaining   int     `json:"remaining"`
	ArtifactURL *string `json:"artifactUrl,omitempty"`
}

// CheckEligibility reports whether the batch's artifact may currently be
// fetched. Read-only; RecordDownload re-checks atomically with the counter
// increment.
func (s *Service) CheckEligibility(batchToken string) (*Eligibility, error) {
	var batch models.VoucherBatch
	err := s.db.Where("batch_token = ?", batchToken).First(&batch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Eligibility{Allowed: false, Reason: ReasonNotFound}, nil
	}
	if err != nil {
		return nil, apperrors.Persistence("lookup batch", err)
	}

	if batch.PaymentState != models.PaymentAuthorized {
		return &Eligibility{Allowed: false, Reason: ReasonNotAuthorized}, nil
	}
	if batch.DownloadAttempts >= batch.DownloadLimit {
		return &Eligibility{
			Allowed: false,
			Reason:  fmt.Sprintf("download limit reached (%d/%d)", batch.DownloadAttempts, batch.DownloadLimit),
		}, nil
	}

	return &Eligibility{
		Allowed:     true,
		Remaining:   batch.DownloadLimit - batch.DownloadAttempts,
		ArtifactURL: batch.ArtifactURL,
	}, nil
}

// RecordDownload consumes one download attempt and appends the audit record.
// The increment is a single conditional update, so two concurrent callers
// cannot both slip past the ceiling: the loser observes zero affected rows
// and gets the precise typed failure after a re-read.
func (s *Service) RecordDownload(batchToken, user, justification, ip string) (int, error) {
	if user == "" || justification == "" {
		return 0, apperrors.Validation("user and justification are required")
	}

	res := s.db.Model(&models.VoucherBatch{}).
		Where("batch_token = ? AND payment_state = ? AND download_attempts < download_limit",
			batchToken, models.PaymentAuthorized).
		UpdateColumn("download_attempts", gorm.Expr("download_attempts + 1"))
	if res.Error != nil {
		return 0, apperrors.Persistence("record download", res.Error)
	}

	if res.RowsAffected == 0 {
		// Re-read to classify the refusal.
		var batch models.VoucherBatch
		err := s.db.Where("batch_token = ?", batchToken).First(&batch).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, apperrors.NotFound("batch", batchToken)
		}
		if err != nil {
			return 0, apperrors.Persistence("lookup batch", err)
		}
		if batch.PaymentState != models.PaymentAuthorized {
			return 0, apperrors.Validation("batch %s is not authorized for download", batchToken)
		}
		return 0, &apperrors.LimitExceededError{Used: batch.DownloadAttempts, Ceiling: batch.DownloadLimit}
	}

	record := models.DownloadRecord{
		BatchToken:    batchToken,
		User:          user,
		Justification: justification,
	}
	if ip != "" {
		record.IPAddress = &ip
	}
	if err := s.db.Create(&record).Error; err != nil {
		return 0, apperrors.Persistence("append download record", err)
	}

	var batch models.VoucherBatch
	if err := s.db.Where("batch_token = ?", batchToken).First(&batch).Error; err != nil {
		return 0, apperrors.Persistence("reload batch", err)
	}
	return batch.DownloadLimit - batch.DownloadAttempts, nil
}

// History returns the download records of a batch, newest first.
func (s *Service) History(batchToken string) ([]models.DownloadRecord, error) {
	var out []models.DownloadRecord
	err := s.db.Where("batch_token = ?", batchToken).
		Order("created_at DESC").Find(&out).Error
	if err != nil {
		return nil, apperrors.Persistence("list downloads", err)
	}
	return out, nil
}

// Count returns how many downloads a batch has consumed.
func (s *Service) Count(batchToken string) (int64, error) {
	var n int64
	err := s.db.Model(&models.DownloadRecord{}).
		Where("batch_token = ?", batchToken).Count(&n).Error
	if err != nil {
		return 0, apperrors.Persistence("count downloads", err)
	}
	return n, nil
}
