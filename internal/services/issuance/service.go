// Package issuance creates voucher batches and tracks their aggregate state.
// Rendering the printable PDF is a separate, slower step: CreateBatch returns
// the finalized voucher list for the renderer and AttachArtifact records the
// result once rendering completed.
package issuance

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gessa-sistemas/boletosgo/internal/apperrors"
	"github.com/gessa-sistemas/boletosgo/internal/models"
	"github.com/gessa-sistemas/boletosgo/internal/services/contractor"
)

// Service is the voucher batch engine.
type Service struct {
	db          *gorm.DB
	contractors *contractor.Service
	// downloadLimit stamped on new batches.
	downloadLimit int
}

// NewService creates the batch engine. downloadLimit bounds artifact fetches
// per batch; values below 1 fall back to the default.
func NewService(db *gorm.DB, contractors *contractor.Service, downloadLimit int) *Service {
	if downloadLimit < 1 {
		downloadLimit = models.DefaultDownloadLimit
	}
	return &Service{db: db, contractors: contractors, downloadLimit: downloadLimit}
}

// CreateBatchInput is the validated request to issue a batch.
type CreateBatchInput struct {
	ContractorName string
	Quantity       int
	ExpiresAt      time.Time
	Amount         *float64
	// DiningSiteID references an existing site; NewDiningSiteName lazily
	// creates one under the contractor when no id was given.
	DiningSiteID      *uint
	NewDiningSiteName string
	PaymentType       string
	PriceTierID       *uint
	CreatedBy         *string
}

// PrintableVoucher is one line of the exact contract the external PDF
// renderer consumes.
type PrintableVoucher struct {
	ID             string    `json:"id"`
	ContractorName string    `json:"contractorName"`
	ContractorCode string    `json:"contractorCode"`
	BatchToken     string    `json:"batchToken"`
	ExpiresAt      time.Time `json:"expiresAt"`
	Ordinal        int       `json:"ordinal"`
	Total          int       `json:"total"`
	DiningSite     string    `json:"diningSite,omitempty"`
}

// BatchResult is the outcome of CreateBatch.
type BatchResult struct {
	Batch    *models.VoucherBatch
	Vouchers []PrintableVoucher
}

// CreateBatch issues a new batch: resolves (or lazily creates) the contractor
// and dining site, snapshots the price tier, then inserts the batch row in
// state PENDING together with exactly Quantity voucher rows in one
// transaction.
func (s *Service) CreateBatch(ctx context.Context, in CreateBatchInput) (*BatchResult, error) {
	if in.ContractorName == "" {
		return nil, apperrors.Validation("contractor name is required")
	}
	if in.Quantity <= 0 {
		return nil, apperrors.Validation("quantity must be positive")
	}
	if in.ExpiresAt.IsZero() {
		return nil, apperrors.Validation("expiration date is required")
	}
	switch in.PaymentType {
	case models.PayCash, models.PayCredit:
	case "":
		in.PaymentType = models.PayCash
	default:
		return nil, apperrors.Validation("unknown payment type %q", in.PaymentType)
	}

	c, err := s.contractors.GetOrCreate(in.ContractorName)
	if err != nil {
		return nil, err
	}

	var site *models.DiningSite
	if in.DiningSiteID != nil {
		site, err = s.contractors.GetSite(*in.DiningSiteID)
		if err != nil {
			return nil, err
		}
	} else if in.NewDiningSiteName != "" {
		site, err = s.contractors.GetOrCreateSite(in.NewDiningSiteName, c.ID)
		if err != nil {
			return nil, err
		}
	}

	var tier *models.PriceTier
	if in.PriceTierID != nil {
		tier, err = s.contractors.GetPriceTier(*in.PriceTierID)
		if err != nil {
			return nil, err
		}
	}

	batch := models.VoucherBatch{
		BatchToken:     newBatchToken(),
		ContractorName: c.Name,
		Quantity:       in.Quantity,
		ExpiresAt:      in.ExpiresAt,
		PaymentType:    in.PaymentType,
		Amount:         in.Amount,
		PaymentState:   models.PaymentPending,
		DownloadLimit:  s.downloadLimit,
		CreatedBy:      in.CreatedBy,
	}
	if site != nil {
		batch.DiningSiteID = &site.ID
	}
	if tier != nil {
		batch.PriceTierID = &tier.ID
		batch.PriceTierName = &tier.Name
		batch.UnitPrice = &tier.UnitPrice
	}

	printable := make([]PrintableVoucher, 0, in.Quantity)
	vouchers := make([]models.Voucher, 0, in.Quantity)
	for i := 0; i < in.Quantity; i++ {
		v := models.Voucher{
			ID:             uuid.NewString(),
			ContractorName: c.Name,
			ExpiresAt:      in.ExpiresAt,
		}
		if site != nil {
			v.DiningSiteID = &site.ID
		}
		vouchers = append(vouchers, v)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&batch).Error; err != nil {
			return err
		}
		for i := range vouchers {
			vouchers[i].BatchToken = batch.BatchToken
		}
		return tx.CreateInBatches(vouchers, 100).Error
	})
	if err != nil {
		return nil, apperrors.Persistence("create batch", err)
	}

	for i, v := range vouchers {
		p := PrintableVoucher{
			ID:             v.ID,
			ContractorName: c.Name,
			ContractorCode: c.Code,
			BatchToken:     batch.BatchToken,
			ExpiresAt:      v.ExpiresAt,
			Ordinal:        i + 1,
			Total:          in.Quantity,
		}
		if site != nil {
			p.DiningSite = site.Name
		}
		printable = append(printable, p)
	}

	return &BatchResult{Batch: &batch, Vouchers: printable}, nil
}

// newBatchToken builds a globally unique, timestamp-derived batch token.
// The random suffix guards against two batches created in the same
// millisecond.
func newBatchToken() string {
	return fmt.Sprintf("LOTE_%d_%04X", time.Now().UnixMilli(), rand.Intn(0x10000))
}

// AttachArtifact records the rendered PDF's location on the batch. Kept
// separate from CreateBatch because rendering is slow and may fail without
// affecting voucher issuance.
func (s *Service) AttachArtifact(token, path, url string) error {
	res := s.db.Model(&models.VoucherBatch{}).
		Where("batch_token = ?", token).
		Updates(map[string]interface{}{"artifact_path": path, "artifact_url": url})
	if res.Error != nil {
		return apperrors.Persistence("attach artifact", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("batch", token)
	}
	return nil
}

// GetBatch returns a batch by token.
func (s *Service) GetBatch(token string) (*models.VoucherBatch, error) {
	var batch models.VoucherBatch
	err := s.db.Preload("DiningSite").Where("batch_token = ?", token).First(&batch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("batch", token)
	}
	if err != nil {
		return nil, apperrors.Persistence("lookup batch", err)
	}
	return &batch, nil
}

// BatchSummary is one row of the batch list view.
type BatchSummary struct {
	BatchToken     string     `json:"batchToken"`
	ContractorName string     `json:"contractorName"`
	CreatedAt      time.Time  `json:"createdAt"`
	ExpiresAt      time.Time  `json:"expiresAt"`
	Total          int        `json:"total"`
	Used           int        `json:"used"`
	Available      int        `json:"available"`
	Rejections     int        `json:"rejections"`
	PaymentState   string     `json:"paymentState"`
	PaymentType    string     `json:"paymentType"`
	Amount         *float64   `json:"amount,omitempty"`
	PriceTierName  *string    `json:"priceTierName,omitempty"`
	UnitPrice      *float64   `json:"unitPrice,omitempty"`
	ArtifactURL    *string    `json:"artifactUrl,omitempty"`
}

// ListFilter narrows ListBatches and Stats.
type ListFilter struct {
	ContractorName string
	CreatedBy      string
}

// ListBatches returns batch summaries, newest first.
func (s *Service) ListBatches(filter ListFilter) ([]BatchSummary, error) {
	q := s.db.Model(&models.VoucherBatch{}).Order("created_at DESC")
	if filter.ContractorName != "" {
		q = q.Where("contractor_name = ?", filter.ContractorName)
	}
	if filter.CreatedBy != "" {
		q = q.Where("created_by = ?", filter.CreatedBy)
	}

	var batches []models.VoucherBatch
	if err := q.Find(&batches).Error; err != nil {
		return nil, apperrors.Persistence("list batches", err)
	}

	out := make([]BatchSummary, 0, len(batches))
	for _, b := range batches {
		var used int64
		if err := s.db.Model(&models.Voucher{}).
			Where("batch_token = ? AND redeemed = ?", b.BatchToken, true).
			Count(&used).Error; err != nil {
			return nil, apperrors.Persistence("count redeemed vouchers", err)
		}
		var rejections int64
		if err := s.db.Model(&models.ScanEvent{}).
			Where("batch_token = ? AND type = ?", b.BatchToken, models.ScanRejected).
			Count(&rejections).Error; err != nil {
			return nil, apperrors.Persistence("count rejections", err)
		}

		out = append(out, BatchSummary{
			BatchToken:     b.BatchToken,
			ContractorName: b.ContractorName,
			CreatedAt:      b.CreatedAt,
			ExpiresAt:      b.ExpiresAt,
			Total:          b.Quantity,
			Used:           int(used),
			Available:      b.Quantity - int(used),
			Rejections:     int(rejections),
			PaymentState:   b.PaymentState,
			PaymentType:    b.PaymentType,
			Amount:         b.Amount,
			PriceTierName:  b.PriceTierName,
			UnitPrice:      b.UnitPrice,
			ArtifactURL:    b.ArtifactURL,
		})
	}
	return out, nil
}

// VoucherStatus is the per-voucher line of a batch detail view.
type VoucherStatus struct {
	ID         string     `json:"id"`
	Redeemed   bool       `json:"redeemed"`
	RedeemedAt *time.Time `json:"redeemedAt,omitempty"`
	Location   *string    `json:"location,omitempty"`
	Status     string     `json:"status"`
}

// BatchDetail aggregates a batch with the status of each voucher.
type BatchDetail struct {
	Summary  BatchSummary    `json:"summary"`
	Vouchers []VoucherStatus `json:"vouchers"`
}

// Detail returns the batch with per-voucher status. The status string mirrors
// what validators see on site: AVAILABLE, USED or EXPIRED.
func (s *Service) Detail(token string) (*BatchDetail, error) {
	batch, err := s.GetBatch(token)
	if err != nil {
		return nil, err
	}

	var vouchers []models.Voucher
	if err := s.db.Where("batch_token = ?", token).Order("created_at").Find(&vouchers).Error; err != nil {
		return nil, apperrors.Persistence("list batch vouchers", err)
	}

	var rejections int64
	if err := s.db.Model(&models.ScanEvent{}).
		Where("batch_token = ? AND type = ?", token, models.ScanRejected).
		Count(&rejections).Error; err != nil {
		return nil, apperrors.Persistence("count rejections", err)
	}

	now := time.Now()
	detail := BatchDetail{
		Summary: BatchSummary{
			BatchToken:     batch.BatchToken,
			ContractorName: batch.ContractorName,
			CreatedAt:      batch.CreatedAt,
			ExpiresAt:      batch.ExpiresAt,
			Total:          batch.Quantity,
			Rejections:     int(rejections),
			PaymentState:   batch.PaymentState,
			PaymentType:    batch.PaymentType,
			Amount:         batch.Amount,
			PriceTierName:  batch.PriceTierName,
			UnitPrice:      batch.UnitPrice,
			ArtifactURL:    batch.ArtifactURL,
		},
	}

	for _, v := range vouchers {
		status := "AVAILABLE"
		switch {
		case v.Redeemed:
			status = "USED"
			detail.Summary.Used++
		case v.Expired(now):
			status = "EXPIRED"
		}
		detail.Vouchers = append(detail.Vouchers, VoucherStatus{
			ID:         v.ID,
			Redeemed:   v.Redeemed,
			RedeemedAt: v.RedeemedAt,
			Location:   v.Location,
			Status:     status,
		})
	}
	detail.Summary.Available = detail.Summary.Total - detail.Summary.Used
	return &detail, nil
}

// ContractorStats aggregates voucher usage per contractor.
type ContractorStats struct {
	ContractorName string `json:"contractorName"`
	Total          int    `json:"total"`
	Used           int    `json:"used"`
	Available      int    `json:"available"`
}

// Stats returns voucher usage grouped per contractor, optionally filtered.
func (s *Service) Stats(filter ListFilter) ([]ContractorStats, error) {
	q := s.db.Model(&models.Voucher{}).
		Select("contractor_name, COUNT(*) AS total, SUM(CASE WHEN redeemed THEN 1 ELSE 0 END) AS used").
		Group("contractor_name")
	if filter.ContractorName != "" {
		q = q.Where("contractor_name = ?", filter.ContractorName)
	}

	var rows []struct {
		ContractorName string
		Total          int
		Used           int
	}
	if err := q.Scan(&rows).Error; err != nil {
		return nil, apperrors.Persistence("aggregate stats", err)
	}

	out := make([]ContractorStats, 0, len(rows))
	for _, r := range rows {
		out = append(out, ContractorStats{
			ContractorName: r.ContractorName,
			Total:          r.Total,
			Used:           r.Used,
			Available:      r.Total - r.Used,
		})
	}
	return out, nil
}
