// Package audit keeps the append-only ledger of state-changing actions.
// Recording is best effort: a failure to write an audit entry is logged and
// swallowed, never escalated into the business operation it describes.
package audit

import (
	"encoding/json"
	"log"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/gessa-sistemas/boletosgo/internal/apperrors"
	"github.com/gessa-sistemas/boletosgo/internal/models"
)

// Action kinds used across the handlers.
const (
	ActionCreate    = "CREATE"
	ActionUpdate    = "UPDATE"
	ActionAuthorize = "AUTHORIZE"
	ActionRedeem    = "REDEEM"
	ActionDownload  = "DOWNLOAD"
	ActionLogin     = "LOGIN"
)

// Service is the audit ledger.
type Service struct {
	db *gorm.DB
}

// NewService creates an audit service on top of db.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Record appends one ledger entry. actorID may be empty for system actions;
// detail is serialized to JSON. Never returns an error to the caller.
func (s *Service) Record(actorID, action, module, targetTable, recordID string, detail interface{}, ip string) {
	entry := models.AuditEntry{
		Action:      action,
		Module:      module,
		TargetTable: targetTable,
	}
	if actorID != "" {
		entry.ActorID = &actorID
	}
	if recordID != "" {
		entry.RecordID = &recordID
	}
	if ip != "" {
		entry.IPAddress = &ip
	}
	if detail != nil {
		raw, err := json.Marshal(detail)
		if err != nil {
			log.Printf("⚠️ Audit: failed to serialize detail for %s/%s: %v", targetTable, action, err)
		} else {
			entry.Detail = datatypes.JSON(raw)
		}
	}

	if err := s.db.Create(&entry).Error; err != nil {
		log.Printf("⚠️ Audit: failed to record %s on %s: %v", action, targetTable, err)
	}
}

// Filter narrows History queries. Zero-value fields are ignored, so the
// predicate list is assembled from whichever filters the caller set.
type Filter struct {
	ActorID     string
	Action      string
	TargetTable string
	From        time.Time
	To          time.Time
}

// History returns matching ledger entries, newest first, capped at limit
// (default 100).
func (s *Service) History(f Filter, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	q := s.db.Model(&models.AuditEntry{})
	if f.ActorID != "" {
		q = q.Where("actor_id = ?", f.ActorID)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.TargetTable != "" {
		q = q.Where("target_table = ?", f.TargetTable)
	}
	if !f.From.IsZero() {
		q = q.Where("created_at >= ?", f.From)
	}
	if !f.To.IsZero() {
		q = q.Where("created_at <= ?", f.To)
	}

	var out []models.AuditEntry
	if err := q.Order("created_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, apperrors.Persistence("query audit ledger", err)
	}
	return out, nil
}

// RecordHistory reconstructs the full ledger trail of a single record.
func (s *Service) RecordHistory(targetTable, recordID string) ([]models.AuditEntry, error) {
	var out []models.AuditEntry
	err := s.db.Where("target_table = ? AND record_id = ?", targetTable, recordID).
		Order("created_at DESC").Find(&out).Error
	if err != nil {
		return nil, apperrors.Persistence("query record history", err)
	}
	return out, nil
}
