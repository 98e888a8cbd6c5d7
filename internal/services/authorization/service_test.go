package authorization

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gessa-sistemas/boletosgo/internal/apperrors"
	"github.com/gessa-sistemas/boletosgo/internal/models"
)

func testService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.VoucherBatch{}, &models.AuthorizationRequest{}))
	return NewService(db), db
}

func seedBatch(t *testing.T, db *gorm.DB, token, paymentType string) {
	t.Helper()
	require.NoError(t, db.Create(&models.VoucherBatch{
		BatchToken:     token,
		ContractorName: "Halliburton",
		Quantity:       5,
		ExpiresAt:      time.Now().AddDate(0, 1, 0),
		PaymentType:    paymentType,
		PaymentState:   models.PaymentPending,
		DownloadLimit:  models.DefaultDownloadLimit,
	}).Error)
}

func validInput(token string) AuthorizeInput {
	return AuthorizeInput{
		BatchToken:        token,
		AuthorizationCode: "TRANS-7731",
		AuthorizedBy:      "finanzas1",
		PaymentDate:       time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC),
		EvidencePath:      "payment/receipt.jpg",
	}
}

func TestAuthorize_CashRequiresEvidence(t *testing.T) {
	svc, db := testService(t)
	seedBatch(t, db, "LOTE_CASH", models.PayCash)

	in := validInput("LOTE_CASH")
	in.EvidencePath = ""
	_, err := svc.Authorize(in)
	require.True(t, apperrors.IsValidation(err))

	// The refusal left the batch untouched.
	var batch models.VoucherBatch
	require.NoError(t, db.First(&batch, "batch_token = ?", "LOTE_CASH").Error)
	require.Equal(t, models.PaymentPending, batch.PaymentState)

	in.EvidencePath = "payment/receipt.jpg"
	authorized, err := svc.Authorize(in)
	require.NoError(t, err)
	require.Equal(t, models.PaymentAuthorized, authorized.PaymentState)
	require.Equal(t, "TRANS-7731", *authorized.AuthorizationCode)
	require.Equal(t, "payment/receipt.jpg", *authorized.PaymentEvidencePath)
}

func TestAuthorize_CreditEvidenceOptional(t *testing.T) {
	svc, db := testService(t)
	seedBatch(t, db, "LOTE_CREDIT", models.PayCredit)

	in := validInput("LOTE_CREDIT")
	in.EvidencePath = ""
	authorized, err := svc.Authorize(in)
	require.NoError(t, err)
	require.Equal(t, models.PaymentAuthorized, authorized.PaymentState)
	require.Nil(t, authorized.PaymentEvidencePath)
}

func TestAuthorize_RequiredFields(t *testing.T) {
	svc, db := testService(t)
	seedBatch(t, db, "LOTE_X", models.PayCredit)

	in := validInput("LOTE_X")
	in.AuthorizationCode = ""
	_, err := svc.Authorize(in)
	require.True(t, apperrors.IsValidation(err))

	in = validInput("LOTE_X")
	in.PaymentDate = time.Time{}
	_, err = svc.Authorize(in)
	require.True(t, apperrors.IsValidation(err))

	_, err = svc.Authorize(validInput("LOTE_MISSING"))
	require.True(t, apperrors.IsNotFound(err))
}

func TestAuthorize_AlreadyAuthorized(t *testing.T) {
	svc, db := testService(t)
	seedBatch(t, db, "LOTE_ONCE", models.PayCredit)

	_, err := svc.Authorize(validInput("LOTE_ONCE"))
	require.NoError(t, err)

	_, err = svc.Authorize(validInput("LOTE_ONCE"))
	require.True(t, apperrors.IsConflict(err))
}

func TestRequest_OnePendingPerBatch(t *testing.T) {
	svc, db := testService(t)
	seedBatch(t, db, "LOTE_REQ", models.PayCredit)

	_, err := svc.Request("LOTE_REQ", "gerente1", "")
	require.True(t, apperrors.IsValidation(err))

	req, err := svc.Request("LOTE_REQ", "gerente1", "client needs vouchers monday")
	require.NoError(t, err)
	require.Equal(t, models.RequestPending, req.State)

	_, err = svc.Request("LOTE_REQ", "gerente2", "duplicate ask")
	require.True(t, apperrors.IsConflict(err))

	_, err = svc.Request("LOTE_MISSING", "gerente1", "whatever")
	require.True(t, apperrors.IsNotFound(err))
}

func TestApprove_AdvancesBatch(t *testing.T) {
	svc, db := testService(t)
	seedBatch(t, db, "LOTE_APR", models.PayCredit)

	req, err := svc.Request("LOTE_APR", "gerente1", "client needs vouchers monday")
	require.NoError(t, err)

	resolved, err := svc.Approve(req.ID, "finanzas1", "approved by phone")
	require.NoError(t, err)
	require.Equal(t, models.RequestApproved, resolved.State)
	require.Equal(t, "finanzas1", *resolved.ResolvedBy)
	require.NotNil(t, resolved.ResolvedAt)

	// Approval authorized the batch with the request id as the code.
	var batch models.VoucherBatch
	require.NoError(t, db.First(&batch, "batch_token = ?", "LOTE_APR").Error)
	require.Equal(t, models.PaymentAuthorized, batch.PaymentState)
	require.Contains(t, *batch.AuthorizationCode, "REQ-")

	// A resolved request cannot be resolved again.
	_, err = svc.Approve(req.ID, "finanzas1", "")
	require.True(t, apperrors.IsConflict(err))

	approved, latest, err := svc.Status("LOTE_APR")
	require.NoError(t, err)
	require.True(t, approved)
	require.Equal(t, req.ID, latest.ID)
}

func TestReject_LeavesBatchPending(t *testing.T) {
	svc, db := testService(t)
	seedBatch(t, db, "LOTE_REJ", models.PayCredit)

	req, err := svc.Request("LOTE_REJ", "gerente1", "client needs vouchers monday")
	require.NoError(t, err)

	_, err = svc.Reject(req.ID, "finanzas1", "")
	require.True(t, apperrors.IsValidation(err))

	resolved, err := svc.Reject(req.ID, "finanzas1", "no purchase order on file")
	require.NoError(t, err)
	require.Equal(t, models.RequestRejected, resolved.State)

	var batch models.VoucherBatch
	require.NoError(t, db.First(&batch, "batch_token = ?", "LOTE_REJ").Error)
	require.Equal(t, models.PaymentPending, batch.PaymentState)

	// A new request may follow a rejection.
	_, err = svc.Request("LOTE_REJ", "gerente1", "second try with PO attached")
	require.NoError(t, err)

	history, err := svc.History("LOTE_REJ")
	require.NoError(t, err)
	require.Len(t, history, 2)
}
