package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gessa-sistemas/boletosgo/internal/config"
	"github.com/gessa-sistemas/boletosgo/internal/models"
	"github.com/gessa-sistemas/boletosgo/internal/services/evidence"
	ws "github.com/gessa-sistemas/boletosgo/internal/websocket"
)

func testRouter(t *testing.T) *Router {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.UserAuth{},
		&models.Contractor{},
		&models.DiningSite{},
		&models.PriceTier{},
		&models.VoucherBatch{},
		&models.Voucher{},
		&models.ScanEvent{},
		&models.DownloadRecord{},
		&models.AuthorizationRequest{},
		&models.AuditEntry{},
	))

	cfg := &config.Config{
		Env:           "test",
		Port:          "0",
		JWTSecret:     "test-secret-key-12345",
		DownloadLimit: 3,
	}
	cfg.Storage.Backend = "disk"
	cfg.Storage.ArtifactDir = t.TempDir()
	cfg.Storage.EvidenceDir = t.TempDir()

	hub := ws.NewHub()
	store := evidence.NewDiskStore(cfg.Storage.EvidenceDir)
	return NewRouter(db, cfg, hub, store)
}

func doJSON(t *testing.T, router *Router, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

// multipartBody assembles form fields plus an optional image file part with a
// proper image content type.
func multipartBody(t *testing.T, fields map[string]string, fileField, fileName string, fileData []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileField != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="%s"; filename="%s"`, fileField, fileName))
		h.Set("Content-Type", "image/jpeg")
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(fileData)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func doMultipart(t *testing.T, router *Router, path, token string, fields map[string]string, fileField, fileName string, fileData []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, fields, fileField, fileName, fileData)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func registerUser(t *testing.T, router *Router, username, role string) string {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/auth/register", "", map[string]string{
		"username": username,
		"password": "secret123",
		"role":     role,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Token string `json:"token"`
	}
	decode(t, rec, &resp)
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestAuthRequired(t *testing.T) {
	router := testRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/batches", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPermissionEnforced(t *testing.T) {
	router := testRouter(t)
	validator := registerUser(t, router, "scanner1", "validator")

	// Validators scan; they cannot issue batches.
	rec := doJSON(t, router, http.MethodPost, "/api/batches", validator, map[string]interface{}{
		"contractorName": "Halliburton",
		"quantity":       1,
		"expiresAt":      "2030-01-01",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLogin(t *testing.T) {
	router := testRouter(t)
	registerUser(t, router, "finanzas1", "finance")

	rec := doJSON(t, router, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "finanzas1",
		"password": "secret123",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "finanzas1",
		"password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

// TestVoucherLifecycle exercises the whole flow: issue, authorize with
// evidence, download to the ceiling, then redeem a voucher twice.
func TestVoucherLifecycle(t *testing.T) {
	router := testRouter(t)
	admin := registerUser(t, router, "admin1", "admin")

	// 1. Issue a cash batch of 3 vouchers.
	rec := doJSON(t, router, http.MethodPost, "/api/batches", admin, map[string]interface{}{
		"contractorName": "Constructora Pacifico Norte",
		"quantity":       3,
		"expiresAt":      "2030-06-01",
		"paymentType":    "CASH",
		"diningSiteName": "Comedor Central",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Batch       models.VoucherBatch `json:"batch"`
		ArtifactURL *string             `json:"artifactUrl"`
	}
	decode(t, rec, &created)
	token := created.Batch.BatchToken
	require.NotEmpty(t, token)
	require.NotNil(t, created.ArtifactURL)

	// 2. The detail view lists 3 available vouchers.
	rec = doJSON(t, router, http.MethodGet, "/api/batches/"+token, admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail struct {
		Vouchers []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"vouchers"`
	}
	decode(t, rec, &detail)
	require.Len(t, detail.Vouchers, 3)
	require.Equal(t, "AVAILABLE", detail.Vouchers[0].Status)

	// 3. Downloads are refused while the batch is PENDING.
	rec = doJSON(t, router, http.MethodPost, "/api/batches/"+token+"/downloads", admin,
		map[string]string{"justification": "first print"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// 4. Cash authorization without evidence is refused.
	rec = doMultipart(t, router, "/api/batches/"+token+"/authorize", admin,
		map[string]string{"authorizationCode": "TRANS-7731", "paymentDate": "2026-05-02"},
		"", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// 5. With the receipt image it goes through.
	rec = doMultipart(t, router, "/api/batches/"+token+"/authorize", admin,
		map[string]string{"authorizationCode": "TRANS-7731", "paymentDate": "2026-05-02"},
		"evidence", "receipt.jpg", []byte("fake jpeg bytes"))
	require.Equal(t, http.StatusOK, rec.Code)

	// 6. Authorizing twice is a conflict.
	rec = doMultipart(t, router, "/api/batches/"+token+"/authorize", admin,
		map[string]string{"authorizationCode": "TRANS-7731", "paymentDate": "2026-05-02"},
		"evidence", "receipt.jpg", []byte("fake jpeg bytes"))
	require.Equal(t, http.StatusConflict, rec.Code)

	// 7. Exactly three downloads, then 429.
	for i := 0; i < 3; i++ {
		rec = doJSON(t, router, http.MethodPost, "/api/batches/"+token+"/downloads", admin,
			map[string]string{"justification": "reprint for client"})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec = doJSON(t, router, http.MethodPost, "/api/batches/"+token+"/downloads", admin,
		map[string]string{"justification": "one too many"})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	// 8. Validate then redeem a voucher, with a scan photo.
	voucherID := detail.Vouchers[0].ID
	rec = doJSON(t, router, http.MethodPost, "/api/vouchers/validate", admin,
		map[string]string{"voucherId": voucherID})
	require.Equal(t, http.StatusOK, rec.Code)
	var validation struct {
		Valid bool `json:"valid"`
	}
	decode(t, rec, &validation)
	require.True(t, validation.Valid)

	rec = doMultipart(t, router, "/api/vouchers/redeem", admin,
		map[string]string{"voucherId": voucherID, "location": "Comedor Central"},
		"photo", "scan.jpg", []byte("fake jpeg bytes"))
	require.Equal(t, http.StatusOK, rec.Code)
	var outcome struct {
		Success       bool   `json:"success"`
		Reason        string `json:"reason"`
		PhotoCaptured bool   `json:"photoCaptured"`
	}
	decode(t, rec, &outcome)
	require.True(t, outcome.Success)
	require.True(t, outcome.PhotoCaptured)

	// 9. A second scan of the same voucher is rejected, not an error.
	rec = doMultipart(t, router, "/api/vouchers/redeem", admin,
		map[string]string{"voucherId": voucherID, "location": "Comedor Central"},
		"photo", "scan2.jpg", []byte("fake jpeg bytes"))
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &outcome)
	require.False(t, outcome.Success)
	require.Equal(t, "voucher already used", outcome.Reason)

	// 10. The rejection is visible in the voucher's history.
	rec = doJSON(t, router, http.MethodGet, "/api/vouchers/"+voucherID+"/rejections", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rejections []models.ScanEvent
	decode(t, rec, &rejections)
	require.Len(t, rejections, 1)

	// 11. Every step above left audit entries.
	rec = doJSON(t, router, http.MethodGet, "/api/audit", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []models.AuditEntry
	decode(t, rec, &entries)
	require.NotEmpty(t, entries)
}

// TestAuthorizationRequestWorkflow covers the request/approve path: a manager
// without the authorize permission files a request, finance approves it, and
// the batch becomes downloadable.
func TestAuthorizationRequestWorkflow(t *testing.T) {
	router := testRouter(t)
	manager := registerUser(t, router, "gerente1", "manager")
	finance := registerUser(t, router, "finanzas1", "finance")

	rec := doJSON(t, router, http.MethodPost, "/api/batches", manager, map[string]interface{}{
		"contractorName": "Halliburton",
		"quantity":       2,
		"expiresAt":      "2030-06-01",
		"paymentType":    "CREDIT",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		Batch models.VoucherBatch `json:"batch"`
	}
	decode(t, rec, &created)
	token := created.Batch.BatchToken

	// Managers cannot authorize directly.
	rec = doMultipart(t, router, "/api/batches/"+token+"/authorize", manager,
		map[string]string{"authorizationCode": "X", "paymentDate": "2026-05-02"}, "", "", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// So they file a request instead.
	rec = doJSON(t, router, http.MethodPost, "/api/batches/"+token+"/authorization-requests", manager,
		map[string]string{"justification": "client needs vouchers monday"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var request models.AuthorizationRequest
	decode(t, rec, &request)

	// A second request while one is pending is refused.
	rec = doJSON(t, router, http.MethodPost, "/api/batches/"+token+"/authorization-requests", manager,
		map[string]string{"justification": "asking again"})
	require.Equal(t, http.StatusConflict, rec.Code)

	// Finance approves; the batch advances to AUTHORIZED.
	rec = doJSON(t, router, http.MethodPost,
		fmt.Sprintf("/api/authorization-requests/%d/approve", request.ID), finance,
		map[string]string{"notes": "approved by phone"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/batches/"+token+"/payment", manager, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var payment struct {
		PaymentState string `json:"paymentState"`
	}
	decode(t, rec, &payment)
	require.Equal(t, models.PaymentAuthorized, payment.PaymentState)

	// And the status endpoint reflects the approval.
	rec = doJSON(t, router, http.MethodGet, "/api/batches/"+token+"/authorization-status", manager, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status struct {
		Approved bool `json:"approved"`
	}
	decode(t, rec, &status)
	require.True(t, status.Approved)

	// Downloads now work for the manager.
	rec = doJSON(t, router, http.MethodPost, "/api/batches/"+token+"/downloads", manager,
		map[string]string{"justification": "first print"})
	require.Equal(t, http.StatusOK, rec.Code)
}
