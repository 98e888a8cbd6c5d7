package redemption

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gessa-sistemas/boletosgo/internal/models"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []interface{}
}

func (p *capturePublisher) Broadcast(v interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, v)
}

func testService(t *testing.T) (*Service, *gorm.DB, *capturePublisher) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.Voucher{}, &models.ScanEvent{}))

	pub := &capturePublisher{}
	return NewService(db, pub), db, pub
}

func seedVoucher(t *testing.T, db *gorm.DB, id string, expiresAt time.Time) {
	t.Helper()
	require.NoError(t, db.Create(&models.Voucher{
		ID:             id,
		BatchToken:     "LOTE_TEST_0001",
		ContractorName: "Halliburton",
		ExpiresAt:      expiresAt,
	}).Error)
}

func TestValidate_DecisionTable(t *testing.T) {
	svc, db, _ := testService(t)

	fixed := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	seedVoucher(t, db, "valid-1", fixed.AddDate(0, 0, 5))
	seedVoucher(t, db, "expired-1", fixed.AddDate(0, 0, -1))
	seedVoucher(t, db, "used-1", fixed.AddDate(0, 0, 5))
	usedAt := fixed.Add(-time.Hour)
	require.NoError(t, db.Model(&models.Voucher{}).Where("id = ?", "used-1").
		Updates(map[string]interface{}{"redeemed": true, "redeemed_at": usedAt}).Error)

	cases := []struct {
		name   string
		id     string
		valid  bool
		reason string
	}{
		{"redeemable", "valid-1", true, ""},
		{"unknown id", "no-such-voucher", false, ReasonNotFound},
		{"already used", "used-1", false, ReasonAlreadyUsed},
		{"expired", "expired-1", false, ReasonExpired},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := svc.Validate(tc.id)
			require.NoError(t, err)
			require.Equal(t, tc.valid, res.Valid)
			require.Equal(t, tc.reason, res.Reason)
		})
	}

	// The already-used answer carries the prior redemption timestamp.
	res, err := svc.Validate("used-1")
	require.NoError(t, err)
	require.NotNil(t, res.RedeemedAt)
}

func TestValidate_ExpiryDayIsRedeemable(t *testing.T) {
	svc, db, _ := testService(t)

	expiry := time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC)
	seedVoucher(t, db, "boundary-1", expiry)

	svc.now = func() time.Time { return time.Date(2026, 6, 10, 23, 0, 0, 0, time.UTC) }
	res, err := svc.Validate("boundary-1")
	require.NoError(t, err)
	require.True(t, res.Valid)

	svc.now = func() time.Time { return time.Date(2026, 6, 11, 0, 30, 0, 0, time.UTC) }
	res, err = svc.Validate("boundary-1")
	require.NoError(t, err)
	require.False(t, res.Valid)
	require.Equal(t, ReasonExpired, res.Reason)
}

func TestRedeem_Success(t *testing.T) {
	svc, db, pub := testService(t)
	seedVoucher(t, db, "v-1", time.Now().AddDate(0, 1, 0))

	out, err := svc.Redeem(context.Background(), "v-1", "Comedor Central", "scan/photo1.jpg")
	require.NoError(t, err)
	require.True(t, out.Success)
	require.True(t, out.PhotoCaptured)
	require.NotNil(t, out.RedeemedAt)

	var v models.Voucher
	require.NoError(t, db.First(&v, "id = ?", "v-1").Error)
	require.True(t, v.Redeemed)

	// Exactly one SUCCESS event, carrying the photo.
	var events []models.ScanEvent
	require.NoError(t, db.Where("voucher_id = ?", "v-1").Find(&events).Error)
	require.Len(t, events, 1)
	require.Equal(t, models.ScanSuccess, events[0].Type)
	require.NotNil(t, events[0].PhotoPath)
	require.Equal(t, "scan/photo1.jpg", *events[0].PhotoPath)

	// And the live feed saw it.
	require.Len(t, pub.events, 1)
}

func TestRedeem_SecondAttemptRejected(t *testing.T) {
	svc, db, _ := testService(t)
	seedVoucher(t, db, "v-1", time.Now().AddDate(0, 1, 0))

	out, err := svc.Redeem(context.Background(), "v-1", "Comedor Central", "")
	require.NoError(t, err)
	require.True(t, out.Success)

	out, err = svc.Redeem(context.Background(), "v-1", "Comedor Norte", "scan/retry.jpg")
	require.NoError(t, err)
	require.False(t, out.Success)
	require.Equal(t, ReasonAlreadyUsed, out.Reason)
	require.True(t, out.PhotoCaptured)

	// The rejection left an event with reason and photo.
	rejections, err := svc.Rejections("v-1")
	require.NoError(t, err)
	require.Len(t, rejections, 1)
	require.Equal(t, ReasonAlreadyUsed, *rejections[0].RejectReason)
	require.NotNil(t, rejections[0].PhotoPath)

	// The voucher's first redemption is untouched.
	var v models.Voucher
	require.NoError(t, db.First(&v, "id = ?", "v-1").Error)
	require.True(t, v.Redeemed)
	require.Equal(t, "Comedor Central", *v.Location)
}

func TestRedeem_ExpiredLeavesRejectionEvent(t *testing.T) {
	svc, db, _ := testService(t)
	seedVoucher(t, db, "old-1", time.Now().AddDate(0, 0, -10))

	out, err := svc.Redeem(context.Background(), "old-1", "Comedor Central", "scan/expired.jpg")
	require.NoError(t, err)
	require.False(t, out.Success)
	require.Equal(t, ReasonExpired, out.Reason)

	var v models.Voucher
	require.NoError(t, db.First(&v, "id = ?", "old-1").Error)
	require.False(t, v.Redeemed)

	rejections, err := svc.Rejections("old-1")
	require.NoError(t, err)
	require.Len(t, rejections, 1)
	require.Equal(t, ReasonExpired, *rejections[0].RejectReason)
}

func TestRedeem_ConcurrentSingleWinner(t *testing.T) {
	svc, db, _ := testService(t)
	seedVoucher(t, db, "race-1", time.Now().AddDate(0, 1, 0))

	const attempts = 10
	outcomes := make([]*RedeemOutcome, attempts)
	var wg sync.WaitGroup
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func(i int) {
			defer wg.Done()
			out, err := svc.Redeem(context.Background(), "race-1", "Comedor Central", "")
			if err == nil {
				outcomes[i] = out
			}
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, out := range outcomes {
		require.NotNil(t, out)
		if out.Success {
			successes++
		} else {
			require.Equal(t, ReasonAlreadyUsed, out.Reason)
		}
	}
	require.Equal(t, 1, successes)

	var successEvents int64
	require.NoError(t, db.Model(&models.ScanEvent{}).
		Where("voucher_id = ? AND type = ?", "race-1", models.ScanSuccess).
		Count(&successEvents).Error)
	require.EqualValues(t, 1, successEvents)
}

func TestScanHistories(t *testing.T) {
	svc, db, _ := testService(t)
	seedVoucher(t, db, "h-1", time.Now().AddDate(0, 1, 0))
	seedVoucher(t, db, "h-2", time.Now().AddDate(0, 1, 0))

	_, err := svc.Redeem(context.Background(), "h-1", "Comedor Central", "scan/a.jpg")
	require.NoError(t, err)
	_, err = svc.Redeem(context.Background(), "h-1", "Comedor Central", "")
	require.NoError(t, err)
	_, err = svc.Redeem(context.Background(), "h-2", "Comedor Norte", "scan/b.jpg")
	require.NoError(t, err)

	scans, err := svc.BatchScans("LOTE_TEST_0001")
	require.NoError(t, err)
	require.Len(t, scans, 3)

	photos, err := svc.VoucherPhotos("h-1")
	require.NoError(t, err)
	require.Len(t, photos, 1)

	recent, err := svc.RecentScans(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)

	last, err := svc.LastActivity("LOTE_TEST_0001")
	require.NoError(t, err)
	require.NotNil(t, last)

	none, err := svc.LastActivity("LOTE_NEVER_SCANNED")
	require.NoError(t, err)
	require.Nil(t, none)
}
