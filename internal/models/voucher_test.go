package models

import (
	"testing"
	"time"
)

func TestVoucher_Expired(t *testing.T) {
	expires := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	v := Voucher{ExpiresAt: expires}

	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"day before", time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC), false},
		{"morning of expiry day", time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC), false},
		{"last second of expiry day", time.Date(2026, 3, 15, 23, 59, 59, 0, time.UTC), false},
		{"first instant of next day", time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), true},
		{"well past expiry", time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := v.Expired(tc.now); got != tc.want {
				t.Errorf("Expired(%v) = %v, want %v", tc.now, got, tc.want)
			}
		})
	}
}

func TestVoucher_ExpiredWithTimestampedExpiry(t *testing.T) {
	// Even when the stored expiry carries a time-of-day component, the
	// voucher stays redeemable through the whole calendar day.
	v := Voucher{ExpiresAt: time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)}

	if v.Expired(time.Date(2026, 3, 15, 22, 0, 0, 0, time.UTC)) {
		t.Error("voucher should be valid on the evening of its expiry day")
	}
	if !v.Expired(time.Date(2026, 3, 16, 0, 0, 1, 0, time.UTC)) {
		t.Error("voucher should be expired the day after")
	}
}
