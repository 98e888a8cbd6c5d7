// Package evidence persists uploaded proof images: payment receipts attached
// at authorization time and the photos captured on every redemption scan.
package evidence

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gessa-sistemas/boletosgo/internal/apperrors"
)

// Kind selects the bucket and the size ceiling for an upload.
type Kind string

const (
	KindPayment   Kind = "payment"
	KindScanPhoto Kind = "scan"

	maxPaymentSize   = 5 << 20
	maxScanPhotoSize = 2 << 20
)

// Store writes evidence images and returns the stored object's path.
type Store interface {
	Save(ctx context.Context, kind Kind, filename, contentType string, r io.Reader, size int64) (string, error)
}

func limitFor(kind Kind) int64 {
	if kind == KindScanPhoto {
		return maxScanPhotoSize
	}
	return maxPaymentSize
}

// validate rejects non-image uploads and anything over the ceiling before a
// single byte is written.
func validate(kind Kind, contentType string, size int64) error {
	if !strings.HasPrefix(contentType, "image/") {
		return apperrors.Validation("only image files are accepted")
	}
	if limit := limitFor(kind); size > limit {
		return apperrors.Validation(fmt.Sprintf("file exceeds the %d MB limit", limit>>20))
	}
	return nil
}

// objectName builds a collision-free name keeping the original extension.
func objectName(kind Kind, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".jpg"
	}
	return fmt.Sprintf("%s/%d_%s%s", kind, time.Now().UnixMilli(), uuid.New().String()[:8], ext)
}
