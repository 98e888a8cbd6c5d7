package models

// Payment state of a voucher batch. PENDING is the initial state; the only
// defined transition is PENDING -> AUTHORIZED. There is no reverse transition.
const (
	PaymentPending    = "PENDING"
	PaymentAuthorized = "AUTHORIZED"
)

// Payment types. Cash payments require a payment-evidence image before the
// batch can be authorized; credit payments do not.
const (
	PayCash   = "CASH"
	PayCredit = "CREDIT"
)

// Scan event types.
const (
	ScanSuccess  = "SUCCESS"
	ScanRejected = "REJECTED"
)

// Authorization request states. PENDING resolves to exactly one of the other
// two; both are terminal.
const (
	RequestPending  = "PENDING"
	RequestApproved = "APPROVED"
	RequestRejected = "REJECTED"
)

// DefaultDownloadLimit bounds how many times a batch's rendered PDF may be
// fetched before an administrator has to intervene.
const DefaultDownloadLimit = 3
