package enum

// ── Request lifecycle (CHECK constrained in DB) ──

const (
	RequestStatusPending   = "pending"
	RequestStatusSent      = "sent"
	RequestStatusViewed    = "viewed"
	RequestStatusConfirmed = "confirmed"
	RequestStatusCancelled = "cancelled"
)

// ── Line item kinds (CHECK constrained in DB) ──

const (
	ItemKindRepair      = "repair"
	ItemKindReplacement = "replacement"
)

// ── Admin roles ──

const (
	RoleAdmin = "ADMIN"
)

// IsTerminalStatus reports whether a request can no longer move through the
// customer-facing flow.
func IsTerminalStatus(s string) bool {
	return s == RequestStatusConfirmed || s == RequestStatusCancelled
}
