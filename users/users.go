package users

// UserRecord is the persisted application user row, keyed by the
// Salesforce identity and owned by the external user store.
type UserRecord struct {
	ID     int64 `json:"id"`     // Database identifier
	Points int   `json:"points"` // Current point total
}
