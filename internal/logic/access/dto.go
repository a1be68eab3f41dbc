package access

import "time"

// Status is the lifecycle state of a grant. Active grants may authenticate;
// Inactive and Expired are terminal.
type Status string

const (
	StatusActive   Status = "Active"
	StatusInactive Status = "Inactive"
	StatusExpired  Status = "Expired"
)

// Connection is one issued SSH access grant. Login doubles as the record key:
// it is minted per issuance from the owner handle plus a microsecond
// timestamp, so it is unique and serves as the connection identifier in the
// API.
type Connection struct {
	Login        string    `json:"login"`
	OwnerID      string    `json:"ownerId"`
	OwnerHandle  string    `json:"ownerHandle"`
	InstanceName string    `json:"instanceName"`
	Secret       string    `json:"secret"`
	Port         int32     `json:"port"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
	LastAccessed time.Time `json:"lastAccessed,omitzero"`
}
