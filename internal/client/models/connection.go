package models

import "time"

// ConnectionSide is one user's half of a connection.
type ConnectionSide struct {
	ID                     string     `json:"id"`
	UserID                 string     `json:"user_id,omitempty"`
	UserPublicKey          string     `json:"user_public_key,omitempty"`
	UserKeypairExternalID  string     `json:"user_keypair_external_id,omitempty"`
	EncryptedRecipientName string     `json:"encrypted_recipient_name,omitempty"`
	ConnectedAt            *time.Time `json:"connected_at,omitempty"`
}

// Connection links the caller (Own) with another user. Shares can only be
// created over a Valid connection.
type Connection struct {
	Own          ConnectionSide `json:"own"`
	TheOtherUser ConnectionSide `json:"the_other_user"`
}

// Valid reports whether both sides carry a public key and keypair id.
func (c Connection) Valid() bool {
	return c.Own.ID != "" &&
		c.Own.UserPublicKey != "" &&
		c.TheOtherUser.UserID != "" &&
		c.TheOtherUser.UserPublicKey != "" &&
		c.TheOtherUser.UserKeypairExternalID != ""
}

// DecryptedConnection is a connection with the recipient name in plaintext.
type DecryptedConnection struct {
	Connection
	Name string `json:"name"`
}

// Invitation is the first half of the connection handshake. The token is
// single use.
type Invitation struct {
	ID                     string     `json:"id"`
	Token                  string     `json:"invitation_token"`
	EncryptedRecipientName string     `json:"encrypted_recipient_name"`
	KeypairExternalID      string     `json:"keypair_external_id,omitempty"`
	Email                  string     `json:"email,omitempty"`
	ExpiresAt              *time.Time `json:"outgoing_request_expires_at,omitempty"`
}
