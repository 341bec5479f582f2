package models

import "time"

// SharingMode controls whether a recipient may share onwards.
type SharingMode string

const (
	SharingModeOwner  SharingMode = "owner"
	SharingModeAnyone SharingMode = "anyone"
)

// AcceptanceStatus is the recipient's acceptance state. Only the first two are
// set by the sharer; accepted and rejected come from the recipient's actions.
type AcceptanceStatus string

const (
	AcceptanceRequired    AcceptanceStatus = "acceptance_required"
	AcceptanceNotRequired AcceptanceStatus = "acceptance_not_required"
	AcceptanceAccepted    AcceptanceStatus = "accepted"
	AcceptanceRejected    AcceptanceStatus = "rejected"
)

// ShareType selects which side of a share to read.
type ShareType string

const (
	ShareIncoming ShareType = "incoming"
	ShareOutgoing ShareType = "outgoing"
)

// Share is one item re-encrypted for one recipient.
type Share struct {
	ID                 string           `json:"id"`
	ItemID             string           `json:"item_id"`
	OwnerID            string           `json:"owner_id,omitempty"`
	SenderID           string           `json:"sender_id,omitempty"`
	RecipientID        string           `json:"recipient_id"`
	PublicKey          string           `json:"public_key,omitempty"`
	KeypairExternalID  string           `json:"keypair_external_id,omitempty"`
	EncryptedDEK       string           `json:"encrypted_dek"`
	SharingMode        SharingMode      `json:"sharing_mode"`
	AcceptanceRequired AcceptanceStatus `json:"acceptance_required"`
	SlotID             string           `json:"slot_id,omitempty"`
	Terms              string           `json:"terms,omitempty"`
	ExpiresAt          *time.Time       `json:"expires_at,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
}

// ShareSlotValue is one slot encrypted under a share DEK. EncryptedValue is
// serialized as null for slots that exist on the template but hold no value.
type ShareSlotValue struct {
	ShareID                       string  `json:"share_id,omitempty"`
	SlotID                        string  `json:"slot_id"`
	EncryptedValue                *string `json:"encrypted_value"`
	EncryptedValueVerificationKey *string `json:"encrypted_value_verification_key,omitempty"`
	ValueVerificationHash         *string `json:"value_verification_hash,omitempty"`
}

// ShareOptions are the caller supplied parts of a new share.
type ShareOptions struct {
	SharingMode        SharingMode
	AcceptanceRequired AcceptanceStatus
	SlotID             string
	Terms              string
	ExpiresAt          *time.Time
}

// NewShare is the body of one share in POST /items/{id}/shares.
type NewShare struct {
	RecipientID        string           `json:"recipient_id"`
	PublicKey          string           `json:"public_key"`
	KeypairExternalID  string           `json:"keypair_external_id"`
	SharingMode        SharingMode      `json:"sharing_mode"`
	AcceptanceRequired AcceptanceStatus `json:"acceptance_required"`
	SlotID             string           `json:"slot_id,omitempty"`
	Terms              string           `json:"terms,omitempty"`
	ExpiresAt          *time.Time       `json:"expires_at,omitempty"`
	EncryptedDEK       string           `json:"encrypted_dek"`
	SlotValues         []ShareSlotValue `json:"slot_values"`
}

// SharePublicKey pairs a share with its recipient's public key.
type SharePublicKey struct {
	ID        string `json:"id"`
	PublicKey string `json:"public_key"`
}

// ShareDEK is a share DEK wrapped for one recipient.
type ShareDEK struct {
	ShareID string `json:"share_id"`
	DEK     string `json:"dek"`
}

// UpdateSharesRequest is the single batched body of PUT /items/{id}/shares.
type UpdateSharesRequest struct {
	ShareDEKs   []ShareDEK       `json:"share_deks"`
	SlotValues  []ShareSlotValue `json:"slot_values"`
	ClientTasks []ClientTask     `json:"client_tasks"`
}

// ShareWithItem is a share with the item and slots it references, as stored.
type ShareWithItem struct {
	Share                       Share           `json:"share"`
	Item                        Item            `json:"item"`
	Slots                       []EncryptedSlot `json:"slots"`
	ItemSharedViaAnotherShareID string          `json:"item_shared_via_another_share_id,omitempty"`
}

// SharedItem is the result of reading a share. While the share still awaits
// acceptance nothing is decrypted: AwaitingAcceptance is set and
// EncryptedSlots holds the payload untouched.
type SharedItem struct {
	Share              Share           `json:"share"`
	Item               Item            `json:"item"`
	Slots              []DecryptedSlot `json:"slots,omitempty"`
	EncryptedSlots     []EncryptedSlot `json:"encrypted_slots,omitempty"`
	AwaitingAcceptance bool            `json:"awaiting_acceptance"`
}
