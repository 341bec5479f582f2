package models

// SlotInfo holds the slot attributes that are never encrypted.
type SlotInfo struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Label        string  `json:"label"`
	SlotType     string  `json:"slot_type_name"`
	Own          bool    `json:"own"`
	AttachmentID *string `json:"attachment_id,omitempty"`
}

// EncryptedSlot is the wire form of a slot. When Encrypted is false the slot
// carries no value at all; an encrypted slot without EncryptedValue is a
// binary (attachment) slot.
type EncryptedSlot struct {
	SlotInfo
	Encrypted                     bool    `json:"encrypted"`
	EncryptedValue                *string `json:"encrypted_value"`
	EncryptedValueVerificationKey *string `json:"encrypted_value_verification_key"`
	ValueVerificationHash         *string `json:"value_verification_hash"`
}

// DecryptedSlot is a slot after DecryptSlot. The verification key is kept in
// both forms so the slot can be re-encrypted or re-shared without touching it.
type DecryptedSlot struct {
	SlotInfo
	Encrypted                     bool    `json:"encrypted"`
	Value                         *string `json:"value"`
	ValueVerificationKey          []byte  `json:"-"`
	EncryptedValueVerificationKey *string `json:"-"`
	ValueVerificationHash         *string `json:"value_verification_hash,omitempty"`
}

// HasValue reports whether the slot carries a non-empty plaintext value.
func (s DecryptedSlot) HasValue() bool {
	return s.Value != nil && *s.Value != ""
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
