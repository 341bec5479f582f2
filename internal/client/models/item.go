package models

import "time"

// Item is a vault record. An item is either owned by the caller (Own) or was
// received through a share (ShareID set), never both.
type Item struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Label      string    `json:"label"`
	Own        bool      `json:"own"`
	OwnerID    string    `json:"owner_id,omitempty"`
	ShareID    string    `json:"share_id,omitempty"`
	OriginalID string    `json:"original_id,omitempty"`
	SlotIDs    []string  `json:"slot_ids"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// IsReceived reports whether the item came from someone else's share.
func (i Item) IsReceived() bool {
	return !i.Own && i.ShareID != ""
}

// ItemResponse is an item as the vault returns it.
type ItemResponse struct {
	Item  Item            `json:"item"`
	Slots []EncryptedSlot `json:"slots"`
}

// DecryptedItem is an item with all slot values in plaintext.
type DecryptedItem struct {
	Item  Item            `json:"item"`
	Slots []DecryptedSlot `json:"slots"`
}

// SlotByName returns the first slot with the given name.
func (d *DecryptedItem) SlotByName(name string) (DecryptedSlot, bool) {
	for _, s := range d.Slots {
		if s.Name == name {
			return s, true
		}
	}
	return DecryptedSlot{}, false
}

// NewSlot is a slot value supplied when creating or updating an item.
type NewSlot struct {
	Name     string
	Label    string
	SlotType string
	Value    *string
}

// NewItem describes an item to create from a template.
type NewItem struct {
	TemplateName string
	Label        string
	Slots        []NewSlot
}

// UpdateItem stages changes to an existing item. Slots are matched by name.
type UpdateItem struct {
	ID    string
	Label string
	Slots []NewSlot
}
