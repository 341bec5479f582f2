package client

import (
	"github.com/dmitrijs2005/meecokeeper/internal/client/models"
)

// SRPChallenge is the keystore's answer to the client's public ephemeral.
type SRPChallenge struct {
	ChallengeB    string `json:"challenge_b"`
	ChallengeSalt string `json:"challenge_salt"`
}

type DataEncryptionKey struct {
	ID                          string `json:"id"`
	SerializedDataEncryptionKey string `json:"serialized_data_encryption_key"`
}

// Keypair is an RSA keypair whose private half is wrapped under the KEK.
type Keypair struct {
	ID                     string            `json:"id"`
	PublicKey              string            `json:"public_key"`
	EncryptedSerializedKey string            `json:"encrypted_serialized_key"`
	Metadata               map[string]string `json:"metadata,omitempty"`
	ExternalIdentifiers    []string          `json:"external_identifiers"`
}

type NewKeypair struct {
	PublicKey              string            `json:"public_key"`
	EncryptedSerializedKey string            `json:"encrypted_serialized_key"`
	Metadata               map[string]string `json:"metadata,omitempty"`
	ExternalIdentifiers    []string          `json:"external_identifiers"`
}

type VaultUser struct {
	ID                   string `json:"id"`
	PrivateDEKExternalID string `json:"private_dek_external_id"`
}

// CreatedVaultUser carries the session token encrypted to the user's
// vault public key.
type CreatedVaultUser struct {
	User                                VaultUser `json:"user"`
	EncryptedSessionAuthenticationString string    `json:"encrypted_session_authentication_string"`
}

// SlotAttributes is a slot as sent in item create and update bodies.
type SlotAttributes struct {
	Name                          string  `json:"name"`
	Label                         string  `json:"label,omitempty"`
	SlotType                      string  `json:"slot_type_name,omitempty"`
	Encrypted                     bool    `json:"encrypted"`
	EncryptedValue                *string `json:"encrypted_value,omitempty"`
	EncryptedValueVerificationKey *string `json:"encrypted_value_verification_key,omitempty"`
	ValueVerificationHash         *string `json:"value_verification_hash,omitempty"`
}

type ItemAttributes struct {
	Label           string           `json:"label,omitempty"`
	SlotsAttributes []SlotAttributes `json:"slots_attributes"`
}

type CreateItemRequest struct {
	TemplateName string         `json:"template_name"`
	Item         ItemAttributes `json:"item"`
}

type UpdateItemRequest struct {
	Item ItemAttributes `json:"item"`
}

type InvitationPublicKey struct {
	KeypairExternalID string `json:"keypair_external_id"`
	PublicKey         string `json:"public_key"`
}

type CreateInvitationRequest struct {
	PublicKey              InvitationPublicKey
	EncryptedRecipientName string
}

type CreateConnectionRequest struct {
	PublicKey              InvitationPublicKey
	EncryptedRecipientName string
	InvitationToken        string
}

// Page is the pagination part shared by all list responses.
type Page struct {
	NextPageAfter string            `json:"next_page_after,omitempty"`
	Meta          []models.PageMeta `json:"meta"`
}

// HasNext reports whether the server has more results after this page.
func (p Page) HasNext() bool {
	return len(p.Meta) > 0 && p.Meta[0].NextPageExists && p.NextPageAfter != ""
}

func (p Page) Cursor() string { return p.NextPageAfter }

type ItemsPage struct {
	Page
	Items []models.Item          `json:"items"`
	Slots []models.EncryptedSlot `json:"slots"`
}

type ConnectionsPage struct {
	Page
	Connections []models.Connection `json:"connections"`
}

type SharesPage struct {
	Page
	Shares []models.Share `json:"shares"`
}

type ClientTasksPage struct {
	Page
	ClientTasks []models.ClientTask `json:"client_tasks"`
}

// ClientTaskQuery filters GET /client_task_queue.
type ClientTaskQuery struct {
	SuppressChangingState bool
	State                 models.ClientTaskState
	models.PageOptions
}
