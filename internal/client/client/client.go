package client

import (
	"context"

	"github.com/dmitrijs2005/meecokeeper/internal/client/models"
)

// KeystoreAPI is the keystore: SRP sessions and wrapped key storage.
type KeystoreAPI interface {
	GenerateUsername(ctx context.Context) (string, error)
	CreateSRPUser(ctx context.Context, username, salt, verifier string) error
	CreateSRPChallenge(ctx context.Context, username, srpA string) (*SRPChallenge, error)
	CreateSRPSession(ctx context.Context, username, srpA, srpM string) (string, error)
	DeleteKeystoreSession(ctx context.Context, token string) error

	GetExternalAdmissionToken(ctx context.Context, token string) (string, error)

	CreateKeyEncryptionKey(ctx context.Context, token, serialized string) error
	GetKeyEncryptionKey(ctx context.Context, token string) (string, error)

	CreateDataEncryptionKey(ctx context.Context, token, serialized string) (*DataEncryptionKey, error)
	GetDataEncryptionKey(ctx context.Context, token, id string) (*DataEncryptionKey, error)

	CreateKeypair(ctx context.Context, token string, kp NewKeypair) (*Keypair, error)
	GetKeypair(ctx context.Context, token, id string) (*Keypair, error)
	GetKeypairByExternalID(ctx context.Context, token, externalID string) (*Keypair, error)
}

// VaultUserAPI manages the vault user and its sessions.
type VaultUserAPI interface {
	CreateVaultUser(ctx context.Context, publicKey, admissionToken string) (*CreatedVaultUser, error)
	CreateVaultSession(ctx context.Context, publicKey string) (string, error)
	GetVaultUser(ctx context.Context, token string) (*VaultUser, error)
	UpdateVaultUser(ctx context.Context, token, privateDEKExternalID string) (*VaultUser, error)
	DeleteVaultSession(ctx context.Context, token string) error
}

type ItemAPI interface {
	ListItems(ctx context.Context, token string, templateIDs string, opts models.PageOptions) (*ItemsPage, error)
	GetItem(ctx context.Context, token, id string) (*models.ItemResponse, error)
	CreateItem(ctx context.Context, token string, req CreateItemRequest) (*models.ItemResponse, error)
	UpdateItem(ctx context.Context, token, id string, req UpdateItemRequest) (*models.ItemResponse, error)
	DeleteItem(ctx context.Context, token, id string) error
	DeleteSlot(ctx context.Context, token, id string) error
}

type ConnectionAPI interface {
	ListConnections(ctx context.Context, token string, opts models.PageOptions) (*ConnectionsPage, error)
	GetConnection(ctx context.Context, token, id string) (*models.Connection, error)
	CreateInvitation(ctx context.Context, token string, req CreateInvitationRequest) (*models.Invitation, error)
	CreateConnection(ctx context.Context, token string, req CreateConnectionRequest) (*models.Connection, error)
}

type ShareAPI interface {
	CreateShares(ctx context.Context, token, itemID string, shares []models.NewShare) ([]models.Share, error)
	GetItemShares(ctx context.Context, token, itemID string) ([]models.SharePublicKey, error)
	UpdateItemShares(ctx context.Context, token, itemID string, req models.UpdateSharesRequest) error
	ListIncomingShares(ctx context.Context, token string, acceptance models.AcceptanceStatus, opts models.PageOptions) (*SharesPage, error)
	ListOutgoingShares(ctx context.Context, token string, opts models.PageOptions) (*SharesPage, error)
	GetIncomingShare(ctx context.Context, token, id string) (*models.Share, error)
	GetOutgoingShare(ctx context.Context, token, id string) (*models.Share, error)
	GetIncomingShareItem(ctx context.Context, token, id string) (*models.ShareWithItem, error)
	AcceptIncomingShare(ctx context.Context, token, id string) (*models.Share, error)
	DeleteShare(ctx context.Context, token, id string) error
}

type ClientTaskQueueAPI interface {
	ListClientTasks(ctx context.Context, token string, q ClientTaskQuery) (*ClientTasksPage, error)
	UpdateClientTasks(ctx context.Context, token string, updates []models.ClientTaskUpdate) ([]models.ClientTask, error)
}

// API is everything the services need from the platform.
type API interface {
	KeystoreAPI
	VaultUserAPI
	ItemAPI
	ConnectionAPI
	ShareAPI
	ClientTaskQueueAPI
}
