package services

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/dmitrijs2005/meecokeeper/internal/client/client"
	"github.com/dmitrijs2005/meecokeeper/internal/client/models"
	"github.com/dmitrijs2005/meecokeeper/internal/cryptox"
	"github.com/stretchr/testify/require"
)

// ---- helpers ----

const testRSABits = 2048

var (
	keyPairOnce sync.Once
	keyPair     *cryptox.KeyPair
)

// testKeyPair returns one RSA keypair shared by the package tests; generating
// a fresh one per test is slow.
func testKeyPair(t *testing.T) *cryptox.KeyPair {
	t.Helper()
	keyPairOnce.Do(func() {
		kp, err := cryptox.NewCryppo(testRSABits).GenerateRSAKeyPair(testRSABits)
		if err == nil {
			keyPair = kp
		}
	})
	require.NotNil(t, keyPair)
	return keyPair
}

func testCreds(t *testing.T, c cryptox.Cryppo) *models.AuthData {
	t.Helper()
	return &models.AuthData{
		Secret:              "1.alice.AAAA",
		KeystoreAccessToken: "ks-token",
		VaultAccessToken:    "vault-token",
		DataEncryptionKey:   testDEK(t, c),
		KeyEncryptionKey:    testDEK(t, c),
	}
}

func testDeps() Deps {
	return Deps{Cryppo: cryptox.NewCryppo(testRSABits)}
}

// ---- fake API ----

// fakeAPI implements client.API. Only the methods a test sets a func for may
// be called; the embedded nil interface panics on anything else.
type fakeAPI struct {
	client.API

	mu     sync.Mutex
	writes []string

	getConnection        func(id string) (*models.Connection, error)
	getItem              func(id string) (*models.ItemResponse, error)
	getIncomingShare     func(id string) (*models.Share, error)
	getOutgoingShare     func(id string) (*models.Share, error)
	getIncomingShareItem func(id string) (*models.ShareWithItem, error)
	getKeypair           func(id string) (*client.Keypair, error)
	getItemShares        func(itemID string) ([]models.SharePublicKey, error)
	acceptIncomingShare  func(id string) (*models.Share, error)
	deleteShare          func(id string) error

	createShares     func(itemID string, shares []models.NewShare) ([]models.Share, error)
	updateItemShares func(itemID string, req models.UpdateSharesRequest) error
}

func (f *fakeAPI) wrote(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, name)
}

func (f *fakeAPI) Writes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

func (f *fakeAPI) GetConnection(ctx context.Context, token, id string) (*models.Connection, error) {
	return f.getConnection(id)
}

func (f *fakeAPI) GetItem(ctx context.Context, token, id string) (*models.ItemResponse, error) {
	return f.getItem(id)
}

func (f *fakeAPI) GetIncomingShare(ctx context.Context, token, id string) (*models.Share, error) {
	return f.getIncomingShare(id)
}

func (f *fakeAPI) GetOutgoingShare(ctx context.Context, token, id string) (*models.Share, error) {
	return f.getOutgoingShare(id)
}

func (f *fakeAPI) GetIncomingShareItem(ctx context.Context, token, id string) (*models.ShareWithItem, error) {
	return f.getIncomingShareItem(id)
}

func (f *fakeAPI) GetKeypair(ctx context.Context, token, id string) (*client.Keypair, error) {
	return f.getKeypair(id)
}

func (f *fakeAPI) GetItemShares(ctx context.Context, token, itemID string) ([]models.SharePublicKey, error) {
	return f.getItemShares(itemID)
}

func (f *fakeAPI) AcceptIncomingShare(ctx context.Context, token, id string) (*models.Share, error) {
	f.wrote("AcceptIncomingShare")
	return f.acceptIncomingShare(id)
}

func (f *fakeAPI) DeleteShare(ctx context.Context, token, id string) error {
	f.wrote("DeleteShare")
	return f.deleteShare(id)
}

func (f *fakeAPI) CreateShares(ctx context.Context, token, itemID string, shares []models.NewShare) ([]models.Share, error) {
	f.wrote("CreateShares")
	return f.createShares(itemID, shares)
}

func (f *fakeAPI) UpdateItemShares(ctx context.Context, token, itemID string, req models.UpdateSharesRequest) error {
	f.wrote("UpdateItemShares")
	return f.updateItemShares(itemID, req)
}

// ownItem builds an item response whose slots are sealed under dek.
func ownItem(t *testing.T, c cryptox.Cryppo, dek models.EncryptionKey, id string, slots map[string]*string) *models.ItemResponse {
	t.Helper()
	resp := &models.ItemResponse{Item: models.Item{ID: id, Name: "food", Label: "Food", Own: true}}
	for _, name := range sortedKeys(slots) {
		enc, err := EncryptSlot(c, models.DecryptedSlot{
			SlotInfo: models.SlotInfo{ID: id + "-" + name, Name: name, Own: true},
			Value:    slots[name],
		}, dek)
		require.NoError(t, err)
		resp.Slots = append(resp.Slots, enc)
		resp.Item.SlotIDs = append(resp.Item.SlotIDs, enc.ID)
	}
	return resp
}

func sortedKeys(m map[string]*string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
