package services

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/meecokeeper/internal/client/client"
	"github.com/dmitrijs2005/meecokeeper/internal/client/models"
	"github.com/dmitrijs2005/meecokeeper/internal/common"
	"github.com/dmitrijs2005/meecokeeper/internal/cryptox"
	"github.com/dmitrijs2005/meecokeeper/internal/vaultfake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type platform struct {
	api   *client.HTTPClient
	deps  Deps
	users UserService
	items ItemService
	conns ConnectionService
	share ShareService
	tasks ClientTaskQueueService
}

func newPlatform(t *testing.T) *platform {
	t.Helper()
	srv := vaultfake.New(vaultfake.WithSubscriptionKey("sub-key"))
	srv.Start()
	t.Cleanup(srv.Close)

	api := client.NewHTTPClient(srv.VaultURL(), srv.KeystoreURL(), client.WithSubscriptionKey("sub-key"))
	deps := testDeps()
	shares := NewShareService(api, deps)
	return &platform{
		api:   api,
		deps:  deps,
		users: NewUserService(api, deps),
		items: NewItemService(api, deps),
		conns: NewConnectionService(api, deps),
		share: shares,
		tasks: NewClientTaskQueueService(api, shares, deps),
	}
}

func (p *platform) newUser(t *testing.T, passphrase string) *models.AuthData {
	t.Helper()
	ctx := context.Background()
	username, err := p.users.GenerateUsername(ctx)
	require.NoError(t, err)
	secret, err := cryptox.GenerateSecret(username)
	require.NoError(t, err)
	creds, err := p.users.Create(ctx, passphrase, secret)
	require.NoError(t, err)
	return creds
}

func (p *platform) connect(t *testing.T, from, to *models.AuthData) string {
	t.Helper()
	created, err := p.conns.CreateConnection(context.Background(), ConnectionCreateData{
		From: from, To: to, FromName: "Alice", ToName: "Bob",
	})
	require.NoError(t, err)
	return created.FromUserConnection.Own.ID
}

func (p *platform) createFood(t *testing.T, creds *models.AuthData) *models.DecryptedItem {
	t.Helper()
	item, err := p.items.Create(context.Background(), creds, models.NewItem{
		TemplateName: "food",
		Label:        "My Fave Foods",
		Slots: []models.NewSlot{
			{Name: "pizza", Label: "Pizza", Value: models.Ptr("Hawaiian")},
			{Name: "steak", Label: "Steak", Value: models.Ptr("Rump")},
		},
	})
	require.NoError(t, err)
	return item
}

func slotValue(t *testing.T, slots []models.DecryptedSlot, name string) string {
	t.Helper()
	for _, sl := range slots {
		if sl.Name == name {
			require.NotNil(t, sl.Value, "slot %s has no value", name)
			return *sl.Value
		}
	}
	t.Fatalf("slot %s not found", name)
	return ""
}

func TestPlatform_CreateAndGetItem(t *testing.T) {
	p := newPlatform(t)
	ctx := context.Background()
	alice := p.newUser(t, "alice passphrase")

	created := p.createFood(t, alice)
	assert.Equal(t, "Hawaiian", slotValue(t, created.Slots, "pizza"))

	got, err := p.items.Get(ctx, alice, created.Item.ID)
	require.NoError(t, err)
	assert.True(t, got.Item.Own)
	assert.Equal(t, "Hawaiian", slotValue(t, got.Slots, "pizza"))
	assert.Equal(t, "Rump", slotValue(t, got.Slots, "steak"))
}

func TestPlatform_LoginAgain(t *testing.T) {
	p := newPlatform(t)
	ctx := context.Background()
	alice := p.newUser(t, "alice passphrase")

	again, err := p.users.GetAuthData(ctx, "alice passphrase", alice.Secret)
	require.NoError(t, err)
	assert.Equal(t, alice.DataEncryptionKey.Bytes(), again.DataEncryptionKey.Bytes())

	_, err = p.users.GetAuthData(ctx, "wrong passphrase", alice.Secret)
	require.ErrorIs(t, err, common.ErrLoginFailed)
}

func TestPlatform_ShareViaConnection(t *testing.T) {
	p := newPlatform(t)
	ctx := context.Background()
	alice := p.newUser(t, "alice passphrase")
	bob := p.newUser(t, "bob passphrase")

	connID := p.connect(t, alice, bob)
	item := p.createFood(t, alice)

	shares, err := p.share.ShareItem(ctx, alice, connID, item.Item.ID, models.ShareOptions{
		SharingMode:        models.SharingModeOwner,
		AcceptanceRequired: models.AcceptanceNotRequired,
	})
	require.NoError(t, err)
	require.Len(t, shares, 1)

	got, err := p.share.GetSharedItem(ctx, bob, shares[0].ID, models.ShareIncoming)
	require.NoError(t, err)
	assert.False(t, got.AwaitingAcceptance)
	assert.Equal(t, "Hawaiian", slotValue(t, got.Slots, "pizza"))
	assert.True(t, got.Item.IsReceived())

	out, err := p.share.GetSharedItem(ctx, alice, shares[0].ID, models.ShareOutgoing)
	require.NoError(t, err)
	assert.Equal(t, "Hawaiian", slotValue(t, out.Slots, "pizza"))

	_, err = p.conns.CreateConnection(ctx, ConnectionCreateData{From: alice, To: bob, FromName: "Alice", ToName: "Bob"})
	require.ErrorIs(t, err, common.ErrAlreadyConnected)

	names, err := p.conns.ListAll(ctx, alice)
	require.NoError(t, err)
	require.Len(t, names, 1)
	assert.Equal(t, "Bob", names[0].Name)
}

func TestPlatform_AcceptanceRequired(t *testing.T) {
	p := newPlatform(t)
	ctx := context.Background()
	alice := p.newUser(t, "alice passphrase")
	bob := p.newUser(t, "bob passphrase")

	connID := p.connect(t, alice, bob)
	item := p.createFood(t, alice)
	shares, err := p.share.ShareItem(ctx, alice, connID, item.Item.ID, models.ShareOptions{
		AcceptanceRequired: models.AcceptanceRequired,
	})
	require.NoError(t, err)

	pending, err := p.share.GetSharedItem(ctx, bob, shares[0].ID, models.ShareIncoming)
	require.NoError(t, err)
	assert.True(t, pending.AwaitingAcceptance)
	assert.Empty(t, pending.Slots)
	assert.NotEmpty(t, pending.EncryptedSlots)

	_, err = p.share.AcceptIncomingShare(ctx, bob, shares[0].ID)
	require.NoError(t, err)

	got, err := p.share.GetSharedItem(ctx, bob, shares[0].ID, models.ShareIncoming)
	require.NoError(t, err)
	assert.Equal(t, "Hawaiian", slotValue(t, got.Slots, "pizza"))
}

func TestPlatform_SecondShareRedirects(t *testing.T) {
	p := newPlatform(t)
	ctx := context.Background()
	alice := p.newUser(t, "alice passphrase")
	bob := p.newUser(t, "bob passphrase")

	connID := p.connect(t, alice, bob)
	item := p.createFood(t, alice)

	first, err := p.share.ShareItem(ctx, alice, connID, item.Item.ID, models.ShareOptions{})
	require.NoError(t, err)
	second, err := p.share.ShareItem(ctx, alice, connID, item.Item.ID, models.ShareOptions{})
	require.NoError(t, err)

	got, err := p.share.GetSharedItem(ctx, bob, second[0].ID, models.ShareIncoming)
	require.NoError(t, err)
	assert.Equal(t, first[0].ID, got.Share.ID)
	assert.Equal(t, "Hawaiian", slotValue(t, got.Slots, "pizza"))
}

func TestPlatform_DeletedShareNotFound(t *testing.T) {
	p := newPlatform(t)
	ctx := context.Background()
	alice := p.newUser(t, "alice passphrase")
	bob := p.newUser(t, "bob passphrase")

	connID := p.connect(t, alice, bob)
	item := p.createFood(t, alice)
	shares, err := p.share.ShareItem(ctx, alice, connID, item.Item.ID, models.ShareOptions{})
	require.NoError(t, err)

	require.NoError(t, p.share.DeleteSharedItem(ctx, alice, shares[0].ID))

	_, err = p.share.GetSharedItem(ctx, bob, shares[0].ID, models.ShareIncoming)
	require.ErrorIs(t, err, common.ErrShareNotFound)
}

func TestPlatform_UpdateTaskReencryptsShares(t *testing.T) {
	p := newPlatform(t)
	ctx := context.Background()
	alice := p.newUser(t, "alice passphrase")
	bob := p.newUser(t, "bob passphrase")

	connID := p.connect(t, alice, bob)
	item := p.createFood(t, alice)
	shares, err := p.share.ShareItem(ctx, alice, connID, item.Item.ID, models.ShareOptions{})
	require.NoError(t, err)

	before, err := p.api.GetIncomingShare(ctx, bob.VaultAccessToken, shares[0].ID)
	require.NoError(t, err)

	_, err = p.items.Update(ctx, alice, models.UpdateItem{
		ID:    item.Item.ID,
		Slots: []models.NewSlot{{Name: "pizza", Value: models.Ptr("Margherita")}},
	})
	require.NoError(t, err)

	outstanding, err := p.tasks.CountOutstandingTasks(ctx, alice.VaultAccessToken)
	require.NoError(t, err)
	assert.Equal(t, OutstandingTasks{Todo: 1}, outstanding)

	todo, err := p.tasks.ListAll(ctx, alice.VaultAccessToken, models.ClientTaskTodo, false)
	require.NoError(t, err)
	require.Len(t, todo, 1)
	assert.Equal(t, models.WorkTypeUpdateItemShares, todo[0].WorkType)
	assert.Equal(t, item.Item.ID, todo[0].TargetID)

	result, err := p.tasks.Execute(ctx, alice, todo)
	require.NoError(t, err)
	require.Len(t, result.Completed, 1)
	assert.Empty(t, result.Failed)

	done, err := p.tasks.ListAll(ctx, alice.VaultAccessToken, models.ClientTaskDone, false)
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, todo[0].ID, done[0].ID)

	after, err := p.api.GetIncomingShare(ctx, bob.VaultAccessToken, shares[0].ID)
	require.NoError(t, err)
	assert.NotEqual(t, before.EncryptedDEK, after.EncryptedDEK)

	got, err := p.share.GetSharedItem(ctx, bob, shares[0].ID, models.ShareIncoming)
	require.NoError(t, err)
	assert.Equal(t, "Margherita", slotValue(t, got.Slots, "pizza"))
	assert.Equal(t, "Rump", slotValue(t, got.Slots, "steak"))
}
