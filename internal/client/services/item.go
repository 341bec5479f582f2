package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/meecokeeper/internal/client/client"
	"github.com/dmitrijs2005/meecokeeper/internal/client/models"
	"github.com/dmitrijs2005/meecokeeper/internal/common"
	"github.com/dmitrijs2005/meecokeeper/internal/cryptox"
	"github.com/dmitrijs2005/meecokeeper/internal/logging"
)

// ItemAPI is the slice of the platform ItemService talks to. Share and
// keystore access is needed to open items received through a share.
type ItemAPI interface {
	client.ItemAPI
	client.ShareAPI
	client.KeystoreAPI
}

// ItemService encrypts items on the way to the vault and decrypts them on
// the way back. Callers only ever see plaintext slots.
type ItemService interface {
	Create(ctx context.Context, creds *models.AuthData, item models.NewItem) (*models.DecryptedItem, error)
	Update(ctx context.Context, creds *models.AuthData, upd models.UpdateItem) (*models.DecryptedItem, error)
	Get(ctx context.Context, creds *models.AuthData, id string) (*models.DecryptedItem, error)
	List(ctx context.Context, creds *models.AuthData, templateIDs string, opts models.PageOptions) (*client.ItemsPage, error)
	ListAll(ctx context.Context, creds *models.AuthData, templateIDs string) ([]models.Item, error)
	RemoveSlot(ctx context.Context, creds *models.AuthData, slotID string) error
	Delete(ctx context.Context, creds *models.AuthData, id string) error
}

type itemService struct {
	api    ItemAPI
	cryppo cryptox.Cryppo
	log    logging.Logger
}

func NewItemService(api ItemAPI, deps Deps) ItemService {
	deps = deps.withDefaults()
	return &itemService{api: api, cryppo: deps.Cryppo, log: deps.Log}
}

func (s *itemService) Create(ctx context.Context, creds *models.AuthData, item models.NewItem) (*models.DecryptedItem, error) {
	if item.Label == "" {
		return nil, fmt.Errorf("%w: cannot create item with empty label", common.ErrInvalidArgument)
	}
	if item.TemplateName == "" {
		return nil, fmt.Errorf("%w: cannot create item with empty template name", common.ErrInvalidArgument)
	}

	slots, err := encryptNewSlots(ctx, s.cryppo, item.Slots, creds.DataEncryptionKey)
	if err != nil {
		return nil, err
	}

	resp, err := s.api.CreateItem(ctx, creds.VaultAccessToken, client.CreateItemRequest{
		TemplateName: item.TemplateName,
		Item:         client.ItemAttributes{Label: item.Label, SlotsAttributes: toAttributes(slots)},
	})
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "item created", "item_id", resp.Item.ID, "template", item.TemplateName)

	return s.decrypt(ctx, creds, resp)
}

func (s *itemService) Update(ctx context.Context, creds *models.AuthData, upd models.UpdateItem) (*models.DecryptedItem, error) {
	slots, err := encryptNewSlots(ctx, s.cryppo, upd.Slots, creds.DataEncryptionKey)
	if err != nil {
		return nil, err
	}

	resp, err := s.api.UpdateItem(ctx, creds.VaultAccessToken, upd.ID, client.UpdateItemRequest{
		Item: client.ItemAttributes{Label: upd.Label, SlotsAttributes: toAttributes(slots)},
	})
	if err != nil {
		return nil, err
	}
	return s.decrypt(ctx, creds, resp)
}

// Get fetches and decrypts an item. Items received through a share are
// decrypted with that share's DEK instead of the user's own.
func (s *itemService) Get(ctx context.Context, creds *models.AuthData, id string) (*models.DecryptedItem, error) {
	resp, err := s.api.GetItem(ctx, creds.VaultAccessToken, id)
	if err != nil {
		return nil, err
	}
	return s.decrypt(ctx, creds, resp)
}

func (s *itemService) List(ctx context.Context, creds *models.AuthData, templateIDs string, opts models.PageOptions) (*client.ItemsPage, error) {
	page, err := s.api.ListItems(ctx, creds.VaultAccessToken, templateIDs, opts)
	if err != nil {
		return nil, err
	}
	if page.HasNext() && opts.PerPage == 0 {
		s.log.Warn(ctx, "some results omitted, but page limit was not explicitly set")
	}
	return page, nil
}

func (s *itemService) ListAll(ctx context.Context, creds *models.AuthData, templateIDs string) ([]models.Item, error) {
	pages, err := client.GetAllPaged(ctx, func(ctx context.Context, cursor string) (*client.ItemsPage, error) {
		return s.api.ListItems(ctx, creds.VaultAccessToken, templateIDs, models.PageOptions{NextPageAfter: cursor})
	})
	if err != nil {
		return nil, err
	}
	var items []models.Item
	for _, p := range pages {
		items = append(items, p.Items...)
	}
	return items, nil
}

func (s *itemService) RemoveSlot(ctx context.Context, creds *models.AuthData, slotID string) error {
	if err := s.api.DeleteSlot(ctx, creds.VaultAccessToken, slotID); err != nil {
		return err
	}
	s.log.Info(ctx, "slot removed", "slot_id", slotID)
	return nil
}

func (s *itemService) Delete(ctx context.Context, creds *models.AuthData, id string) error {
	if err := s.api.DeleteItem(ctx, creds.VaultAccessToken, id); err != nil {
		return err
	}
	s.log.Info(ctx, "item deleted", "item_id", id)
	return nil
}

func (s *itemService) decrypt(ctx context.Context, creds *models.AuthData, resp *models.ItemResponse) (*models.DecryptedItem, error) {
	dek := creds.DataEncryptionKey

	if resp.Item.IsReceived() {
		share, err := s.api.GetIncomingShare(ctx, creds.VaultAccessToken, resp.Item.ShareID)
		if err != nil {
			return nil, err
		}
		dek, err = unwrapShareDEK(ctx, s.api, s.cryppo, creds, *share)
		if err != nil {
			return nil, err
		}
	}

	slots, err := decryptSlots(ctx, s.cryppo, resp.Slots, dek)
	if err != nil {
		return nil, err
	}
	return &models.DecryptedItem{Item: resp.Item, Slots: slots}, nil
}

func toAttributes(slots []models.EncryptedSlot) []client.SlotAttributes {
	out := make([]client.SlotAttributes, 0, len(slots))
	for _, s := range slots {
		out = append(out, client.SlotAttributes{
			Name:                          s.Name,
			Label:                         s.Label,
			SlotType:                      s.SlotType,
			Encrypted:                     s.Encrypted,
			EncryptedValue:                s.EncryptedValue,
			EncryptedValueVerificationKey: s.EncryptedValueVerificationKey,
			ValueVerificationHash:         s.ValueVerificationHash,
		})
	}
	return out
}
