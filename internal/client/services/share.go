package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/meecokeeper/internal/client/client"
	"github.com/dmitrijs2005/meecokeeper/internal/client/models"
	"github.com/dmitrijs2005/meecokeeper/internal/common"
	"github.com/dmitrijs2005/meecokeeper/internal/cryptox"
	"github.com/dmitrijs2005/meecokeeper/internal/logging"
	"golang.org/x/sync/errgroup"
)

// ShareAPI is the slice of the platform ShareService talks to.
type ShareAPI interface {
	client.ShareAPI
	client.ConnectionAPI
	client.ItemAPI
	client.KeystoreAPI
}

// ShareService re-encrypts items for connected users.
//
// Every share carries its own DEK, wrapped under the recipient's public key.
// Slot values are encrypted under that DEK together with a verification hash
// so the recipient can tell whether a value was altered on the way.
type ShareService interface {
	ShareItem(ctx context.Context, creds *models.AuthData, connectionID, itemID string, opts models.ShareOptions) ([]models.Share, error)
	GetSharedItem(ctx context.Context, creds *models.AuthData, shareID string, shareType models.ShareType) (*models.SharedItem, error)
	UpdateSharedItem(ctx context.Context, creds *models.AuthData, itemID string) error
	ListShares(ctx context.Context, creds *models.AuthData, shareType models.ShareType, acceptance models.AcceptanceStatus, opts models.PageOptions) ([]models.Share, error)
	ListAllShares(ctx context.Context, creds *models.AuthData, shareType models.ShareType) ([]models.Share, error)
	AcceptIncomingShare(ctx context.Context, creds *models.AuthData, shareID string) (*models.Share, error)
	DeleteSharedItem(ctx context.Context, creds *models.AuthData, shareID string) error
	GetShareDEK(ctx context.Context, creds *models.AuthData, share models.Share) (models.EncryptionKey, error)
}

type shareService struct {
	api    ShareAPI
	items  ItemService
	cryppo cryptox.Cryppo
	log    logging.Logger
}

func NewShareService(api ShareAPI, deps Deps) ShareService {
	deps = deps.withDefaults()
	return &shareService{
		api:    api,
		items:  NewItemService(api, deps),
		cryppo: deps.Cryppo,
		log:    deps.Log,
	}
}

func (s *shareService) ShareItem(ctx context.Context, creds *models.AuthData, connectionID, itemID string, opts models.ShareOptions) ([]models.Share, error) {
	conn, err := s.api.GetConnection(ctx, creds.VaultAccessToken, connectionID)
	if err != nil {
		return nil, err
	}
	if !conn.Valid() {
		return nil, common.NewServiceError(common.ErrCodeProtocol, common.ErrConnectionInvalid,
			"connection %s is missing the recipient public key", connectionID)
	}

	s.log.Debug(ctx, "preparing item to share", "item_id", itemID)
	item, err := s.items.Get(ctx, creds, itemID)
	if err != nil {
		return nil, err
	}

	slots := item.Slots
	if opts.SlotID != "" {
		slots = nil
		for _, sl := range item.Slots {
			if sl.ID == opts.SlotID {
				slots = append(slots, sl)
			}
		}
	}

	s.log.Debug(ctx, "encrypting slots with generated DEK")
	dek, err := generateKey(s.cryppo)
	if err != nil {
		return nil, err
	}
	values, err := encryptSlotsForShare(ctx, s.cryppo, slots, dek)
	if err != nil {
		return nil, err
	}
	wrapped, err := s.cryppo.EncryptWithPublicKey(conn.TheOtherUser.UserPublicKey, dek.Bytes())
	if err != nil {
		return nil, err
	}

	s.log.Debug(ctx, "sending shared data")
	shares, err := s.api.CreateShares(ctx, creds.VaultAccessToken, itemID, []models.NewShare{{
		RecipientID:        conn.TheOtherUser.UserID,
		PublicKey:          conn.TheOtherUser.UserPublicKey,
		KeypairExternalID:  conn.TheOtherUser.UserKeypairExternalID,
		SharingMode:        opts.SharingMode,
		AcceptanceRequired: opts.AcceptanceRequired,
		SlotID:             opts.SlotID,
		Terms:              opts.Terms,
		ExpiresAt:          opts.ExpiresAt,
		EncryptedDEK:       wrapped,
		SlotValues:         values,
	}})
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "item shared", "item_id", itemID, "connection_id", connectionID, "slots", len(values))
	return shares, nil
}

// GetSharedItem reads a share and the item behind it.
//
// Incoming shares that still require acceptance are returned as stored,
// without any decryption. When the item already reached the user through an
// earlier share, the data of that share is returned instead.
func (s *shareService) GetSharedItem(ctx context.Context, creds *models.AuthData, shareID string, shareType models.ShareType) (*models.SharedItem, error) {
	if shareType == models.ShareOutgoing {
		share, err := s.api.GetOutgoingShare(ctx, creds.VaultAccessToken, shareID)
		if err != nil {
			return nil, shareNotFound(err, shareID)
		}
		item, err := s.items.Get(ctx, creds, share.ItemID)
		if err != nil {
			return nil, err
		}
		return &models.SharedItem{Share: *share, Item: item.Item, Slots: item.Slots}, nil
	}

	data, err := s.api.GetIncomingShareItem(ctx, creds.VaultAccessToken, shareID)
	if err != nil {
		return nil, shareNotFound(err, shareID)
	}

	if data.Share.AcceptanceRequired == models.AcceptanceRequired {
		return &models.SharedItem{
			Share:              data.Share,
			Item:               data.Item,
			EncryptedSlots:     data.Slots,
			AwaitingAcceptance: true,
		}, nil
	}

	if other := data.ItemSharedViaAnotherShareID; other != "" {
		data, err = s.api.GetIncomingShareItem(ctx, creds.VaultAccessToken, other)
		if err != nil {
			return nil, shareNotFound(err, other)
		}
		s.log.Info(ctx, "item was already shared via another share", "share_id", shareID, "existing_share_id", data.Share.ID)
	}

	dek, err := unwrapShareDEK(ctx, s.api, s.cryppo, creds, data.Share)
	if err != nil {
		return nil, err
	}
	slots, err := decryptSlots(ctx, s.cryppo, data.Slots, dek)
	if err != nil {
		return nil, err
	}
	return &models.SharedItem{Share: data.Share, Item: data.Item, Slots: slots}, nil
}

// UpdateSharedItem re-encrypts the current item data for every share of it.
// One fresh DEK is generated per call and wrapped for each recipient.
func (s *shareService) UpdateSharedItem(ctx context.Context, creds *models.AuthData, itemID string) error {
	item, err := s.items.Get(ctx, creds, itemID)
	if err != nil {
		return err
	}
	if !item.Item.Own {
		return common.NewServiceError(common.ErrCodeProtocol, common.ErrNotItemOwner,
			"only the owner can update shared item %s", itemID)
	}

	keys, err := s.api.GetItemShares(ctx, creds.VaultAccessToken, itemID)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		s.log.Warn(ctx, "item has no shares, nothing to update", "item_id", itemID)
		return nil
	}

	dek, err := generateKey(s.cryppo)
	if err != nil {
		return err
	}

	s.log.Debug(ctx, "re-encrypting slots", "item_id", itemID)
	values, err := encryptSlotsForShare(ctx, s.cryppo, item.Slots, dek)
	if err != nil {
		return err
	}
	values = withTemplateDefaults(item.Slots, values)

	shareDEKs := make([]models.ShareDEK, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	for i, k := range keys {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			wrapped, err := s.cryppo.EncryptWithPublicKey(k.PublicKey, dek.Bytes())
			if err != nil {
				return err
			}
			shareDEKs[i] = models.ShareDEK{ShareID: k.ID, DEK: wrapped}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	req := models.UpdateSharesRequest{
		ShareDEKs:   shareDEKs,
		SlotValues:  make([]models.ShareSlotValue, 0, len(keys)*len(values)),
		ClientTasks: []models.ClientTask{},
	}
	for _, k := range keys {
		for _, v := range values {
			v.ShareID = k.ID
			req.SlotValues = append(req.SlotValues, v)
		}
	}

	if err := s.api.UpdateItemShares(ctx, creds.VaultAccessToken, itemID, req); err != nil {
		return err
	}
	s.log.Info(ctx, "shared item updated", "item_id", itemID, "shares", len(keys))
	return nil
}

func (s *shareService) ListShares(ctx context.Context, creds *models.AuthData, shareType models.ShareType, acceptance models.AcceptanceStatus, opts models.PageOptions) ([]models.Share, error) {
	var (
		page *client.SharesPage
		err  error
	)
	if shareType == models.ShareOutgoing {
		page, err = s.api.ListOutgoingShares(ctx, creds.VaultAccessToken, opts)
	} else {
		page, err = s.api.ListIncomingShares(ctx, creds.VaultAccessToken, acceptance, opts)
	}
	if err != nil {
		return nil, err
	}
	if page.HasNext() && opts.PerPage == 0 {
		s.log.Warn(ctx, "some results omitted, but page limit was not explicitly set")
	}
	return page.Shares, nil
}

func (s *shareService) ListAllShares(ctx context.Context, creds *models.AuthData, shareType models.ShareType) ([]models.Share, error) {
	pages, err := client.GetAllPaged(ctx, func(ctx context.Context, cursor string) (*client.SharesPage, error) {
		opts := models.PageOptions{NextPageAfter: cursor}
		if shareType == models.ShareOutgoing {
			return s.api.ListOutgoingShares(ctx, creds.VaultAccessToken, opts)
		}
		return s.api.ListIncomingShares(ctx, creds.VaultAccessToken, "", opts)
	})
	if err != nil {
		return nil, err
	}
	var shares []models.Share
	for _, p := range pages {
		shares = append(shares, p.Shares...)
	}
	return shares, nil
}

func (s *shareService) AcceptIncomingShare(ctx context.Context, creds *models.AuthData, shareID string) (*models.Share, error) {
	share, err := s.api.AcceptIncomingShare(ctx, creds.VaultAccessToken, shareID)
	if err != nil {
		return nil, shareNotFound(err, shareID)
	}
	s.log.Info(ctx, "share accepted", "share_id", shareID)
	return share, nil
}

func (s *shareService) DeleteSharedItem(ctx context.Context, creds *models.AuthData, shareID string) error {
	if err := s.api.DeleteShare(ctx, creds.VaultAccessToken, shareID); err != nil {
		return shareNotFound(err, shareID)
	}
	s.log.Info(ctx, "share deleted", "share_id", shareID)
	return nil
}

func (s *shareService) GetShareDEK(ctx context.Context, creds *models.AuthData, share models.Share) (models.EncryptionKey, error) {
	return unwrapShareDEK(ctx, s.api, s.cryppo, creds, share)
}

// shareNotFound turns a 404 into a ServiceError naming the share. Other
// errors are returned unchanged.
func shareNotFound(err error, shareID string) error {
	if errors.Is(err, common.ErrorNotFound) {
		return common.NewServiceError(common.ErrCodeShareNotFound, common.ErrShareNotFound,
			"Share with id '%s' not found for the specified user", shareID)
	}
	return err
}

// encryptSlotsForShare encrypts every slot that has an id and a value under
// the share DEK. Own slots get a fresh verification key and hash; slots the
// user received keep the verification key and hash of their owner.
func encryptSlotsForShare(ctx context.Context, c cryptox.Cryppo, slots []models.DecryptedSlot, dek models.EncryptionKey) ([]models.ShareSlotValue, error) {
	var todo []models.DecryptedSlot
	for _, sl := range slots {
		if sl.ID != "" && sl.HasValue() {
			todo = append(todo, sl)
		}
	}

	out := make([]models.ShareSlotValue, len(todo))
	g, ctx := errgroup.WithContext(ctx)
	for i, sl := range todo {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			v, err := encryptSlotForShare(c, sl, dek)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func encryptSlotForShare(c cryptox.Cryppo, sl models.DecryptedSlot, dek models.EncryptionKey) (models.ShareSlotValue, error) {
	if sl.Own {
		var err error
		if sl, err = AddVerificationHash(c, sl, dek); err != nil {
			return models.ShareSlotValue{}, err
		}
	} else if sl.ValueVerificationKey != nil {
		wrapped, err := c.EncryptWithKey(sl.ValueVerificationKey, dek.Bytes(), cryptox.CipherStrategyAESGCM)
		if err != nil {
			return models.ShareSlotValue{}, err
		}
		sl.EncryptedValueVerificationKey = &wrapped
	} else {
		sl.EncryptedValueVerificationKey = nil
		sl.ValueVerificationHash = nil
	}

	enc, err := EncryptSlot(c, sl, dek)
	if err != nil {
		return models.ShareSlotValue{}, err
	}
	return models.ShareSlotValue{
		SlotID:                        sl.ID,
		EncryptedValue:                enc.EncryptedValue,
		EncryptedValueVerificationKey: enc.EncryptedValueVerificationKey,
		ValueVerificationHash:         enc.ValueVerificationHash,
	}, nil
}

// withTemplateDefaults adds a null entry for every slot without a value. The
// server creates all template slots on a share and expects each of them in an
// update.
func withTemplateDefaults(slots []models.DecryptedSlot, values []models.ShareSlotValue) []models.ShareSlotValue {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		seen[v.SlotID] = struct{}{}
	}
	for _, sl := range slots {
		if sl.ID == "" || sl.HasValue() {
			continue
		}
		if _, ok := seen[sl.ID]; ok {
			continue
		}
		values = append(values, models.ShareSlotValue{SlotID: sl.ID})
	}
	return values
}
