package services

import (
	"context"

	"github.com/dmitrijs2005/meecokeeper/internal/client/models"
	"github.com/dmitrijs2005/meecokeeper/internal/common"
	"github.com/dmitrijs2005/meecokeeper/internal/cryptox"
	"golang.org/x/sync/errgroup"
)

// DecryptSlot opens an encrypted slot with dek.
//
// Unencrypted slots and encrypted slots without ciphertext (attachments) come
// back with a nil Value. When the slot is not the caller's own and carries a
// verification hash, the hash is recomputed over the plaintext; a mismatch is
// returned as common.ErrVerificationFailed and no value is returned.
func DecryptSlot(c cryptox.Cryppo, slot models.EncryptedSlot, dek models.EncryptionKey) (models.DecryptedSlot, error) {
	out := models.DecryptedSlot{
		SlotInfo:                      slot.SlotInfo,
		EncryptedValueVerificationKey: slot.EncryptedValueVerificationKey,
		ValueVerificationHash:         slot.ValueVerificationHash,
	}

	if !slot.Encrypted {
		return out, nil
	}
	if slot.EncryptedValue == nil {
		out.Encrypted = true
		return out, nil
	}

	value, err := c.DecryptWithKey(*slot.EncryptedValue, dek.Bytes())
	if err != nil {
		return models.DecryptedSlot{}, err
	}

	if slot.EncryptedValueVerificationKey != nil {
		vk, err := c.DecryptWithKey(*slot.EncryptedValueVerificationKey, dek.Bytes())
		if err != nil {
			return models.DecryptedSlot{}, err
		}
		if !slot.Own && slot.ValueVerificationHash != nil &&
			!cryptox.VerifyHashedValue(vk, string(value), *slot.ValueVerificationHash) {
			return models.DecryptedSlot{}, common.NewServiceError(common.ErrCodeIntegrity, common.ErrVerificationFailed,
				"decrypted slot %q (%s) does not match original value", slot.Name, slot.ID)
		}
		out.ValueVerificationKey = vk
	}

	out.Value = models.Ptr(string(value))
	return out, nil
}

// EncryptSlot seals the slot's plaintext value under dek. A slot without a
// value is returned unencrypted.
func EncryptSlot(c cryptox.Cryppo, slot models.DecryptedSlot, dek models.EncryptionKey) (models.EncryptedSlot, error) {
	out := models.EncryptedSlot{
		SlotInfo:                      slot.SlotInfo,
		EncryptedValueVerificationKey: slot.EncryptedValueVerificationKey,
		ValueVerificationHash:         slot.ValueVerificationHash,
	}
	if !slot.HasValue() {
		return out, nil
	}

	serialized, err := c.EncryptWithKey([]byte(*slot.Value), dek.Bytes(), cryptox.CipherStrategyAESGCM)
	if err != nil {
		return models.EncryptedSlot{}, err
	}
	out.Encrypted = true
	out.EncryptedValue = &serialized
	return out, nil
}

// AddVerificationHash attaches a fresh verification key (wrapped under dek)
// and the keyed hash of the value. Only own slots with a value get one; for
// any other slot both fields are cleared.
func AddVerificationHash(c cryptox.Cryppo, slot models.DecryptedSlot, dek models.EncryptionKey) (models.DecryptedSlot, error) {
	if !slot.Own || !slot.HasValue() {
		slot.ValueVerificationKey = nil
		slot.EncryptedValueVerificationKey = nil
		slot.ValueVerificationHash = nil
		return slot, nil
	}

	vk, err := c.GenerateRandomKey(cryptox.VerificationKeyBits)
	if err != nil {
		return slot, err
	}
	encrypted, err := c.EncryptWithKey(vk, dek.Bytes(), cryptox.CipherStrategyAESGCM)
	if err != nil {
		return slot, err
	}

	slot.ValueVerificationKey = vk
	slot.EncryptedValueVerificationKey = &encrypted
	slot.ValueVerificationHash = models.Ptr(cryptox.ValueVerificationHash(vk, *slot.Value))
	return slot, nil
}

// decryptSlots decrypts all slots concurrently, keeping their order.
func decryptSlots(ctx context.Context, c cryptox.Cryppo, slots []models.EncryptedSlot, dek models.EncryptionKey) ([]models.DecryptedSlot, error) {
	out := make([]models.DecryptedSlot, len(slots))
	g, ctx := errgroup.WithContext(ctx)
	for i, s := range slots {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			d, err := DecryptSlot(c, s, dek)
			if err != nil {
				return err
			}
			out[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// encryptNewSlots turns caller supplied slots into create/update attributes.
func encryptNewSlots(ctx context.Context, c cryptox.Cryppo, slots []models.NewSlot, dek models.EncryptionKey) ([]models.EncryptedSlot, error) {
	out := make([]models.EncryptedSlot, len(slots))
	g, ctx := errgroup.WithContext(ctx)
	for i, s := range slots {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			e, err := EncryptSlot(c, models.DecryptedSlot{
				SlotInfo: models.SlotInfo{Name: s.Name, Label: s.Label, SlotType: s.SlotType, Own: true},
				Value:    s.Value,
			}, dek)
			if err != nil {
				return err
			}
			out[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
