package vaultfake

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/meecokeeper/internal/client/client"
	"github.com/dmitrijs2005/meecokeeper/internal/client/models"
)

type vaultUser struct {
	client.VaultUser
	publicKey    string
	keystoreUser string
}

type storedSlot struct {
	models.EncryptedSlot
	// sourceSlotID is the owner's slot a received slot was copied from.
	sourceSlotID string
}

type storedItem struct {
	owner string
	item  models.Item
	slots []storedSlot
}

type storedShare struct {
	share models.Share
	// copyItemID is the recipient's copy of the item; empty when the item
	// reached the recipient through viaShareID.
	copyItemID string
	viaShareID string
}

type storedTask struct {
	owner string
	task  models.ClientTask
}

type storedInvitation struct {
	owner     string
	publicKey client.InvitationPublicKey
	inv       models.Invitation
}

type storedConnection struct {
	owner string
	conn  models.Connection
}

type vaultState struct {
	users       map[string]*vaultUser
	sessions    map[string]string
	admissions  map[string]bool
	items       map[string]*storedItem
	shares      map[string]*storedShare
	invitations map[string]*storedInvitation
	connections map[string]*storedConnection
	tasks       map[string]*storedTask
}

func (v *vaultState) init() {
	v.users = map[string]*vaultUser{}
	v.sessions = map[string]string{}
	v.admissions = map[string]bool{}
	v.items = map[string]*storedItem{}
	v.shares = map[string]*storedShare{}
	v.invitations = map[string]*storedInvitation{}
	v.connections = map[string]*storedConnection{}
	v.tasks = map[string]*storedTask{}
}

// VaultHandler serves the vault API.
func (s *Server) VaultHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /me", s.wrap(s.createVaultUser))
	mux.HandleFunc("GET /me", s.wrap(s.vaultAuth(s.getMe)))
	mux.HandleFunc("PUT /me", s.wrap(s.vaultAuth(s.updateMe)))
	mux.HandleFunc("POST /session", s.wrap(s.createVaultSession))
	mux.HandleFunc("DELETE /session", s.wrap(s.vaultAuth(s.deleteVaultSession)))

	mux.HandleFunc("GET /items", s.wrap(s.vaultAuth(s.listItems)))
	mux.HandleFunc("POST /items", s.wrap(s.vaultAuth(s.createItem)))
	mux.HandleFunc("GET /items/{id}", s.wrap(s.vaultAuth(s.getItem)))
	mux.HandleFunc("PUT /items/{id}", s.wrap(s.vaultAuth(s.updateItem)))
	mux.HandleFunc("DELETE /items/{id}", s.wrap(s.vaultAuth(s.deleteItem)))
	mux.HandleFunc("DELETE /slots/{id}", s.wrap(s.vaultAuth(s.deleteSlot)))

	mux.HandleFunc("POST /invitations", s.wrap(s.vaultAuth(s.createInvitation)))
	mux.HandleFunc("GET /connections", s.wrap(s.vaultAuth(s.listConnections)))
	mux.HandleFunc("POST /connections", s.wrap(s.vaultAuth(s.createConnection)))
	mux.HandleFunc("GET /connections/{id}", s.wrap(s.vaultAuth(s.getConnection)))

	mux.HandleFunc("POST /items/{id}/shares", s.wrap(s.vaultAuth(s.createShares)))
	mux.HandleFunc("GET /items/{id}/shares", s.wrap(s.vaultAuth(s.getItemShares)))
	mux.HandleFunc("PUT /items/{id}/shares", s.wrap(s.vaultAuth(s.updateItemShares)))
	mux.HandleFunc("GET /incoming_shares", s.wrap(s.vaultAuth(s.listIncomingShares)))
	mux.HandleFunc("GET /incoming_shares/{id}", s.wrap(s.vaultAuth(s.getIncomingShare)))
	mux.HandleFunc("GET /incoming_shares/{id}/item", s.wrap(s.vaultAuth(s.getIncomingShareItem)))
	mux.HandleFunc("PUT /incoming_shares/{id}/accept", s.wrap(s.vaultAuth(s.acceptIncomingShare)))
	mux.HandleFunc("GET /outgoing_shares", s.wrap(s.vaultAuth(s.listOutgoingShares)))
	mux.HandleFunc("GET /outgoing_shares/{id}", s.wrap(s.vaultAuth(s.getOutgoingShare)))
	mux.HandleFunc("DELETE /shares/{id}", s.wrap(s.vaultAuth(s.deleteShare)))

	mux.HandleFunc("GET /client_task_queue", s.wrap(s.vaultAuth(s.listClientTasks)))
	mux.HandleFunc("PUT /client_task_queue", s.wrap(s.vaultAuth(s.updateClientTasks)))
	return mux
}

type vaultHandler func(r *http.Request, user *vaultUser) (int, any, error)

// vaultAuth resolves the session token to the vault user. The state lock is
// held for the whole call.
func (s *Server) vaultAuth(h vaultHandler) handlerFunc {
	return func(r *http.Request) (int, any, error) {
		sid, err := s.vaultTokens.Subject(bearer(r))
		if err != nil {
			return 0, nil, errUnauthorized
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		u, ok := s.vault.users[s.vault.sessions[sid]]
		if !ok {
			return 0, nil, errUnauthorized
		}
		return h(r, u)
	}
}

// ---- users and sessions ----

// openSession issues a vault token for u, encrypted to its public key.
func (s *Server) openSession(u *vaultUser) (string, error) {
	sid := newID()
	token, err := s.vaultTokens.Issue(sid)
	if err != nil {
		return "", err
	}
	encrypted, err := s.cryppo.EncryptWithPublicKey(u.publicKey, []byte(token))
	if err != nil {
		return "", badRequest("invalid_public_key", err.Error())
	}
	s.vault.sessions[sid] = u.ID
	return encrypted, nil
}

func (s *Server) createVaultUser(r *http.Request) (int, any, error) {
	var req struct {
		PublicKey      string `json:"public_key"`
		AdmissionToken string `json:"admission_token"`
	}
	if err := decode(r, &req); err != nil {
		return 0, nil, err
	}
	ksUser, err := s.admissionTokens.Subject(req.AdmissionToken)
	if err != nil {
		return 0, nil, errUnauthorized
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vault.admissions[req.AdmissionToken] {
		return 0, nil, errUnauthorized
	}
	for _, u := range s.vault.users {
		if u.publicKey == req.PublicKey {
			return 0, nil, badRequest("public_key_taken", "public key already registered")
		}
	}

	u := &vaultUser{VaultUser: client.VaultUser{ID: newID()}, publicKey: req.PublicKey, keystoreUser: ksUser}
	encrypted, err := s.openSession(u)
	if err != nil {
		return 0, nil, err
	}
	s.vault.admissions[req.AdmissionToken] = true
	s.vault.users[u.ID] = u

	return http.StatusCreated, client.CreatedVaultUser{User: u.VaultUser, EncryptedSessionAuthenticationString: encrypted}, nil
}

func (s *Server) createVaultSession(r *http.Request) (int, any, error) {
	var req struct {
		PublicKey string `json:"public_key"`
	}
	if err := decode(r, &req); err != nil {
		return 0, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.vault.users {
		if u.publicKey == req.PublicKey {
			encrypted, err := s.openSession(u)
			if err != nil {
				return 0, nil, err
			}
			return http.StatusOK, map[string]any{"session": map[string]string{"encrypted_session_authentication_string": encrypted}}, nil
		}
	}
	return 0, nil, errUnauthorized
}

func (s *Server) deleteVaultSession(r *http.Request, u *vaultUser) (int, any, error) {
	sid, _ := s.vaultTokens.Subject(bearer(r))
	delete(s.vault.sessions, sid)
	return http.StatusNoContent, nil, nil
}

func (s *Server) getMe(r *http.Request, u *vaultUser) (int, any, error) {
	return http.StatusOK, map[string]any{"user": u.VaultUser}, nil
}

func (s *Server) updateMe(r *http.Request, u *vaultUser) (int, any, error) {
	var req struct {
		User struct {
			PrivateDEKExternalID string `json:"private_dek_external_id"`
		} `json:"user"`
	}
	if err := decode(r, &req); err != nil {
		return 0, nil, err
	}
	if req.User.PrivateDEKExternalID != "" {
		u.PrivateDEKExternalID = req.User.PrivateDEKExternalID
	}
	return http.StatusOK, map[string]any{"user": u.VaultUser}, nil
}

// ---- items ----

func (s *Server) ownedItem(u *vaultUser, id string) (*storedItem, error) {
	it, ok := s.vault.items[id]
	if !ok || it.owner != u.ID {
		return nil, errNotFound
	}
	return it, nil
}

func (it *storedItem) response() models.ItemResponse {
	resp := models.ItemResponse{Item: it.item, Slots: make([]models.EncryptedSlot, 0, len(it.slots))}
	resp.Item.SlotIDs = make([]string, 0, len(it.slots))
	for _, sl := range it.slots {
		resp.Slots = append(resp.Slots, sl.EncryptedSlot)
		resp.Item.SlotIDs = append(resp.Item.SlotIDs, sl.ID)
	}
	return resp
}

func newSlot(a client.SlotAttributes) storedSlot {
	return storedSlot{EncryptedSlot: models.EncryptedSlot{
		SlotInfo: models.SlotInfo{
			ID:       newID(),
			Name:     a.Name,
			Label:    a.Label,
			SlotType: a.SlotType,
			Own:      true,
		},
		Encrypted:                     a.Encrypted,
		EncryptedValue:                a.EncryptedValue,
		EncryptedValueVerificationKey: a.EncryptedValueVerificationKey,
		ValueVerificationHash:         a.ValueVerificationHash,
	}}
}

func (s *Server) listItems(r *http.Request, u *vaultUser) (int, any, error) {
	var templates []string
	if t := r.URL.Query().Get("template_ids"); t != "" {
		templates = strings.Split(t, ",")
	}
	ids := sortedIDs(s.vault.items, func(it *storedItem) bool {
		return it.owner == u.ID && (templates == nil || slices.Contains(templates, it.item.Name))
	})
	ids, next, meta := s.page(r, ids)

	resp := client.ItemsPage{Items: []models.Item{}, Slots: []models.EncryptedSlot{}}
	resp.NextPageAfter, resp.Meta = next, meta
	for _, id := range ids {
		ir := s.vault.items[id].response()
		resp.Items = append(resp.Items, ir.Item)
		resp.Slots = append(resp.Slots, ir.Slots...)
	}
	return http.StatusOK, resp, nil
}

func (s *Server) createItem(r *http.Request, u *vaultUser) (int, any, error) {
	var req client.CreateItemRequest
	if err := decode(r, &req); err != nil {
		return 0, nil, err
	}
	if req.TemplateName == "" {
		return 0, nil, badRequest("invalid_item", "template_name is required")
	}

	now := time.Now().UTC()
	it := &storedItem{
		owner: u.ID,
		item: models.Item{
			ID:        newID(),
			Name:      req.TemplateName,
			Label:     req.Item.Label,
			Own:       true,
			OwnerID:   u.ID,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	for _, a := range req.Item.SlotsAttributes {
		it.slots = append(it.slots, newSlot(a))
	}
	s.vault.items[it.item.ID] = it
	return http.StatusCreated, it.response(), nil
}

func (s *Server) getItem(r *http.Request, u *vaultUser) (int, any, error) {
	it, err := s.ownedItem(u, r.PathValue("id"))
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, it.response(), nil
}

// updateItem changes slots by name. When the item is shared, a client task
// is queued for the owner to bring the shares up to date.
func (s *Server) updateItem(r *http.Request, u *vaultUser) (int, any, error) {
	it, err := s.ownedItem(u, r.PathValue("id"))
	if err != nil {
		return 0, nil, err
	}
	if !it.item.Own {
		return 0, nil, forbidden("received items cannot be updated")
	}

	var req client.UpdateItemRequest
	if err := decode(r, &req); err != nil {
		return 0, nil, err
	}
	if req.Item.Label != "" {
		it.item.Label = req.Item.Label
	}
	for _, a := range req.Item.SlotsAttributes {
		i := slices.IndexFunc(it.slots, func(sl storedSlot) bool { return sl.Name == a.Name })
		if i < 0 {
			it.slots = append(it.slots, newSlot(a))
			continue
		}
		sl := &it.slots[i]
		if a.Label != "" {
			sl.Label = a.Label
		}
		sl.Encrypted = a.Encrypted
		sl.EncryptedValue = a.EncryptedValue
		sl.EncryptedValueVerificationKey = a.EncryptedValueVerificationKey
		sl.ValueVerificationHash = a.ValueVerificationHash
	}
	it.item.UpdatedAt = time.Now().UTC()

	if s.hasShares(it.item.ID) {
		s.queueTask(u.ID, models.WorkTypeUpdateItemShares, it.item.ID)
	}
	return http.StatusOK, it.response(), nil
}

func (s *Server) deleteItem(r *http.Request, u *vaultUser) (int, any, error) {
	it, err := s.ownedItem(u, r.PathValue("id"))
	if err != nil {
		return 0, nil, err
	}
	for id, sh := range s.vault.shares {
		if sh.share.ItemID == it.item.ID || sh.copyItemID == it.item.ID {
			s.removeShare(id)
		}
	}
	delete(s.vault.items, it.item.ID)
	return http.StatusNoContent, nil, nil
}

func (s *Server) deleteSlot(r *http.Request, u *vaultUser) (int, any, error) {
	id := r.PathValue("id")
	for _, it := range s.vault.items {
		if it.owner != u.ID {
			continue
		}
		if i := slices.IndexFunc(it.slots, func(sl storedSlot) bool { return sl.ID == id }); i >= 0 {
			it.slots = slices.Delete(it.slots, i, i+1)
			return http.StatusNoContent, nil, nil
		}
	}
	return 0, nil, errNotFound
}

// ---- connections ----

func (s *Server) createInvitation(r *http.Request, u *vaultUser) (int, any, error) {
	var req struct {
		PublicKey  client.InvitationPublicKey `json:"public_key"`
		Invitation struct {
			EncryptedRecipientName string `json:"encrypted_recipient_name"`
		} `json:"invitation"`
	}
	if err := decode(r, &req); err != nil {
		return 0, nil, err
	}
	if req.PublicKey.PublicKey == "" || req.PublicKey.KeypairExternalID == "" {
		return 0, nil, badRequest("invalid_public_key", "public key and keypair_external_id are required")
	}

	expires := time.Now().UTC().Add(7 * 24 * time.Hour)
	inv := models.Invitation{
		ID:                     newID(),
		Token:                  newID(),
		EncryptedRecipientName: req.Invitation.EncryptedRecipientName,
		KeypairExternalID:      req.PublicKey.KeypairExternalID,
		ExpiresAt:              &expires,
	}
	s.vault.invitations[inv.Token] = &storedInvitation{owner: u.ID, publicKey: req.PublicKey, inv: inv}
	return http.StatusCreated, map[string]any{"invitation": inv}, nil
}

// createConnection accepts an invitation and stores one connection per side.
func (s *Server) createConnection(r *http.Request, u *vaultUser) (int, any, error) {
	var req struct {
		PublicKey  client.InvitationPublicKey `json:"public_key"`
		Connection struct {
			EncryptedRecipientName string `json:"encrypted_recipient_name"`
			InvitationToken        string `json:"invitation_token"`
		} `json:"connection"`
	}
	if err := decode(r, &req); err != nil {
		return 0, nil, err
	}

	inv, ok := s.vault.invitations[req.Connection.InvitationToken]
	if !ok {
		return 0, nil, errNotFound
	}
	if inv.owner == u.ID {
		return 0, nil, badRequest("own_invitation", "cannot accept own invitation")
	}
	delete(s.vault.invitations, req.Connection.InvitationToken)

	now := time.Now().UTC()
	inviter := models.ConnectionSide{
		ID:                     newID(),
		UserID:                 inv.owner,
		UserPublicKey:          inv.publicKey.PublicKey,
		UserKeypairExternalID:  inv.publicKey.KeypairExternalID,
		EncryptedRecipientName: inv.inv.EncryptedRecipientName,
		ConnectedAt:            &now,
	}
	accepter := models.ConnectionSide{
		ID:                     newID(),
		UserID:                 u.ID,
		UserPublicKey:          req.PublicKey.PublicKey,
		UserKeypairExternalID:  req.PublicKey.KeypairExternalID,
		EncryptedRecipientName: req.Connection.EncryptedRecipientName,
		ConnectedAt:            &now,
	}

	// Each side only sees its own encrypted name.
	other := func(side models.ConnectionSide) models.ConnectionSide {
		side.EncryptedRecipientName = ""
		return side
	}
	s.vault.connections[inviter.ID] = &storedConnection{owner: inv.owner, conn: models.Connection{Own: inviter, TheOtherUser: other(accepter)}}
	mine := &storedConnection{owner: u.ID, conn: models.Connection{Own: accepter, TheOtherUser: other(inviter)}}
	s.vault.connections[accepter.ID] = mine

	return http.StatusCreated, map[string]any{"connection": mine.conn}, nil
}

func (s *Server) listConnections(r *http.Request, u *vaultUser) (int, any, error) {
	ids := sortedIDs(s.vault.connections, func(c *storedConnection) bool { return c.owner == u.ID })
	ids, next, meta := s.page(r, ids)

	resp := client.ConnectionsPage{Connections: []models.Connection{}}
	resp.NextPageAfter, resp.Meta = next, meta
	for _, id := range ids {
		resp.Connections = append(resp.Connections, s.vault.connections[id].conn)
	}
	return http.StatusOK, resp, nil
}

func (s *Server) getConnection(r *http.Request, u *vaultUser) (int, any, error) {
	c, ok := s.vault.connections[r.PathValue("id")]
	if !ok || c.owner != u.ID {
		return 0, nil, errNotFound
	}
	return http.StatusOK, map[string]any{"connection": c.conn}, nil
}

// ---- shares ----

func (s *Server) hasShares(itemID string) bool {
	for _, sh := range s.vault.shares {
		if sh.share.ItemID == itemID && sh.copyItemID != "" {
			return true
		}
	}
	return false
}

func (s *Server) removeShare(id string) {
	if sh, ok := s.vault.shares[id]; ok && sh.copyItemID != "" {
		delete(s.vault.items, sh.copyItemID)
	}
	delete(s.vault.shares, id)
}

// createShares stores one share per entry together with the recipient's copy
// of the item. A recipient that already holds the item through an earlier
// share gets a share pointing at that one instead of a second copy.
func (s *Server) createShares(r *http.Request, u *vaultUser) (int, any, error) {
	it, err := s.ownedItem(u, r.PathValue("id"))
	if err != nil {
		return 0, nil, err
	}
	if !it.item.Own {
		src, ok := s.vault.shares[it.item.ShareID]
		if !ok || src.share.SharingMode != models.SharingModeAnyone {
			return 0, nil, forbidden("item may only be shared by its owner")
		}
	}

	var req struct {
		Shares []models.NewShare `json:"shares"`
	}
	if err := decode(r, &req); err != nil {
		return 0, nil, err
	}

	created := make([]models.Share, 0, len(req.Shares))
	for _, ns := range req.Shares {
		if _, ok := s.vault.users[ns.RecipientID]; !ok {
			return 0, nil, badRequest("invalid_recipient", "unknown recipient "+ns.RecipientID)
		}
		if ns.EncryptedDEK == "" {
			return 0, nil, badRequest("invalid_share", "encrypted_dek is required")
		}
		acceptance := ns.AcceptanceRequired
		if acceptance == "" {
			acceptance = models.AcceptanceNotRequired
		}
		mode := ns.SharingMode
		if mode == "" {
			mode = models.SharingModeOwner
		}

		sh := &storedShare{share: models.Share{
			ID:                 newID(),
			ItemID:             it.item.ID,
			OwnerID:            it.item.OwnerID,
			SenderID:           u.ID,
			RecipientID:        ns.RecipientID,
			PublicKey:          ns.PublicKey,
			KeypairExternalID:  ns.KeypairExternalID,
			EncryptedDEK:       ns.EncryptedDEK,
			SharingMode:        mode,
			AcceptanceRequired: acceptance,
			SlotID:             ns.SlotID,
			Terms:              ns.Terms,
			ExpiresAt:          ns.ExpiresAt,
			CreatedAt:          time.Now().UTC(),
		}}

		if prev := s.existingShare(it.item.ID, ns.RecipientID); prev != "" {
			sh.viaShareID = prev
		} else {
			sh.copyItemID = s.copyItem(it, sh.share, ns.SlotValues)
		}
		s.vault.shares[sh.share.ID] = sh
		created = append(created, sh.share)
	}
	return http.StatusCreated, map[string]any{"shares": created}, nil
}

func (s *Server) existingShare(itemID, recipientID string) string {
	for id, sh := range s.vault.shares {
		if sh.share.ItemID == itemID && sh.share.RecipientID == recipientID && sh.copyItemID != "" {
			return id
		}
	}
	return ""
}

// copyItem creates the recipient's item for share and returns its id.
func (s *Server) copyItem(src *storedItem, share models.Share, values []models.ShareSlotValue) string {
	now := time.Now().UTC()
	cp := &storedItem{
		owner: share.RecipientID,
		item: models.Item{
			ID:         newID(),
			Name:       src.item.Name,
			Label:      src.item.Label,
			OwnerID:    src.item.OwnerID,
			ShareID:    share.ID,
			OriginalID: src.item.ID,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
	}
	for _, sl := range src.slots {
		if share.SlotID != "" && sl.ID != share.SlotID {
			continue
		}
		c := storedSlot{
			EncryptedSlot: models.EncryptedSlot{SlotInfo: sl.SlotInfo},
			sourceSlotID:  sl.ID,
		}
		c.ID = newID()
		c.Own = false
		if i := slices.IndexFunc(values, func(v models.ShareSlotValue) bool { return v.SlotID == sl.ID }); i >= 0 {
			setSlotValue(&c, values[i])
		}
		cp.slots = append(cp.slots, c)
	}
	s.vault.items[cp.item.ID] = cp
	return cp.item.ID
}

func setSlotValue(sl *storedSlot, v models.ShareSlotValue) {
	sl.Encrypted = v.EncryptedValue != nil
	sl.EncryptedValue = v.EncryptedValue
	sl.EncryptedValueVerificationKey = v.EncryptedValueVerificationKey
	sl.ValueVerificationHash = v.ValueVerificationHash
}

func (s *Server) getItemShares(r *http.Request, u *vaultUser) (int, any, error) {
	it, err := s.ownedItem(u, r.PathValue("id"))
	if err != nil {
		return 0, nil, err
	}
	ids := sortedIDs(s.vault.shares, func(sh *storedShare) bool {
		return sh.share.ItemID == it.item.ID && sh.share.SenderID == u.ID && sh.copyItemID != ""
	})
	out := make([]models.SharePublicKey, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.SharePublicKey{ID: id, PublicKey: s.vault.shares[id].share.PublicKey})
	}
	return http.StatusOK, map[string]any{"shares": out}, nil
}

// updateItemShares applies re-wrapped share DEKs and re-encrypted slot values
// to the recipients' copies, then any client task states in the body.
func (s *Server) updateItemShares(r *http.Request, u *vaultUser) (int, any, error) {
	it, err := s.ownedItem(u, r.PathValue("id"))
	if err != nil {
		return 0, nil, err
	}
	var req models.UpdateSharesRequest
	if err := decode(r, &req); err != nil {
		return 0, nil, err
	}

	sentShare := func(id string) (*storedShare, error) {
		sh, ok := s.vault.shares[id]
		if !ok || sh.share.ItemID != it.item.ID || sh.share.SenderID != u.ID || sh.copyItemID == "" {
			return nil, badRequest("invalid_share", "share "+id+" does not belong to item")
		}
		return sh, nil
	}

	for _, d := range req.ShareDEKs {
		sh, err := sentShare(d.ShareID)
		if err != nil {
			return 0, nil, err
		}
		sh.share.EncryptedDEK = d.DEK
	}

	for _, v := range req.SlotValues {
		sh, err := sentShare(v.ShareID)
		if err != nil {
			return 0, nil, err
		}
		if sh.share.SlotID != "" && sh.share.SlotID != v.SlotID {
			continue
		}
		cp := s.vault.items[sh.copyItemID]
		i := slices.IndexFunc(cp.slots, func(sl storedSlot) bool { return sl.sourceSlotID == v.SlotID })
		if i < 0 {
			j := slices.IndexFunc(it.slots, func(sl storedSlot) bool { return sl.ID == v.SlotID })
			if j < 0 {
				continue
			}
			c := storedSlot{EncryptedSlot: models.EncryptedSlot{SlotInfo: it.slots[j].SlotInfo}, sourceSlotID: v.SlotID}
			c.ID, c.Own = newID(), false
			cp.slots = append(cp.slots, c)
			i = len(cp.slots) - 1
		}
		setSlotValue(&cp.slots[i], v)
		cp.item.UpdatedAt = time.Now().UTC()
	}

	if _, err := s.applyTaskUpdates(u, taskUpdates(req.ClientTasks)); err != nil {
		return 0, nil, err
	}
	return http.StatusNoContent, nil, nil
}

func (s *Server) listIncomingShares(r *http.Request, u *vaultUser) (int, any, error) {
	acceptance := models.AcceptanceStatus(r.URL.Query().Get("acceptance"))
	return s.listShares(r, func(sh *storedShare) bool {
		return sh.share.RecipientID == u.ID && (acceptance == "" || sh.share.AcceptanceRequired == acceptance)
	})
}

func (s *Server) listOutgoingShares(r *http.Request, u *vaultUser) (int, any, error) {
	return s.listShares(r, func(sh *storedShare) bool { return sh.share.SenderID == u.ID })
}

func (s *Server) listShares(r *http.Request, keep func(*storedShare) bool) (int, any, error) {
	ids, next, meta := s.page(r, sortedIDs(s.vault.shares, keep))
	resp := client.SharesPage{Shares: make([]models.Share, 0, len(ids))}
	resp.NextPageAfter, resp.Meta = next, meta
	for _, id := range ids {
		resp.Shares = append(resp.Shares, s.vault.shares[id].share)
	}
	return http.StatusOK, resp, nil
}

func (s *Server) incomingShare(u *vaultUser, id string) (*storedShare, error) {
	sh, ok := s.vault.shares[id]
	if !ok || sh.share.RecipientID != u.ID {
		return nil, errNotFound
	}
	return sh, nil
}

func (s *Server) getIncomingShare(r *http.Request, u *vaultUser) (int, any, error) {
	sh, err := s.incomingShare(u, r.PathValue("id"))
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, map[string]any{"share": sh.share}, nil
}

func (s *Server) getOutgoingShare(r *http.Request, u *vaultUser) (int, any, error) {
	sh, ok := s.vault.shares[r.PathValue("id")]
	if !ok || sh.share.SenderID != u.ID {
		return 0, nil, errNotFound
	}
	return http.StatusOK, map[string]any{"share": sh.share}, nil
}

func (s *Server) getIncomingShareItem(r *http.Request, u *vaultUser) (int, any, error) {
	sh, err := s.incomingShare(u, r.PathValue("id"))
	if err != nil {
		return 0, nil, err
	}
	resp := models.ShareWithItem{Share: sh.share, Slots: []models.EncryptedSlot{}}
	if sh.viaShareID != "" {
		resp.ItemSharedViaAnotherShareID = sh.viaShareID
		return http.StatusOK, resp, nil
	}
	ir := s.vault.items[sh.copyItemID].response()
	resp.Item, resp.Slots = ir.Item, ir.Slots
	return http.StatusOK, resp, nil
}

func (s *Server) acceptIncomingShare(r *http.Request, u *vaultUser) (int, any, error) {
	sh, err := s.incomingShare(u, r.PathValue("id"))
	if err != nil {
		return 0, nil, err
	}
	if sh.share.AcceptanceRequired == models.AcceptanceRequired {
		sh.share.AcceptanceRequired = models.AcceptanceAccepted
	}
	return http.StatusOK, map[string]any{"share": sh.share}, nil
}

// deleteShare removes a share from either side, together with the
// recipient's copy.
func (s *Server) deleteShare(r *http.Request, u *vaultUser) (int, any, error) {
	id := r.PathValue("id")
	sh, ok := s.vault.shares[id]
	if !ok || (sh.share.SenderID != u.ID && sh.share.RecipientID != u.ID) {
		return 0, nil, errNotFound
	}
	s.removeShare(id)
	return http.StatusNoContent, nil, nil
}

// ---- client task queue ----

func (s *Server) queueTask(owner, workType, targetID string) {
	for _, t := range s.vault.tasks {
		if t.owner == owner && t.task.WorkType == workType && t.task.TargetID == targetID && t.task.State == models.ClientTaskTodo {
			return
		}
	}
	now := time.Now().UTC()
	t := &storedTask{owner: owner, task: models.ClientTask{
		ID:                    newID(),
		WorkType:              workType,
		TargetID:              targetID,
		State:                 models.ClientTaskTodo,
		CreatedAt:             now,
		LastStateTransitionAt: now,
	}}
	s.vault.tasks[t.task.ID] = t
}

// listClientTasks returns one page of the caller's tasks in a state (todo by
// default). Unless supress_changing_state is true, returned todo tasks move
// to in_progress.
func (s *Server) listClientTasks(r *http.Request, u *vaultUser) (int, any, error) {
	q := r.URL.Query()
	state := models.ClientTaskState(q.Get("state"))
	if state == "" {
		state = models.ClientTaskTodo
	}
	suppress := q.Get("supress_changing_state") == "true"

	ids := sortedIDs(s.vault.tasks, func(t *storedTask) bool { return t.owner == u.ID && t.task.State == state })
	ids, next, meta := s.page(r, ids)

	resp := client.ClientTasksPage{ClientTasks: make([]models.ClientTask, 0, len(ids))}
	resp.NextPageAfter, resp.Meta = next, meta
	now := time.Now().UTC()
	for _, id := range ids {
		t := s.vault.tasks[id]
		if !suppress && t.task.State == models.ClientTaskTodo {
			t.task.State = models.ClientTaskInProgress
			t.task.LastStateTransitionAt = now
		}
		resp.ClientTasks = append(resp.ClientTasks, t.task)
	}
	return http.StatusOK, resp, nil
}

func (s *Server) updateClientTasks(r *http.Request, u *vaultUser) (int, any, error) {
	var req struct {
		ClientTasks []models.ClientTaskUpdate `json:"client_tasks"`
	}
	if err := decode(r, &req); err != nil {
		return 0, nil, err
	}
	tasks, err := s.applyTaskUpdates(u, req.ClientTasks)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, map[string]any{"client_tasks": tasks}, nil
}

func taskUpdates(tasks []models.ClientTask) []models.ClientTaskUpdate {
	out := make([]models.ClientTaskUpdate, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, models.ClientTaskUpdate{ID: t.ID, State: t.State, Report: t.Report})
	}
	return out
}

// applyTaskUpdates validates every update before changing any task.
func (s *Server) applyTaskUpdates(u *vaultUser, updates []models.ClientTaskUpdate) ([]models.ClientTask, error) {
	for _, up := range updates {
		t, ok := s.vault.tasks[up.ID]
		if !ok || t.owner != u.ID {
			return nil, errNotFound
		}
		switch up.State {
		case models.ClientTaskTodo, models.ClientTaskInProgress, models.ClientTaskDone, models.ClientTaskFailed:
		default:
			return nil, badRequest("invalid_state", "unknown client task state "+string(up.State))
		}
	}

	now := time.Now().UTC()
	out := make([]models.ClientTask, 0, len(updates))
	for _, up := range updates {
		t := s.vault.tasks[up.ID]
		if t.task.State != up.State {
			t.task.LastStateTransitionAt = now
		}
		t.task.State = up.State
		t.task.Report = up.Report
		out = append(out, t.task)
	}
	return out, nil
}
