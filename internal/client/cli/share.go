package cli

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/meecokeeper/internal/client/models"
	"github.com/dmitrijs2005/meecokeeper/internal/common"
)

const shareUsage = "share [-anyone] [-require-acceptance] [-slot <slot-id>] [-terms <text>] <connection-id> <item-id>"

func parseShareArgs(args []string) (connectionID, itemID string, opts models.ShareOptions, err error) {
	fs := flag.NewFlagSet("share", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	anyone := fs.Bool("anyone", false, "let the recipient share the item on")
	acceptance := fs.Bool("require-acceptance", false, "recipient has to accept before reading")
	fs.StringVar(&opts.SlotID, "slot", "", "share a single slot")
	fs.StringVar(&opts.Terms, "terms", "", "terms the recipient accepts")

	if err = fs.Parse(args); err != nil || fs.NArg() != 2 {
		return "", "", opts, usage(shareUsage)
	}

	opts.SharingMode = models.SharingModeOwner
	if *anyone {
		opts.SharingMode = models.SharingModeAnyone
	}
	opts.AcceptanceRequired = models.AcceptanceNotRequired
	if *acceptance {
		opts.AcceptanceRequired = models.AcceptanceRequired
	}
	return fs.Arg(0), fs.Arg(1), opts, nil
}

func parseShareType(args []string, at int) (models.ShareType, error) {
	if len(args) <= at {
		return models.ShareIncoming, nil
	}
	switch t := models.ShareType(args[at]); t {
	case models.ShareIncoming, models.ShareOutgoing:
		return t, nil
	default:
		return "", fmt.Errorf("%w: share type must be incoming or outgoing, got %q", common.ErrInvalidArgument, args[at])
	}
}

// Share shares an item with a connected user.
func (a *App) Share(ctx context.Context, args []string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	connectionID, itemID, opts, err := parseShareArgs(args)
	if err != nil {
		return err
	}

	var shares []models.Share
	err = withSpinner(a.out, "Sharing item...", func() error {
		shares, err = a.shares.ShareItem(ctx, a.creds, connectionID, itemID, opts)
		return err
	})
	if err != nil {
		return err
	}
	for _, s := range shares {
		okLine(a.out, "Shared as %s", s.ID)
	}
	return nil
}

// Shares lists incoming (default) or outgoing shares.
func (a *App) Shares(ctx context.Context, args []string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	shareType, err := parseShareType(args, 0)
	if err != nil {
		return err
	}

	shares, err := a.shares.ListAllShares(ctx, a.creds, shareType)
	if err != nil {
		return err
	}
	if len(shares) == 0 {
		hintLine(a.out, "No %s shares", shareType)
		return nil
	}
	views := make([]shareView, 0, len(shares))
	for _, s := range shares {
		views = append(views, newShareView(s))
	}
	return printYAML(a.out, views)
}

// Shared shows the item behind a share, decrypted with the share DEK. A share
// still awaiting acceptance shows no slot values.
func (a *App) Shared(ctx context.Context, args []string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	if len(args) < 1 || len(args) > 2 {
		return usage("shared <share-id> [incoming|outgoing]")
	}
	shareType, err := parseShareType(args, 1)
	if err != nil {
		return err
	}

	item, err := a.shares.GetSharedItem(ctx, a.creds, args[0], shareType)
	if err != nil {
		return err
	}
	if err := printYAML(a.out, sharedItemView{
		Share:              newShareView(item.Share),
		Item:               newItemView(item.Item, item.Slots),
		AwaitingAcceptance: item.AwaitingAcceptance,
	}); err != nil {
		return err
	}
	if item.AwaitingAcceptance {
		hintLine(a.out, "Use accept-share %s to read the values", item.Share.ID)
	}
	return nil
}

func (a *App) AcceptShare(ctx context.Context, args []string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	if len(args) != 1 {
		return usage("accept-share <share-id>")
	}
	if _, err := a.shares.AcceptIncomingShare(ctx, a.creds, args[0]); err != nil {
		return err
	}
	okLine(a.out, "Share %s accepted", args[0])
	return nil
}

// DeleteShare removes a share. Both the sender and the recipient may do it.
func (a *App) DeleteShare(ctx context.Context, args []string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	if len(args) != 1 {
		return usage("delete-share <share-id>")
	}
	if err := a.shares.DeleteSharedItem(ctx, a.creds, args[0]); err != nil {
		return err
	}
	okLine(a.out, "Share %s deleted", args[0])
	return nil
}
