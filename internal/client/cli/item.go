package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/meecokeeper/internal/client/models"
	"github.com/dmitrijs2005/meecokeeper/internal/common"
)

func usage(format string) error {
	return fmt.Errorf("%w: usage: %s", common.ErrInvalidArgument, format)
}

// Items lists the items of the user, own and received. An optional argument
// narrows the list to a comma separated set of template names.
func (a *App) Items(ctx context.Context, args []string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	templates := ""
	if len(args) > 0 {
		templates = args[0]
	}

	items, err := a.items.ListAll(ctx, a.creds, templates)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		hintLine(a.out, "No items yet, use create-item to add one")
		return nil
	}
	views := make([]itemView, 0, len(items))
	for _, it := range items {
		views = append(views, newItemView(it, nil))
	}
	return printYAML(a.out, views)
}

// Item shows one item with its decrypted slots.
func (a *App) Item(ctx context.Context, args []string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	if len(args) != 1 {
		return usage("item <item-id>")
	}

	item, err := a.items.Get(ctx, a.creds, args[0])
	if err != nil {
		return err
	}
	return printYAML(a.out, newItemView(item.Item, item.Slots))
}

// CreateItem creates an item from a template name and a label, then prompts
// for its slots.
func (a *App) CreateItem(ctx context.Context, args []string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	if len(args) < 2 {
		return usage("create-item <template> <label>")
	}

	slots, err := a.promptSlots()
	if err != nil {
		return err
	}

	item, err := a.items.Create(ctx, a.creds, models.NewItem{
		TemplateName: args[0],
		Label:        strings.Join(args[1:], " "),
		Slots:        slots,
	})
	if err != nil {
		return err
	}
	okLine(a.out, "Item %s created", item.Item.ID)
	return nil
}

// UpdateItem re-encrypts the prompted slots of an own item. When the item is
// shared the vault queues a task to refresh the shares; see RunTasks.
func (a *App) UpdateItem(ctx context.Context, args []string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	if len(args) != 1 {
		return usage("update-item <item-id>")
	}

	slots, err := a.promptSlots()
	if err != nil {
		return err
	}
	if len(slots) == 0 {
		return fmt.Errorf("%w: no slots given", common.ErrInvalidArgument)
	}

	item, err := a.items.Update(ctx, a.creds, models.UpdateItem{ID: args[0], Slots: slots})
	if err != nil {
		return err
	}
	okLine(a.out, "Item %s updated", item.Item.ID)
	a.hintOutstandingTasks(ctx)
	return nil
}

func (a *App) DeleteItem(ctx context.Context, args []string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	if len(args) != 1 {
		return usage("delete-item <item-id>")
	}
	if err := a.items.Delete(ctx, a.creds, args[0]); err != nil {
		return err
	}
	okLine(a.out, "Item %s deleted", args[0])
	return nil
}

func (a *App) promptSlots() ([]models.NewSlot, error) {
	lines, err := GetSlots(a.reader, a.out)
	if err != nil {
		return nil, err
	}
	return parseSlots(lines)
}
