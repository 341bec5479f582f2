package cli

import (
	"context"
	"fmt"
	"strings"
)

// Connections lists connected users with the names this user gave them.
func (a *App) Connections(ctx context.Context, args []string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}

	conns, err := a.conns.ListAll(ctx, a.creds)
	if err != nil {
		return err
	}
	if len(conns) == 0 {
		hintLine(a.out, "No connections yet, use invite to create an invitation")
		return nil
	}
	views := make([]connectionView, 0, len(conns))
	for _, c := range conns {
		views = append(views, connectionView{
			ID:       c.Own.ID,
			Name:     c.Name,
			UserID:   c.TheOtherUser.UserID,
			Accepted: c.Own.ConnectedAt,
		})
	}
	return printYAML(a.out, views)
}

// Invite creates an invitation for the named person and prints the token to
// hand over to them.
func (a *App) Invite(ctx context.Context, args []string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	if len(args) == 0 {
		return usage("invite <name>")
	}

	inv, err := a.conns.CreateInvitation(ctx, a.creds, strings.Join(args, " "))
	if err != nil {
		return err
	}
	okLine(a.out, "Invitation created")
	hintLine(a.out, "Send this token to the recipient, they accept it with accept-invitation:")
	fmt.Fprintln(a.out, inv.Token)
	return nil
}

// AcceptInvitation connects to the user who issued the token, saving them
// under the given name.
func (a *App) AcceptInvitation(ctx context.Context, args []string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	if len(args) < 2 {
		return usage("accept-invitation <token> <name>")
	}

	conn, err := a.conns.AcceptInvitation(ctx, a.creds, strings.Join(args[1:], " "), args[0])
	if err != nil {
		return err
	}
	okLine(a.out, "Connected, connection id %s", conn.Own.ID)
	return nil
}
