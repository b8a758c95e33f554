package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newNotificationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"notifs"},
		Short:   "Read price-drop notifications",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Show the most recent notifications",
		Args:  cobra.NoArgs,
		RunE:  runNotificationsList,
	}
	list.Flags().Bool("all", false, "show every notification, not just the most recent")

	cmd.AddCommand(
		list,
		&cobra.Command{
			Use:   "read ID",
			Short: "Mark one notification read",
			Args:  cobra.ExactArgs(1),
			RunE:  runNotificationsRead,
		},
		&cobra.Command{
			Use:   "read-all",
			Short: "Mark every notification read",
			Args:  cobra.NoArgs,
			RunE:  runNotificationsReadAll,
		},
	)

	return cmd
}

func runNotificationsList(cmd *cobra.Command, _ []string) error {
	cc, err := startSession(cmd.Context())
	if err != nil {
		return err
	}
	defer cc.Close()

	if _, err := cc.requireUser(); err != nil {
		return err
	}

	snap := cc.Session.Snapshot()

	items := snap.Recent
	if all, _ := cmd.Flags().GetBool("all"); all {
		items = snap.Notifications
	}

	if cc.Flags.JSON {
		return printJSON(cmd.OutOrStdout(), items)
	}

	if len(items) == 0 {
		cc.Statusf("No notifications.\n")
		return nil
	}

	printTable(cmd.OutOrStdout(), notificationHeaders, notificationRows(items))
	cc.Statusf("%d unread of %d.\n", snap.Unread, len(snap.Notifications))

	return nil
}

func runNotificationsRead(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	id, err := parseID("notification", args[0])
	if err != nil {
		return err
	}

	cc, err := startSession(ctx)
	if err != nil {
		return err
	}
	defer cc.Close()

	if _, err := cc.requireUser(); err != nil {
		return err
	}

	if err := cc.Session.Notifications().MarkRead(ctx, id); err != nil {
		return fmt.Errorf("marking notification %d read: %w", id, err)
	}

	cc.Statusf("%d unread.\n", cc.Session.Notifications().Unread())

	return nil
}

func runNotificationsReadAll(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cc, err := startSession(ctx)
	if err != nil {
		return err
	}
	defer cc.Close()

	if _, err := cc.requireUser(); err != nil {
		return err
	}

	if err := cc.Session.Notifications().MarkAllRead(ctx); err != nil {
		return fmt.Errorf("marking notifications read: %w", err)
	}

	cc.Statusf("All notifications read.\n")

	return nil
}
