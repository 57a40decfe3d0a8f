package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newRoomsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rooms",
		Short: "List rooms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()
			rooms, err := c.ListRooms(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(rooms) == 0 {
				fmt.Fprintln(out, "No rooms available")
			}
			for _, r := range rooms {
				lock := ""
				if r.IsLocked {
					lock = " [locked]"
				}
				fmt.Fprintf(out, "%s  %s  %d/%d%s\n", r.ID, r.Name, r.Participants, r.MaxParticipants, lock)
			}
			return nil
		},
	}
}

func newUsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List users connected to the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()
			users, err := c.ListUsers(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, u := range users {
				room := "-"
				if u.CurrentRoom != nil {
					room = *u.CurrentRoom
				}
				since := time.Since(time.Unix(int64(u.ConnectedAt), 0)).Truncate(time.Second)
				fmt.Fprintf(out, "%s  %-20s  room=%s  online=%s\n", u.ID, u.Username, room, since)
			}
			return nil
		},
	}
}
