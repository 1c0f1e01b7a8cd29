package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/erazemk/galerija/internal/client"
	"github.com/erazemk/galerija/internal/model"
)

func newLoginCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login <username>",
		Short: "Log in, reading the password from stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := bufio.NewReader(a.stdin).ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return fmt.Errorf("reading password: %w", err)
			}
			password = strings.TrimRight(password, "\r\n")

			role, err := a.client.Login(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}
			if err := writeToken(a.cfg.TokenFile, a.client.Token()); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Logged in as %s (%s).\n", args[0], role)
			return nil
		},
	}
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and forget the token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.client.Token() != "" {
				if err := a.client.Logout(cmd.Context()); err != nil && !errors.Is(err, client.ErrUnauthorized) {
					return err
				}
			}
			if err := os.Remove(a.cfg.TokenFile); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("removing token: %w", err)
			}
			fmt.Fprintln(a.stdout, "Logged out.")
			return nil
		},
	}
}

var fieldNames = []string{"title", "dimensions", "medium", "notes", "price", "image"}

func addFieldFlags(cmd *cobra.Command) {
	for _, name := range fieldNames {
		cmd.Flags().String(name, "", "painting "+name)
	}
}

// fieldsFromFlags returns the painting fields whose flags were given.
func fieldsFromFlags(cmd *cobra.Command) model.PaintingFields {
	pick := func(name string) *string {
		if !cmd.Flags().Changed(name) {
			return nil
		}
		v, _ := cmd.Flags().GetString(name)
		return &v
	}
	return model.PaintingFields{
		Title:      pick("title"),
		Dimensions: pick("dimensions"),
		Medium:     pick("medium"),
		Notes:      pick("notes"),
		Price:      pick("price"),
		Image:      pick("image"),
	}
}

func newAddCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a painting at the top of the collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, err := a.controller(cmd)
			if err != nil {
				return err
			}
			p, err := ctl.Add(cmd.Context(), fieldsFromFlags(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Created %s.\n", p.ID)
			return nil
		},
	}
	addFieldFlags(cmd)
	return cmd
}

func newEditCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a painting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, err := a.controller(cmd)
			if err != nil {
				return err
			}
			p, err := ctl.Edit(cmd.Context(), args[0], fieldsFromFlags(cmd))
			if err != nil {
				return err
			}
			printPainting(a.stdout, *p)
			return nil
		},
	}
	addFieldFlags(cmd)
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a painting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, err := a.controller(cmd)
			if err != nil {
				return err
			}
			if err := ctl.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Deleted %s.\n", args[0])
			return nil
		},
	}
}

func newMoveCmd(a *app, dir string) *cobra.Command {
	edge := "top"
	if dir == "down" {
		edge = "bottom"
	}
	return &cobra.Command{
		Use:   dir + " <id>",
		Short: "Move a painting one place " + dir,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, err := a.controller(cmd)
			if err != nil {
				return err
			}

			var moved bool
			if dir == "up" {
				moved, err = ctl.MoveUp(cmd.Context(), args[0])
			} else {
				moved, err = ctl.MoveDown(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			if !moved {
				fmt.Fprintf(a.stdout, "%s is already at the %s.\n", args[0], edge)
				return nil
			}
			fmt.Fprintf(a.stdout, "Moved %s %s.\n", args[0], dir)
			return nil
		},
	}
}

func newNormalizeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "normalize",
		Short: "Renumber orders to 0..n-1",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, err := a.controller(cmd)
			if err != nil {
				return err
			}
			if err := ctl.Normalize(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Renumbered %d paintings.\n", len(ctl.Paintings()))
			return nil
		},
	}
}

func newUploadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload an image and print its URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening image: %w", err)
			}
			defer f.Close()

			res, err := a.client.Upload(cmd.Context(), filepath.Base(args[0]), f)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, res.URL)
			return nil
		},
	}
}
