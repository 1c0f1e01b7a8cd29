package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/erazemk/galerija/internal/client"
	"github.com/erazemk/galerija/internal/config"
	"github.com/erazemk/galerija/internal/dashboard"
	"github.com/erazemk/galerija/internal/gallery"
)

// app carries what every command needs. It is filled in before a command runs.
type app struct {
	cfg    config.Client
	logger *slog.Logger

	client *client.Client
	state  *gallery.State
	stdin  io.Reader
	stdout io.Writer
}

func newRootCmd(logger *slog.Logger) *cobra.Command {
	a := &app{logger: logger}
	v := config.NewClientViper()

	root := &cobra.Command{
		Use:   "galleryctl",
		Short: "Browse and curate the painting gallery",
		Long: `galleryctl talks to a gallery server. Anyone can browse the collection,
keep favorites and send a message to the artist. Editors log in to add, edit,
reorder and delete paintings.

Every global flag can also be set with a GALLERY_* environment variable,
for example GALLERY_SERVER (or GALLERY_URL) and GALLERY_TOKEN_FILE.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.ClientFrom(v)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return a.setup(cmd)
		},
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}
	if err := config.BindClientFlags(v, root.PersistentFlags()); err != nil {
		logger.Error("binding flags", "error", err)
	}

	root.AddCommand(
		newListCmd(a),
		newShowCmd(a),
		newMediumsCmd(a),
		newFavCmd(a),
		newCompareCmd(a),
		newContactCmd(a),
		newLoginCmd(a),
		newLogoutCmd(a),
		newAddCmd(a),
		newEditCmd(a),
		newDeleteCmd(a),
		newMoveCmd(a, "up"),
		newMoveCmd(a, "down"),
		newNormalizeCmd(a),
		newUploadCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	a.stdin = cmd.InOrStdin()
	a.stdout = cmd.OutOrStdout()

	a.client = client.New(a.cfg.ServerURL, a.cfg.Timeout, a.logger)
	token, err := readToken(a.cfg.TokenFile)
	if err != nil {
		return err
	}
	a.client.SetToken(token)

	state, err := gallery.NewState(a.client, gallery.FileStore{Path: a.cfg.FavoritesFile}, a.logger)
	if err != nil {
		return err
	}
	a.state = state
	return nil
}

// controller returns a dashboard controller over a freshly loaded list.
func (a *app) controller(cmd *cobra.Command) (*dashboard.Controller, error) {
	ctl := dashboard.New(a.client, a.state, a.cfg.Timeout, a.logger)
	if err := ctl.Refresh(cmd.Context()); err != nil {
		return nil, fmt.Errorf("loading paintings: %w", err)
	}
	return ctl, nil
}

func readToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading token: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func writeToken(path, token string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(token+"\n"), 0600); err != nil {
		return fmt.Errorf("writing token: %w", err)
	}
	return nil
}
