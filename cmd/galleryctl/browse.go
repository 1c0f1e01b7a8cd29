package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/erazemk/galerija/internal/client"
	"github.com/erazemk/galerija/internal/contact"
	"github.com/erazemk/galerija/internal/gallery"
	"github.com/erazemk/galerija/internal/model"
)

func newListCmd(a *app) *cobra.Command {
	var (
		search   string
		medium   string
		sortName string
		favOnly  bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List paintings",
		Long:  `List paintings in display order, or sorted by price-asc, price-desc or title.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := gallery.ParseSortKey(sortName)
			if err != nil {
				return err
			}
			if err := a.state.Refresh(cmd.Context()); err != nil {
				return err
			}
			list := a.state.Project(gallery.Criteria{
				Search:        search,
				Medium:        medium,
				FavoritesOnly: favOnly,
				Sort:          key,
			})

			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ORDER\tID\tTITLE\tMEDIUM\tPRICE\tFAV")
			for _, p := range list {
				fav := ""
				if a.state.IsFavorite(p.ID) {
					fav = "*"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", p.Order, p.ID, p.Title, p.Medium, p.Price, fav)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&search, "search", "q", "", "match title, medium or notes")
	cmd.Flags().StringVarP(&medium, "medium", "m", gallery.AllMediums, "only this medium")
	cmd.Flags().StringVar(&sortName, "sort", gallery.SortDefault.String(), "sort order")
	cmd.Flags().BoolVar(&favOnly, "fav", false, "only favorites")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one painting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.client.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printPainting(a.stdout, *p)
			return nil
		},
	}
}

func printPainting(w io.Writer, p model.Painting) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\t%s\n", p.ID)
	fmt.Fprintf(tw, "Title\t%s\n", p.Title)
	fmt.Fprintf(tw, "Dimensions\t%s\n", p.Dimensions)
	fmt.Fprintf(tw, "Medium\t%s\n", p.Medium)
	fmt.Fprintf(tw, "Price\t%s\n", p.Price)
	if p.Notes != "" {
		fmt.Fprintf(tw, "Notes\t%s\n", p.Notes)
	}
	fmt.Fprintf(tw, "Image\t%s\n", p.Image)
	fmt.Fprintf(tw, "Order\t%d\n", p.Order)
	tw.Flush()
}

func newMediumsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mediums",
		Short: "List the mediums in the collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.state.Refresh(cmd.Context()); err != nil {
				return err
			}
			for _, m := range a.state.Mediums() {
				fmt.Fprintln(a.stdout, m)
			}
			return nil
		},
	}
}

func newFavCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fav <id>",
		Short: "Toggle a painting as favorite",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			on, err := a.state.ToggleFavorite(args[0])
			if err != nil {
				return err
			}
			if on {
				fmt.Fprintf(a.stdout, "%s added to favorites\n", args[0])
			} else {
				fmt.Fprintf(a.stdout, "%s removed from favorites\n", args[0])
			}
			return nil
		},
	}
}

func newCompareCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "compare <id>...",
		Short: fmt.Sprintf("Compare up to %d paintings side by side", gallery.MaxCompare),
		Args:  cobra.RangeArgs(1, gallery.MaxCompare),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.state.Refresh(cmd.Context()); err != nil {
				return err
			}
			byID := make(map[string]model.Painting)
			for _, p := range a.state.Paintings() {
				byID[p.ID] = p
			}
			for _, id := range args {
				p, ok := byID[id]
				if !ok {
					return fmt.Errorf("painting %s: %w", id, client.ErrNotFound)
				}
				a.state.ToggleCompare(p)
			}

			picked := a.state.Comparison()
			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			row := func(label string, value func(model.Painting) string) {
				fmt.Fprint(tw, label)
				for _, p := range picked {
					fmt.Fprintf(tw, "\t%s", value(p))
				}
				fmt.Fprintln(tw)
			}
			row("", func(p model.Painting) string { return p.Title })
			row("Dimensions", func(p model.Painting) string { return p.Dimensions })
			row("Medium", func(p model.Painting) string { return p.Medium })
			row("Price", func(p model.Painting) string { return p.Price })
			return tw.Flush()
		},
	}
}

func newContactCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "contact <name> <email> <message>",
		Short: "Send a message to the artist",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := contact.Message{Name: args[0], Email: args[1], Message: args[2]}
			if err := m.Validate(); err != nil {
				return err
			}
			if err := a.client.SendContact(cmd.Context(), m); err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, "Message sent.")
			return nil
		},
	}
}
