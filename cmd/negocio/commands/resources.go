package commands

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/gestionnegocio/console/internal/catalog"
	"github.com/gestionnegocio/console/internal/resource"
	"github.com/gestionnegocio/console/pkg/models"
	"github.com/spf13/cobra"
)

// NewResourcesCommand creates the resources command
func NewResourcesCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "resources",
		Short: "List the resources the signed-in user may manage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(g, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.identity(cmd.Context()); err != nil {
				return err
			}

			t := newTable("Recurso", "Módulo", "Ruta")
			for _, e := range catalog.Visible(a.guard) {
				t.Row(e.Name, e.Title, e.Path)
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			return nil
		},
	}
}

// NewListCommand creates the list command
func NewListCommand(g *globalFlags) *cobra.Command {
	var page int
	var search string

	cmd := &cobra.Command{
		Use:   "list <resource>",
		Short: "Show one page of a resource",
		Long: `Show one page of a resource. Pages past the end show the last page.
Searching always starts at page 1.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(g, false)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			identity, err := a.identity(ctx)
			if err != nil {
				return err
			}
			entity, err := a.entity(args[0])
			if err != nil {
				return err
			}

			list := resource.New[models.Record, models.Payload](catalog.NewAdapter(a.gw, entity, identity), a.cfg.PageSize, a.logger)
			// Searching resets to page 1
			if err := list.Search(ctx, search); err != nil {
				return err
			}
			if page > 1 {
				if err := list.GoToPage(ctx, page); err != nil {
					return err
				}
			}

			printPage(cmd.OutOrStdout(), entity, list.Snapshot())
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().StringVar(&search, "search", "", "Search term")
	return cmd
}

func printPage(out io.Writer, entity catalog.Entity, snap resource.Snapshot[models.Record]) {
	headers := make([]string, 0, len(entity.Columns))
	for _, c := range entity.Columns {
		headers = append(headers, c.Title)
	}

	t := newTable(headers...)
	for _, item := range snap.Items {
		row := make([]string, 0, len(entity.Columns))
		for _, c := range entity.Columns {
			if c.Key == "id" {
				row = append(row, strconv.FormatInt(item.ID, 10))
				continue
			}
			row = append(row, item.Value(c.Key))
		}
		t.Row(row...)
	}

	fmt.Fprintln(out, t.Render())
	info := snap.PageInfo
	fmt.Fprintf(out, "Página %d de %d · %d registros\n", info.CurrentPage, max(info.TotalPages, 1), info.TotalCount)
	if snap.SearchTerm != "" {
		fmt.Fprintf(out, "Búsqueda: %q\n", snap.SearchTerm)
	}
}

// NewShowCommand creates the show command
func NewShowCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <resource> <id>",
		Short: "Show every field of a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(g, false)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			identity, err := a.identity(ctx)
			if err != nil {
				return err
			}
			entity, err := a.entity(args[0])
			if err != nil {
				return err
			}
			id, err := parseID(args[1])
			if err != nil {
				return err
			}

			rec, err := catalog.NewAdapter(a.gw, entity, identity).Get(ctx, id)
			if err != nil {
				return err
			}
			printRecord(cmd.OutOrStdout(), entity, rec)
			return nil
		},
	}
}

func printRecord(out io.Writer, entity catalog.Entity, rec models.Record) {
	labels := map[string]string{}
	for _, c := range entity.Columns {
		labels[c.Key] = c.Title
	}
	for _, f := range entity.Fields {
		labels[f.Key] = f.Label
	}

	keys := make([]string, 0, len(rec.Fields))
	for k := range rec.Fields {
		if k != "id" {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	t := newTable("Campo", "Valor")
	t.Row("ID", strconv.FormatInt(rec.ID, 10))
	for _, k := range keys {
		label := k
		if l, ok := labels[k]; ok {
			label = l
		}
		t.Row(label, rec.Value(k))
	}
	fmt.Fprintln(out, t.Render())
}

// NewDeleteCommand creates the delete command
func NewDeleteCommand(g *globalFlags) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <resource> <id>",
		Short: "Delete a record after confirmation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(g, false)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			identity, err := a.identity(ctx)
			if err != nil {
				return err
			}
			entity, err := a.entity(args[0])
			if err != nil {
				return err
			}
			id, err := parseID(args[1])
			if err != nil {
				return err
			}

			if !yes {
				confirmed := false
				prompt := huh.NewConfirm().
					Title(fmt.Sprintf("¿Eliminar el registro %d de %s?", id, entity.Title)).
					Affirmative("Eliminar").
					Negative("Cancelar").
					Value(&confirmed)
				if err := huh.NewForm(huh.NewGroup(prompt)).Run(); err != nil {
					return fmt.Errorf("prompt failed: %w", err)
				}
				if !confirmed {
					fmt.Fprintln(cmd.OutOrStdout(), "Cancelado")
					return nil
				}
			}

			if err := catalog.NewAdapter(a.gw, entity, identity).Remove(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registro %d eliminado de %s\n", id, entity.Title)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Delete without asking")
	return cmd
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("238"))).
		Headers(headers...)
}
