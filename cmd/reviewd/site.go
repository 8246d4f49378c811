package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"reviewd/internal/models"
)

var siteFlags struct {
	name      string
	isDefault bool
	pages     bool
}

var siteCmd = &cobra.Command{
	Use:   "site",
	Short: "Manage sites and their page trees",
}

var siteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sites",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := setup(false)
		if err != nil {
			return err
		}
		defer a.close()

		sites, err := a.ruleSets().Sites(cmd.Context())
		if err != nil {
			return err
		}
		return renderSites(os.Stdout, sites)
	},
}

var siteCreateCmd = &cobra.Command{
	Use:   "create <hostname>",
	Short: "Create a site with a new root page and default frequency rules",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(true)
		if err != nil {
			return err
		}
		defer a.close()

		name := siteFlags.name
		if name == "" {
			name = args[0]
		}
		site, err := a.ruleSets().CreateSite(cmd.Context(), args[0], name, siteFlags.isDefault)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "created site %s (root page %s)\n", site.ID, site.RootPageID)
		return nil
	},
}

var siteDeleteCmd = &cobra.Command{
	Use:   "delete <site-id>",
	Short: "Delete a site and its frequency rules",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("site id: %w", err)
		}
		a, err := setup(false)
		if err != nil {
			return err
		}
		defer a.close()
		return a.ruleSets().DeleteSite(cmd.Context(), id, siteFlags.pages)
	},
}

func init() {
	siteCreateCmd.Flags().StringVar(&siteFlags.name, "name", "", "display name (defaults to the hostname)")
	siteCreateCmd.Flags().BoolVar(&siteFlags.isDefault, "default", false, "make this the default site")
	siteDeleteCmd.Flags().BoolVar(&siteFlags.pages, "pages", false, "also delete the site's page tree")
	siteCmd.AddCommand(siteListCmd, siteCreateCmd, siteDeleteCmd)
}

func renderSites(w io.Writer, sites []models.Site) error {
	table := tablewriter.NewWriter(w)
	table.Header("ID", "Hostname", "Name", "Root path", "Default")
	for _, s := range sites {
		if err := table.Append([]string{s.ID.String(), s.Hostname, s.SiteName, s.RootPath, strconv.FormatBool(s.IsDefault)}); err != nil {
			return fmt.Errorf("append row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	_, err := fmt.Fprintf(w, "%d site(s)\n", len(sites))
	return err
}
