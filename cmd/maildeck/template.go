package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/maildeck/maildeck/internal/config"
	"github.com/maildeck/maildeck/internal/sample"
	"github.com/maildeck/maildeck/internal/session"
	"github.com/maildeck/maildeck/internal/upstream"
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Inspect templates on the upstream platform",
}

var templateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List templates in an app",
	RunE:  runTemplateList,
}

var templateGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one template as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplateGet,
}

var templatePreviewCmd = &cobra.Command{
	Use:   "preview <id>",
	Short: "Render a template with synthesized sample values",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplatePreview,
}

var (
	templateApp    string
	templateSearch string
	templateValues []string
)

func init() {
	templateCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/maildeck/config.yaml", "Path to configuration file")
	templateCmd.PersistentFlags().StringVar(&templateApp, "app", "", "App id (required)")
	templateCmd.MarkPersistentFlagRequired("app")

	templateListCmd.Flags().StringVar(&templateSearch, "search", "", "Filter by name")
	templatePreviewCmd.Flags().StringArrayVar(&templateValues, "set", nil, "Override a sample value (name=value, repeatable)")

	templateCmd.AddCommand(templateListCmd)
	templateCmd.AddCommand(templateGetCmd)
	templateCmd.AddCommand(templatePreviewCmd)
}

func upstreamFromConfig() (*upstream.Client, session.Context, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, session.Context{}, err
	}
	if cfg.Upstream.APIKey == "" {
		return nil, session.Context{}, fmt.Errorf("upstream.api_key must be set for CLI access")
	}
	client := upstream.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Timeout)
	return client, session.Context{Token: cfg.Upstream.APIKey, AppID: templateApp}, nil
}

func runTemplateList(cmd *cobra.Command, args []string) error {
	client, sctx, err := upstreamFromConfig()
	if err != nil {
		return err
	}

	page, err := client.GetTemplates(context.Background(), sctx, upstream.ListParams{Search: templateSearch})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tLANG\tACTIVE\tVERSION")
	for _, t := range page.Data {
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%d\n", t.ID, t.Name, t.Language, t.IsActive, t.Version)
	}
	return w.Flush()
}

func runTemplateGet(cmd *cobra.Command, args []string) error {
	client, sctx, err := upstreamFromConfig()
	if err != nil {
		return err
	}

	tmpl, err := client.GetTemplate(context.Background(), sctx, args[0])
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(tmpl)
}

func runTemplatePreview(cmd *cobra.Command, args []string) error {
	client, sctx, err := upstreamFromConfig()
	if err != nil {
		return err
	}

	tmpl, err := client.GetTemplate(context.Background(), sctx, args[0])
	if err != nil {
		return err
	}

	values := sample.Synthesize(tmpl.Variables)
	for _, kv := range templateValues {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("invalid --set %q, want name=value", kv)
		}
		values[name] = value
	}

	rendered, err := client.PreviewTemplate(context.Background(), sctx, tmpl.ID, values)
	if err != nil {
		// Same degradation as the console: show the raw bodies.
		fmt.Fprintf(os.Stderr, "render failed (%v), showing raw template\n", err)
		raw := tmpl.RawRendered()
		rendered = &raw
	}

	fmt.Printf("Subject: %s\n\n", rendered.Subject)
	if rendered.TextContent != "" {
		fmt.Println("--- text ---")
		fmt.Println(rendered.TextContent)
	}
	if rendered.HTMLContent != "" {
		fmt.Println("--- html ---")
		fmt.Println(rendered.HTMLContent)
	}
	return nil
}
