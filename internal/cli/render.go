package cli

import (
	"fmt"
	"html/template"
	"time"

	"github.com/spf13/cobra"

	"inkpad/api/internal/export"
	"inkpad/api/internal/format"
	"inkpad/api/internal/mathrender"
)

func newRenderCmd(opts *options) *cobra.Command {
	var (
		page  bool
		title string
	)
	cmd := &cobra.Command{
		Use:   "render <file|->",
		Short: "Run the formatting pipeline and print markup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			f := format.New(mathrender.NewAdapter(nil, opts.cfg.EquationTextScale, opts.logger(cmd)))
			body := f.Format(raw)
			if !page {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), body)
				return err
			}
			html, err := export.RenderDocumentHTML(export.TemplateData{
				Title:       title,
				ContentHTML: template.HTML(body),
				UpdatedAt:   time.Now(),
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), html)
			return err
		},
	}
	cmd.Flags().BoolVar(&page, "page", false, "Wrap the markup in the standalone document page")
	cmd.Flags().StringVar(&title, "title", "Untitled Document", "Page title with --page")
	return cmd
}
