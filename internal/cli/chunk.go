package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"inkpad/api/internal/chunk"
)

type chunkPlan struct {
	Index   int    `json:"index"`
	Bytes   int    `json:"bytes"`
	Preview string `json:"preview"`
}

func planChunks(content string, policy chunk.Policy) ([]chunkPlan, error) {
	chunks := chunk.Split(content, policy)
	if err := chunk.Validate(chunks, policy); err != nil {
		return nil, err
	}
	out := make([]chunkPlan, 0, len(chunks))
	for i, c := range chunks {
		preview := strings.ReplaceAll(c, "\n", `\n`)
		if r := []rune(preview); len(r) > 40 {
			preview = string(r[:40]) + "…"
		}
		out = append(out, chunkPlan{Index: i, Bytes: len(c), Preview: preview})
	}
	return out, nil
}

func newChunkCmd(opts *options) *cobra.Command {
	var (
		limit        int
		wordBoundary bool
		asJSON       bool
	)
	cmd := &cobra.Command{
		Use:   "chunk <file|->",
		Short: "Show how content would be split into parts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			plan, err := planChunks(content, chunk.Policy{LimitBytes: limit, WordBoundary: wordBoundary})
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), plan)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PART\tBYTES\tPREVIEW")
			for _, p := range plan {
				fmt.Fprintf(tw, "%d\t%d\t%s\n", p.Index, p.Bytes, p.Preview)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", opts.cfg.ChunkLimitBytes, "Part size limit in bytes")
	cmd.Flags().BoolVar(&wordBoundary, "word-boundary", opts.cfg.ChunkWordBoundary, "Avoid splitting words across parts")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}
