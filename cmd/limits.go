package cmd

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/blacktop/xpub/internal/xpub"
)

func newLimitsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "limits",
		Short: "Print the content limits of every platform",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printLimits(cmd.OutOrStdout(), xpub.AllLimits())
		},
	}
}

func printLimits(out io.Writer, all []xpub.PlatformLimits) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PLATFORM\tTITLE\tBODY\tDESCRIPTION\tMEDIA\tTAGS\tSTATUS\tEMOJI\tMARKDOWN")
	for _, pl := range all {
		l := pl.Limits
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%t\n",
			pl.Platform,
			span(l.MinTitle, l.MaxTitle),
			span(l.MinBody, l.MaxBody),
			span(0, l.MaxDescription),
			span(l.MinMedia, l.MaxMedia),
			span(0, l.MaxTags),
			span(0, l.MaxStatus),
			l.Emoji,
			l.Markdown,
		)
	}
	return w.Flush()
}

// span renders a min..max range, "-" when unbounded.
func span(lo, hi int) string {
	switch {
	case hi == 0:
		return "-"
	case lo > 0:
		return strconv.Itoa(lo) + ".." + strconv.Itoa(hi)
	default:
		return strconv.Itoa(hi)
	}
}
