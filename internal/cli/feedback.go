package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tierc/internal/feedback"
)

// FeedbackOptions holds flags for the feedback commands.
type FeedbackOptions struct {
	*RootOptions
	MinSamples    int
	StablePercent int
}

// FeedbackSite is one site of a validated artifact.
type FeedbackSite struct {
	Site    string `json:"site"`
	Type    string `json:"type"`
	Samples int    `json:"samples"`
	Hits    int    `json:"hits"`
	Stable  bool   `json:"stable"`
}

// FeedbackResult is the JSON payload of feedback validate.
type FeedbackResult struct {
	Valid         bool           `json:"valid"`
	SchemaVersion string         `json:"schema_version"`
	Sites         []FeedbackSite `json:"sites"`
}

// NewFeedbackCommand creates the feedback command group.
func NewFeedbackCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Inspect runtime feedback artifacts",
	}
	cmd.AddCommand(newFeedbackValidateCommand(rootOpts))
	return cmd
}

func newFeedbackValidateCommand(rootOpts *RootOptions) *cobra.Command {
	th := feedback.DefaultThresholds()
	opts := &FeedbackOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <artifact.json>",
		Short: "Validate a feedback artifact and list its stable sites",
		Long: `Check a feedback artifact's schema version and shape, then list each site
and whether it is a stable integer signal under the given thresholds.

Exit codes:
  0 - Artifact is valid
  1 - Artifact rejected`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFeedbackValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.MinSamples, "min-samples", th.MinSamples, "samples required for a stable site")
	cmd.Flags().IntVar(&opts.StablePercent, "stable-percent", th.StablePercent, "percent of samples that must agree")

	return cmd
}

func runFeedbackValidate(opts *FeedbackOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	a, err := feedback.Load(path)
	if err != nil {
		return formatter.Fail(ExitFailure, err)
	}

	th := feedback.Thresholds{MinSamples: opts.MinSamples, StablePercent: opts.StablePercent}
	result := FeedbackResult{Valid: true, SchemaVersion: a.SchemaVersion, Sites: []FeedbackSite{}}
	for name, s := range a.Sites {
		result.Sites = append(result.Sites, FeedbackSite{
			Site: name, Type: s.Type, Samples: s.Samples, Hits: s.Hits, Stable: s.Stable(th),
		})
	}
	slices.SortFunc(result.Sites, func(x, y FeedbackSite) int { return strings.Compare(x.Site, y.Site) })

	if formatter.JSON() {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Valid feedback artifact (schema %s, %d site(s))\n", a.SchemaVersion, len(result.Sites))
	for _, s := range result.Sites {
		mark := " "
		if s.Stable {
			mark = "*"
		}
		fmt.Fprintf(formatter.Writer, "  %s %s: %s %d/%d\n", mark, s.Site, s.Type, s.Hits, s.Samples)
	}
	return nil
}
