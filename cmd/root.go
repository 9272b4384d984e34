/*
Copyright © 2025 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/blacktop/xpub/internal/config"
	"github.com/blacktop/xpub/internal/logutil"
	"github.com/blacktop/xpub/internal/publish"
	"github.com/blacktop/xpub/internal/task"
	"github.com/blacktop/xpub/internal/transport/bluesky"
	"github.com/blacktop/xpub/internal/transport/dryrun"
	"github.com/blacktop/xpub/internal/transport/mastodon"
	"github.com/blacktop/xpub/internal/transport/twitter"
	"github.com/blacktop/xpub/internal/xpub"
	"github.com/blacktop/xpub/internal/xpub/article"
	"github.com/blacktop/xpub/internal/xpub/lifestyle"
	"github.com/blacktop/xpub/internal/xpub/marketplace"
	"github.com/blacktop/xpub/internal/xpub/video"
)

var (
	titleFlag       string
	bodyFlag        string
	descriptionFlag string
	mediaFlag       []string
	tagsFlag        []string
	categoryFlag    string
	priceFlag       string
	statusFlag      string
	locationFlag    string
	conditionFlag   string
	targetsFlag     []string
	retriesFlag     int
	pacingFlag      time.Duration
	configPath      string
	dryRun          bool
	verbose         bool
)

const dryRunTransport = "dryrun"

// publisherConstructors binds each implemented platform to its publisher.
var publisherConstructors = map[xpub.Platform]func(xpub.Transport) xpub.Publisher{
	xpub.Marketplace: marketplace.New,
	xpub.Lifestyle:   lifestyle.New,
	xpub.Article:     article.New,
	xpub.Video:       video.New,
}

// Execute runs the root command, cancelling remaining platforms on SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCommand().ExecuteContext(ctx)
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "xpub",
		Short: "Publish one piece of content to several platforms",
		Long: "xpub adapts a single piece of content to each target platform's limits " +
			"and publishes it one platform at a time, retrying failed deliveries.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runRoot,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logutil.SetVerbose(verbose)
		},
		Example: `  xpub --title "Vintage camera" --price 120 --category cameras --media ./cam.jpg --target marketplace
  xpub --title "Weekend hike" --media ./trail.jpg --target xhs --target zhihu
  cat post.md | xpub --title "Release notes" --target all --dry-run`,
	}

	cmd.Flags().StringVarP(&titleFlag, "title", "t", "", "Content title")
	cmd.Flags().StringVarP(&bodyFlag, "body", "b", "", "Content body (read from stdin when omitted)")
	cmd.Flags().StringVar(&descriptionFlag, "description", "", "Short description")
	cmd.Flags().StringArrayVar(&mediaFlag, "media", nil, "Media file or URL to attach (repeatable)")
	cmd.Flags().StringArrayVar(&tagsFlag, "tag", nil, "Tag to attach (repeatable)")
	cmd.Flags().StringVar(&categoryFlag, "category", "", "Listing category")
	cmd.Flags().StringVar(&priceFlag, "price", "", "Listing price")
	cmd.Flags().StringVar(&statusFlag, "status", "", "Short status update posted alongside a video")
	cmd.Flags().StringVar(&locationFlag, "location", "", "Listing location")
	cmd.Flags().StringVar(&conditionFlag, "condition", "", "Listing condition")
	cmd.Flags().StringSliceVar(&targetsFlag, "target", []string{"all"}, "Platforms to publish to (marketplace, lifestyle, article, video, aliases, or all)")
	cmd.Flags().IntVar(&retriesFlag, "retries", 0, "Attempts per platform (defaults to the config value)")
	cmd.Flags().DurationVar(&pacingFlag, "pacing", 0, "Wait between platforms (defaults to the config value)")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file (default: user config dir)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Route every platform to the dry-run transport")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "V", false, "Enable debug logging")
	cmd.Flags().SortFlags = false

	cmd.AddCommand(newLimitsCommand())
	cmd.AddCommand(newConfigCommand())
	cmd.AddCommand(newCompletionCommand())

	return cmd
}

func runRoot(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	content, err := buildContent(cmd)
	if err != nil {
		return err
	}

	platforms, err := normalizeTargets(targetsFlag)
	if err != nil {
		return err
	}

	retries := cfg.Publish.MaxRetries
	if cmd.Flags().Changed("retries") {
		retries = retriesFlag
	}
	pacing := cfg.Publish.Pacing
	if cmd.Flags().Changed("pacing") {
		pacing = pacingFlag
	}

	routes := cfg.RoutesByPlatform()
	if dryRun {
		for _, p := range platforms {
			routes[p] = dryRunTransport
		}
	}

	publishers := publish.NewManager(publish.Options{
		MaxRetries: retries,
		RetryDelay: cfg.Publish.RetryDelay,
	})
	registerPublishers(ctx, publishers, platforms, routes, cfg)

	tasks := task.NewManager(publishers, task.Options{Pacing: pacing, MaxRetries: retries})
	tasks.OnProgress(func(_ string, percent float64, message string) {
		fmt.Fprintf(out, "[%3.0f%%] %s\n", percent, message)
	})

	names := make([]string, 0, len(platforms))
	for _, p := range platforms {
		names = append(names, p.String())
	}
	id, err := tasks.CreateTask(content, names, retries)
	if err != nil {
		return err
	}

	final, err := tasks.ExecuteTask(ctx, id)
	if err != nil {
		return err
	}
	printSummary(out, final)

	if final.Status == task.StatusFailed {
		return fmt.Errorf("publish failed: %s", final.Summary())
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	path = config.DefaultPath()
	if _, err := os.Stat(path); err != nil {
		logutil.Debugf("no config at %s, using defaults", path)
		return config.Default(), nil
	}
	return config.Load(path)
}

func buildContent(cmd *cobra.Command) (*xpub.Content, error) {
	body := bodyFlag
	if body == "" {
		var err error
		if body, err = readStdin(cmd.InOrStdin()); err != nil {
			return nil, err
		}
	}

	opts := []xpub.Option{
		xpub.WithBody(strings.TrimSpace(body)),
		xpub.WithDescription(strings.TrimSpace(descriptionFlag)),
		xpub.WithMedia(mediaFlag...),
		xpub.WithTags(tagsFlag...),
		xpub.WithCategory(strings.TrimSpace(categoryFlag)),
		xpub.WithExtensions(xpub.Extensions{
			Status:    strings.TrimSpace(statusFlag),
			Location:  strings.TrimSpace(locationFlag),
			Condition: strings.TrimSpace(conditionFlag),
		}),
	}
	if priceFlag != "" {
		price, err := decimal.NewFromString(strings.TrimSpace(priceFlag))
		if err != nil {
			return nil, fmt.Errorf("invalid price %q: %w", priceFlag, err)
		}
		opts = append(opts, xpub.WithPrice(price))
	}

	return xpub.NewContent(titleFlag, opts...)
}

// readStdin returns piped input; an interactive terminal yields nothing.
func readStdin(in io.Reader) (string, error) {
	if file, ok := in.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		return "", nil
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}

// normalizeTargets resolves names and aliases, keeping first-seen order.
// "all" expands to every platform a publisher ships for. Unknown names are
// dropped with a warning; only an empty result is an error.
func normalizeTargets(values []string) ([]xpub.Platform, error) {
	result := make([]xpub.Platform, 0, len(values))
	seen := map[xpub.Platform]struct{}{}
	add := func(p xpub.Platform) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		result = append(result, p)
	}

	for _, raw := range values {
		raw = strings.TrimSpace(strings.ToLower(raw))
		if raw == "" {
			continue
		}
		if raw == "all" {
			for _, p := range xpub.Platforms() {
				if !p.Reserved() {
					add(p)
				}
			}
			continue
		}
		p, err := xpub.ParsePlatform(raw)
		if err != nil {
			logutil.Warnf("dropping target: %v", err)
			continue
		}
		add(p)
	}

	if len(result) == 0 {
		return nil, task.ErrNoValidPlatforms
	}
	return result, nil
}

// registerPublishers builds one transport per route name in use and binds
// a publisher to every implemented target. A target whose transport cannot
// be built stays unregistered, like a reserved one, and fails on its own
// when the task runs.
func registerPublishers(ctx context.Context, m *publish.Manager, platforms []xpub.Platform, routes map[xpub.Platform]string, cfg *config.Config) {
	constructors := map[string]func(context.Context) (xpub.Transport, error){
		"dryrun": func(context.Context) (xpub.Transport, error) {
			return dryrun.New(), nil
		},
		"bluesky": func(ctx context.Context) (xpub.Transport, error) {
			return bluesky.New(ctx, bluesky.Config{PDSURL: cfg.Bluesky.PDSURL})
		},
		"mastodon": mastodon.New,
		"twitter":  twitter.New,
	}

	built := map[string]xpub.Transport{}
	broken := map[string]error{}
	for _, p := range platforms {
		newPublisher, ok := publisherConstructors[p]
		if !ok {
			logutil.Warnf("no publisher ships for %s", p)
			continue
		}
		name := routes[p]
		if name == "" {
			name = dryRunTransport
		}
		if err, ok := broken[name]; ok {
			logutil.Errorf("skipping %s: transport %s unavailable: %v", p, name, err)
			continue
		}
		t, ok := built[name]
		if !ok {
			constructor, known := constructors[name]
			if !known {
				logutil.Errorf("skipping %s: unknown transport %q", p, name)
				continue
			}
			var err error
			if t, err = constructor(ctx); err != nil {
				broken[name] = err
				logutil.Errorf("skipping %s: transport %s unavailable: %v", p, name, err)
				continue
			}
			built[name] = t
		}
		logutil.Debugf("routing %s through %s", p, t.Name())
		m.Register(newPublisher(t))
	}
}

func printSummary(out io.Writer, t task.Task) {
	fmt.Fprintln(out, t.Summary())
	for _, r := range t.Results {
		switch {
		case r.Success() && r.URL != "":
			fmt.Fprintf(out, "  %-12s %-8s %s\n", r.Platform, r.Status, r.URL)
		case r.Success():
			fmt.Fprintf(out, "  %-12s %-8s id=%s\n", r.Platform, r.Status, r.PostID)
		default:
			fmt.Fprintf(out, "  %-12s %-8s %s (attempts: %d)\n", r.Platform, r.Status, r.Error, r.Attempts)
		}
	}
}
