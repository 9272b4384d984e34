package cmd

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blacktop/xpub/internal/config"
	"github.com/blacktop/xpub/internal/logutil"
	"github.com/blacktop/xpub/internal/publish"
	"github.com/blacktop/xpub/internal/task"
	"github.com/blacktop/xpub/internal/xpub"
)

func TestNormalizeTargets(t *testing.T) {
	got, err := normalizeTargets([]string{"zhihu", " XHS ", "article", ""})
	require.NoError(t, err)
	assert.Equal(t, []xpub.Platform{xpub.Article, xpub.Lifestyle}, got)

	got, err = normalizeTargets([]string{"video", "all"})
	require.NoError(t, err)
	assert.Equal(t, []xpub.Platform{xpub.Video, xpub.Marketplace, xpub.Lifestyle, xpub.Article}, got)

	got, err = normalizeTargets([]string{"douyin"})
	require.NoError(t, err)
	assert.Equal(t, []xpub.Platform{xpub.ShortVideo}, got)

	_, err = normalizeTargets([]string{" "})
	assert.ErrorIs(t, err, task.ErrNoValidPlatforms)
}

func TestNormalizeTargetsDropsUnknownNames(t *testing.T) {
	var logs bytes.Buffer
	logutil.SetOutput(&logs)
	t.Cleanup(func() { logutil.SetOutput(io.Discard) })

	got, err := normalizeTargets([]string{"marketplace", "unknown_platform"})
	require.NoError(t, err)
	assert.Equal(t, []xpub.Platform{xpub.Marketplace}, got)
	assert.Contains(t, logs.String(), `unsupported platform "unknown_platform"`)

	_, err = normalizeTargets([]string{"myspace", "friendster"})
	assert.ErrorIs(t, err, task.ErrNoValidPlatforms)
}

func TestRegisterPublishers(t *testing.T) {
	logutil.SetOutput(io.Discard)
	m := publish.NewManager(publish.Options{})
	platforms := []xpub.Platform{xpub.Marketplace, xpub.Video, xpub.Microblog}
	routes := map[xpub.Platform]string{xpub.Marketplace: "dryrun"}

	registerPublishers(context.Background(), m, platforms, routes, config.Default())
	assert.Equal(t, []xpub.Platform{xpub.Marketplace, xpub.Video}, m.Platforms())
}

func TestRegisterPublishersSkipsUnknownTransport(t *testing.T) {
	var logs bytes.Buffer
	logutil.SetOutput(&logs)
	t.Cleanup(func() { logutil.SetOutput(io.Discard) })

	m := publish.NewManager(publish.Options{})
	routes := map[xpub.Platform]string{xpub.Article: "carrier-pigeon", xpub.Lifestyle: "carrier-pigeon"}
	registerPublishers(context.Background(), m,
		[]xpub.Platform{xpub.Article, xpub.Lifestyle, xpub.Marketplace}, routes, config.Default())

	assert.Equal(t, []xpub.Platform{xpub.Marketplace}, m.Platforms())
	assert.Contains(t, logs.String(), `skipping article: unknown transport "carrier-pigeon"`)
	assert.Contains(t, logs.String(), `skipping lifestyle: unknown transport "carrier-pigeon"`)
}

func TestRegisterPublishersSkipsUnavailableTransport(t *testing.T) {
	var logs bytes.Buffer
	logutil.SetOutput(&logs)
	t.Cleanup(func() { logutil.SetOutput(io.Discard) })
	t.Setenv("XPUB_MASTODON_SERVER", "")
	t.Setenv("XPUB_MASTODON_ACCESS_TOKEN", "")

	m := publish.NewManager(publish.Options{})
	routes := map[xpub.Platform]string{xpub.Article: "mastodon", xpub.Video: "mastodon", xpub.Marketplace: "dryrun"}
	registerPublishers(context.Background(), m,
		[]xpub.Platform{xpub.Article, xpub.Video, xpub.Marketplace}, routes, config.Default())

	assert.Equal(t, []xpub.Platform{xpub.Marketplace}, m.Platforms())
	assert.Equal(t, 2, strings.Count(logs.String(), "mastodon credentials not configured"))
	assert.Contains(t, logs.String(), "skipping article")
	assert.Contains(t, logs.String(), "skipping video")
}

func TestSpan(t *testing.T) {
	assert.Equal(t, "-", span(0, 0))
	assert.Equal(t, "30", span(0, 30))
	assert.Equal(t, "5..50", span(5, 50))
}

func TestPrintLimits(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printLimits(&buf, xpub.AllLimits()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "PLATFORM"))
	assert.Equal(t, []string{"article", "5..50", "50..100000", "100000", "100", "5", "-", "forbidden", "true"}, strings.Fields(lines[3]))
	assert.Equal(t, []string{"video", "80", "2000", "2000", "1..3", "10", "233", "any", "false"}, strings.Fields(lines[4]))
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, task.Task{
		Platforms: []xpub.Platform{xpub.Video, xpub.Article},
		Status:    task.StatusCompleted,
		Completed: 2,
		Failed:    1,
		Results: []xpub.Result{
			{Platform: xpub.Video, Status: xpub.StatusSuccess, URL: "dryrun://video/1"},
			{Platform: xpub.Article, Status: xpub.StatusFailed, Error: "boom", Attempts: 3},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "completed with failures: 1/2 platforms succeeded, 1 failed")
	assert.Contains(t, out, "dryrun://video/1")
	assert.Contains(t, out, "boom (attempts: 3)")
}

func TestRootDryRun(t *testing.T) {
	logutil.SetOutput(io.Discard)
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, config.CreateFile(cfgPath))

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs([]string{
		"--config", cfgPath,
		"--title", "Vintage film camera, fully working, with original strap and case",
		"--body", "Lightly used.",
		"--media", "front.jpg",
		"--category", "cameras",
		"--price", "120",
		"--target", "xianyu",
		"--target", "douyin",
		"--pacing", "0s",
		"--retries", "1",
		"--dry-run",
	})

	require.NoError(t, cmd.Execute())

	text := out.String()
	assert.Contains(t, text, "[  0%] started: 2 platform(s)")
	assert.Contains(t, text, "marketplace: success")
	assert.Contains(t, text, "shortvideo: failed (shortvideo: publisher not registered)")
	assert.Contains(t, text, "completed with failures: 1/2 platforms succeeded, 1 failed")
	assert.Contains(t, text, "dryrun://marketplace/")
}

func TestRootFailsWhenEveryPlatformFails(t *testing.T) {
	logutil.SetOutput(io.Discard)
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, config.CreateFile(cfgPath))

	cmd := newRootCommand()
	cmd.SetOut(io.Discard)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs([]string{
		"--config", cfgPath,
		"--title", "No price here",
		"--target", "marketplace",
		"--pacing", "0s",
		"--dry-run",
	})

	err := cmd.Execute()
	assert.ErrorContains(t, err, "publish failed")
}

func TestRootContinuesWhenTransportUnavailable(t *testing.T) {
	logutil.SetOutput(io.Discard)
	t.Setenv("XPUB_MASTODON_SERVER", "")
	t.Setenv("XPUB_MASTODON_ACCESS_TOKEN", "")
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
[publish]
max_retries = 1

[routes]
marketplace = "dryrun"
article = "mastodon"
`), 0o644))

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs([]string{
		"--config", cfgPath,
		"--title", "Vintage film camera",
		"--body", "Lightly used.",
		"--media", "front.jpg",
		"--category", "cameras",
		"--price", "120",
		"--target", "marketplace",
		"--target", "article",
		"--target", "myspace",
		"--pacing", "0s",
	})

	require.NoError(t, cmd.Execute())

	text := out.String()
	assert.Contains(t, text, "[  0%] started: 2 platform(s)")
	assert.Contains(t, text, "marketplace: success")
	assert.Contains(t, text, "article: failed (article: publisher not registered)")
	assert.Contains(t, text, "completed with failures: 1/2 platforms succeeded, 1 failed")
}

func TestRootRejectsBadInput(t *testing.T) {
	logutil.SetOutput(io.Discard)
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, config.CreateFile(cfgPath))

	for name, args := range map[string][]string{
		"missing title": {"--config", cfgPath, "--dry-run"},
		"bad price":     {"--config", cfgPath, "--title", "x", "--price", "cheap", "--dry-run"},
		"bad target":    {"--config", cfgPath, "--title", "x", "--target", "myspace", "--dry-run"},
	} {
		cmd := newRootCommand()
		cmd.SetOut(io.Discard)
		cmd.SetIn(strings.NewReader(""))
		cmd.SetArgs(args)
		assert.Error(t, cmd.Execute(), name)
	}
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xpub", "config.toml")

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"config", "init", path})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "wrote "+path+"\n", out.String())

	_, err := config.Load(path)
	assert.NoError(t, err)
}
