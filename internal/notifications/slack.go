package notifications

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Harvey-AU/competitor-prices/internal/results"
	"github.com/rs/zerolog/log"
	"github.com/slack-go/slack"
)

// SlackConfig selects how run summaries reach Slack. A webhook URL takes
// precedence over a bot token and channel.
type SlackConfig struct {
	WebhookURL string
	Token      string
	Channel    string
	// OnlyOnFailure suppresses messages for runs without failed records or errors.
	OnlyOnFailure bool
	// APIURL overrides the Slack Web API base URL for the token client.
	APIURL string
}

// Enabled reports whether enough settings are present to send anything.
func (c SlackConfig) Enabled() bool {
	return c.WebhookURL != "" || (c.Token != "" && c.Channel != "")
}

// SlackNotifier posts a summary of each scrape run to Slack.
type SlackNotifier struct {
	config SlackConfig
	client *slack.Client
}

// NewSlackNotifier creates a notifier, or an error if config is incomplete.
func NewSlackNotifier(config SlackConfig) (*SlackNotifier, error) {
	if !config.Enabled() {
		return nil, fmt.Errorf("slack notifier needs a webhook URL or a token and channel")
	}

	n := &SlackNotifier{config: config}
	if config.WebhookURL == "" {
		var opts []slack.Option
		if config.APIURL != "" {
			opts = append(opts, slack.OptionAPIURL(config.APIURL))
		}
		n.client = slack.New(config.Token, opts...)
	}
	return n, nil
}

// NotifyRun sends the run summary.
func (n *SlackNotifier) NotifyRun(ctx context.Context, report *results.RunReport) error {
	if report == nil {
		return nil
	}

	totals := report.Totals()
	if n.config.OnlyOnFailure && totals.Failed == 0 && len(report.Errors) == 0 {
		log.Debug().Str("run_id", report.RunID).Msg("Run had no failures, skipping Slack notification")
		return nil
	}

	blocks := buildRunBlocks(report)
	fallback := fmt.Sprintf("Competitor scrape %s: %d ok, %d failed", report.RunID, totals.Succeeded, totals.Failed)

	var err error
	if n.config.WebhookURL != "" {
		err = slack.PostWebhookContext(ctx, n.config.WebhookURL, &slack.WebhookMessage{
			Text:   fallback,
			Blocks: &slack.Blocks{BlockSet: blocks},
		})
	} else {
		_, _, err = n.client.PostMessageContext(ctx, n.config.Channel,
			slack.MsgOptionBlocks(blocks...),
			slack.MsgOptionText(fallback, false),
		)
	}
	if err != nil {
		return fmt.Errorf("failed to send Slack notification: %w", err)
	}

	log.Info().
		Str("run_id", report.RunID).
		Int("competitors", len(report.Tables)).
		Msg("Slack run summary sent")

	return nil
}

func buildRunBlocks(report *results.RunReport) []slack.Block {
	totals := report.Totals()

	emoji := ":white_check_mark:"
	if totals.Failed > 0 || len(report.Errors) > 0 {
		emoji = ":warning:"
	}

	blocks := []slack.Block{
		slack.NewSectionBlock(
			slack.NewTextBlockObject(
				"mrkdwn",
				fmt.Sprintf("%s *Competitor scrape finished* in %s\n%d products, %d failed",
					emoji, formatDuration(totals.Duration), totals.Succeeded, totals.Failed),
				false,
				false,
			),
			nil,
			nil,
		),
	}

	var lines []string
	for _, s := range report.Summaries() {
		lines = append(lines, summaryLine(s))
	}
	if len(lines) > 0 {
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject("mrkdwn", strings.Join(lines, "\n"), false, false),
			nil,
			nil,
		))
	}

	if len(report.Errors) > 0 {
		ids := make([]string, 0, len(report.Errors))
		for id := range report.Errors {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		errLines := make([]string, 0, len(ids))
		for _, id := range ids {
			errLines = append(errLines, fmt.Sprintf(":x: *%s*: %s", id, report.Errors[id]))
		}
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject("mrkdwn", strings.Join(errLines, "\n"), false, false),
			nil,
			nil,
		))
	}

	blocks = append(blocks, slack.NewContextBlock("",
		slack.NewTextBlockObject("mrkdwn", "run "+report.RunID, false, false),
	))

	return blocks
}

// summaryLine renders "*maxaro*: 120 ok, 3 failed (http_status 2, price_parse 1)".
func summaryLine(s results.Summary) string {
	line := fmt.Sprintf("*%s*: %d ok, %d failed", s.Competitor, s.Succeeded, s.Failed)
	if len(s.ByKind) == 0 {
		return line
	}

	kinds := make([]string, 0, len(s.ByKind))
	for k := range s.ByKind {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, fmt.Sprintf("%s %d", k, s.ByKind[results.FailureKind(k)]))
	}
	return line + " (" + strings.Join(parts, ", ") + ")"
}

func formatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "N/A"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
