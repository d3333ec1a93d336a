// Package notify batches new postings into Discord webhook messages and
// sends source health alerts. Send failures stop the run's dispatching; the
// store keeps unsent jobs pending, so delivery is at-least-once-eventually
// without ever re-sending an acked batch.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"

	"jobtrack-engine/internal/health"
	"jobtrack-engine/internal/httpclient"
	"jobtrack-engine/internal/store"
)

type Notifier struct {
	webhookURL string
	hc         *httpclient.Client // status retries disabled: a late 200 must not be doubled
	batchSize  int
}

type DispatchResult struct {
	SentIDs []string
	Failed  bool
}

type embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url,omitempty"`
	Color       int          `json:"color"`
	Fields      []embedField `json:"fields,omitempty"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type payload struct {
	Content string  `json:"content"`
	Embeds  []embed `json:"embeds,omitempty"`
}

func New(webhookURL string, hc *httpclient.Client, batchSize int) *Notifier {
	if batchSize <= 0 {
		batchSize = 10 // Discord's embeds-per-message limit
	}
	return &Notifier{webhookURL: webhookURL, hc: hc, batchSize: batchSize}
}

// Dispatch sends the jobs in order, batchSize embeds per message. A batch
// either fully lands or fully fails; on the first failure the remaining
// batches stay unsent and Failed is set. SentIDs only ever contains ids from
// acked batches.
func (n *Notifier) Dispatch(ctx context.Context, jobs []store.StoredJob, dryRun bool) DispatchResult {
	var res DispatchResult
	if len(jobs) == 0 {
		return res
	}
	if n.webhookURL == "" && !dryRun {
		log.Printf("[notify] no webhook URL configured")
		res.Failed = true
		return res
	}

	for start := 0; start < len(jobs); start += n.batchSize {
		end := start + n.batchSize
		if end > len(jobs) {
			end = len(jobs)
		}
		batch := jobs[start:end]

		var content string
		if start == 0 {
			content = fmt.Sprintf("**New Job Alert!** Found %d new position(s)", len(jobs))
		} else {
			content = fmt.Sprintf("(continued) %d more position(s):", len(batch))
		}

		p := payload{Content: content}
		for _, j := range batch {
			p.Embeds = append(p.Embeds, jobEmbed(j))
		}

		if err := n.send(ctx, p, dryRun); err != nil {
			log.Printf("[notify] batch %d-%d failed: %v", start, end, err)
			res.Failed = true
			return res
		}
		for _, j := range batch {
			res.SentIDs = append(res.SentIDs, j.UniqueID)
		}
	}

	log.Printf("[notify] sent %d job(s)", len(res.SentIDs))
	return res
}

// SendAlert delivers one health alert as its own message, never batched with
// job postings.
func (n *Notifier) SendAlert(ctx context.Context, a *health.Alert, dryRun bool) error {
	var p payload
	switch a.Kind {
	case health.AlertFailure:
		p = payload{
			Content: fmt.Sprintf("**Source alert (%s):** `%s` has failed %d run(s) in a row", a.Tier, a.Source, a.Failures),
			Embeds: []embed{{
				Title:       fmt.Sprintf("%s source unhealthy", a.Source),
				Description: truncate(a.Err, 500),
				Color:       0xED4245, // red
				Fields: []embedField{
					{Name: "Severity", Value: a.Tier, Inline: true},
					{Name: "Consecutive failures", Value: fmt.Sprint(a.Failures), Inline: true},
				},
			}},
		}
	case health.AlertRecovery:
		p = payload{
			Content: fmt.Sprintf("**Source recovered:** `%s` is healthy again", a.Source),
			Embeds: []embed{{
				Title:       fmt.Sprintf("%s source recovered", a.Source),
				Description: fmt.Sprintf("Back to normal after %d failed run(s).", a.RecoveredAfter),
				Color:       0x57F287, // green
			}},
		}
	default:
		return fmt.Errorf("unknown alert kind %q", a.Kind)
	}
	return n.send(ctx, p, dryRun)
}

// SendTest verifies the webhook wiring end to end.
func (n *Notifier) SendTest(ctx context.Context) error {
	p := payload{
		Content: "Job Tracker Test Notification",
		Embeds: []embed{{
			Title:       "Test Job Alert",
			Description: "If you see this, your webhook is working correctly!",
			Color:       0x57F287,
			Fields:      []embedField{{Name: "Status", Value: "Connected", Inline: true}},
		}},
	}
	return n.send(ctx, p, false)
}

func (n *Notifier) send(ctx context.Context, p payload, dryRun bool) error {
	if dryRun {
		b, _ := json.MarshalIndent(p, "", "  ")
		log.Printf("[notify] dry run, would send:\n%s", b)
		return nil
	}
	if n.webhookURL == "" {
		return fmt.Errorf("no webhook URL configured")
	}

	resp, err := n.hc.PostJSON(ctx, n.webhookURL, p)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	return nil
}

func jobEmbed(j store.StoredJob) embed {
	location := j.Location
	if location == "" {
		location = "Not specified"
	}
	return embed{
		Title: fmt.Sprintf("%s - %s", j.Company, truncate(j.Title, 200)),
		URL:   j.URL,
		Color: companyColor(j.Company),
		Fields: []embedField{
			{Name: "Location", Value: location, Inline: true},
			{Name: "Source", Value: j.Source, Inline: true},
		},
	}
}

var companyColors = map[string]int{
	"google":    0x4285F4,
	"meta":      0x0866FF,
	"facebook":  0x1877F2,
	"amazon":    0xFF9900,
	"apple":     0xA2AAAD,
	"netflix":   0xE50914,
	"airbnb":    0xFF5A5F,
	"microsoft": 0x00A4EF,
	"stripe":    0x635BFF,
}

func companyColor(company string) int {
	c := strings.ToLower(company)
	for name, color := range companyColors {
		if strings.Contains(c, name) {
			return color
		}
	}
	return 0x5865F2 // blurple
}

// truncate caps the string at max runes. Slicing bytes could split a
// multi-byte rune and mangle the embed text.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
