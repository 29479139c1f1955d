package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/er587/wedding-gallery-application/internal/config"
	"github.com/er587/wedding-gallery-application/internal/tagging"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Moderate pending face tags",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending face tags, oldest first",
	RunE:  runQueueList,
}

var queueApproveCmd = &cobra.Command{
	Use:   "approve",
	Short: "Approve pending face tags",
	Long: `Approve pending face tags as the given moderator.
Tags that cannot be approved are reported and do not stop the batch.

Examples:
  gallery-faces queue approve --moderator bride --ids 12,13,20`,
	RunE: runQueueApprove,
}

var queueRejectCmd = &cobra.Command{
	Use:   "reject",
	Short: "Reject pending face tags",
	RunE:  runQueueReject,
}

func init() {
	rootCmd.AddCommand(queueCmd)
	queueCmd.AddCommand(queueListCmd, queueApproveCmd, queueRejectCmd)

	queueListCmd.Flags().Int("page", 1, "Page number")
	queueListCmd.Flags().Int("page-size", 0, "Tags per page (default from policy)")
	queueListCmd.Flags().Bool("json", false, "Output as JSON")

	for _, c := range []*cobra.Command{queueApproveCmd, queueRejectCmd} {
		c.Flags().String("moderator", "", "Moderator identity recorded in the audit trail (required)")
		c.Flags().Int64Slice("ids", nil, "Face tag ids")
		c.Flags().Bool("json", false, "Output as JSON")
	}
}

// QueueListResult is the JSON form of one queue page.
type QueueListResult struct {
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	TotalCount int            `json:"total_count"`
	TotalPages int            `json:"total_pages"`
	Items      []QueueListTag `json:"items"`
}

type QueueListTag struct {
	ID          int64    `json:"id"`
	ImageID     int64    `json:"image_id"`
	PersonID    int64    `json:"person_id"`
	PersonName  string   `json:"person_name"`
	Origin      string   `json:"origin"`
	Confidence  *float64 `json:"confidence,omitempty"`
	SubmittedBy string   `json:"submitted_by"`
	CreatedAt   string   `json:"created_at"`
}

// BulkResultOutput is the JSON form of a bulk moderation result.
type BulkResultOutput struct {
	BatchID string              `json:"batch_id"`
	Action  string              `json:"action"`
	Done    []int64             `json:"done"`
	Failed  []BulkFailureOutput `json:"failed"`
}

type BulkFailureOutput struct {
	ID      int64  `json:"id"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

func runQueueList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := config.Load()
	repos, err := openStore(cfg)
	if err != nil {
		return err
	}

	queue := tagging.NewQueue(repos.FaceTags, cfg.Policy.Queue)
	pageSize := mustGetInt(cmd, "page-size")
	if pageSize == 0 {
		pageSize = queue.DefaultPageSize()
	}
	page, err := queue.Page(ctx, mustGetInt(cmd, "page"), pageSize)
	if err != nil {
		return fmt.Errorf("listing queue: %w", err)
	}

	if mustGetBool(cmd, "json") {
		result := QueueListResult{
			Page:       page.Page,
			PageSize:   page.PageSize,
			TotalCount: page.TotalCount,
			TotalPages: page.TotalPages,
			Items:      make([]QueueListTag, 0, len(page.Items)),
		}
		for _, t := range page.Items {
			result.Items = append(result.Items, QueueListTag{
				ID:          t.ID,
				ImageID:     t.ImageID,
				PersonID:    t.PersonID,
				PersonName:  t.PersonName,
				Origin:      string(t.Origin),
				Confidence:  t.Confidence,
				SubmittedBy: t.SubmittedBy,
				CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		return outputJSON(result)
	}

	fmt.Printf("Pending face tags: %d (page %d of %d)\n\n", page.TotalCount, page.Page, page.TotalPages)
	for _, t := range page.Items {
		conf := "-"
		if t.Confidence != nil {
			conf = fmt.Sprintf("%.2f", *t.Confidence)
		}
		fmt.Printf("  #%-6d image %-6d %-24s %-15s conf %-5s by %s at %s\n",
			t.ID, t.ImageID, t.PersonName, t.Origin, conf, t.SubmittedBy, t.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func runQueueApprove(cmd *cobra.Command, args []string) error {
	return runBulkModeration(cmd, "approve")
}

func runQueueReject(cmd *cobra.Command, args []string) error {
	return runBulkModeration(cmd, "reject")
}

func runBulkModeration(cmd *cobra.Command, action string) error {
	moderator := strings.TrimSpace(mustGetString(cmd, "moderator"))
	if moderator == "" {
		return errors.New("--moderator is required")
	}
	ids := mustGetInt64Slice(cmd, "ids")
	if len(ids) == 0 {
		return errors.New("--ids is required")
	}

	ctx := context.Background()
	cfg := config.Load()
	if _, err := openStore(cfg); err != nil {
		return err
	}
	service, err := newTaggingService(ctx, cfg.Policy)
	if err != nil {
		return err
	}

	actor := tagging.Actor{UserID: moderator, IsModerator: true}
	var result *tagging.BulkResult
	var done []int64
	if action == "approve" {
		result, err = service.BulkApprove(ctx, ids, actor)
		if result != nil {
			done = result.Approved
		}
	} else {
		result, err = service.BulkReject(ctx, ids, actor)
		if result != nil {
			done = result.Rejected
		}
	}
	if err != nil {
		return fmt.Errorf("bulk %s: %w", action, err)
	}

	if mustGetBool(cmd, "json") {
		out := BulkResultOutput{
			BatchID: result.BatchID,
			Action:  action,
			Done:    done,
			Failed:  make([]BulkFailureOutput, 0, len(result.Failed)),
		}
		if out.Done == nil {
			out.Done = []int64{}
		}
		for _, f := range result.Failed {
			out.Failed = append(out.Failed, BulkFailureOutput{ID: f.ID, Reason: f.Reason, Message: f.Message})
		}
		return outputJSON(out)
	}

	fmt.Printf("Batch %s: %d tags %sd, %d failed\n", result.BatchID, len(done), action, len(result.Failed))
	for _, f := range result.Failed {
		fmt.Printf("  #%d: %s (%s)\n", f.ID, f.Message, f.Reason)
	}
	return nil
}
