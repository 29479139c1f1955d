package cmd

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/er587/wedding-gallery-application/internal/config"
	"github.com/er587/wedding-gallery-application/internal/constants"
	"github.com/er587/wedding-gallery-application/internal/database"
	"github.com/er587/wedding-gallery-application/internal/suggest"
	"github.com/er587/wedding-gallery-application/internal/tagging"
)

const suggestBotUser = "face-suggester"

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Suggest identities for images without approved tags",
	Long: `Run face detection and identity matching over every image that has no
approved face tag yet. Suggestions come from the approved corpus only.

With --submit, each suggestion is stored as a pending face tag with
origin auto_suggested, so that a moderator can review it in the queue.

Examples:
  # Print suggestions
  gallery-faces suggest --limit 50

  # Submit suggestions to the moderation queue
  gallery-faces suggest --submit --concurrency 2`,
	RunE: runSuggest,
}

func init() {
	rootCmd.AddCommand(suggestCmd)

	suggestCmd.Flags().Int("limit", 0, "Maximum number of images to process (0 = all)")
	suggestCmd.Flags().Int("concurrency", constants.WorkerPoolSize, "Number of images processed in parallel")
	suggestCmd.Flags().Duration("timeout", constants.DefaultDetectorTimeout, "Timeout per image")
	suggestCmd.Flags().Bool("submit", false, "Submit suggestions as pending auto_suggested tags")
	suggestCmd.Flags().Bool("json", false, "Output as JSON")
}

// SuggestImageResult holds the suggestions for one image
type SuggestImageResult struct {
	ImageID     int64           `json:"image_id"`
	Suggestions []SuggestedFace `json:"suggestions"`
	Error       string          `json:"error,omitempty"`
}

type SuggestedFace struct {
	FaceIndex  int     `json:"face_index"`
	PersonID   int64   `json:"person_id"`
	PersonName string  `json:"person_name"`
	Confidence float64 `json:"confidence"`
	TagID      int64   `json:"tag_id,omitempty"`
}

// SuggestResult represents the result of a batch suggestion run
type SuggestResult struct {
	Success     bool                 `json:"success"`
	Images      int                  `json:"images"`
	Suggestions int                  `json:"suggestions"`
	Submitted   int                  `json:"submitted"`
	Errors      int                  `json:"errors"`
	DurationMs  int64                `json:"duration_ms"`
	Results     []SuggestImageResult `json:"results"`
}

func runSuggest(cmd *cobra.Command, args []string) error {
	limit := mustGetInt(cmd, "limit")
	concurrency := mustGetInt(cmd, "concurrency")
	timeout := mustGetDuration(cmd, "timeout")
	submit := mustGetBool(cmd, "submit")
	jsonOutput := mustGetBool(cmd, "json")
	if concurrency < 1 {
		concurrency = 1
	}

	ctx := context.Background()
	cfg := config.Load()
	startTime := time.Now()

	if _, err := openStore(cfg); err != nil {
		return err
	}
	suggester, err := newSuggester(ctx, cfg)
	if err != nil {
		return err
	}
	var service *tagging.Service
	if submit {
		if service, err = newTaggingService(ctx, cfg.Policy); err != nil {
			return err
		}
	}
	images, err := database.GetImageStore(ctx)
	if err != nil {
		return err
	}

	todo, err := images.ListImagesWithoutApprovedTags(ctx)
	if err != nil {
		return fmt.Errorf("failed to list images: %w", err)
	}
	if limit > 0 && len(todo) > limit {
		todo = todo[:limit]
	}
	if len(todo) == 0 {
		if jsonOutput {
			return outputJSON(SuggestResult{Success: true, Results: []SuggestImageResult{}})
		}
		fmt.Println("Every image already has approved face tags!")
		return nil
	}

	var bar *progressbar.ProgressBar
	if !jsonOutput {
		fmt.Printf("Images to process: %d\n\n", len(todo))
		bar = progressbar.NewOptions(len(todo),
			progressbar.OptionSetDescription("Suggesting identities"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("images"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}

	results := make([]SuggestImageResult, len(todo))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, img := range todo {
		wg.Add(1)
		go func(i int, img database.Image) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = suggestImage(ctx, suggester, service, img.ID, timeout)
			if bar != nil {
				bar.Add(1)
			}
		}(i, img)
	}
	wg.Wait()

	summary := SuggestResult{Images: len(todo), Results: results}
	for _, r := range results {
		if r.Error != "" {
			summary.Errors++
		}
		summary.Suggestions += len(r.Suggestions)
		for _, s := range r.Suggestions {
			if s.TagID != 0 {
				summary.Submitted++
			}
		}
	}
	summary.Success = summary.Errors == 0
	summary.DurationMs = time.Since(startTime).Milliseconds()

	if jsonOutput {
		return outputJSON(summary)
	}

	fmt.Println()
	for _, r := range results {
		if r.Error != "" {
			fmt.Printf("Image %d: error: %s\n", r.ImageID, r.Error)
			continue
		}
		for _, s := range r.Suggestions {
			fmt.Printf("Image %d face %d: %s (%.0f%%)\n", r.ImageID, s.FaceIndex, s.PersonName, s.Confidence*100)
		}
	}
	fmt.Printf("\nCompleted: %d images, %d suggestions, %d submitted, %d errors\n",
		summary.Images, summary.Suggestions, summary.Submitted, summary.Errors)
	return nil
}

// suggestImage runs identity matching for one image and optionally submits
// each suggestion as a pending tag.
func suggestImage(
	ctx context.Context, suggester *suggest.Suggester, service *tagging.Service, imageID int64, timeout time.Duration,
) SuggestImageResult {
	result := SuggestImageResult{ImageID: imageID, Suggestions: []SuggestedFace{}}

	imgCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	suggestions, err := suggester.SuggestIdentities(imgCtx, imageID)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	bot := tagging.Actor{UserID: suggestBotUser}
	for _, s := range suggestions {
		face := SuggestedFace{
			FaceIndex:  s.FaceIndex,
			PersonID:   s.PersonID,
			PersonName: s.PersonName,
			Confidence: s.Confidence,
		}
		if service != nil {
			confidence := s.Confidence
			tag, err := service.Submit(ctx, tagging.SubmitRequest{
				ImageID:    imageID,
				PersonID:   s.PersonID,
				Region:     s.Region,
				Origin:     database.OriginAutoSuggested,
				Confidence: &confidence,
			}, bot)
			if err != nil {
				result.Error = fmt.Sprintf("submitting face %d: %v", s.FaceIndex, err)
			} else {
				face.TagID = tag.ID
			}
		}
		result.Suggestions = append(result.Suggestions, face)
	}
	return result
}
