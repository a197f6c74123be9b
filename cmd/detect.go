package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/andresmejia3/suri/internal/utils"
	"github.com/andresmejia3/suri/internal/workflow"
	"github.com/spf13/cobra"
)

var detectCmd = &cobra.Command{
	Use:   "detect [image_path]",
	Short: "Run face detection on an image and print the raw service reply",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runDetect(cmd.Context(), cmd.OutOrStdout(), Service, imageArg(args, 0))
	},
}

func init() {
	rootCmd.AddCommand(detectCmd)
}

// runDetect prints whatever /detect answers, including non-2xx replies.
func runDetect(ctx context.Context, w io.Writer, svc workflow.Service, imagePath string) error {
	det, err := workflow.DetectOnly(ctx, svc, imagePath)
	if err != nil {
		return fail("Detection request failed", err)
	}

	fmt.Fprintln(w, "Status:", det.StatusCode)
	fmt.Fprintln(w, utils.PrettyJSON(det.Body))
	return nil
}
