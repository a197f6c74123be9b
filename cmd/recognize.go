package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/andresmejia3/suri/internal/utils"
	"github.com/andresmejia3/suri/internal/workflow"
	"github.com/spf13/cobra"
)

var recognizeCmd = &cobra.Command{
	Use:   "recognize [image_path]",
	Short: "Detect a face and ask the service who it is",
	Long:  "Exits with status 1 when no face is detected.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runRecognize(cmd.Context(), cmd.OutOrStdout(), Service, imageArg(args, 0))
	},
}

func init() {
	rootCmd.AddCommand(recognizeCmd)
}

func runRecognize(ctx context.Context, w io.Writer, svc workflow.Service, imagePath string) error {
	out, err := workflow.Recognize(ctx, svc, imagePath)

	// The detection is printed whenever we got one, face or not
	if out != nil && out.Detection != nil {
		fmt.Fprintln(w, "Detect status:", out.Detection.StatusCode)
		fmt.Fprintln(w, utils.PrettyJSON(out.Detection.Body))
	}

	var noFace *workflow.NoFaceError
	if errors.As(err, &noFace) {
		fmt.Fprintln(w, "❌ No face detected, cannot recognize.")
		return &ExitError{Code: 1, Err: err}
	}
	if err != nil {
		return fail("Recognition failed", err)
	}

	fmt.Fprintln(w, "\nRecognize status:", out.Result.StatusCode)
	fmt.Fprintln(w, utils.PrettyJSON(out.Result.Body))
	return nil
}
