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

var enrollCmd = &cobra.Command{
	Use:   "enroll [image_path]",
	Short: "Detect a face and register it under a time-based person id",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runEnroll(cmd.Context(), cmd.OutOrStdout(), Service, imageArg(args, 0))
	},
}

func init() {
	rootCmd.AddCommand(enrollCmd)
}

func runEnroll(ctx context.Context, w io.Writer, svc workflow.Service, imagePath string) error {
	out, err := workflow.Enroll(ctx, svc, workflow.Request{ImagePath: imagePath})

	var noFace *workflow.NoFaceError
	if errors.As(err, &noFace) {
		fmt.Fprintln(w, "❌ No face detected")
		fmt.Fprintln(w, utils.PrettyJSON(noFace.Detection.Body))
		return nil
	}
	if err != nil {
		return fail("Enrollment failed", err)
	}

	fmt.Fprintln(w, "Register status:", out.Result.StatusCode)
	fmt.Fprintln(w, utils.PrettyJSON(out.Result.Body))
	return nil
}
