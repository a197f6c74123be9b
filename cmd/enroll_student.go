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

var enrollStudentCmd = &cobra.Command{
	Use:   "enroll-student <student_id> <image_path>",
	Short: "Detect a face and register it as student_<student_id>",
	Long: "Registers the first face found in <image_path> under the person id student_<student_id>.\n" +
		"On success it prints the mapping to store against the student record (users.suri_person_id).",
	// Missing arguments print usage and exit 0 instead of failing validation.
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runEnrollStudent(cmd.Context(), cmd.OutOrStdout(), Service, args)
	},
}

func init() {
	rootCmd.AddCommand(enrollStudentCmd)
}

func runEnrollStudent(ctx context.Context, w io.Writer, svc workflow.Service, args []string) error {
	if len(args) < 2 || args[0] == "" {
		fmt.Fprintln(w, "Usage: suri enroll-student <student_id> <image_path>")
		fmt.Fprintln(w, "Example: suri enroll-student 45 face.jpg")
		return nil
	}

	out, err := workflow.Enroll(ctx, svc, workflow.Request{
		ImagePath: args[1],
		SubjectID: args[0],
	})

	var noFace *workflow.NoFaceError
	if errors.As(err, &noFace) {
		fmt.Fprintln(w, utils.PrettyJSON(noFace.Detection.Body))
		fmt.Fprintln(w, "❌ No face detected. Use a clearer photo.")
		return nil
	}
	if err != nil {
		return fail("Enrollment failed", err)
	}

	fmt.Fprintln(w, utils.PrettyJSON(out.Result.Body))

	if out.Result.Success() {
		fmt.Fprintf(w, "\n✅ SUCCESS: Save this mapping -> users.suri_person_id = '%s'\n", out.PersonID)
	}
	return nil
}
