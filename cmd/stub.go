package cmd

import (
	"fmt"
	"os"

	"github.com/andresmejia3/suri/internal/stub"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var stubNoFaces bool

var stubCmd = &cobra.Command{
	Use:   "stub",
	Short: "Serve a local fake of the face service for offline testing",
	Long: "Serves /detect, /face/register and /face/recognize with canned answers.\n" +
		"Every non-empty image yields one face unless --no-faces is set. Stops on Ctrl+C.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		if log.GetLevel() < log.DebugLevel {
			gin.SetMode(gin.ReleaseMode)
		}

		srv := stub.New(stub.Options{NoFaces: stubNoFaces})
		fmt.Fprintf(os.Stderr, "🧪 Stub face service listening on %s\n", Cfg.Stub.Addr)
		if err := srv.Run(cmd.Context(), Cfg.Stub.Addr); err != nil {
			return fail("Stub service stopped", err)
		}
		return nil
	},
}

func init() {
	stubCmd.Flags().String("addr", "", "Listen address (default: :8000)")
	stubCmd.Flags().BoolVar(&stubNoFaces, "no-faces", false, "Answer every detection with an empty face list")
	rootCmd.AddCommand(stubCmd)
}
