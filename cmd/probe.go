package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"fencecast/internal/encoders"
)

// CreateProbeCmd creates the probe command: it runs the encoder capability
// probe once and prints the result.
func CreateProbeCmd() *cobra.Command {
	var ffmpegPath string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Probe hardware encoder availability",
		Long:  `Checks whether the NVENC hardware encoder is available to the ffmpeg binary and reports the GPU device name when one is found.`,
		Run: func(_ *cobra.Command, _ []string) {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			caps := encoders.Detect(ctx, ffmpegPath)

			if asJSON {
				out, err := json.MarshalIndent(caps, "", "  ")
				if err != nil {
					fmt.Fprintln(os.Stderr, "failed to encode result:", err)
					os.Exit(1)
				}
				fmt.Println(string(out))
				return
			}

			if caps.HasHardware {
				fmt.Println("hardware encoder: available")
				if caps.DeviceName != "" {
					fmt.Println("device:", caps.DeviceName)
				}
			} else {
				fmt.Println("hardware encoder: not available, software encoding will be used")
			}
		},
	}

	cmd.Flags().StringVar(&ffmpegPath, "ffmpeg", "ffmpeg", "Path to the ffmpeg binary")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")

	return cmd
}
