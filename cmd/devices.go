package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/smazurov/camnode/pkg/linuxav/v4l2"
)

// CreateDevicesCmd creates the devices command.
func CreateDevicesCmd() *cobra.Command {
	var showFormats bool
	var showResolutions bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List V4L2 capture devices",
		Long: `Enumerates video capture devices on the system and prints their driver ` +
			`information. Use --formats to also query supported pixel formats and ` +
			`--resolutions for per-format frame sizes.`,
		Run: func(_ *cobra.Command, _ []string) {
			devices, err := v4l2.FindDevices()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to enumerate devices: %v\n", err)
				os.Exit(1)
			}

			if len(devices) == 0 {
				fmt.Println("No capture devices found")
				return
			}

			for _, d := range devices {
				fmt.Printf("%s\t%s (%s, %s)\n", d.DevicePath, d.DeviceName, d.Driver, d.BusInfo)

				if !showFormats && !showResolutions {
					continue
				}

				formats, err := v4l2.GetFormats(d.DevicePath)
				if err != nil {
					fmt.Fprintf(os.Stderr, "  failed to query formats: %v\n", err)
					continue
				}

				for _, f := range formats {
					emulated := ""
					if f.Emulated {
						emulated = " (emulated)"
					}
					fmt.Printf("  %s\t%s%s\n", v4l2.FormatFourCC(f.PixelFormat), f.FormatName, emulated)

					if !showResolutions {
						continue
					}

					resolutions, err := v4l2.GetResolutions(d.DevicePath, f.PixelFormat)
					if err != nil {
						fmt.Fprintf(os.Stderr, "    failed to query resolutions: %v\n", err)
						continue
					}
					for _, r := range resolutions {
						fmt.Printf("    %dx%d\n", r.Width, r.Height)
					}
				}
			}
		},
	}

	cmd.Flags().BoolVarP(&showFormats, "formats", "f", false, "Show supported pixel formats")
	cmd.Flags().BoolVarP(&showResolutions, "resolutions", "r", false, "Show supported resolutions per format")

	return cmd
}
