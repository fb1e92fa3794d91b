package main

import (
	"fmt"
	"os"

	"github.com/aretw0/waypoint"
	"github.com/aretw0/waypoint/internal/cli"
	"github.com/aretw0/waypoint/internal/presentation/tui"
	"github.com/aretw0/waypoint/pkg/adapters/console"
	"github.com/aretw0/waypoint/pkg/adapters/memory"
	"github.com/aretw0/waypoint/pkg/analytics"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play <experience.yaml>",
	Short: "Play an experience fixture in the terminal",
	Long: `Loads an experience from a YAML fixture and presents it with the console container.
Navigate with commands on stdin; type h for help.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		plain, _ := cmd.Flags().GetBool("plain")
		start, _ := cmd.Flags().GetString("step")
		log := logger()

		exp, err := memory.NewSource().LoadFile(args[0])
		if err != nil {
			return err
		}

		render := console.Renderer(tui.PlainRenderer())
		if !plain {
			tui.PrintBanner(os.Stdout, waypoint.Version)
			r, err := tui.NewRenderer(80)
			if err != nil {
				return err
			}
			render = r
		}
		factory := console.NewFactory(os.Stdout, console.WithRenderer(render), console.WithLogger(log))

		sdk, err := waypoint.New(
			waypoint.WithContainerFactory(factory),
			waypoint.WithSurface("terminal"),
			waypoint.WithSink(analytics.NewLogSink(log)),
			waypoint.WithLogger(log),
		)
		if err != nil {
			return err
		}
		defer sdk.Close()

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		if err := sdk.Show(ctx, exp); err != nil {
			return fmt.Errorf("show %s: %w", exp.Name, err)
		}
		if start != "" {
			ref, err := domain.ParseStepReference(start)
			if err != nil {
				return err
			}
			if err := sdk.ShowStep(ctx, ref); err != nil {
				return err
			}
		}

		if !plain {
			fmt.Fprintln(os.Stdout, cli.Help)
		}
		return cli.Play(ctx, sdk, factory, os.Stdin, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(playCmd)
	playCmd.Flags().Bool("plain", false, "Print raw markdown without banner or styling")
	playCmd.Flags().String("step", "", "Step to jump to after the first one renders")
}
