// Pacctl is a terminal companion for a running pacball controller.
//
// Usage:
//
//	pacctl discover
//	pacctl watch --url ws://pacball.local/
//	pacctl set --url ws://pacball.local/ ray_lamp=true left_hopper=false
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/hubertat/pacball/client"
	"github.com/hubertat/pacball/machine"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var (
	url             string
	origin          string
	discoverTimeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:          "pacctl",
	Short:        "Watch and drive a pacball controller",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&url, "url", "ws://localhost/", "controller WebSocket url")
	rootCmd.PersistentFlags().StringVar(&origin, "origin", "http://localhost", "Origin header sent with the upgrade")
	discoverCmd.Flags().DurationVar(&discoverTimeout, "timeout", client.DefaultDiscoverTimeout, "how long to browse")

	rootCmd.AddCommand(watchCmd, setCmd, discoverCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show live inputs of the controller",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := client.Dial(cmd.Context(), url, origin)
		if err != nil {
			return err
		}
		defer c.Close()

		_, err = tea.NewProgram(newWatchModel(url, c.ReadInputs), tea.WithOutput(os.Stdout)).Run()
		return err
	},
}

var setCmd = &cobra.Command{
	Use:   "set name=bool...",
	Short: "Send one outputs command, unnamed outputs are switched off",
	Example: `  pacctl set ray_lamp=true
  pacctl set --url ws://192.168.4.16/ left_hopper=1 right_hopper=1`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := parseAssignments(args)
		if err != nil {
			return err
		}

		c, err := client.Dial(cmd.Context(), url, origin)
		if err != nil {
			return err
		}
		defer c.Close()

		return c.WriteOutputs(out)
	},
}

// parseAssignments turns name=value pairs into an Outputs command.
func parseAssignments(args []string) (out machine.Outputs, err error) {
	for _, arg := range args {
		name, raw, found := strings.Cut(arg, "=")
		if !found {
			return out, errors.Errorf("expected name=value, got %q", arg)
		}
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return out, errors.Wrapf(err, "invalid value for %s", name)
		}
		if !out.Set(name, value) {
			return out, errors.Errorf("unknown output %q", name)
		}
	}
	return out, nil
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Browse the local network for announced controllers",
	RunE: func(cmd *cobra.Command, args []string) error {
		controllers, err := client.Discover(cmd.Context(), discoverTimeout)
		if err != nil {
			return err
		}
		if len(controllers) == 0 {
			fmt.Println("no controllers found")
			return nil
		}
		for _, c := range controllers {
			fmt.Printf("%-16s %-24s %-8s %s\n", c.Instance, c.HostName, c.Version, c.URL())
		}
		return nil
	},
}
