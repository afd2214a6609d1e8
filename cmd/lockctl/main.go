// Command lockctl inspects and adjusts a running lockcd's kernel tables.
// It reads (and, for apply-policy, writes) the pinned maps directly rather
// than going through lockcd.
package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lockc-project/lockc/pkg/bpf"
	"github.com/lockc-project/lockc/pkg/bpftypes"
	"github.com/lockc-project/lockc/pkg/tables"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "lockctl",
	Short: "lockctl - inspect and adjust a running lockcd's containers and processes",
}

func init() {
	rootCmd.PersistentFlags().String("pin-dir", bpf.DefaultPinDir, "Directory lockcd pinned its maps under")

	rootCmd.AddCommand(containerCmd)
	containerCmd.AddCommand(containerListCmd)
	containerCmd.AddCommand(containerApplyPolicyCmd)

	rootCmd.AddCommand(processCmd)
	processCmd.AddCommand(processListCmd)
}

func openTables(cmd *cobra.Command) (tables.Tables, error) {
	pinDir, _ := cmd.Flags().GetString("pin-dir")
	t, err := tables.OpenPinned(pinDir)
	if err != nil {
		return nil, fmt.Errorf("open pinned tables at %s (is lockcd running?): %w", pinDir, err)
	}
	return t, nil
}

var containerCmd = &cobra.Command{
	Use:   "container",
	Short: "Manage containers and their policies",
}

var containerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all containers",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := openTables(cmd)
		if err != nil {
			return err
		}
		defer t.Close()

		containers, err := t.ListContainers()
		if err != nil {
			return fmt.Errorf("list containers: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CONTAINER ID\tPOLICY LEVEL")
		for id, c := range containers {
			fmt.Fprintf(w, "%s\t%s\n", id.String(), c.PolicyLevel.String())
		}
		return w.Flush()
	},
}

var containerApplyPolicyCmd = &cobra.Command{
	Use:   "apply-policy <container-id> <policy>",
	Short: "Apply a new policy level to a running container",
	Long:  "Apply a new policy level (restricted, baseline, or privileged) to an existing container without restarting it.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		level, ok := bpftypes.ParsePolicyLevel(args[1])
		if !ok {
			return fmt.Errorf("unknown policy level %q (want restricted, baseline, or privileged)", args[1])
		}

		t, err := openTables(cmd)
		if err != nil {
			return err
		}
		defer t.Close()

		id := bpftypes.NewContainerID(args[0])
		if _, err := t.GetContainer(id); err != nil {
			return fmt.Errorf("container %s not found: %w", args[0], err)
		}
		if err := t.SetPolicyLevel(id, level); err != nil {
			return fmt.Errorf("apply policy: %w", err)
		}
		fmt.Printf("container %s is now %s\n", args[0], level.String())
		return nil
	},
}

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Manage containerized processes",
}

var processListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all tracked processes",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := openTables(cmd)
		if err != nil {
			return err
		}
		defer t.Close()

		processes, err := t.ListProcesses()
		if err != nil {
			return fmt.Errorf("list processes: %w", err)
		}
		containers, err := t.ListContainers()
		if err != nil {
			return fmt.Errorf("list containers: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PID\tRUNNING\tCOMMAND\tCONTAINER ID\tPOLICY LEVEL")
		for pid, p := range processes {
			running := processAlive(pid)
			cmdline := processCommand(pid)
			policy := "-"
			if c, ok := containers[p.ContainerID]; ok {
				policy = c.PolicyLevel.String()
			}
			fmt.Fprintf(w, "%d\t%v\t%s\t%s\t%s\n", pid, running, cmdline, p.ContainerID.String(), policy)
		}
		return w.Flush()
	},
}

// processAlive reports whether /proc/<pid> still exists.
func processAlive(pid int32) bool {
	_, err := os.Stat(fmt.Sprintf("/proc/%d", pid))
	return err == nil
}

// processCommand reads the executable path behind pid's /proc/<pid>/exe
// symlink, falling back to "-" when the process has already exited.
func processCommand(pid int32) string {
	path, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", pid))
	if err != nil {
		return "-"
	}
	return path
}
