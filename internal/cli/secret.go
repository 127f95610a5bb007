package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/medboard/medboard/internal/secrets"
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage credentials stored in the OS keyring",
}

var secretSetCmd = &cobra.Command{
	Use:       "set <key>",
	Short:     "Store a credential read from stdin (" + strings.Join(secrets.Keys, ", ") + ")",
	Args:      cobra.ExactArgs(1),
	ValidArgs: secrets.Keys,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "Enter value for %s: ", args[0])
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		value := strings.TrimSpace(line)
		if value == "" {
			if err != nil {
				return fmt.Errorf("read value: %w", err)
			}
			return fmt.Errorf("empty value for %s", args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout())
		if err := secrets.Set(args[0], value); err != nil {
			return err
		}
		printOK(cmd, "%s stored in keyring", args[0])
		return nil
	},
}

func init() {
	secretCmd.AddCommand(secretSetCmd)
}
