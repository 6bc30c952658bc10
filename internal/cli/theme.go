package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tesla-access/tesla-client/internal/utils"
	"github.com/tesla-access/tesla-client/kvstore"
)

func newThemeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "theme [light|dark]",
		Short:     "Show or set the stored palette preference",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"light", "dark"},
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			if c, ok := store.(interface{ Close() error }); ok {
				defer c.Close()
			}

			if len(args) == 1 {
				if args[0] != "light" && args[0] != "dark" {
					return fmt.Errorf("unknown palette mode %q", args[0])
				}
				return store.Set(kvstore.ThemePaletteModeKey, args[0])
			}

			mode, err := store.Get(kvstore.ThemePaletteModeKey)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), utils.FirstNonEmpty(mode, "light"))
			return nil
		},
	}
}
