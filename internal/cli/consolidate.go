package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Run one consolidation cycle over short-term memory",
	RunE:  runConsolidate,
}

func runConsolidate(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime(false)
	if err != nil {
		return err
	}
	defer rt.Close()

	rec, err := rt.worker.Consolidate(cmd.Context())
	if err != nil {
		return fmt.Errorf("consolidate: %w", err)
	}
	if rec == nil {
		fmt.Println("a consolidation cycle is already running")
		return nil
	}

	fmt.Printf("scanned %d entries: promoted %d, evicted %d\n",
		rec.EntriesScanned, rec.EntriesPromoted, rec.EntriesEvicted)
	return nil
}
