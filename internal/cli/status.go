package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show memory and emotional state",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime(false)
	if err != nil {
		return err
	}
	defer rt.Close()

	shortCount, err := rt.short.Count()
	if err != nil {
		return err
	}
	longCount, err := rt.long.Count()
	if err != nil {
		return err
	}

	fmt.Printf("db: %s\n", rt.db.Path)
	fmt.Printf("short-term entries: %d\n", shortCount)
	fmt.Printf("long-term entries:  %d\n", longCount)

	snap := rt.emotions.Snapshot()
	fmt.Printf("mood: %s\n", snap.Mood())
	fmt.Printf("  happiness %.2f  trust %.2f  energy %.2f\n",
		snap.Happiness, snap.Trust, snap.Energy)
	fmt.Printf("  curiosity %.2f  frustration %.2f  motivation %.2f\n",
		snap.Curiosity, snap.Frustration, snap.Motivation)

	records, err := rt.db.RecentConsolidationRecords(3)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("no consolidation cycles yet")
		return nil
	}
	fmt.Println("recent consolidation cycles:")
	for _, rec := range records {
		fmt.Printf("  %s  scanned %d promoted %d evicted %d\n",
			rec.StartedAt.Format("2006-01-02 15:04:05"),
			rec.EntriesScanned, rec.EntriesPromoted, rec.EntriesEvicted)
	}
	return nil
}
