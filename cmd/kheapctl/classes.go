package main

import (
	"github.com/spf13/cobra"

	"github.com/tinyvisor/kheap/internal/format"
)

func init() {
	rootCmd.AddCommand(newClassesCmd())
}

func newClassesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classes",
		Short: "Print the slot size-class table",
		Long: `The classes command prints the size-class table the heap carves
slab pages with: one power-of-two slot size per class, from the smallest
slot up to the largest size still served by a slab.

Example:
  kheapctl classes
  kheapctl classes --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClasses()
		},
	}
}

type classRow struct {
	Class        int
	SlotSize     int
	SlotsPerPage int
}

func runClasses() error {
	rows := make([]classRow, 0, format.NumClasses)
	for i, size := range format.SlotSizes {
		rows = append(rows, classRow{
			Class:        i,
			SlotSize:     size,
			SlotsPerPage: format.PageSize / size,
		})
	}

	if jsonOut {
		return printJSON(rows)
	}

	printInfo("Page size: %d bytes\n\n", format.PageSize)
	printInfo("%-6s %-10s %s\n", "Class", "Slot size", "Slots/page")
	for _, r := range rows {
		printInfo("%-6d %-10d %d\n", r.Class, r.SlotSize, r.SlotsPerPage)
	}
	printInfo("\nRequests above %d bytes bypass the slab layer and are served as page runs.\n", format.MaxSlotSize)
	return nil
}
