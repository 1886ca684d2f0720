package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tinyvisor/kheap/internal/format"
)

func init() {
	rootCmd.AddCommand(newPlanCmd())
}

func newPlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan <size>",
		Short: "Show how the heap would serve a request of the given size",
		Long: `The plan command maps a request size onto the heap's allocation
plan: the size class and slot size for slab-served requests, or the page-run
length for oversized ones.

Example:
  kheapctl plan 48
  kheapctl plan 5000 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(args)
		},
	}
}

type allocPlan struct {
	Size     int
	Route    string // "slab" or "pages"
	Class    int    `json:",omitempty"`
	SlotSize int    `json:",omitempty"`
	Pages    int    `json:",omitempty"`
	Waste    int
}

func runPlan(args []string) error {
	size, err := strconv.Atoi(args[0])
	if err != nil || size < 0 {
		return fmt.Errorf("size must be a non-negative integer, got %q", args[0])
	}
	if size == 0 {
		size = 1
	}

	var plan allocPlan
	plan.Size = size

	if class, ok := format.ClassIndex(size); ok {
		plan.Route = "slab"
		plan.Class = class
		plan.SlotSize = format.ClassSize(class)
		plan.Waste = plan.SlotSize - size
	} else {
		plan.Route = "pages"
		plan.Pages = format.PagesFor(uintptr(size))
		plan.Waste = plan.Pages*format.PageSize - size
	}

	if jsonOut {
		return printJSON(plan)
	}

	if plan.Route == "slab" {
		printInfo("%d bytes -> class %d (%d-byte slot), %d bytes of slack\n",
			size, plan.Class, plan.SlotSize, plan.Waste)
	} else {
		printInfo("%d bytes -> page run of %d pages, %d bytes of slack\n",
			size, plan.Pages, plan.Waste)
	}
	return nil
}
