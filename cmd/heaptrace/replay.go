package main

import (
	"fmt"
	"io"
	"os"
	"unsafe"

	cerrors "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/vkngwrapper/heapalloc/heap"
	"github.com/vkngwrapper/heapalloc/memutils"
	"github.com/vkngwrapper/heapalloc/memutils/segment"
)

var (
	replayDetailed bool
	replayLeaks    bool
	replaySpin     bool
)

func init() {
	cmd := newReplayCmd()
	cmd.Flags().BoolVar(&replayDetailed, "detailed", false, "List every live allocation in JSON output")
	cmd.Flags().BoolVar(&replayLeaks, "allow-leaks", false, "Do not fail when allocations are still live at the end of the trace")
	cmd.Flags().BoolVar(&replaySpin, "spin", false, "Guard the heap with a spin lock instead of a mutex")
	rootCmd.AddCommand(cmd)
}

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <trace>",
		Short: "Replay a trace file",
		Long: `The replay command runs every operation in a trace file against a fresh heap and
prints the heap's statistics. Use - to read the trace from stdin.

Example:
  heaptrace replay workload.trace
  heaptrace replay workload.trace --json --detailed
  heaptrace replay - --reserve 1048576 < workload.trace`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0])
		},
	}
	return cmd
}

func openTrace(stdin io.Reader, path string) ([]traceOp, error) {
	if path == "-" {
		return parseTrace(stdin)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, cerrors.Wrap(err, "failed to open trace")
	}
	defer file.Close()

	return parseTrace(file)
}

func runReplay(stdin io.Reader, stdout, stderr io.Writer, path string) error {
	ops, err := openTrace(stdin, path)
	if err != nil {
		return err
	}
	printVerbose(stderr, "Loaded %d operations from %s\n", len(ops), path)

	brk, err := segment.NewBreak(reserve)
	if err != nil {
		return err
	}
	defer brk.Release()

	counting := segment.NewCounting(brk)
	options := heap.CreateOptions{Spin: replaySpin}
	allocator, err := heap.New(newLogger(stderr), counting, options)
	if err != nil {
		return err
	}

	live, err := replay(allocator, ops)
	if err != nil {
		return err
	}
	printVerbose(stderr, "Break grew %d times by %d bytes\n", counting.Grows(), counting.GrownBytes())

	if jsonOut {
		err = allocator.WriteJSON(stdout, replayDetailed)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout)
	} else {
		printStatistics(stdout, allocator)
	}

	if replayLeaks {
		return nil
	}

	err = allocator.Destroy()
	if err != nil {
		return cerrors.Wrapf(err, "%d allocation(s) still live at the end of the trace", len(live))
	}
	return nil
}

// replay runs ops against allocator and returns the allocations still live afterward.
// Reallocating an id that is not live allocates it.
func replay(allocator *heap.Allocator, ops []traceOp) (map[string]unsafe.Pointer, error) {
	live := make(map[string]unsafe.Pointer)

	for _, op := range ops {
		switch op.kind {
		case opAlloc:
			if _, exists := live[op.id]; exists {
				return nil, cerrors.Newf("line %d: %s is already allocated", op.line, op.id)
			}

			ptr, err := allocator.Alloc(op.size, op.align)
			if err != nil {
				return nil, cerrors.Wrapf(err, "line %d", op.line)
			}
			live[op.id] = ptr

		case opRealloc:
			ptr, err := allocator.Realloc(live[op.id], op.size, op.align)
			if err != nil {
				return nil, cerrors.Wrapf(err, "line %d", op.line)
			}
			live[op.id] = ptr

		case opFree:
			ptr, exists := live[op.id]
			if !exists {
				return nil, cerrors.Newf("line %d: %s is not allocated", op.line, op.id)
			}

			err := allocator.Free(ptr)
			if err != nil {
				return nil, cerrors.Wrapf(err, "line %d", op.line)
			}
			delete(live, op.id)
		}
	}

	return live, nil
}

func printStatistics(w io.Writer, allocator *heap.Allocator) {
	var stats memutils.DetailedStatistics
	allocator.DetailedStatistics(&stats)

	fmt.Fprintf(w, "Segment growths:    %d\n", stats.GrowthCount)
	fmt.Fprintf(w, "Segment bytes:      %d\n", stats.SegmentBytes)
	fmt.Fprintf(w, "List storage bytes: %d\n", stats.StorageBytes)
	fmt.Fprintf(w, "Live allocations:   %d (%d bytes)\n", stats.AllocationCount, stats.AllocationBytes)
	fmt.Fprintf(w, "Free ranges:        %d (%d bytes)\n", stats.FreeRangeCount, stats.FreeRangeBytes)
	fmt.Fprintf(w, "Unallocated bytes:  %d\n", stats.FreeBytes())

	if stats.AllocationCount > 0 {
		fmt.Fprintf(w, "Allocation sizes:   %d - %d\n", stats.AllocationSizeMin, stats.AllocationSizeMax)
	}
	if stats.FreeRangeCount > 0 {
		fmt.Fprintf(w, "Free range sizes:   %d - %d\n", stats.FreeRangeSizeMin, stats.FreeRangeSizeMax)
	}
}
