package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/reactor/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	CoreID   string
	Event    string // optional - filter to one event type
}

// TraceEntry is one journaled event in the timeline.
type TraceEntry struct {
	Seq         int64           `json:"seq"`
	EventType   string          `json:"event_type"`
	Event       json.RawMessage `json:"event"`
	State       json.RawMessage `json:"state"`
	StateDigest string          `json:"state_digest"`
	ChainDigest string          `json:"chain_digest"`
	StateOK     bool            `json:"state_ok"`
	ChainOK     bool            `json:"chain_ok"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Entries          int            `json:"entries"`
	EventTypes       map[string]int `json:"event_types"`
	DigestMismatches int            `json:"digest_mismatches"`
}

// TraceResult holds the trace of one Core.
type TraceResult struct {
	Core     store.CoreRecord `json:"core"`
	Timeline []TraceEntry     `json:"timeline"`
	Stats    TraceStats       `json:"stats"`
}

// CoreSummary is one line of the core listing.
type CoreSummary struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Entries int    `json:"entries"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the journal of a Core",
		Long: `Show what a journaled run recorded.

Without --core, lists every Core in the journal. With --core, prints the
Core's events in order together with the state each produced, and checks
every stored state digest against the stored state.

Examples:
  reactor trace --db ./reactor.db
  reactor trace --db ./reactor.db --core counter-1
  reactor trace --db ./reactor.db --core counter-1 --event mark --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.CoreID, "core", "", "core ID to trace")
	cmd.Flags().StringVar(&opts.Event, "event", "", "filter to one event type")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)

	st, err := store.Open(opts.Database)
	if err != nil {
		return journalError("failed to open database", err)
	}
	defer st.Close()

	if opts.CoreID == "" {
		return listCores(opts, cmd, st)
	}

	core, err := st.Core(ctx, opts.CoreID)
	if errors.Is(err, store.ErrNotFound) {
		return journalError("core not found: "+opts.CoreID, nil)
	}
	if err != nil {
		return journalError("failed to read core", err)
	}

	// The chain is verified over the whole journal even when the timeline
	// is filtered to one event type.
	entries, err := st.Entries(ctx, opts.CoreID)
	if err != nil {
		return journalError("failed to read entries", err)
	}

	shown := entries
	if opts.Event != "" {
		shown, err = st.EntriesOfType(ctx, opts.CoreID, opts.Event)
		if err != nil {
			return journalError("failed to read entries", err)
		}
	}

	result := buildTrace(core, entries, shown)

	if opts.Format == "json" {
		if err := writeResult(cmd.OutOrStdout(), result); err != nil {
			return err
		}
	} else {
		outputTraceText(cmd.OutOrStdout(), result, opts.Verbose)
	}

	if result.Stats.DigestMismatches > 0 {
		return checkFailed(fmt.Sprintf("%d journal entries fail verification", result.Stats.DigestMismatches))
	}
	return nil
}

func listCores(opts *TraceOptions, cmd *cobra.Command, st *store.Store) error {
	ctx := commandContext(cmd)

	cores, err := st.Cores(ctx)
	if err != nil {
		return journalError("failed to list cores", err)
	}

	summaries := make([]CoreSummary, 0, len(cores))
	for _, c := range cores {
		entries, err := st.Entries(ctx, c.ID)
		if err != nil {
			return journalError("failed to read entries", err)
		}
		summaries = append(summaries, CoreSummary{ID: c.ID, Name: c.Name, Entries: len(entries)})
	}

	if opts.Format == "json" {
		return writeResult(cmd.OutOrStdout(), summaries)
	}

	w := cmd.OutOrStdout()
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No cores journaled.")
		return nil
	}
	fmt.Fprintln(w, "=== Cores ===")
	for _, s := range summaries {
		fmt.Fprintf(w, "  %s  %s  (%d entries)\n", s.ID, s.Name, s.Entries)
	}
	return nil
}

// buildTrace verifies a Core's full journal and converts the shown subset
// of it to timeline entries.
func buildTrace(core store.CoreRecord, entries, shown []store.Entry) TraceResult {
	result := TraceResult{
		Core:     core,
		Timeline: make([]TraceEntry, 0, len(shown)),
		Stats: TraceStats{
			Entries:    len(shown),
			EventTypes: make(map[string]int),
		},
	}

	checks := make(map[int64]store.Check, len(entries))
	for _, c := range store.Verify(core, entries) {
		if !c.OK() {
			result.Stats.DigestMismatches++
		}
		checks[c.Seq] = c
	}

	for _, e := range shown {
		check := checks[e.Seq]
		result.Stats.EventTypes[e.EventType]++
		result.Timeline = append(result.Timeline, TraceEntry{
			Seq:         e.Seq,
			EventType:   e.EventType,
			Event:       json.RawMessage(e.Event),
			State:       json.RawMessage(e.State),
			StateDigest: e.StateDigest,
			ChainDigest: e.ChainDigest,
			StateOK:     check.StateOK,
			ChainOK:     check.ChainOK,
		})
	}
	return result
}

// outputTraceText outputs a trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) {
	fmt.Fprintf(w, "Trace for Core: %s (%s)\n", result.Core.ID, result.Core.Name)
	fmt.Fprintf(w, "Initial state: %s\n", result.Core.InitialState)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, e := range result.Timeline {
		flag := ""
		switch {
		case !e.StateOK:
			flag = "  DIGEST MISMATCH"
		case !e.ChainOK:
			flag = "  CHAIN BROKEN"
		}
		fmt.Fprintf(w, "  [%d] %s %s -> %s%s\n", e.Seq, e.EventType, e.Event, e.State, flag)
		if verbose {
			fmt.Fprintf(w, "       Digest: %s  Chain: %s\n", truncateID(e.StateDigest), truncateID(e.ChainDigest))
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Entries: %d\n", result.Stats.Entries)
	types := make([]string, 0, len(result.Stats.EventTypes))
	for t := range result.Stats.EventTypes {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(w, "  %s: %d\n", t, result.Stats.EventTypes[t])
	}
	if result.Stats.DigestMismatches > 0 {
		fmt.Fprintf(w, "  Failed verification: %d\n", result.Stats.DigestMismatches)
	}
}

// truncateID shortens long identifiers for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
