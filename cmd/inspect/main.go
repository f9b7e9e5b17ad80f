package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/order-selection/internal/logging"
	"github.com/danielpatrickdp/order-selection/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to order_selection.db")
	last := flag.Int("last", 20, "show N most recent runs")
	runID := flag.String("run", "", "show single run detail")
	activate := flag.String("activate", "", "make a previous run the active one")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/order_selection.db [--last N] [--run id] [--activate id] [--json]")
		os.Exit(2)
	}

	st, err := store.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	switch {
	case *activate != "":
		err = st.Activate(*activate)
		if err == nil {
			fmt.Printf("active run is now %s\n", *activate)
		}
	case *runID != "":
		err = runDetailMode(st, *runID, *jsonOut)
	default:
		err = runListMode(st, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	RunID             string  `json:"run_id"`
	Active            bool    `json:"active"`
	Strategy          string  `json:"strategy"`
	Range             string  `json:"range"`
	OptimalOrder      int     `json:"optimal_order"`
	SelectionError    float64 `json:"selection_error"`
	Evaluations       int     `json:"evaluations"`
	StoppingCondition string  `json:"stopping_condition"`
	CreatedAt         string  `json:"created_at"`
}

func runListMode(st *store.Store, last int, jsonOut bool) error {
	runs, err := st.ListRuns(last)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stderr, "no runs found")
		return nil
	}
	activeID := ""
	if active, err := st.Active(); err == nil {
		activeID = active.RunID
	}

	// store returns DESC, reverse for chronological
	rows := make([]listRow, len(runs))
	for i, r := range runs {
		rows[len(runs)-1-i] = listRow{
			RunID:             r.RunID,
			Active:            r.RunID == activeID,
			Strategy:          r.Strategy,
			Range:             fmt.Sprintf("[%d, %d]", r.MinimumOrder, r.MaximumOrder),
			OptimalOrder:      r.OptimalOrder,
			SelectionError:    r.FinalSelectionError,
			Evaluations:       r.Evaluations,
			StoppingCondition: r.StoppingCondition,
			CreatedAt:         r.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%-1s %-12s  %-20s  %-9s  %7s  %12s  %5s  %-24s  %s\n",
		"", "Run", "Strategy", "Range", "Optimum", "Selection", "Evals", "Stopped", "Time")
	fmt.Printf("%-1s %-12s+-%-20s+-%-9s+-%7s+-%12s+-%5s+-%-24s+-%s\n",
		"", "------------", "--------------------", "---------", "-------", "------------", "-----",
		"------------------------", "--------------------")
	for _, r := range rows {
		marker := ""
		if r.Active {
			marker = "*"
		}
		fmt.Printf("%-1s %-12s  %-20s  %-9s  %7d  %12.6g  %5d  %-24s  %s\n",
			marker, shortID(r.RunID), r.Strategy, r.Range, r.OptimalOrder, r.SelectionError,
			r.Evaluations, r.StoppingCondition, r.CreatedAt)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type detailOutput struct {
	RunID             string          `json:"run_id"`
	ParentID          string          `json:"parent_id,omitempty"`
	Strategy          string          `json:"strategy"`
	MinimumOrder      int             `json:"minimum_order"`
	MaximumOrder      int             `json:"maximum_order"`
	OptimalOrder      int             `json:"optimal_order"`
	TrainingError     float64         `json:"training_error"`
	SelectionError    float64         `json:"selection_error"`
	StoppingCondition string          `json:"stopping_condition"`
	Iterations        int             `json:"iterations"`
	Elapsed           string          `json:"elapsed"`
	Details           json.RawMessage `json:"details,omitempty"`
	History           []historyRow    `json:"history"`
	Log               []logRow        `json:"log"`
}

type historyRow struct {
	Position       int     `json:"position"`
	Order          int     `json:"order"`
	TrainingError  float64 `json:"training_error"`
	SelectionError float64 `json:"selection_error"`
	Parameters     int     `json:"parameters"`
}

type logRow struct {
	Iteration int    `json:"iteration"`
	Order     int    `json:"order"`
	Source    string `json:"source"`
	Decision  string `json:"decision"`
	Reason    string `json:"reason,omitempty"`
}

func runDetailMode(st *store.Store, runID string, jsonOut bool) error {
	rec, err := st.GetRun(runID)
	if err != nil {
		return err
	}
	history, err := st.LoadHistory(runID)
	if err != nil {
		return err
	}
	entries, err := logging.ReadLog(st.DB(), runID)
	if err != nil {
		return err
	}

	out := detailOutput{
		RunID:             rec.RunID,
		ParentID:          rec.ParentID,
		Strategy:          rec.Strategy,
		MinimumOrder:      rec.MinimumOrder,
		MaximumOrder:      rec.MaximumOrder,
		OptimalOrder:      rec.OptimalOrder,
		TrainingError:     rec.FinalTrainingError,
		SelectionError:    rec.FinalSelectionError,
		StoppingCondition: rec.StoppingCondition,
		Iterations:        rec.Iterations,
		Elapsed:           rec.Elapsed.String(),
	}
	if rec.DetailsJSON != "" {
		out.Details = json.RawMessage(rec.DetailsJSON)
	}
	for _, h := range history {
		out.History = append(out.History, historyRow{
			Position:       h.Position,
			Order:          h.Order,
			TrainingError:  h.TrainingError,
			SelectionError: h.SelectionError,
			Parameters:     len(h.Parameters),
		})
	}
	for _, e := range entries {
		out.Log = append(out.Log, logRow{
			Iteration: e.Iteration,
			Order:     e.Order,
			Source:    e.Source,
			Decision:  e.Decision,
			Reason:    e.Reason,
		})
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Run:        %s\n", out.RunID)
	if out.ParentID != "" {
		fmt.Printf("Parent:     %s\n", out.ParentID)
	}
	fmt.Printf("Strategy:   %s over [%d, %d]\n", out.Strategy, out.MinimumOrder, out.MaximumOrder)
	fmt.Printf("Optimum:    order %d (training %.6g, selection %.6g)\n", out.OptimalOrder, out.TrainingError, out.SelectionError)
	fmt.Printf("Stopped:    %s after %d iterations in %s\n", out.StoppingCondition, out.Iterations, out.Elapsed)
	if out.Details != nil {
		fmt.Printf("Details:    %s\n", string(out.Details))
	}

	fmt.Printf("\n%4s  %5s  %12s  %12s  %6s\n", "Pos", "Order", "Training", "Selection", "Params")
	for _, h := range out.History {
		marker := ""
		if h.Order == out.OptimalOrder {
			marker = "  <- optimum"
		}
		fmt.Printf("%4d  %5d  %12.6g  %12.6g  %6d%s\n", h.Position, h.Order, h.TrainingError, h.SelectionError, h.Parameters, marker)
	}

	if len(out.Log) > 0 {
		fmt.Printf("\nSearch log:\n")
		for _, l := range out.Log {
			fmt.Printf("  %4d  order %3d  %-8s  %-15s  %s\n", l.Iteration, l.Order, l.Source, l.Decision, l.Reason)
		}
	}
	return nil
}

// #endregion detail-mode

// #region helpers

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// #endregion helpers
