package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"caspview/internal/api"
	"caspview/internal/config"
	"caspview/internal/export"
	"caspview/internal/logging"
	"caspview/internal/query"
	"caspview/internal/session"
	"caspview/internal/stats"
	"caspview/internal/storage"
	"caspview/internal/survey"
	"caspview/internal/tui"
	"caspview/internal/viewer"
	"caspview/internal/votes"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "caspview",
		Short: "Browse and vote on CASP checklist responses",
		Long: `caspview shows a class's answers to the CASP critical-appraisal checklist,
one question at a time, and lets you upvote the most useful explanations.

Responses and votes come from the Apps Script web app configured as api_url in
` + config.ConfigPath() + ` (or CASPVIEW_API_URL).`,
		SilenceUsage: true,
		RunE:         runTUI,
	}

	var questionFlag int
	var filterFlag string

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the responses to one question",
		Long: `Print the responses to one question, most voted first.

Examples:
  caspview show --question 3
  caspview show -q 7 --filter "Can't Tell"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(questionFlag, filterFlag)
		},
	}
	showCmd.Flags().IntVarP(&questionFlag, "question", "q", 1, "Question number (1-based)")
	showCmd.Flags().StringVarP(&filterFlag, "filter", "f", string(query.All), `Answer filter: all, Yes, No or "Can't Tell"`)

	var voteQuestion, voteRow int
	voteCmd := &cobra.Command{
		Use:   "vote",
		Short: "Upvote one response",
		Long: `Upvote the response of one student row to one question.

The row is the sheet row index shown by 'caspview show'. Each response can be
voted once from this machine.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVote(voteQuestion, voteRow)
		},
	}
	voteCmd.Flags().IntVarP(&voteQuestion, "question", "q", 0, "Question number (1-based)")
	voteCmd.Flags().IntVarP(&voteRow, "row", "r", 0, "Student row index")
	voteCmd.MarkFlagRequired("question")
	voteCmd.MarkFlagRequired("row")

	var statsQuestion int
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Print answer distribution, top voted responses and uncertainty",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(statsQuestion)
		},
	}
	statsCmd.Flags().IntVarP(&statsQuestion, "question", "q", 0, "Only show the distribution for this question (1-based)")

	var outputFlag string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export responses and statistics to an XLSX file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(outputFlag)
		},
	}
	exportCmd.Flags().StringVarP(&outputFlag, "output", "o", "casp-responses.xlsx", "Output file")

	var setURLFlag string
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Show the config file path and effective settings",
		Long: `Show the config file path and effective settings.

Examples:
  caspview config
  caspview config --set-url https://script.google.com/macros/s/ID/exec`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfig(setURLFlag)
		},
	}
	configCmd.Flags().StringVar(&setURLFlag, "set-url", "", "Write api_url to the config file")

	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(voteCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(configCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles what every command needs
type app struct {
	cfg     *config.Config
	viewer  *viewer.Viewer
	closers []io.Closer
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i].Close()
	}
}

func setup() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, logCloser, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	a := &app{cfg: cfg, closers: []io.Closer{logCloser}}

	store, err := storage.OpenDir(config.DataDir())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.closers = append(a.closers, store)

	// A missing API URL is reported by the viewer, not here
	var source viewer.Source
	client, err := api.NewClient(cfg, log)
	if err == nil {
		source = client
	} else {
		log.Warn("API client unavailable", "error", err)
	}

	a.viewer = viewer.New(cfg, source, store, log)
	return a, nil
}

// load fetches a snapshot, turning failures into their user-facing text
func (a *app) load() (viewer.Snapshot, error) {
	snap, err := a.viewer.Load(context.Background())
	if err != nil {
		return snap, errors.New(viewer.Classify(err).Text)
	}
	if snap.VotesErr != nil {
		fmt.Fprintln(os.Stderr, "warning: could not load votes; counts are shown as zero")
	}
	return snap, nil
}

func checkQuestion(model *survey.Model, q int) error {
	if q < 1 || q > model.QuestionCount() {
		return fmt.Errorf("question must be between 1 and %d", model.QuestionCount())
	}
	return nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	return tui.Run(a.cfg, a.viewer)
}

func runShow(question int, filter string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	snap, err := a.load()
	if err != nil {
		return err
	}
	if err := checkQuestion(snap.Model, question); err != nil {
		return err
	}

	state, err := session.New(snap.Model.QuestionCount(), false).GoToQuestion(question - 1).SetFilter(filter)
	if err != nil {
		return err
	}

	ledger := votes.NewLedger(snap.Marks)
	ledger.Replace(snap.Counts)
	res := query.View(snap.Model, ledger, state.Question, state.Filter)

	q, _ := snap.Model.Question(state.Question)
	fmt.Printf("%s: %s\n", survey.Label(state.Question), a.cfg.Label(state.Question))
	fmt.Println(q.Text)
	fmt.Printf("Filter: %s | Showing %d of %d responses | Updated %s\n\n",
		res.Filter, res.Shown(), res.Total, humanize.Time(snap.LoadedAt))

	switch res.Status {
	case query.StatusNoResponses:
		fmt.Println("No responses for this question yet.")
		return nil
	case query.StatusNoMatch:
		fmt.Println("No responses match the current filter.")
		return nil
	}

	for _, c := range res.Cards {
		var flags []string
		if c.TopVoted {
			flags = append(flags, "top voted")
		}
		if c.Voted {
			flags = append(flags, "voted")
		}
		suffix := ""
		if len(flags) > 0 {
			suffix = " [" + strings.Join(flags, ", ") + "]"
		}

		fmt.Printf("row %d  %s  %s  votes: %d%s\n", c.Row.Index, c.Row.StudentID, c.Answer.Value, c.Votes, suffix)
		fmt.Printf("    %s\n", c.Answer.DisplayExplanation(a.cfg.MaxExplanationLength))
	}
	return nil
}

func runVote(question, row int) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.cfg.EnableVoting {
		return fmt.Errorf("voting is disabled in %s", config.ConfigPath())
	}
	if question < 1 {
		return fmt.Errorf("question must be 1 or greater")
	}

	k := votes.Key{Question: question - 1, Row: row}
	if err := a.viewer.Cast(context.Background(), k); err != nil {
		return errors.New(viewer.ClassifyVote(err).Text)
	}

	fmt.Println(viewer.VoteRecorded.Text)
	return nil
}

func runStats(question int) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.cfg.EnableStatistics {
		return fmt.Errorf("statistics are disabled in %s", config.ConfigPath())
	}

	snap, err := a.load()
	if err != nil {
		return err
	}

	fmt.Println(stats.CompletionRate(snap.Model))
	fmt.Println()

	first, last := 0, snap.Model.QuestionCount()-1
	if question != 0 {
		if err := checkQuestion(snap.Model, question); err != nil {
			return err
		}
		first, last = question-1, question-1
	}

	fmt.Println("Answer distribution")
	for q := first; q <= last; q++ {
		parts := make([]string, 0, len(survey.Choices))
		for _, s := range stats.Distribution(snap.Model, q) {
			parts = append(parts, fmt.Sprintf("%s %d", s.Choice, s.Count))
		}
		fmt.Printf("  %-4s %-32s %s\n", survey.Label(q), a.cfg.Label(q), strings.Join(parts, "  "))
	}

	fmt.Println("\nTop voted responses")
	top := stats.TopVoted(snap.Model, snap.Counts, stats.DefaultTopVoted)
	if len(top) == 0 {
		fmt.Println("  No votes yet")
	}
	for _, e := range top {
		fmt.Printf("  %-30s %d\n", e.Label, int(e.Value))
	}

	fmt.Println("\nUncertainty (% Can't Tell)")
	for _, e := range stats.Uncertainty(snap.Model) {
		fmt.Printf("  %-4s %5.1f%%\n", e.Label, e.Value)
	}
	return nil
}

func runExport(output string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	snap, err := a.load()
	if err != nil {
		return err
	}

	if err := export.WriteXLSX(snap.Model, snap.Counts, a.cfg.QuestionLabels, output); err != nil {
		return fmt.Errorf("failed to export: %w", err)
	}

	fmt.Printf("Exported %d responses to %s\n", len(snap.Model.Responses), output)
	return nil
}

func runConfig(setURL string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if setURL != "" {
		// Re-read the file so environment overrides are not written back
		file, err := config.LoadFile(config.ConfigPath())
		if err != nil {
			return err
		}
		file.APIURL = strings.TrimSpace(setURL)
		if err := config.Save(file); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		fmt.Printf("Saved api_url to %s\n\n", config.ConfigPath())

		if cfg, err = config.Load(); err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	}

	fmt.Printf("Config file: %s\n", config.ConfigPath())
	fmt.Printf("Data dir:    %s\n", config.DataDir())
	fmt.Printf("Log file:    %s\n", cfg.Log.File)
	fmt.Println()
	fmt.Println(cfg.String())

	if err := cfg.Validate(); err != nil {
		fmt.Printf("\nNot ready: %v\n", err)
	}
	return nil
}
