package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

type waitFlags struct {
	wait     bool
	interval time.Duration
	timeout  time.Duration
}

func (w *waitFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&w.wait, "wait", false, "Poll until the task completes or fails")
	cmd.Flags().DurationVar(&w.interval, "interval", 2*time.Second, "Polling interval with --wait")
	cmd.Flags().DurationVar(&w.timeout, "timeout", 5*time.Minute, "Give up waiting after this long")
}

func submitCmd(baseURL, apiPrefix *string, ui *ui) *cobra.Command {
	var (
		text     string
		file     string
		criteria string
		history  string
		wf       waitFlags
	)
	cmd := &cobra.Command{
		Use:     "submit",
		Short:   "Submit an answer for analysis",
		Example: "imyme submit --text \"...\" --criteria '{\"keywords\":[\"락\"]}' --history '[]' --wait",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file != "" {
				b, err := readInput(file, cmd.InOrStdin())
				if err != nil {
					return err
				}
				text = string(b)
			}
			if strings.TrimSpace(text) == "" {
				return errors.New("text is required (--text or --file)")
			}
			var crit map[string]any
			if err := json.Unmarshal([]byte(criteria), &crit); err != nil || crit == nil {
				return fmt.Errorf("invalid criteria JSON object: %v", err)
			}
			var hist []map[string]any
			if err := json.Unmarshal([]byte(history), &hist); err != nil {
				return fmt.Errorf("invalid history JSON array: %w", err)
			}
			if hist == nil {
				hist = []map[string]any{}
			}

			c := newClient(*baseURL, *apiPrefix)
			spin := spinner.New(spinner.CharSets[14], 120*time.Millisecond)
			spin.Suffix = " Submitting answer..."
			spin.Start()
			taskID, err := c.submit(cmd.Context(), text, crit, hist)
			spin.Stop()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s Task accepted: %s\n", ui.ok("[OK]"), taskID)
			if !wf.wait {
				return nil
			}
			return waitAndPrint(cmd.Context(), out, c, taskID, wf, ui)
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "Answer text")
	cmd.Flags().StringVar(&file, "file", "", "Read answer text from a file (- for stdin)")
	cmd.Flags().StringVar(&criteria, "criteria", "{}", "Criteria JSON object")
	cmd.Flags().StringVar(&history, "history", "[]", "History JSON array")
	wf.register(cmd)
	return cmd
}

func statusCmd(baseURL, apiPrefix *string, ui *ui) *cobra.Command {
	var wf waitFlags
	cmd := &cobra.Command{
		Use:   "status <taskId>",
		Short: "Show the state of an analysis task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(*baseURL, *apiPrefix)
			out := cmd.OutOrStdout()
			if wf.wait {
				return waitAndPrint(cmd.Context(), out, c, args[0], wf, ui)
			}
			spin := spinner.New(spinner.CharSets[14], 120*time.Millisecond)
			spin.Suffix = " Fetching task..."
			spin.Start()
			st, err := c.status(cmd.Context(), args[0])
			spin.Stop()
			if err != nil && !errors.Is(err, errTaskFailed) {
				return err
			}
			printStatus(out, st, err, ui)
			return nil
		},
	}
	wf.register(cmd)
	return cmd
}

func transcribeCmd(baseURL, apiPrefix *string, ui *ui) *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe <audioUrl>",
		Short: "Transcribe an audio file by URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(*baseURL, *apiPrefix)
			spin := spinner.New(spinner.CharSets[14], 120*time.Millisecond)
			spin.Suffix = " Transcribing (GPU cold starts can take minutes)..."
			spin.Start()
			text, err := c.transcribe(cmd.Context(), args[0])
			spin.Stop()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

func warmupCmd(baseURL, apiPrefix *string, ui *ui) *cobra.Command {
	return &cobra.Command{
		Use:   "warmup",
		Short: "Send a warm-up signal to the GPU endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(*baseURL, *apiPrefix)
			status, err := c.warmup(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", ui.ok("[OK]"), status)
			return nil
		},
	}
}

func waitAndPrint(ctx context.Context, out io.Writer, c *client, taskID string, wf waitFlags, ui *ui) error {
	if wf.interval <= 0 {
		wf.interval = 2 * time.Second
	}
	steps := int(wf.timeout / wf.interval)
	if steps < 1 {
		steps = 1
	}
	bar := progressbar.NewOptions(steps,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("Waiting for analysis"),
		progressbar.OptionSetWidth(18),
		progressbar.OptionClearOnFinish(),
	)
	st, err := c.wait(ctx, taskID, wf.interval, wf.timeout, func(st taskStatus) {
		if st.Status != "" {
			bar.Describe("Waiting for analysis (" + st.Status + ")")
		}
		_ = bar.Add(1)
	})
	_ = bar.Finish()
	if err != nil && !errors.Is(err, errTaskFailed) {
		return err
	}
	printStatus(out, st, err, ui)
	return nil
}

func printStatus(out io.Writer, st taskStatus, failure error, ui *ui) {
	switch st.Status {
	case "COMPLETED":
		fmt.Fprintf(out, "%s %s %s\n", ui.ok("[COMPLETED]"), st.TaskID, ui.dim("result:"))
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, st.Result, "", "  "); err != nil {
			fmt.Fprintln(out, string(st.Result))
			return
		}
		fmt.Fprintln(out, pretty.String())
	case "FAILED":
		fmt.Fprintf(out, "%s %s %v\n", ui.err("[FAILED]"), st.TaskID, failure)
	default:
		fmt.Fprintf(out, "%s %s\n", ui.warn("["+st.Status+"]"), st.TaskID)
	}
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}
