package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gittidev/vibe-socket-test/internal/domain/model"
)

var (
	titleColor   = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
	dimColor     = color.New(color.FgHiBlack)
)

func newSubmitCmd(root *rootOptions) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "submit <patient-id>",
		Short: "Start processing for a patient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient(root.server, root.timeout)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd, root.timeout)
			defer cancel()
			return runSubmit(ctx, cmd.OutOrStdout(), client, args[0], watch, root.timeout)
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Wait for the result on the stream")
	return cmd
}

func runSubmit(ctx context.Context, out io.Writer, client *apiClient, patientID string, watch bool, timeout time.Duration) error {
	var s *stream
	if watch {
		// subscribe first so a fast job cannot finish before we listen
		var err error
		s, err = client.openStream(ctx, patientID)
		if err != nil {
			return err
		}
		defer s.close()
	}

	resp, err := client.submit(ctx, patientID)
	if err != nil {
		return err
	}
	successColor.Fprintf(out, "accepted ")
	fmt.Fprintf(out, "%s job=%s\n", resp.PatientID, resp.JobID)

	if s == nil {
		return nil
	}
	dimColor.Fprintf(out, "waiting for result...\n")
	deadline := time.Now().Add(timeout)
	for {
		res, err := s.next(deadline)
		if err != nil {
			return fmt.Errorf("wait for result: %w", err)
		}
		if res.SubjectKey != patientID {
			continue
		}
		printResult(out, res)
		if res.Status == model.JobStatusFailed {
			return errors.New("processing failed")
		}
		return nil
	}
}

func newStatusCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <patient-id>",
		Short: "Show whether a patient has a job in flight",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient(root.server, root.timeout)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd, root.timeout)
			defer cancel()

			st, err := client.status(ctx, args[0])
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), st)
			return nil
		},
	}
}

func printStatus(out io.Writer, st statusResponse) {
	if !st.Running {
		dimColor.Fprintf(out, "%s idle\n", st.PatientID)
		return
	}
	warnColor.Fprintf(out, "%s running", st.PatientID)
	fmt.Fprintf(out, " job=%s", st.JobID)
	if st.StartedAt != nil {
		fmt.Fprintf(out, " since=%s", st.StartedAt.Format(time.RFC3339))
	}
	fmt.Fprintln(out)
}

func newPatientsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "patients",
		Short: "List the monitored patient roster",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newAPIClient(root.server, root.timeout)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd, root.timeout)
			defer cancel()

			patients, err := client.patients(ctx)
			if err != nil {
				return err
			}
			printPatients(cmd.OutOrStdout(), patients)
			return nil
		},
	}
}

func printPatients(out io.Writer, patients []model.Patient) {
	if len(patients) == 0 {
		dimColor.Fprintln(out, "no patients")
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, p := range patients {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Ward, p.Bed)
	}
	_ = w.Flush()
}

func newWatchCmd(root *rootOptions) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "watch [patient-id]",
		Short: "Print results as they are published",
		Long: `Print results as they are published. Without a patient id every result on the
shared channel is shown; servers in per-subject mode require one.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient(root.server, root.timeout)
			if err != nil {
				return err
			}
			patientID := ""
			if len(args) == 1 {
				patientID = args[0]
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runWatch(ctx, cmd.OutOrStdout(), client, patientID, count)
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Exit after this many results (0 = until interrupted)")
	return cmd
}

// runWatch reads until count results arrived, the server closes the stream or ctx
// ends. Reads carry no deadline: a quiet stream is not an error.
func runWatch(ctx context.Context, out io.Writer, client *apiClient, patientID string, count int) error {
	s, err := client.openStream(ctx, patientID)
	if err != nil {
		return err
	}
	defer s.close()

	target := "all patients"
	if patientID != "" {
		target = patientID
	}
	titleColor.Fprintf(out, "watching %s\n", target)

	// closing the stream unblocks the read when the user interrupts
	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-ctx.Done():
			_ = s.close()
		case <-finished:
		}
	}()

	for seen := 0; count <= 0 || seen < count; seen++ {
		res, err := s.next(time.Time{})
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, errStreamClosed) {
				return nil
			}
			return err
		}
		printResult(out, res)
	}
	return nil
}

func printResult(out io.Writer, res model.JobResult) {
	statusColor := successColor
	if res.Status == model.JobStatusFailed {
		statusColor = errorColor
	}
	fmt.Fprintf(out, "%s ", res.SubjectKey)
	statusColor.Fprintf(out, "%s", res.Status)
	fmt.Fprintf(out, " %s\n", res.Data)
}

func commandContext(cmd *cobra.Command, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, timeout)
}
