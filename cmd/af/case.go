package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/jilsnshah/alignflow/internal/config"
	"github.com/jilsnshah/alignflow/internal/models"
	"github.com/jilsnshah/alignflow/internal/router"
	"github.com/jilsnshah/alignflow/internal/store"
	"github.com/jilsnshah/alignflow/internal/workflow"
	"github.com/spf13/cobra"
)

// cliOracle backs the engine for CLI invocations. Production steps never
// call the classifier, so any call means a bug in the invocation path.
type cliOracle struct{}

func (cliOracle) Classify(ctx context.Context, input, instructions string) (string, error) {
	return "", fmt.Errorf("classifier not available from the CLI")
}

// opsRouter builds a Router for CLI case mutations so they run through the
// same per-owner serialization as the server paths. The lock is per-process:
// a CLI invocation racing a separately running server is not serialized, so
// prefer the ops API when the server is up.
func opsRouter(cfg *config.Config, s *store.DB) (*router.Router, error) {
	notifier, err := buildNotifier(cfg)
	if err != nil {
		return nil, err
	}
	return router.New(router.Opts{
		Cases:    s,
		Sessions: s,
		Dentists: s,
		Messages: s,
		Engine:   workflow.New(cliOracle{}),
		Oracle:   cliOracle{},
		Notifier: notifier,
	})
}

func newCaseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "case",
		Short: "Inspect and operate on cases",
	}

	cmd.AddCommand(newCaseCreateCmd())
	cmd.AddCommand(newCaseListCmd())
	cmd.AddCommand(newCaseShowCmd())
	cmd.AddCommand(newCaseStatusCmd())
	cmd.AddCommand(newCaseDeliveryCmd())
	cmd.AddCommand(newCaseAdvanceCmd())
	return cmd
}

func newCaseCreateCmd() *cobra.Command {
	var (
		configPath string
		userID     string
		patient    string
		priority   string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a case directly, bypassing the chat intake",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			_, gdb, err := openFromConfig(configPath)
			if err != nil {
				return err
			}
			s := store.NewDB(gdb)

			var dentistName string
			if d, err := s.DentistByUser(cmd.Context(), userID); err == nil {
				dentistName = d.Name
			}

			c := &models.Case{
				ID:          uuid.NewString(),
				UserID:      userID,
				PatientName: patient,
				DentistName: dentistName,
				Status:      string(workflow.StatusNew),
				Priority:    priority,
			}
			if err := s.PutCase(cmd.Context(), c); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Case %s created for %s\n", c.ID, userID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "alignflow.yaml", "path to Alignflow config file")
	cmd.Flags().StringVar(&userID, "user", "", "owning chat user id, e.g. whatsapp:+91...")
	cmd.Flags().StringVar(&patient, "patient", "", "patient name")
	cmd.Flags().StringVar(&priority, "priority", "Normal", "case priority")
	return cmd
}

func newCaseListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all cases",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gdb, err := openFromConfig(configPath)
			if err != nil {
				return err
			}
			cases, err := store.NewDB(gdb).ListCases(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPATIENT\tDENTIST\tSTATUS\tDELIVERY\tPRIORITY")
			for _, c := range cases {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					c.ID, c.PatientName, c.DentistName, c.Status, c.DeliveryStatus, c.Priority)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "alignflow.yaml", "path to Alignflow config file")
	return cmd
}

func newCaseShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <case-id>",
		Short: "Show one case in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gdb, err := openFromConfig(configPath)
			if err != nil {
				return err
			}
			s := store.NewDB(gdb)
			c, err := s.GetCase(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Case:      %s\n", c.ID)
			fmt.Fprintf(out, "Patient:   %s\n", c.PatientName)
			fmt.Fprintf(out, "Dentist:   %s (%s)\n", c.DentistName, c.UserID)
			fmt.Fprintf(out, "Status:    %s\n", c.Status)
			fmt.Fprintf(out, "Delivery:  %s\n", c.DeliveryStatus)
			fmt.Fprintf(out, "Priority:  %s\n", c.Priority)
			if c.LastWorkflowRun != nil {
				fmt.Fprintf(out, "Last run:  %s (%s)\n", c.LastWorkflowRun.Format("2006-01-02 15:04:05"), c.LastActionType)
			}
			imgs, err := s.ImagesByCase(cmd.Context(), c.ID)
			if err == nil && len(imgs) > 0 {
				fmt.Fprintf(out, "Images:    %d\n", len(imgs))
				for _, img := range imgs {
					fmt.Fprintf(out, "  - %s\n", img.PublicURL)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "alignflow.yaml", "path to Alignflow config file")
	return cmd
}

func newCaseStatusCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "status <case-id> <status>",
		Short: "Set a case's production status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gdb, err := openFromConfig(configPath)
			if err != nil {
				return err
			}
			rt, err := opsRouter(cfg, store.NewDB(gdb))
			if err != nil {
				return err
			}
			c, err := rt.SetStatus(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Case %s status set to %s\n", c.ID, c.Status)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "alignflow.yaml", "path to Alignflow config file")
	return cmd
}

func newCaseDeliveryCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "delivery <case-id> <delivery-status>",
		Short: "Record a courier update for a case",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gdb, err := openFromConfig(configPath)
			if err != nil {
				return err
			}
			rt, err := opsRouter(cfg, store.NewDB(gdb))
			if err != nil {
				return err
			}
			c, err := rt.SetDelivery(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Case %s delivery status set to %q\n", c.ID, c.DeliveryStatus)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "alignflow.yaml", "path to Alignflow config file")
	return cmd
}

func newCaseAdvanceCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "advance <case-id>",
		Short: "Run the production step for a case",
		Long:  "Runs the workflow engine's production step and sends the resulting notification to the dentist.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gdb, err := openFromConfig(configPath)
			if err != nil {
				return err
			}
			s := store.NewDB(gdb)
			rt, err := opsRouter(cfg, s)
			if err != nil {
				return err
			}

			before, err := s.GetCase(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := rt.AdvanceCase(cmd.Context(), args[0]); err != nil {
				return err
			}
			after, err := s.GetCase(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if after.Status == before.Status {
				fmt.Fprintf(cmd.OutOrStdout(), "Case %s is waiting in status %s; nothing to run.\n", after.ID, after.Status)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Case %s advanced to %s\n", after.ID, after.Status)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "alignflow.yaml", "path to Alignflow config file")
	return cmd
}
