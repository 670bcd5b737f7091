package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jilsnshah/alignflow/internal/config"
	"github.com/jilsnshah/alignflow/internal/models"
	"github.com/jilsnshah/alignflow/internal/router"
	"github.com/jilsnshah/alignflow/internal/store"
	"github.com/jilsnshah/alignflow/internal/workflow"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const simUser = "whatsapp:+919800000001"

// keywordOracle stands in for the hosted classifier so the simulator runs
// offline. It mimics the model's habit of padding answers with extra words.
type keywordOracle struct{}

func (keywordOracle) Classify(ctx context.Context, input, instructions string) (string, error) {
	lowered := strings.ToLower(input)
	inst := strings.ToLower(instructions)

	if strings.Contains(inst, "submit_case") {
		switch {
		case strings.Contains(lowered, "new") || strings.Contains(lowered, "submit"):
			return "I believe this is submit_case", nil
		case strings.Contains(lowered, "track") || strings.Contains(lowered, "status"):
			return "track_case", nil
		default:
			return "none", nil
		}
	}
	if strings.Contains(inst, "phasewise") {
		switch {
		case strings.Contains(lowered, "phase"):
			return "PhaseWise", nil
		case strings.Contains(lowered, "full"):
			return "FullCase", nil
		default:
			return "Unknown", nil
		}
	}
	switch {
	case strings.Contains(lowered, "yes") || strings.Contains(lowered, "perfect") || strings.Contains(lowered, "great"):
		return "Yes", nil
	case strings.Contains(lowered, "no") || strings.Contains(lowered, "issue") || strings.Contains(lowered, "loose"):
		return "No", nil
	default:
		return "Unknown", nil
	}
}

// echoNotifier prints outbound messages to the terminal.
type echoNotifier struct{}

func (echoNotifier) Send(ctx context.Context, recipientID, content string) error {
	fmt.Printf("\n  [3D-Align -> %s]\n  %s\n\n", recipientID, content)
	return nil
}

func newSimulateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "simulate",
		Short: "Run the workflow interactively without any external services",
		Long: `Starts an in-memory conversation loop playing the dentist's side.
Type messages as the dentist would. Ops-side commands:

  /deliver <case-id>   mark the training aligner delivered
  /approve <case-id>   approve the case and run the production step
  /advance <case-id>   run the production step
  /cases               list all cases
  /quit                exit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd)
		},
	}
}

func runSimulate(cmd *cobra.Command) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	mem := store.NewMemory()
	mem.SeedDentist(models.Dentist{Email: "dr.mehta@example.com", Name: "Dr. Mehta", Clinic: "Smile Dental"})

	oracle := keywordOracle{}
	rt, err := router.New(router.Opts{
		Cases:        mem,
		Sessions:     mem,
		Dentists:     mem,
		Messages:     mem,
		Appointments: mem,
		Images:       mem,
		Engine:       workflow.New(oracle),
		Oracle:       oracle,
		Notifier:     echoNotifier{},
		Calendar:     config.CalendarConfig{Timezone: "Asia/Kolkata", SlotMinutes: 30},
	})
	if err != nil {
		return err
	}

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	if interactive {
		fmt.Fprintln(out, "Alignflow simulator. Registered dentist: dr.mehta@example.com.")
		fmt.Fprintln(out, "Type messages as the dentist; /quit to exit, /deliver, /approve, /advance, /cases for ops actions.")
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		if interactive {
			fmt.Fprint(out, "dentist> ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if line == "/quit" {
				return nil
			}
			if err := runSimOpsCommand(ctx, out, mem, rt, line); err != nil {
				fmt.Fprintf(out, "ops error: %v\n", err)
			}
			continue
		}

		if err := rt.HandleMessage(ctx, simUser, line, nil); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}

func runSimOpsCommand(ctx context.Context, out io.Writer, mem *store.Memory, rt *router.Router, line string) error {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/cases":
		cases, err := mem.ListCases(ctx)
		if err != nil {
			return err
		}
		if len(cases) == 0 {
			fmt.Fprintln(out, "no cases yet")
			return nil
		}
		for _, c := range cases {
			fmt.Fprintf(out, "%s  %-22s %-12s %s\n", c.ID, c.Status, c.DeliveryStatus, c.PatientName)
		}
		return nil
	case "/deliver", "/approve", "/advance":
		if len(fields) != 2 {
			return fmt.Errorf("usage: %s <case-id>", fields[0])
		}
		c, err := mem.GetCase(ctx, fields[1])
		if err != nil {
			return err
		}
		switch fields[0] {
		case "/deliver":
			c.DeliveryStatus = "Delivered"
			if err := mem.PutCase(ctx, c); err != nil {
				return err
			}
			fmt.Fprintf(out, "case %s marked delivered; the dentist's next message triggers the fit check\n", c.ID)
			return nil
		case "/approve":
			c.Status = string(workflow.StatusApprovedForProduction)
			if err := mem.PutCase(ctx, c); err != nil {
				return err
			}
			return rt.AdvanceCase(ctx, c.ID)
		default:
			return rt.AdvanceCase(ctx, c.ID)
		}
	default:
		return fmt.Errorf("unknown command %s", fields[0])
	}
}
