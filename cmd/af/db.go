package main

import (
	"fmt"

	"github.com/jilsnshah/alignflow/internal/config"
	"github.com/jilsnshah/alignflow/internal/db"
	"github.com/jilsnshah/alignflow/internal/models"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBSeedDentistCmd())
	return cmd
}

// openFromConfig loads the config file and opens the selected database.
func openFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	gdb, err := db.Open(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return cfg, gdb, nil
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the Alignflow database",
		Long:  "Connects to the configured database and migrates all tables.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "alignflow.yaml", "path to Alignflow config file")
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, gdb, err := openFromConfig(configPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Connected to %s database\n", cfg.Database.Driver)

	if err := db.AutoMigrate(gdb); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	fmt.Fprintln(out, "\nAlignflow database initialized successfully.")
	return nil
}

func newDBSeedDentistCmd() *cobra.Command {
	var (
		configPath string
		email      string
		name       string
		clinic     string
		license    string
	)

	cmd := &cobra.Command{
		Use:   "seed-dentist",
		Short: "Add or update a dentist in the authorized roster",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" || name == "" {
				return fmt.Errorf("--email and --name are required")
			}
			_, gdb, err := openFromConfig(configPath)
			if err != nil {
				return err
			}
			d := models.Dentist{Email: email, Name: name, Clinic: clinic, License: license}
			if err := db.SeedDentists(gdb, []models.Dentist{d}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Dentist %s (%s) seeded\n", name, email)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "alignflow.yaml", "path to Alignflow config file")
	cmd.Flags().StringVar(&email, "email", "", "dentist's registered email")
	cmd.Flags().StringVar(&name, "name", "", "dentist's display name")
	cmd.Flags().StringVar(&clinic, "clinic", "", "clinic name")
	cmd.Flags().StringVar(&license, "license", "", "license number")
	return cmd
}
