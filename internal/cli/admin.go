package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Create the vector index",
	Long:  `Creates the vector table or collection and its similarity index. Safe to repeat.`,
	Args:  cobra.NoArgs,
	RunE:  runProvision,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending metadata migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

var statusCmd = &cobra.Command{
	Use:   "status [file-id]",
	Short: "Show a file and its queue item",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile [file-id]",
	Short: "Compare chunk and vector counts for a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runReconcile,
}

var requeueCmd = &cobra.Command{
	Use:   "requeue [file-id]",
	Short: "Clear a file's chunks and vectors and queue it again",
	Long: `Deletes the file's vectors and chunks and resets its queue item to queued.
Only success and error items are requeued. With --async the work is handed to the
worker's admin task server instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runRequeue,
}

var asyncAdmin bool

func init() {
	reconcileCmd.Flags().BoolVar(&asyncAdmin, "async", false, "Enqueue as a background task")
	requeueCmd.Flags().BoolVar(&asyncAdmin, "async", false, "Enqueue as a background task")

	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(requeueCmd)
}

func runProvision(cmd *cobra.Command, args []string) error {
	s, err := services(cmd.Context())
	if err != nil {
		return err
	}
	if s.Vectors == nil {
		return errors.New("vector store not configured")
	}
	if err := s.Vectors.Provision(cmd.Context()); err != nil {
		return fmt.Errorf("failed to provision vector index: %w", err)
	}
	cmd.Println("Vector index ready")
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	s, err := services(cmd.Context())
	if err != nil {
		return err
	}
	if s.Migrate == nil {
		return errors.New("migrations not configured")
	}
	applied, err := s.Migrate(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	if len(applied) == 0 {
		cmd.Println("No pending migrations")
		return nil
	}
	for _, v := range applied {
		cmd.Printf("Applied %s\n", v)
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	id, err := parseFileID(args[0])
	if err != nil {
		return err
	}
	s, err := services(cmd.Context())
	if err != nil {
		return err
	}

	st, err := s.Admin.Status(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}

	cmd.Printf("File: %s\n\n", st.File.ID)
	cmd.Printf("  Name:     %s\n", st.File.Name)
	cmd.Printf("  Locator:  %s\n", st.File.Locator)
	cmd.Printf("  Type:     %s\n", st.File.MimeType)
	cmd.Printf("  Status:   %s\n", st.Item.Status)
	cmd.Printf("  Updated:  %s\n", st.Item.UpdatedAt.Format("2006-01-02 15:04:05"))
	if st.Item.LastError != nil {
		cmd.Printf("  Error:    %s\n", *st.Item.LastError)
	}
	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	id, err := parseFileID(args[0])
	if err != nil {
		return err
	}
	s, err := services(cmd.Context())
	if err != nil {
		return err
	}

	if asyncAdmin {
		taskID, err := s.Tasks.EnqueueReconcile(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("failed to enqueue reconcile: %w", err)
		}
		cmd.Printf("Enqueued reconcile task %s\n", taskID)
		return nil
	}

	c, err := s.Admin.Reconcile(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("failed to reconcile: %w", err)
	}
	cmd.Printf("Chunks:  %d\n", c.Chunks)
	cmd.Printf("Vectors: %d\n", c.Vectors)
	if c.Consistent {
		cmd.Println("Consistent")
	} else {
		cmd.Println("Inconsistent: run requeue to rebuild")
	}
	return nil
}

func runRequeue(cmd *cobra.Command, args []string) error {
	id, err := parseFileID(args[0])
	if err != nil {
		return err
	}
	s, err := services(cmd.Context())
	if err != nil {
		return err
	}

	if asyncAdmin {
		taskID, err := s.Tasks.EnqueueRequeue(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("failed to enqueue requeue: %w", err)
		}
		cmd.Printf("Enqueued requeue task %s\n", taskID)
		return nil
	}

	item, err := s.Admin.Requeue(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("failed to requeue: %w", err)
	}
	cmd.Printf("Requeued %s (queue item %s)\n", id, item.ID)
	return nil
}
