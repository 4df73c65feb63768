package cli

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/docingest/internal/document"
	"github.com/nikhilbhutani/docingest/internal/models"
)

var addCmd = &cobra.Command{
	Use:   "add [locator]",
	Short: "Register a file and queue it for ingestion",
	Long: `Registers a file by locator (local path, file://, http(s):// or
supabase://bucket/path) and creates its queue item. The MIME type is guessed
from the extension unless --mime is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runAdd,
}

var searchCmd = &cobra.Command{
	Use:   "search [file-id] [query]",
	Short: "Search one file's vectors",
	Args:  cobra.ExactArgs(2),
	RunE:  runSearch,
}

var (
	addName string
	addMime string
	topK    int
)

func init() {
	addCmd.Flags().StringVar(&addName, "name", "", "Display name (defaults to the locator's base name)")
	addCmd.Flags().StringVar(&addMime, "mime", "", "MIME type override")
	searchCmd.Flags().IntVarP(&topK, "top-k", "k", 5, "Number of results")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(searchCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	locator := args[0]
	f := &models.File{
		Name:     addName,
		Locator:  locator,
		MimeType: addMime,
	}
	if f.Name == "" {
		f.Name = path.Base(locator)
	}
	if f.MimeType == "" {
		f.MimeType = document.MimeTypeFor(locator)
	}
	if !isRemote(locator) {
		info, err := os.Stat(strings.TrimPrefix(locator, "file://"))
		if err != nil {
			return fmt.Errorf("failed to stat file: %w", err)
		}
		f.SizeBytes = info.Size()
	}

	s, err := services(cmd.Context())
	if err != nil {
		return err
	}
	item, err := s.Files.RegisterFile(cmd.Context(), f)
	if err != nil {
		return fmt.Errorf("failed to register file: %w", err)
	}

	cmd.Printf("Registered %s\n", f.Name)
	cmd.Printf("  File ID:  %s\n", f.ID)
	cmd.Printf("  Type:     %s\n", f.MimeType)
	cmd.Printf("  Status:   %s\n", item.Status)
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	id, err := parseFileID(args[0])
	if err != nil {
		return err
	}
	if topK <= 0 {
		return errors.New("--top-k must be positive")
	}
	s, err := services(cmd.Context())
	if err != nil {
		return err
	}
	if s.Embedder == nil {
		return errors.New("embedding service not configured")
	}

	emb, err := s.Embedder.EmbedBatch(cmd.Context(), []string{args[1]})
	if err != nil {
		return fmt.Errorf("failed to embed query: %w", err)
	}
	results, err := s.Vectors.SearchByFile(cmd.Context(), id, emb.Vectors[0], topK)
	if err != nil {
		return fmt.Errorf("failed to search: %w", err)
	}

	if len(results) == 0 {
		cmd.Println("No results")
		return nil
	}
	for _, r := range results {
		page := "-"
		if r.PageNumber != nil {
			page = fmt.Sprint(*r.PageNumber)
		}
		cmd.Printf("  chunk %-4d page %-4s score %.4f\n", r.ChunkIndex, page, r.Score)
	}
	return nil
}

func isRemote(locator string) bool {
	for _, p := range []string{"http://", "https://", "supabase://"} {
		if strings.HasPrefix(locator, p) {
			return true
		}
	}
	return false
}
