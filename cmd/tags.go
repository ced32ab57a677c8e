package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"zotero-sync/feature/tags"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	tagNames     []string
	tagVersion   int
	renameFrom   []string
	renameInto   string
	refreshIndex bool
	yesConfirm   bool
)

// tagsCmd is the parent command for all tag operations.
var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "Index, delete and rename library tags",
}

var tagsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the categorized tag index of a library",
	RunE:  runTagsList,
}

var tagsDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete tags from a library (at most 50 per call)",
	Long: `Deletes tags guarded by the library version last seen.

Examples:
  # Delete two tags, interactive confirmation
  tags delete --library users/111 --tag draft --tag todo --version 42

  # Non-interactive
  tags delete --library users/111 --tag draft --version 42 --yes`,
	RunE: runTagsDelete,
}

var tagsRenameCmd = &cobra.Command{
	Use:   "rename",
	Short: "Merge tags into one on every regular item",
	Long: `Syncs the library, then rewrites the tags of every item holding one of the
--from tags so that it carries --into instead.

Examples:
  tags rename --library users/111 --from Housing --from housing --into housing --yes`,
	RunE: runTagsRename,
}

func init() {
	tagsCmd.PersistentFlags().StringVar(&libraryFlag, "library", "", "Library path, e.g. users/111 (defaults to ZOTERO_LIBRARY)")
	tagsCmd.PersistentFlags().StringVar(&apiKeyFlag, "api-key", "", "Zotero API key (defaults to ZOTERO_API_KEY)")
	tagsCmd.PersistentFlags().BoolVar(&yesConfirm, "yes", false, "Auto-confirm destructive actions (non-interactive)")

	tagsListCmd.Flags().BoolVar(&refreshIndex, "refresh", false, "Ignore any cached index")

	tagsDeleteCmd.Flags().StringSliceVar(&tagNames, "tag", nil, "Tag to delete (repeatable)")
	tagsDeleteCmd.Flags().IntVar(&tagVersion, "version", 0, "Library version the tags were read at")
	_ = tagsDeleteCmd.MarkFlagRequired("tag")
	_ = tagsDeleteCmd.MarkFlagRequired("version")

	tagsRenameCmd.Flags().StringSliceVar(&renameFrom, "from", nil, "Tag to merge (repeatable)")
	tagsRenameCmd.Flags().StringVar(&renameInto, "into", "", "Resulting tag")
	_ = tagsRenameCmd.MarkFlagRequired("from")
	_ = tagsRenameCmd.MarkFlagRequired("into")

	tagsCmd.AddCommand(tagsListCmd, tagsDeleteCmd, tagsRenameCmd)
	RootCmd.AddCommand(tagsCmd)
}

func runTagsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	engine, err := setup(ctx)
	if err != nil {
		return err
	}
	defer engine.Close()

	lib, err := engine.resolveLibrary(libraryFlag)
	if err != nil {
		return err
	}
	listing, err := engine.tags.Index(ctx, lib, apiKeyFlag, refreshIndex)
	if err != nil {
		return fmt.Errorf("failed to index tags: %w", err)
	}
	return printJSON(listing)
}

func runTagsDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	engine, err := setup(ctx)
	if err != nil {
		return err
	}
	defer engine.Close()

	lib, err := engine.resolveLibrary(libraryFlag)
	if err != nil {
		return err
	}

	engine.logger.Info("Deleting tags", zap.String("library", lib.Path), zap.Strings("tags", tagNames))
	if !confirmDestructiveAction() {
		engine.logger.Warn("Operation cancelled by user. No changes were made.")
		return nil
	}

	version, err := engine.tags.Delete(ctx, tags.DeleteRequest{
		APIKey:  apiKeyFlag,
		Library: lib,
		Tags:    tagNames,
		Version: tagVersion,
	})
	if err != nil {
		return fmt.Errorf("failed to delete tags: %w", err)
	}
	return printJSON(map[string]int{"version": version})
}

func runTagsRename(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	engine, err := setup(ctx)
	if err != nil {
		return err
	}
	defer engine.Close()

	lib, err := engine.resolveLibrary(libraryFlag)
	if err != nil {
		return err
	}

	// The rename works off the snapshot, so bring it up to date first
	if _, err := engine.library.Sync(ctx, lib, apiKeyFlag, -1); err != nil {
		return fmt.Errorf("failed to sync before rename: %w", err)
	}

	engine.logger.Info("Renaming tags", zap.String("library", lib.Path), zap.Strings("from", renameFrom), zap.String("into", renameInto))
	if !confirmDestructiveAction() {
		engine.logger.Warn("Operation cancelled by user. No changes were made.")
		return nil
	}

	result, err := engine.tags.Rename(ctx, tags.RenameRequest{
		APIKey:  apiKeyFlag,
		Library: lib,
		From:    renameFrom,
		Into:    renameInto,
	})
	if err != nil {
		return fmt.Errorf("failed to rename tags: %w", err)
	}
	if err := printJSON(result); err != nil {
		return err
	}
	if result.Summary.Rejected > 0 || result.Summary.Failed > 0 {
		return fmt.Errorf("rename partially failed: %d rejected chunks, %d failed items", result.Summary.Rejected, result.Summary.Failed)
	}
	return nil
}

func setup(ctx context.Context) (*application, error) {
	cfg, l, err := load()
	if err != nil {
		return nil, err
	}
	return bootstrap(ctx, cfg, l)
}

// confirmDestructiveAction prompts the user for confirmation or uses --yes flag.
func confirmDestructiveAction() bool {
	if yesConfirm {
		fmt.Println("\n✓ Auto-confirmed via --yes flag")
		return true
	}

	fmt.Print("\n⚠️  Type 'yes' to confirm destructive actions: ")
	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(response)
	return response == "yes"
}
