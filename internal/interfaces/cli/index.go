package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/turtacn/molsearch/internal/app"
	"github.com/turtacn/molsearch/internal/domain/molecule"
	"github.com/turtacn/molsearch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molsearch/pkg/client"
	"github.com/turtacn/molsearch/pkg/errors"
)

// WriteSummary reports the outcome of index and remove.
type WriteSummary struct {
	Action    string   `json:"action"`
	IDs       []string `json:"ids"`
	Committed bool     `json:"committed"`
	Published bool     `json:"published,omitempty"`
}

func (s WriteSummary) TableHeaders() []string { return []string{"Action", "Documents", "Committed"} }

func (s WriteSummary) TableRows() [][]string {
	return [][]string{{s.Action, strconv.Itoa(len(s.IDs)), strconv.FormatBool(s.Committed)}}
}

// readGraphFile parses a JSON molecule document (or array of them) from
// path, or from stdin when path is "-".
func readGraphFile(path string) ([]*molecule.GraphDocument, error) {
	if path == "-" {
		return molecule.ParseGraphJSONList(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeInvalidParam, "open %s", path)
	}
	defer f.Close()
	return molecule.ParseGraphJSONList(f)
}

// NewIndexCmd creates the index command.
func NewIndexCmd() *cobra.Command {
	var (
		noCommit bool
		publish  bool
	)
	cmd := &cobra.Command{
		Use:   "index <file.json>",
		Short: "Add molecules from a JSON file",
		Long: `Add every molecule in file.json (a single document or an array) to the
index.  Documents without an id are rejected.  With --publish the writes are
sent as index events to kafka instead of being applied locally.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := readGraphFile(args[0])
			if err != nil {
				return err
			}
			for i, d := range docs {
				if d.ID == "" {
					return errors.Newf(errors.CodeInvalidParam, "molecule %d has no id", i)
				}
			}
			if isRemote(cmd) && !publish {
				return withRemote(cmd, func(ctx context.Context, cc *CLIContext, c *client.Client) error {
					summary, err := remoteIndex(ctx, c, docs, !noCommit)
					if err != nil {
						return err
					}
					return PrintResult(cmd, summary)
				})
			}
			return withApp(cmd, func(ctx context.Context, cc *CLIContext, a *app.App) error {
				var summary WriteSummary
				if publish {
					summary, err = publishDocs(ctx, a, docs, !noCommit)
				} else {
					summary, err = indexDocs(ctx, a, docs, !noCommit)
				}
				if err != nil {
					return err
				}
				return PrintResult(cmd, summary)
			})
		},
	}
	cmd.Flags().BoolVar(&noCommit, "no-commit", false, "leave the writes uncommitted")
	cmd.Flags().BoolVar(&publish, "publish", false, "publish index events to kafka instead of writing locally")
	return cmd
}

func indexDocs(ctx context.Context, a *app.App, docs []*molecule.GraphDocument, commit bool) (WriteSummary, error) {
	summary := WriteSummary{Action: "index"}
	for _, d := range docs {
		g, err := d.Graph()
		if err != nil {
			return summary, err
		}
		if err := a.Indexer.Add(ctx, d.ID, d.Name, g, nil); err != nil {
			return summary, fmt.Errorf("index %s: %w", d.ID, err)
		}
		summary.IDs = append(summary.IDs, d.ID)
	}
	if commit {
		if err := a.Indexer.Commit(ctx); err != nil {
			return summary, err
		}
		summary.Committed = true
	}
	a.Logger.Info("molecules indexed", logging.Int("count", len(summary.IDs)), logging.Bool("committed", commit))
	return summary, nil
}

func publishDocs(ctx context.Context, a *app.App, docs []*molecule.GraphDocument, commit bool) (WriteSummary, error) {
	summary := WriteSummary{Action: "publish", Published: true}
	pub, closePub, err := a.NewEventPublisher()
	if err != nil {
		return summary, err
	}
	defer closePub()
	for _, d := range docs {
		g, err := d.Graph()
		if err != nil {
			return summary, err
		}
		if err := pub.PublishAdd(ctx, d.ID, d.Name, g); err != nil {
			return summary, fmt.Errorf("publish %s: %w", d.ID, err)
		}
		summary.IDs = append(summary.IDs, d.ID)
	}
	if commit {
		if err := pub.PublishCommit(ctx); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

// NewRemoveCmd creates the remove command.
func NewRemoveCmd() *cobra.Command {
	var (
		bulk     bool
		noCommit bool
	)
	cmd := &cobra.Command{
		Use:   "remove <id>...",
		Short: "Remove molecules by id",
		Long: `Remove molecules by id.  --bulk skips per-document count tracking and
recounts every codebook afterwards, which is cheaper for large batches.
Bulk removal always commits.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if isRemote(cmd) {
				return withRemote(cmd, func(ctx context.Context, cc *CLIContext, c *client.Client) error {
					summary, err := remoteRemove(ctx, c, args, bulk, !noCommit)
					if err != nil {
						return err
					}
					return PrintResult(cmd, summary)
				})
			}
			return withApp(cmd, func(ctx context.Context, cc *CLIContext, a *app.App) error {
				summary := WriteSummary{Action: "remove", IDs: args}
				if bulk {
					if err := a.Indexer.BulkRemove(ctx, args); err != nil {
						return err
					}
					a.Indexer.Wait()
					// Persist the recounted codebooks.
					if err := a.Indexer.Commit(ctx); err != nil {
						return err
					}
					summary.Committed = true
					return PrintResult(cmd, summary)
				}
				for _, id := range args {
					if err := a.Indexer.Remove(ctx, id); err != nil {
						return fmt.Errorf("remove %s: %w", id, err)
					}
				}
				if !noCommit {
					if err := a.Indexer.Commit(ctx); err != nil {
						return err
					}
					summary.Committed = true
				}
				return PrintResult(cmd, summary)
			})
		},
	}
	cmd.Flags().BoolVar(&bulk, "bulk", false, "bulk removal followed by a full recount")
	cmd.Flags().BoolVar(&noCommit, "no-commit", false, "leave the removals uncommitted")
	return cmd
}
