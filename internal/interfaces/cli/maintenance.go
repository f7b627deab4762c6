package cli

import (
	"context"
	"net"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/molsearch/internal/app"
	"github.com/turtacn/molsearch/internal/interfaces/http/handlers"
	"github.com/turtacn/molsearch/pkg/client"
	"github.com/turtacn/molsearch/pkg/errors"
)

// CodebookList is the printable form of the ensemble.
type CodebookList []handlers.CodebookSummary

func (l CodebookList) TableHeaders() []string {
	return []string{"#", "ID", "Dictionary", "Used Codes", "Documents"}
}

func (l CodebookList) TableRows() [][]string {
	rows := make([][]string, len(l))
	for i, s := range l {
		rows[i] = []string{
			strconv.Itoa(i),
			s.ID,
			joinInts(s.Dictionary),
			strconv.Itoa(s.UsedCodes),
			strconv.FormatInt(s.Documents, 10),
		}
	}
	return rows
}

// NewRecountCmd creates the recount command.
func NewRecountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recount",
		Short: "Rebuild codebook counts from the committed store and persist them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if isRemote(cmd) {
				return withRemote(cmd, func(ctx context.Context, cc *CLIContext, c *client.Client) error {
					if err := c.Molecules().Recount(ctx); err != nil {
						return err
					}
					PrintSuccess(cmd, "codebooks recounted")
					return nil
				})
			}
			return withApp(cmd, func(ctx context.Context, cc *CLIContext, a *app.App) error {
				if err := a.Indexer.Recount(ctx); err != nil {
					return err
				}
				if err := a.Indexer.Commit(ctx); err != nil {
					return err
				}
				PrintSuccess(cmd, "codebooks recounted")
				return nil
			})
		},
	}
}

// NewCodebooksCmd creates the codebooks command.
func NewCodebooksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "codebooks",
		Short: "Show the screening codebooks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if isRemote(cmd) {
				return withRemote(cmd, func(ctx context.Context, cc *CLIContext, c *client.Client) error {
					list, err := remoteCodebooks(ctx, c)
					if err != nil {
						return err
					}
					return PrintResult(cmd, list)
				})
			}
			return withApp(cmd, func(ctx context.Context, cc *CLIContext, a *app.App) error {
				records := a.Indexer.Records()
				list := make(CodebookList, len(records))
				for i, rec := range records {
					list[i] = handlers.Summarize(rec)
				}
				return PrintResult(cmd, list)
			})
		},
	}
}

// splitAddr parses host:port; a bare ":port" keeps the default host.
func splitAddr(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, errors.Wrapf(err, errors.CodeInvalidParam, "invalid address %q", addr)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, errors.Newf(errors.CodeInvalidParam, "invalid port in %q", addr)
	}
	if strings.TrimSpace(host) == "" {
		host = "0.0.0.0"
	}
	return host, port, nil
}
