package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turtacn/molsearch/internal/domain/molecule"
	"github.com/turtacn/molsearch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molsearch/internal/interfaces/http/handlers"
	"github.com/turtacn/molsearch/pkg/client"
	wire "github.com/turtacn/molsearch/pkg/types/molecule"
)

// clientLogger adapts the structured logger to the SDK's printf logger.
type clientLogger struct {
	l logging.Logger
}

func (c clientLogger) Debugf(format string, args ...interface{}) {
	c.l.Debug(fmt.Sprintf(format, args...))
}
func (c clientLogger) Infof(format string, args ...interface{}) {
	c.l.Info(fmt.Sprintf(format, args...))
}
func (c clientLogger) Errorf(format string, args ...interface{}) {
	c.l.Error(fmt.Sprintf(format, args...))
}

func isRemote(cmd *cobra.Command) bool {
	cc, err := GetCLIContext(cmd)
	return err == nil && cc.Server != ""
}

// withRemote runs fn against the server named by --server.
func withRemote(cmd *cobra.Command, fn func(ctx context.Context, cc *CLIContext, c *client.Client) error) error {
	cc, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if cc.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cc.Timeout)
		defer cancel()
	}
	c, err := client.NewClient(cc.Server, client.WithLogger(clientLogger{l: cc.Logger.Named("client")}))
	if err != nil {
		return err
	}
	defer func() { _ = cc.Logger.Sync() }()
	return fn(ctx, cc, c)
}

func toWire(d *molecule.GraphDocument) *wire.Molecule {
	m := &wire.Molecule{
		ID:    d.ID,
		Name:  d.Name,
		Atoms: make([]wire.Atom, len(d.Atoms)),
		Bonds: make([]wire.Bond, len(d.Bonds)),
	}
	for i, a := range d.Atoms {
		m.Atoms[i] = wire.Atom{Element: a.Element, Charge: a.Charge, Aromatic: a.Aromatic}
	}
	for i, b := range d.Bonds {
		m.Bonds[i] = wire.Bond{From: b.From, To: b.To, Order: int(b.Order)}
	}
	return m
}

func fromWireHit(h wire.Hit) handlers.Hit {
	return handlers.Hit{
		ID:           h.ID,
		Name:         h.Name,
		Size:         h.Size,
		Similarity:   h.Similarity,
		Mapping:      h.Mapping,
		MatchedAtoms: h.MatchedAtoms,
		Fields:       h.Fields,
	}
}

// remoteQuery runs a query on the server.  A nil threshold means
// substructure.
func remoteQuery(ctx context.Context, c *client.Client, doc *molecule.GraphDocument, threshold *float64, f queryFlags) (HitList, error) {
	req := &wire.SearchRequest{Query: toWire(doc), Threshold: threshold, Workers: f.workers, Annotate: f.annotate}
	if f.maxResults >= 0 {
		m := f.maxResults
		req.MaxResults = &m
	}

	kind := "substructure"
	var (
		stream *client.HitStream
		err    error
	)
	if threshold != nil {
		kind = "similarity"
		stream, err = c.Search().Similarity(ctx, req)
	} else {
		stream, err = c.Search().Substructure(ctx, req)
	}
	if err != nil {
		return HitList{}, err
	}
	hits, err := stream.All()
	if err != nil {
		return HitList{}, err
	}
	list := HitList{Kind: kind, Hits: make([]handlers.Hit, len(hits))}
	for i, h := range hits {
		list.Hits[i] = fromWireHit(h)
	}
	return list, nil
}

func remoteIndex(ctx context.Context, c *client.Client, docs []*molecule.GraphDocument, commit bool) (WriteSummary, error) {
	summary := WriteSummary{Action: "index"}
	for _, d := range docs {
		req := &wire.CreateRequest{ID: d.ID, Name: d.Name, Graph: toWire(d)}
		if _, err := c.Molecules().Add(ctx, req); err != nil {
			return summary, fmt.Errorf("index %s: %w", d.ID, err)
		}
		summary.IDs = append(summary.IDs, d.ID)
	}
	if commit {
		if err := c.Molecules().Commit(ctx); err != nil {
			return summary, err
		}
		summary.Committed = true
	}
	return summary, nil
}

func remoteRemove(ctx context.Context, c *client.Client, ids []string, bulk, commit bool) (WriteSummary, error) {
	summary := WriteSummary{Action: "remove", IDs: ids}
	if bulk {
		if _, err := c.Molecules().BulkDelete(ctx, ids); err != nil {
			return summary, err
		}
		summary.Committed = true
		return summary, nil
	}
	for i, id := range ids {
		// Commit once, with the last removal.
		if err := c.Molecules().Delete(ctx, id, commit && i == len(ids)-1); err != nil {
			return summary, fmt.Errorf("remove %s: %w", id, err)
		}
	}
	summary.Committed = commit
	return summary, nil
}

func remoteCodebooks(ctx context.Context, c *client.Client) (CodebookList, error) {
	summaries, err := c.Molecules().Codebooks(ctx)
	if err != nil {
		return nil, err
	}
	list := make(CodebookList, len(summaries))
	for i, s := range summaries {
		list[i] = handlers.CodebookSummary{ID: s.ID, Dictionary: s.Dictionary, Documents: s.Documents, UsedCodes: s.UsedCodes}
	}
	return list, nil
}
