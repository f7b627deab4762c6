package cli

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/turtacn/molsearch/internal/app"
	"github.com/turtacn/molsearch/internal/application/search"
	"github.com/turtacn/molsearch/internal/domain/molecule"
	"github.com/turtacn/molsearch/internal/interfaces/http/handlers"
	"github.com/turtacn/molsearch/pkg/client"
	"github.com/turtacn/molsearch/pkg/errors"
)

type queryFlags struct {
	maxResults int
	workers    int
	annotate   bool
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.maxResults, "max-results", -1, "stop after this many hits (0 means unlimited, default from config)")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "verification workers (default from config)")
	cmd.Flags().BoolVar(&f.annotate, "annotate", false, "list the matched atom indices of each hit")
}

// resolve fills unset flags from the engine defaults.
func (f *queryFlags) resolve(e *search.Engine) (maxResults, workers int) {
	defWorkers, defMax := e.Defaults()
	maxResults, workers = f.maxResults, f.workers
	if maxResults < 0 {
		maxResults = defMax
	}
	if workers == 0 {
		workers = defWorkers
	}
	if workers < 1 {
		workers = 1
	}
	return maxResults, workers
}

// HitList is the printable result of a query.
type HitList struct {
	Kind string         `json:"kind"`
	Hits []handlers.Hit `json:"hits"`
}

func (l HitList) TableHeaders() []string {
	if l.Kind == "similarity" {
		return []string{"Rank", "ID", "Name", "Atoms", "Similarity"}
	}
	return []string{"Rank", "ID", "Name", "Atoms", "Matched"}
}

func (l HitList) TableRows() [][]string {
	rows := make([][]string, 0, len(l.Hits))
	for i, h := range l.Hits {
		last := joinInts(h.MatchedAtoms)
		if h.Similarity != nil {
			last = colorizeSimilarity(*h.Similarity)
		}
		rows = append(rows, []string{strconv.Itoa(i + 1), h.ID, h.Name, strconv.Itoa(h.Size), last})
	}
	return rows
}

func colorizeSimilarity(s float64) string {
	str := fmt.Sprintf("%.3f", s)
	switch {
	case s >= 0.8:
		return color.GreenString(str)
	case s >= 0.5:
		return color.YellowString(str)
	default:
		return str
	}
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ",")
}

func readQuery(path string) (*molecule.GraphDocument, molecule.Graph, error) {
	docs, err := readGraphFile(path)
	if err != nil {
		return nil, nil, err
	}
	if len(docs) != 1 {
		return nil, nil, errors.Newf(errors.CodeInvalidParam, "query file must hold exactly one molecule, found %d", len(docs))
	}
	g, err := docs[0].Graph()
	return docs[0], g, err
}

func collectHits(ctx context.Context, kind string, stream *search.Stream, annotate bool) HitList {
	defer stream.Close()
	list := HitList{Kind: kind, Hits: []handlers.Hit{}}
	for stream.HasNext() {
		res := stream.Next()
		hit := handlers.ToHit(res)
		if annotate && res.Mapping != nil {
			if ann, err := res.Annotated(ctx); err == nil {
				hit.MatchedAtoms = ann.MatchedAtoms()
			}
		}
		list.Hits = append(list.Hits, hit)
	}
	return list
}

// NewSubstructureCmd creates the substructure command.
func NewSubstructureCmd() *cobra.Command {
	var f queryFlags
	cmd := &cobra.Command{
		Use:   "substructure <query.json>",
		Short: "Find molecules containing the query structure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, q, err := readQuery(args[0])
			if err != nil {
				return err
			}
			if isRemote(cmd) {
				return withRemote(cmd, func(ctx context.Context, cc *CLIContext, c *client.Client) error {
					list, err := remoteQuery(ctx, c, doc, nil, f)
					if err != nil {
						return err
					}
					return PrintResult(cmd, list)
				})
			}
			return withApp(cmd, func(ctx context.Context, cc *CLIContext, a *app.App) error {
				maxResults, workers := f.resolve(a.Engine)
				stream, err := a.Engine.Substructure(ctx, q, maxResults, workers)
				if err != nil {
					return err
				}
				return PrintResult(cmd, collectHits(ctx, "substructure", stream, f.annotate))
			})
		},
	}
	f.register(cmd)
	return cmd
}

// NewSimilarityCmd creates the similarity command.
func NewSimilarityCmd() *cobra.Command {
	var (
		f         queryFlags
		threshold float64
	)
	cmd := &cobra.Command{
		Use:   "similarity <query.json>",
		Short: "Find molecules whose Tanimoto similarity reaches the threshold",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
				return errors.Newf(errors.CodeInvalidThreshold, "threshold %v is outside [0, 1]", threshold)
			}
			doc, q, err := readQuery(args[0])
			if err != nil {
				return err
			}
			if isRemote(cmd) {
				return withRemote(cmd, func(ctx context.Context, cc *CLIContext, c *client.Client) error {
					list, err := remoteQuery(ctx, c, doc, &threshold, f)
					if err != nil {
						return err
					}
					return PrintResult(cmd, list)
				})
			}
			return withApp(cmd, func(ctx context.Context, cc *CLIContext, a *app.App) error {
				maxResults, workers := f.resolve(a.Engine)
				stream, err := a.Engine.Similarity(ctx, q, threshold, maxResults, workers)
				if err != nil {
					return err
				}
				return PrintResult(cmd, collectHits(ctx, "similarity", stream, false))
			})
		},
	}
	f.register(cmd)
	cmd.Flags().Float64VarP(&threshold, "threshold", "t", 0, "minimum Tanimoto similarity in [0, 1]")
	_ = cmd.MarkFlagRequired("threshold")
	return cmd
}
