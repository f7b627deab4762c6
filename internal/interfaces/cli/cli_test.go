package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/molsearch/internal/app"
	"github.com/turtacn/molsearch/internal/config"
	"github.com/turtacn/molsearch/internal/domain/codebook"
	"github.com/turtacn/molsearch/internal/domain/molecule"
	"github.com/turtacn/molsearch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molsearch/internal/infrastructure/store/memstore"
	"github.com/turtacn/molsearch/internal/interfaces/http/handlers"
	"github.com/turtacn/molsearch/internal/testutil"
)

const testConfigYAML = `
log:
  level: warn
fingerprint:
  bits: 256
  max_path_length: 5
codebook:
  count: 4
  seed: 3
metrics:
  enabled: false
`

var (
	benzeneDoc = testutil.Benzene
	phenolDoc  = testutil.Phenol
)

type CLITestSuite struct {
	suite.Suite
	dir     string
	cfgPath string
	store   *memstore.Store
	repo    *codebook.MemoryRepository
}

func (s *CLITestSuite) SetupTest() {
	s.dir = s.T().TempDir()
	s.cfgPath = filepath.Join(s.dir, "molsearch.yaml")
	s.Require().NoError(os.WriteFile(s.cfgPath, []byte(testConfigYAML), 0o600))
	s.store = memstore.New(nil)
	s.repo = codebook.NewMemoryRepository()
}

func (s *CLITestSuite) writeJSON(name string, v interface{}) string {
	data, err := json.Marshal(v)
	s.Require().NoError(err)
	path := filepath.Join(s.dir, name)
	s.Require().NoError(os.WriteFile(path, data, 0o600))
	return path
}

func (s *CLITestSuite) run(args ...string) (string, error) {
	factory := func(ctx context.Context, cfg *config.Config, logger logging.Logger) (*app.App, error) {
		return app.New(ctx, cfg, logger, app.WithStore(s.store), app.WithRepository(s.repo))
	}
	cmd := NewRootCommand(WithAppFactory(factory))
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", s.cfgPath, "--no-color"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (s *CLITestSuite) indexLibrary() {
	lib := s.writeJSON("library.json", []molecule.GraphDocument{phenolDoc("B"), benzeneDoc("A")})
	_, err := s.run("index", lib)
	s.Require().NoError(err)
}

func (s *CLITestSuite) hits(out string) HitList {
	var list HitList
	s.Require().NoError(json.Unmarshal([]byte(out), &list))
	return list
}

func (s *CLITestSuite) ids(list HitList) []string {
	ids := make([]string, len(list.Hits))
	for i, h := range list.Hits {
		ids[i] = h.ID
	}
	return ids
}

func (s *CLITestSuite) TestIndexAndSubstructure() {
	s.indexLibrary()
	query := s.writeJSON("query.json", benzeneDoc(""))

	out, err := s.run("substructure", query, "-o", "json", "--annotate")
	s.Require().NoError(err)
	list := s.hits(out)
	s.Equal("substructure", list.Kind)
	s.Equal([]string{"A", "B"}, s.ids(list))
	s.Equal([]int{0, 1, 2, 3, 4, 5}, list.Hits[0].MatchedAtoms)
	s.Equal(7, list.Hits[1].Size)
}

func (s *CLITestSuite) TestSubstructureTableOutput() {
	s.indexLibrary()
	query := s.writeJSON("query.json", benzeneDoc(""))

	out, err := s.run("substructure", query, "--max-results", "1")
	s.Require().NoError(err)
	s.Contains(out, "benzene")
	s.NotContains(out, "phenol")
}

func (s *CLITestSuite) TestSimilarity() {
	s.indexLibrary()
	query := s.writeJSON("query.json", benzeneDoc(""))

	out, err := s.run("similarity", query, "--threshold", "1", "-o", "json")
	s.Require().NoError(err)
	list := s.hits(out)
	s.Require().Len(list.Hits, 1)
	s.Equal("A", list.Hits[0].ID)
	s.Require().NotNil(list.Hits[0].Similarity)
	s.InDelta(1.0, *list.Hits[0].Similarity, 1e-9)

	out, err = s.run("similarity", query, "-t", "0", "-o", "json")
	s.Require().NoError(err)
	s.Equal([]string{"A", "B"}, s.ids(s.hits(out)))
}

func (s *CLITestSuite) TestSimilarityRequiresThreshold() {
	query := s.writeJSON("query.json", benzeneDoc(""))
	_, err := s.run("similarity", query)
	s.Error(err)

	_, err = s.run("similarity", query, "--threshold", "1.5")
	s.Error(err)

	_, err = s.run("similarity", query, "--threshold", "NaN")
	s.Error(err)
}

func (s *CLITestSuite) TestRemove() {
	s.indexLibrary()
	query := s.writeJSON("query.json", benzeneDoc(""))

	_, err := s.run("remove", "A")
	s.Require().NoError(err)
	out, err := s.run("substructure", query, "-o", "json")
	s.Require().NoError(err)
	s.Equal([]string{"B"}, s.ids(s.hits(out)))

	_, err = s.run("remove", "missing")
	s.Error(err)
}

func (s *CLITestSuite) TestBulkRemoveRecounts() {
	s.indexLibrary()

	out, err := s.run("remove", "--bulk", "A", "B", "-o", "json")
	s.Require().NoError(err)
	var summary WriteSummary
	s.Require().NoError(json.Unmarshal([]byte(out), &summary))
	s.True(summary.Committed)
	s.Equal([]string{"A", "B"}, summary.IDs)

	for _, rec := range s.mustLoadRecords() {
		for _, n := range rec.Counts {
			s.Zero(n)
		}
	}
}

func (s *CLITestSuite) mustLoadRecords() []codebook.Record {
	recs, err := s.repo.Load(context.Background())
	s.Require().NoError(err)
	s.Require().Len(recs, 4)
	return recs
}

func (s *CLITestSuite) TestCodebooksAndRecount() {
	s.indexLibrary()

	out, err := s.run("codebooks", "-o", "json")
	s.Require().NoError(err)
	var list []handlers.CodebookSummary
	s.Require().NoError(json.Unmarshal([]byte(out), &list))
	s.Require().Len(list, 4)
	for _, cb := range list {
		s.Equal(int64(2), cb.Documents)
	}

	out, err = s.run("recount")
	s.Require().NoError(err)
	s.Contains(out, "codebooks recounted")
	s.Len(s.mustLoadRecords(), 4)
}

func (s *CLITestSuite) TestIndexRejectsBadInput() {
	noID := s.writeJSON("noid.json", benzeneDoc(""))
	_, err := s.run("index", noID)
	s.Error(err)

	_, err = s.run("index", filepath.Join(s.dir, "absent.json"))
	s.Error(err)

	two := s.writeJSON("two.json", []molecule.GraphDocument{benzeneDoc("x"), benzeneDoc("y")})
	_, err = s.run("substructure", two)
	s.Error(err)
}

func (s *CLITestSuite) TestRemoteServer() {
	cfg, err := config.Load(s.cfgPath)
	s.Require().NoError(err)
	a, err := app.New(context.Background(), cfg, logging.NewNopLogger(), app.WithStore(s.store), app.WithRepository(s.repo))
	s.Require().NoError(err)
	defer a.Close()
	srv := httptest.NewServer(NewHTTPHandler(a))
	defer srv.Close()

	lib := s.writeJSON("library.json", []molecule.GraphDocument{phenolDoc("B"), benzeneDoc("A")})
	query := s.writeJSON("query.json", benzeneDoc(""))

	_, err = s.run("--server", srv.URL, "index", lib)
	s.Require().NoError(err)

	out, err := s.run("--server", srv.URL, "substructure", query, "-o", "json", "--annotate")
	s.Require().NoError(err)
	list := s.hits(out)
	s.Equal([]string{"A", "B"}, s.ids(list))
	s.Equal([]int{0, 1, 2, 3, 4, 5}, list.Hits[0].MatchedAtoms)

	out, err = s.run("--server", srv.URL, "similarity", query, "-t", "1", "-o", "json")
	s.Require().NoError(err)
	s.Equal([]string{"A"}, s.ids(s.hits(out)))

	out, err = s.run("--server", srv.URL, "codebooks", "-o", "json")
	s.Require().NoError(err)
	var books []handlers.CodebookSummary
	s.Require().NoError(json.Unmarshal([]byte(out), &books))
	s.Len(books, 4)

	_, err = s.run("--server", srv.URL, "remove", "A")
	s.Require().NoError(err)
	out, err = s.run("--server", srv.URL, "substructure", query, "-o", "json")
	s.Require().NoError(err)
	s.Equal([]string{"B"}, s.ids(s.hits(out)))

	_, err = s.run("--server", srv.URL, "remove", "missing")
	s.Error(err)
}

func (s *CLITestSuite) TestSubcommandsRegistered() {
	cmd := NewRootCommand()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"index", "remove", "substructure", "similarity", "recount", "codebooks", "serve"} {
		s.True(names[want], want)
	}
	s.NotNil(cmd.PersistentFlags().Lookup("config"))
	s.NotNil(cmd.PersistentFlags().Lookup("no-color"))
}

func TestCLITestSuite(t *testing.T) {
	suite.Run(t, new(CLITestSuite))
}

func TestFormatTable(t *testing.T) {
	assert.Empty(t, FormatTable(nil, nil))
	out := FormatTable([]string{"Name", "Size"}, [][]string{{"benzene", "6"}, {"short"}})
	assert.Contains(t, strings.ToUpper(out), "NAME")
	assert.Contains(t, out, "benzene")
	assert.Contains(t, out, "short")
}

func TestSplitAddr(t *testing.T) {
	host, port, err := splitAddr("127.0.0.1:9090")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", host)
	assert.Equal(t, 9090, port)

	host, port, err = splitAddr(":8081")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", host)
	assert.Equal(t, 8081, port)

	for _, bad := range []string{"nohost", "h:0", "h:abc", "h:70000"} {
		_, _, err := splitAddr(bad)
		assert.Error(t, err, bad)
	}
}

func TestGetCLIContext_Missing(t *testing.T) {
	cmd := &cobra.Command{}
	_, err := GetCLIContext(cmd)
	assert.Error(t, err)
	cmd.SetContext(context.Background())
	_, err = GetCLIContext(cmd)
	assert.Error(t, err)
}
