package molecule

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/turtacn/molsearch/pkg/errors"
)

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// GraphDocument is the JSON interchange form of a molecule.
type GraphDocument struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Atoms []Atom `json:"atoms"`
	Bonds []Bond `json:"bonds"`
}

// Graph validates the document and builds a MolGraph.
func (d *GraphDocument) Graph() (*MolGraph, error) {
	if len(d.Atoms) == 0 {
		return nil, errors.New(errors.CodeInvalidGraph, "molecule has no atoms")
	}
	return NewMolGraph(d.Atoms, d.Bonds)
}

// ParseGraphJSON reads a single GraphDocument from r.
func ParseGraphJSON(r io.Reader) (*GraphDocument, error) {
	var doc GraphDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidGraph, "malformed molecule json")
	}
	if _, err := doc.Graph(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ParseGraphJSONList reads either a JSON array of documents or a single
// document from r.
func ParseGraphJSONList(r io.Reader) ([]*GraphDocument, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidGraph, "malformed molecule json")
	}
	var docs []*GraphDocument
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &docs); err != nil {
			return nil, errors.Wrap(err, errors.CodeInvalidGraph, "malformed molecule list")
		}
	} else {
		var doc GraphDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, errors.Wrap(err, errors.CodeInvalidGraph, "malformed molecule json")
		}
		docs = []*GraphDocument{&doc}
	}
	for i, d := range docs {
		if d == nil {
			return nil, errors.Newf(errors.CodeInvalidGraph, "molecule %d is null", i)
		}
		if _, err := d.Graph(); err != nil {
			return nil, err
		}
	}
	return docs, nil
}

// DocumentOf returns the interchange form of g.
func DocumentOf(g Graph) *GraphDocument {
	doc := &GraphDocument{Atoms: make([]Atom, g.NodeCount())}
	for i := 0; i < g.NodeCount(); i++ {
		doc.Atoms[i] = g.Atom(i)
		for _, j := range g.Neighbors(i) {
			if j > i {
				b, _ := g.EdgeBetween(i, j)
				doc.Bonds = append(doc.Bonds, Bond{From: i, To: j, Order: b.Order})
			}
		}
	}
	return doc
}

// EncodeGraph serialises g as zstd-compressed JSON for storage.
func EncodeGraph(g Graph) ([]byte, error) {
	raw, err := json.Marshal(DocumentOf(g))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeSerialization, "encode graph")
	}
	enc := getZstdEncoder()
	defer zstdEncoderPool.Put(enc)
	return enc.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
}

// DecodeGraph restores a graph written by EncodeGraph.
func DecodeGraph(data []byte) (*MolGraph, error) {
	dec := getZstdDecoder()
	raw, err := dec.DecodeAll(data, nil)
	zstdDecoderPool.Put(dec)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeGraphDecodeFailed, "decompress graph")
	}
	var doc GraphDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrap(err, errors.CodeGraphDecodeFailed, "unmarshal graph")
	}
	g, err := NewMolGraph(doc.Atoms, doc.Bonds)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeGraphDecodeFailed, "rebuild graph")
	}
	return g, nil
}
