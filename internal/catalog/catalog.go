// Package catalog indexes the makes and models present in the dataset for
// criteria autocompletion.
package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/sha1n/mot-search/internal/domain"
)

const (
	// IndexDirname is the catalog index's name inside the data directory.
	IndexDirname = "catalog.bleve"

	// DefaultLimit caps lookups that pass no limit.
	DefaultLimit = 20

	// MaxBatchSize is the number of documents per index batch.
	MaxBatchSize = 500
)

// Index field names.
const (
	fieldKind     = "kind"
	fieldMake     = "make"
	fieldName     = "name"
	fieldVehicles = "vehicles"

	kindMake  = "make"
	kindModel = "model"
)

// Entry is a make or model with the number of vehicles carrying it.
type Entry struct {
	Name     string `json:"name"`
	Vehicles int    `json:"vehicles"`
}

type entryDoc struct {
	Kind     string `json:"kind"`
	Make     string `json:"make"`
	Name     string `json:"name"`
	Vehicles int    `json:"vehicles"`
}

// Catalog is an open catalog index.
type Catalog struct {
	index bleve.Index
}

func indexMapping() mapping.IndexMapping {
	doc := bleve.NewDocumentMapping()
	doc.Dynamic = false

	for _, name := range []string{fieldKind, fieldMake, fieldName} {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = keyword.Name
		f.Store = true
		doc.AddFieldMappingsAt(name, f)
	}

	vehicles := bleve.NewNumericFieldMapping()
	vehicles.Store = true
	doc.AddFieldMappingsAt(fieldVehicles, vehicles)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = keyword.Name
	return m
}

// Build replaces any index at path with one over vehicles.
func Build(path string, vehicles []domain.Vehicle) (*Catalog, error) {
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("failed to remove old catalog: %w", err)
	}
	index, err := bleve.New(path, indexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog index: %w", err)
	}

	docs := entryDocs(vehicles)
	batch := index.NewBatch()
	for i, doc := range docs {
		id := doc.Kind + "/" + doc.Make + "/" + doc.Name
		if err := batch.Index(id, doc); err != nil {
			_ = index.Close()
			return nil, fmt.Errorf("failed to index %s: %w", id, err)
		}
		if batch.Size() >= MaxBatchSize || i == len(docs)-1 {
			if err := index.Batch(batch); err != nil {
				_ = index.Close()
				return nil, fmt.Errorf("catalog batch failed: %w", err)
			}
			batch = index.NewBatch()
		}
	}

	slog.Info("Catalog built", "path", path, "entries", len(docs))
	return &Catalog{index: index}, nil
}

// Open opens an existing index at path.
func Open(path string) (*Catalog, error) {
	index, err := bleve.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog index: %w", err)
	}
	return &Catalog{index: index}, nil
}

// OpenOrBuild opens the index at path, building it when rebuild is set or
// the index cannot be opened.
func OpenOrBuild(path string, vehicles []domain.Vehicle, rebuild bool) (*Catalog, error) {
	if !rebuild {
		c, err := Open(path)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
			slog.Warn("Rebuilding unreadable catalog", "error", err)
		}
	}
	return Build(path, vehicles)
}

// Close closes the index.
func (c *Catalog) Close() error {
	return c.index.Close()
}

// Makes returns the makes starting with prefix, most common first.
func (c *Catalog) Makes(prefix string, limit int) ([]Entry, error) {
	return c.lookup(kindMake, "", prefix, limit)
}

// Models returns the models of vehicleMake starting with prefix, most common
// first.
func (c *Catalog) Models(vehicleMake, prefix string, limit int) ([]Entry, error) {
	vehicleMake = normalize(vehicleMake)
	if vehicleMake == "" {
		return nil, errors.New("make is required")
	}
	return c.lookup(kindModel, vehicleMake, prefix, limit)
}

func (c *Catalog) lookup(kind, vehicleMake, prefix string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	kindQuery := bleve.NewTermQuery(kind)
	kindQuery.SetField(fieldKind)
	queries := []query.Query{kindQuery}

	if vehicleMake != "" {
		q := bleve.NewTermQuery(vehicleMake)
		q.SetField(fieldMake)
		queries = append(queries, q)
	}
	if prefix = normalize(prefix); prefix != "" {
		q := bleve.NewPrefixQuery(prefix)
		q.SetField(fieldName)
		queries = append(queries, q)
	}

	req := bleve.NewSearchRequestOptions(bleve.NewConjunctionQuery(queries...), limit, 0, false)
	req.Fields = []string{fieldName, fieldVehicles}
	req.SortBy([]string{"-" + fieldVehicles, fieldName})

	res, err := c.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("catalog search failed: %w", err)
	}

	entries := make([]Entry, 0, len(res.Hits))
	for _, hit := range res.Hits {
		name, _ := hit.Fields[fieldName].(string)
		count, _ := hit.Fields[fieldVehicles].(float64)
		entries = append(entries, Entry{Name: name, Vehicles: int(count)})
	}
	return entries, nil
}

// entryDocs counts vehicles per make and per make/model pair. Blank names
// are skipped.
func entryDocs(vehicles []domain.Vehicle) []entryDoc {
	makes := make(map[string]int)
	models := make(map[[2]string]int)
	for _, v := range vehicles {
		mk := normalize(v.Make)
		if mk == "" {
			continue
		}
		makes[mk]++
		if md := normalize(v.Model); md != "" {
			models[[2]string{mk, md}]++
		}
	}

	docs := make([]entryDoc, 0, len(makes)+len(models))
	for mk, n := range makes {
		docs = append(docs, entryDoc{Kind: kindMake, Make: mk, Name: mk, Vehicles: n})
	}
	for key, n := range models {
		docs = append(docs, entryDoc{Kind: kindModel, Make: key[0], Name: key[1], Vehicles: n})
	}
	sort.Slice(docs, func(i, j int) bool {
		a, b := docs[i], docs[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Make != b.Make {
			return a.Make < b.Make
		}
		return a.Name < b.Name
	})
	return docs
}

func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
