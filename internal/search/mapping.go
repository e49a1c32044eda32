package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve index mapping for node documents.
//
// Titles and paths get English stemming, values (mostly URLs) are split on
// punctuation without stemming, and account/slug are exact keywords.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	// --- Text fields (full-text searchable) ---

	titleFieldMapping := bleve.NewTextFieldMapping()
	titleFieldMapping.Analyzer = en.AnalyzerName
	titleFieldMapping.Store = true
	titleFieldMapping.IncludeTermVectors = true // For highlighting
	docMapping.AddFieldMappingsAt("title", titleFieldMapping)

	valueFieldMapping := bleve.NewTextFieldMapping()
	valueFieldMapping.Analyzer = simple.Name
	valueFieldMapping.Store = true
	valueFieldMapping.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("value", valueFieldMapping)

	pathFieldMapping := bleve.NewTextFieldMapping()
	pathFieldMapping.Analyzer = en.AnalyzerName
	pathFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("path", pathFieldMapping)

	// --- Keyword fields (exact match) ---

	accountFieldMapping := bleve.NewTextFieldMapping()
	accountFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("account", accountFieldMapping)

	slugFieldMapping := bleve.NewTextFieldMapping()
	slugFieldMapping.Analyzer = keyword.Name
	slugFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("slug", slugFieldMapping)

	idFieldMapping := bleve.NewTextFieldMapping()
	idFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("id", idFieldMapping)

	// --- Numeric and boolean fields ---

	depthFieldMapping := bleve.NewNumericFieldMapping()
	depthFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("depth", depthFieldMapping)

	leafFieldMapping := bleve.NewBooleanFieldMapping()
	leafFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("leaf", leafFieldMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}
