package nl2query

import (
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type Kind string

const (
	KindNone      Kind = "none"
	KindSQL       Kind = "sql"
	KindFind      Kind = "find"
	KindAggregate Kind = "aggregate"
)

// Query is the closed set of query shapes the pipeline can produce. NoQuery
// marks that nothing executable was derived and must never reach an engine.
type Query interface {
	Kind() Kind
	sealed()
}

type SQL struct {
	Text string
}

type FindFilter struct {
	Filter     bson.D
	Projection bson.D
}

type AggregatePipeline struct {
	Stages []bson.D
}

type NoQuery struct{}

func (SQL) Kind() Kind               { return KindSQL }
func (FindFilter) Kind() Kind        { return KindFind }
func (AggregatePipeline) Kind() Kind { return KindAggregate }
func (NoQuery) Kind() Kind           { return KindNone }

func (SQL) sealed()               {}
func (FindFilter) sealed()        {}
func (AggregatePipeline) sealed() {}
func (NoQuery) sealed()           {}

func IsNone(q Query) bool {
	return q == nil || q.Kind() == KindNone
}

// Document returns the query in the {find, projection} / {aggregate} shape the
// model was asked to produce. SQL and NoQuery have no document form.
func Document(q Query) (bson.D, bool) {
	switch typed := q.(type) {
	case FindFilter:
		doc := bson.D{{Key: "find", Value: nonNilDoc(typed.Filter)}}
		if typed.Projection != nil {
			doc = append(doc, bson.E{Key: "projection", Value: typed.Projection})
		}
		return doc, true
	case AggregatePipeline:
		stages := make(bson.A, 0, len(typed.Stages))
		for _, stage := range typed.Stages {
			stages = append(stages, stage)
		}
		return bson.D{{Key: "aggregate", Value: stages}}, true
	default:
		return nil, false
	}
}

// Display renders the query for the "show generated query" view.
func Display(q Query) string {
	switch typed := q.(type) {
	case SQL:
		return typed.Text
	case FindFilter, AggregatePipeline:
		doc, _ := Document(typed)
		out, err := bson.MarshalExtJSONIndent(doc, false, false, "", "  ")
		if err != nil {
			return fmt.Sprintf("%v", doc)
		}
		return string(out)
	default:
		return ""
	}
}

// Encode produces a JSON object tagged with the query kind, suitable for API
// payloads. Document values use relaxed Extended JSON.
func Encode(q Query) (json.RawMessage, error) {
	if q == nil {
		q = NoQuery{}
	}
	tagged := bson.D{{Key: "kind", Value: string(q.Kind())}}
	switch typed := q.(type) {
	case SQL:
		tagged = append(tagged, bson.E{Key: "text", Value: typed.Text})
	case FindFilter, AggregatePipeline:
		doc, _ := Document(typed)
		tagged = append(tagged, doc...)
	}
	out, err := bson.MarshalExtJSON(tagged, false, false)
	if err != nil {
		return nil, fmt.Errorf("encode %s query: %w", q.Kind(), err)
	}
	return json.RawMessage(out), nil
}

func nonNilDoc(doc bson.D) bson.D {
	if doc == nil {
		return bson.D{}
	}
	return doc
}
