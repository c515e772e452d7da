package nl2query

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
)

const coercionPrefix = "query structure not recognized"

// Classify maps a decoded document onto a query shape:
//
//	{"find": {...}, "projection": {...}}  -> FindFilter
//	{"aggregate": [{...}, ...]}           -> AggregatePipeline
//	any other non-empty document          -> FindFilter over the whole document
//
// A find that is not an object or an aggregate that is not an array of stage
// objects counts as "any other document" and is coerced the same way. Only
// empty documents yield NoQuery. Field names are not checked against the
// schema.
func Classify(doc bson.D, notices []Notice) (Query, []Notice) {
	if len(doc) == 0 {
		return NoQuery{}, append(notices, Notice{Level: NoticeInfo, Message: "model could not generate a query for this question"})
	}

	findValue, hasFind := lookup(doc, "find")
	aggregateValue, hasAggregate := lookup(doc, "aggregate")

	filter, findOK := asDocument(findValue)
	stages, aggregateOK := asStages(aggregateValue)

	switch {
	case hasFind && findOK:
		if hasAggregate {
			notices = append(notices, Notice{Level: NoticeWarning, Message: "response contained both find and aggregate; using find"})
		}
		query := FindFilter{Filter: filter}
		if projectionValue, ok := lookup(doc, "projection"); ok {
			projection, isDoc := asDocument(projectionValue)
			if isDoc {
				query.Projection = projection
			} else if projectionValue != nil {
				notices = append(notices, Notice{Level: NoticeWarning, Message: "ignoring projection that is not an object"})
			}
		}
		return query, notices
	case hasAggregate && aggregateOK:
		return AggregatePipeline{Stages: stages}, notices
	}

	reason := ""
	switch {
	case hasFind:
		reason = " (find must be an object)"
	case hasAggregate:
		reason = " (aggregate must be an array of stage objects)"
	}
	notices = append(notices, Notice{
		Level:   NoticeWarning,
		Message: fmt.Sprintf("%s%s: %s; using it as a find filter", coercionPrefix, reason, relaxedJSON(doc)),
	})
	return FindFilter{Filter: doc}, notices
}

func lookup(doc bson.D, key string) (any, bool) {
	for _, elem := range doc {
		if elem.Key == key {
			return elem.Value, true
		}
	}
	return nil, false
}

func asDocument(value any) (bson.D, bool) {
	switch typed := value.(type) {
	case bson.D:
		return typed, true
	case bson.M:
		doc := make(bson.D, 0, len(typed))
		for key, v := range typed {
			doc = append(doc, bson.E{Key: key, Value: v})
		}
		return doc, true
	default:
		return nil, false
	}
}

func asStages(value any) ([]bson.D, bool) {
	var items []any
	switch typed := value.(type) {
	case bson.A:
		items = typed
	case []any:
		items = typed
	default:
		return nil, false
	}
	stages := make([]bson.D, 0, len(items))
	for _, item := range items {
		stage, ok := asDocument(item)
		if !ok {
			return nil, false
		}
		stages = append(stages, stage)
	}
	return stages, true
}

func relaxedJSON(doc bson.D) string {
	out, err := bson.MarshalExtJSON(doc, false, false)
	if err != nil {
		return fmt.Sprintf("%v", doc)
	}
	return string(out)
}
