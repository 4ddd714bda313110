package model

import (
	"context"

	"github.com/influx6/mgoquery"
	"gopkg.in/mgo.v2/bson"
)

//==============================================================================

// DataHook transforms a record payload around a write.
type DataHook func(ctx context.Context, data bson.M, opts mgoquery.QueryOptions) (bson.M, error)

// OptionsHook transforms the options of a read or delete before it runs.
type OptionsHook func(ctx context.Context, opts mgoquery.QueryOptions) (mgoquery.QueryOptions, error)

// RecordsHook transforms the records returned by a read.
type RecordsHook func(ctx context.Context, records []bson.M, opts mgoquery.QueryOptions) ([]bson.M, error)

// Hooks defines the lifecycle pipelines of a model. Each stage runs its
// functions in order, feeding the output of one into the next; the first
// error stops the operation.
type Hooks struct {
	BeforeAdd    []DataHook
	AfterAdd     []DataHook
	BeforeUpdate []DataHook
	AfterUpdate  []DataHook
	BeforeDelete []OptionsHook
	AfterDelete  []OptionsHook
	BeforeFind   []OptionsHook
	AfterFind    []DataHook
	BeforeSelect []OptionsHook
	AfterSelect  []RecordsHook
}

func runData(ctx context.Context, hooks []DataHook, data bson.M, opts mgoquery.QueryOptions) (bson.M, error) {
	var err error
	for _, hook := range hooks {
		if data, err = hook(ctx, data, opts); err != nil {
			return nil, err
		}
	}

	return data, nil
}

func runOptions(ctx context.Context, hooks []OptionsHook, opts mgoquery.QueryOptions) (mgoquery.QueryOptions, error) {
	var err error
	for _, hook := range hooks {
		if opts, err = hook(ctx, opts); err != nil {
			return opts, err
		}
	}

	return opts, nil
}

func runRecords(ctx context.Context, hooks []RecordsHook, records []bson.M, opts mgoquery.QueryOptions) ([]bson.M, error) {
	var err error
	for _, hook := range hooks {
		if records, err = hook(ctx, records, opts); err != nil {
			return nil, err
		}
	}

	return records, nil
}
