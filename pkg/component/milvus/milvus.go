// Package milvus wraps the Milvus v2 SDK client with the collection,
// insert, search, query and delete operations used by the chunk store.
package milvus

import (
	"context"
	"fmt"
	"strconv"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	"github.com/kart-io/quizmind/pkg/component/storage"
	milvusopts "github.com/kart-io/quizmind/pkg/options/milvus"
)

// VectorField is the name of the vector field in every collection.
const VectorField = "embedding"

// Client wraps the Milvus SDK client.
type Client struct {
	client *milvusclient.Client
	opts   *milvusopts.Options
}

var _ storage.Client = (*Client)(nil)

// New creates a new Milvus client.
func New(ctx context.Context, opts *milvusopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("milvus options is nil")
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address:  opts.Address,
		Username: opts.Username,
		Password: opts.Password,
		DBName:   opts.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}

	return &Client{client: c, opts: opts}, nil
}

// Name returns the name of the storage client.
func (c *Client) Name() string {
	return "milvus"
}

// Ping lists collections to verify the connection.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.client.ListCollections(ctx, milvusclient.NewListCollectionOption())
	return err
}

// Close closes the Milvus client connection.
func (c *Client) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.Timeout)
	defer cancel()
	return c.client.Close(ctx)
}

// RawClient returns the underlying Milvus client.
func (c *Client) RawClient() *milvusclient.Client {
	return c.client
}

// CollectionSchema defines the schema for a vector collection.
// The primary key is a caller-assigned VARCHAR field.
type CollectionSchema struct {
	Name        string
	Description string
	PrimaryKey  string
	PKMaxLen    int
	Dimension   int
	Metric      entity.MetricType
	MetaFields  []MetaField
}

// MetaField defines a scalar field in the collection.
type MetaField struct {
	Name     string
	DataType entity.FieldType
	MaxLen   int // For VARCHAR type
}

// EnsureCollection creates the collection and its vector index when missing,
// and loads it into memory. An existing collection must match Dimension.
func (c *Client) EnsureCollection(ctx context.Context, schema *CollectionSchema) error {
	exists, err := c.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(schema.Name))
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if exists {
		if err := c.checkDimension(ctx, schema); err != nil {
			return err
		}
	} else if err := c.createCollection(ctx, schema); err != nil {
		return err
	}

	loadTask, err := c.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(schema.Name))
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for collection loading: %w", err)
	}
	return nil
}

func (c *Client) checkDimension(ctx context.Context, schema *CollectionSchema) error {
	coll, err := c.client.DescribeCollection(ctx, milvusclient.NewDescribeCollectionOption(schema.Name))
	if err != nil {
		return fmt.Errorf("failed to describe collection: %w", err)
	}
	for _, f := range coll.Schema.Fields {
		if f.Name != VectorField {
			continue
		}
		dim, err := f.GetDim()
		if err != nil {
			return fmt.Errorf("failed to read vector dimension: %w", err)
		}
		if int(dim) != schema.Dimension {
			return fmt.Errorf("collection %s has dimension %d, embedding provider produces %d",
				schema.Name, dim, schema.Dimension)
		}
	}
	return nil
}

func (c *Client) createCollection(ctx context.Context, schema *CollectionSchema) error {
	collSchema := entity.NewSchema().
		WithName(schema.Name).
		WithDescription(schema.Description).
		WithAutoID(false)

	collSchema.WithField(
		entity.NewField().
			WithName(schema.PrimaryKey).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(int64(schema.PKMaxLen)).
			WithIsPrimaryKey(true),
	)

	collSchema.WithField(
		entity.NewField().
			WithName(VectorField).
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(schema.Dimension)),
	)

	for _, f := range schema.MetaFields {
		field := entity.NewField().
			WithName(f.Name).
			WithDataType(f.DataType)
		if f.DataType == entity.FieldTypeVarChar && f.MaxLen > 0 {
			field.WithMaxLength(int64(f.MaxLen))
		}
		collSchema.WithField(field)
	}

	if err := c.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(schema.Name, collSchema)); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	metric := schema.Metric
	if metric == "" {
		metric = entity.COSINE
	}
	idx := index.NewIvfFlatIndex(metric, c.opts.NList)
	createIdxTask, err := c.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(schema.Name, VectorField, idx))
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	if err := createIdxTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for index creation: %w", err)
	}
	return nil
}

// Insert inserts column-based rows and flushes so they are visible to the
// next search.
func (c *Client) Insert(ctx context.Context, collectionName string, columns ...column.Column) error {
	if _, err := c.client.Insert(ctx, milvusclient.NewColumnBasedInsertOption(collectionName, columns...)); err != nil {
		return fmt.Errorf("failed to insert data: %w", err)
	}

	flushTask, err := c.client.Flush(ctx, milvusclient.NewFlushOption(collectionName))
	if err != nil {
		return fmt.Errorf("failed to flush collection: %w", err)
	}
	if err := flushTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for flush: %w", err)
	}
	return nil
}

// Row is one result row: the search score (0 for queries) and the requested
// output fields keyed by name.
type Row struct {
	Score  float32
	Fields map[string]any
}

// Search performs a filtered vector similarity search.
func (c *Client) Search(ctx context.Context, collectionName string, vector []float32, topK int, filter string, outputFields []string) ([]Row, error) {
	opt := milvusclient.NewSearchOption(collectionName, topK, []entity.Vector{entity.FloatVector(vector)}).
		WithANNSField(VectorField).
		WithSearchParam("nprobe", strconv.Itoa(c.opts.NProbe)).
		WithOutputFields(outputFields...)
	if filter != "" {
		opt = opt.WithFilter(filter)
	}

	results, err := c.client.Search(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	if len(results) == 0 {
		return []Row{}, nil
	}

	rs := results[0]
	rows := make([]Row, rs.ResultCount)
	for i := range rows {
		rows[i] = Row{Score: rs.Scores[i], Fields: make(map[string]any, len(rs.Fields))}
	}
	if err := fillRows(rows, rs.Fields); err != nil {
		return nil, err
	}
	return rows, nil
}

// Query returns all rows matching a filter expression.
func (c *Client) Query(ctx context.Context, collectionName, filter string, outputFields []string) ([]Row, error) {
	rs, err := c.client.Query(ctx, milvusclient.NewQueryOption(collectionName).
		WithFilter(filter).
		WithOutputFields(outputFields...))
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	if len(rs.Fields) == 0 {
		return []Row{}, nil
	}

	rows := make([]Row, rs.Fields[0].Len())
	for i := range rows {
		rows[i] = Row{Fields: make(map[string]any, len(rs.Fields))}
	}
	if err := fillRows(rows, rs.Fields); err != nil {
		return nil, err
	}
	return rows, nil
}

func fillRows(rows []Row, fields []column.Column) error {
	for _, field := range fields {
		if field.Len() < len(rows) {
			return fmt.Errorf("column %s has %d values, expected %d", field.Name(), field.Len(), len(rows))
		}
		for i := range rows {
			switch col := field.(type) {
			case *column.ColumnVarChar:
				rows[i].Fields[col.Name()] = col.Data()[i]
			case *column.ColumnInt64:
				rows[i].Fields[col.Name()] = col.Data()[i]
			case *column.ColumnJSONBytes:
				rows[i].Fields[col.Name()] = col.Data()[i]
			case *column.ColumnFloatVector:
				rows[i].Fields[col.Name()] = []float32(col.Data()[i])
			default:
				v, err := field.Get(i)
				if err != nil {
					return fmt.Errorf("failed to read column %s: %w", field.Name(), err)
				}
				rows[i].Fields[field.Name()] = v
			}
		}
	}
	return nil
}

// Delete deletes rows matching a filter expression.
func (c *Client) Delete(ctx context.Context, collectionName, filter string) (int64, error) {
	res, err := c.client.Delete(ctx, milvusclient.NewDeleteOption(collectionName).WithExpr(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to delete by expression: %w", err)
	}
	return res.DeleteCount, nil
}

// DropCollection drops a collection.
func (c *Client) DropCollection(ctx context.Context, collectionName string) error {
	if err := c.client.DropCollection(ctx, milvusclient.NewDropCollectionOption(collectionName)); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}

// GetCollectionStats returns the number of entities in a collection.
func (c *Client) GetCollectionStats(ctx context.Context, collectionName string) (int64, error) {
	stats, err := c.client.GetCollectionStats(ctx, milvusclient.NewGetCollectionStatsOption(collectionName))
	if err != nil {
		return 0, fmt.Errorf("failed to get collection stats: %w", err)
	}

	if val, ok := stats["row_count"]; ok {
		return strconv.ParseInt(val, 10, 64)
	}
	return 0, nil
}
