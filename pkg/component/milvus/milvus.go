// Package milvus wraps the Milvus v2 SDK for storing and searching text
// chunk vectors.
package milvus

import (
	"context"
	"fmt"
	"strconv"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	milvusopts "github.com/kart-io/nphies-rag/pkg/options/milvus"
)

// Field names of a chunk collection.
const (
	FieldID        = "id"
	FieldEmbedding = "embedding"
	FieldText      = "chunk_text"
	FieldOffset    = "source_offset"
)

// maxVarCharLen is the largest VARCHAR length Milvus accepts.
const maxVarCharLen = 65535

// Client wraps the Milvus SDK client.
type Client struct {
	client *milvusclient.Client
	opts   *milvusopts.Options
}

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

	return &Client{
		client: c,
		opts:   opts,
	}, nil
}

// Close closes the Milvus client connection.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Close(ctx)
}

// CollectionSchema defines the schema for a chunk collection.
type CollectionSchema struct {
	Name        string
	Description string
	Dimension   int
	// TextMaxLen is the VARCHAR capacity in bytes for chunk text.
	TextMaxLen int
}

// RecreateCollection drops name if it exists and creates an empty chunk
// collection with an IVF_FLAT cosine index, loaded and ready to search.
func (c *Client) RecreateCollection(ctx context.Context, schema *CollectionSchema) error {
	exists, err := c.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(schema.Name))
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		if err := c.DropCollection(ctx, schema.Name); err != nil {
			return err
		}
	}

	textLen := schema.TextMaxLen
	if textLen <= 0 || textLen > maxVarCharLen {
		textLen = maxVarCharLen
	}

	collSchema := entity.NewSchema().
		WithName(schema.Name).
		WithDescription(schema.Description).
		WithAutoID(true).
		WithField(entity.NewField().
			WithName(FieldID).
			WithDataType(entity.FieldTypeInt64).
			WithIsPrimaryKey(true).
			WithIsAutoID(true)).
		WithField(entity.NewField().
			WithName(FieldEmbedding).
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(schema.Dimension))).
		WithField(entity.NewField().
			WithName(FieldText).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(int64(textLen))).
		WithField(entity.NewField().
			WithName(FieldOffset).
			WithDataType(entity.FieldTypeInt64))

	if err := c.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(schema.Name, collSchema)); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx := index.NewIvfFlatIndex(entity.COSINE, 128)
	createIdxTask, err := c.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(schema.Name, FieldEmbedding, idx))
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	if err := createIdxTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for index creation: %w", err)
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

// ChunkRow is one chunk to insert.
type ChunkRow struct {
	Text      string
	Offset    int64
	Embedding []float32
}

// InsertChunks inserts rows and flushes so they are immediately searchable.
func (c *Client) InsertChunks(ctx context.Context, collectionName string, rows []ChunkRow) error {
	if len(rows) == 0 {
		return nil
	}

	dim := len(rows[0].Embedding)
	texts := make([]string, len(rows))
	offsets := make([]int64, len(rows))
	vectors := make([][]float32, len(rows))
	for i, r := range rows {
		if len(r.Embedding) != dim {
			return fmt.Errorf("row %d has dimension %d, want %d", i, len(r.Embedding), dim)
		}
		texts[i] = r.Text
		offsets[i] = r.Offset
		vectors[i] = r.Embedding
	}

	_, err := c.client.Insert(ctx, milvusclient.NewColumnBasedInsertOption(collectionName,
		column.NewColumnFloatVector(FieldEmbedding, dim, vectors),
		column.NewColumnVarChar(FieldText, texts),
		column.NewColumnInt64(FieldOffset, offsets),
	))
	if err != nil {
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

// ChunkHit is a single search result. Score is the cosine similarity.
type ChunkHit struct {
	Text   string
	Offset int64
	Score  float32
}

// SearchChunks returns up to topK chunks nearest to vector.
func (c *Client) SearchChunks(ctx context.Context, collectionName string, vector []float32, topK int) ([]ChunkHit, error) {
	results, err := c.client.Search(ctx, milvusclient.NewSearchOption(
		collectionName,
		topK,
		[]entity.Vector{entity.FloatVector(vector)},
	).WithANNSField(FieldEmbedding).
		WithSearchParam("nprobe", strconv.Itoa(c.opts.NProbe)).
		WithOutputFields(FieldText, FieldOffset))
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	if len(results) == 0 {
		return []ChunkHit{}, nil
	}

	rs := results[0]
	hits := make([]ChunkHit, rs.ResultCount)
	for i := 0; i < rs.ResultCount; i++ {
		hits[i].Score = rs.Scores[i]
	}
	for _, field := range rs.Fields {
		switch col := field.(type) {
		case *column.ColumnVarChar:
			if col.Name() == FieldText {
				for i := range hits {
					hits[i].Text = col.Data()[i]
				}
			}
		case *column.ColumnInt64:
			if col.Name() == FieldOffset {
				for i := range hits {
					hits[i].Offset = col.Data()[i]
				}
			}
		}
	}

	return hits, nil
}

// DropCollection drops a collection.
func (c *Client) DropCollection(ctx context.Context, collectionName string) error {
	if err := c.client.DropCollection(ctx, milvusclient.NewDropCollectionOption(collectionName)); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}

// Count returns the number of entities in a collection.
func (c *Client) Count(ctx context.Context, collectionName string) (int64, error) {
	stats, err := c.client.GetCollectionStats(ctx, milvusclient.NewGetCollectionStatsOption(collectionName))
	if err != nil {
		return 0, fmt.Errorf("failed to get collection stats: %w", err)
	}

	if val, ok := stats["row_count"]; ok {
		return strconv.ParseInt(val, 10, 64)
	}
	return 0, nil
}
