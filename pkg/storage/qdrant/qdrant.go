// Package qdrant provides a storage.Driver backed by a Qdrant server. Turns
// and facts live in two collections configured for cosine distance; every
// non-vector field is kept in the point payload.
package qdrant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/papercomputeco/engram/pkg/logger"
	"github.com/papercomputeco/engram/pkg/storage"
)

const (
	// DefaultPort is Qdrant's gRPC port.
	DefaultPort = 6334

	// scrollPage is the page size used when listing a collection.
	scrollPage = 256
)

// Config holds configuration for the Qdrant driver.
type Config struct {
	// Target is the gRPC endpoint as "host" or "host:port".
	Target string

	// APIKey authenticates against Qdrant Cloud. Optional.
	APIKey string

	// UseTLS enables TLS on the gRPC connection.
	UseTLS bool

	// CollectionPrefix namespaces the two collections, e.g. "engram" gives
	// "engram_mem_source" and "engram_facts".
	CollectionPrefix string

	// Dimensions is the embedding dimensionality. Required.
	Dimensions uint
}

// Driver implements storage.Driver using Qdrant.
type Driver struct {
	client     *qdrant.Client
	sources    string
	facts      string
	dimensions int
	ids        *idGenerator
	logger     *slog.Logger
}

// NewDriver connects to Qdrant and ensures both collections exist.
func NewDriver(ctx context.Context, c Config, log *slog.Logger) (*Driver, error) {
	if c.Target == "" {
		return nil, errors.New("qdrant target is required")
	}
	if c.Dimensions == 0 {
		return nil, errors.New("qdrant embedding dimensions cannot be 0, must be configured")
	}

	host, port, err := splitTarget(c.Target)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: c.APIKey,
		UseTLS: c.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant: %w", err)
	}

	prefix := c.CollectionPrefix
	if prefix == "" {
		prefix = "engram"
	}

	d := &Driver{
		client:     client,
		sources:    prefix + "_mem_source",
		facts:      prefix + "_facts",
		dimensions: int(c.Dimensions),
		ids:        newIDGenerator(),
		logger:     logger.OrNop(log),
	}

	for _, name := range []string{d.sources, d.facts} {
		if err := d.ensureCollection(ctx, name); err != nil {
			client.Close()
			return nil, err
		}
	}

	d.logger.Info("qdrant memory store initialized",
		"host", host,
		"port", port,
		"sources_collection", d.sources,
		"facts_collection", d.facts,
		"dimensions", c.Dimensions,
	)

	return d, nil
}

func splitTarget(target string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		// No port present.
		return target, DefaultPort, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid qdrant port %q: %w", portStr, err)
	}
	return host, port, nil
}

func (d *Driver) ensureCollection(ctx context.Context, name string) error {
	exists, err := d.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", name, err)
	}
	if exists {
		return nil
	}

	err = d.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(d.dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", name, err)
	}
	return nil
}

// InsertSource upserts a new point into the turns collection.
func (d *Driver) InsertSource(ctx context.Context, s *storage.Source) (int64, error) {
	if err := s.Validate(d.dimensions); err != nil {
		return 0, err
	}

	id := d.ids.next()
	payload := map[string]any{
		"session_id": s.SessionID,
		"turn":       s.Turn,
		"speaker":    s.Speaker,
		"content":    s.Content,
		"created_at": time.Now().UTC().UnixNano(),
	}
	if len(s.ToolCalls) > 0 {
		payload["tool_calls"] = string(s.ToolCalls)
	}
	if len(s.ToolResults) > 0 {
		payload["tool_results"] = string(s.ToolResults)
	}

	if err := d.upsert(ctx, d.sources, id, s.Embedding, payload); err != nil {
		return 0, fmt.Errorf("inserting source: %w", err)
	}

	d.logger.Debug("inserted source", "source_id", id, "session_id", s.SessionID)
	return id, nil
}

// InsertFact upserts a new point into the facts collection.
func (d *Driver) InsertFact(ctx context.Context, f *storage.Fact) (int64, error) {
	if err := f.Validate(d.dimensions); err != nil {
		return 0, err
	}

	sourceIDs := make([]any, len(f.SourceIDs))
	for i, sid := range f.SourceIDs {
		sourceIDs[i] = sid
	}

	id := d.ids.next()
	payload := map[string]any{
		"fact_text":  f.Text,
		"source_ids": sourceIDs,
		"confidence": f.Confidence,
		"created_at": time.Now().UTC().UnixNano(),
	}
	if f.Type != "" {
		payload["fact_type"] = f.Type
	}
	if f.Domain != "" {
		payload["domain"] = f.Domain
	}

	if err := d.upsert(ctx, d.facts, id, f.Embedding, payload); err != nil {
		return 0, fmt.Errorf("inserting fact: %w", err)
	}

	d.logger.Debug("inserted fact", "fact_id", id, "source_ids", len(sourceIDs))
	return id, nil
}

func (d *Driver) upsert(ctx context.Context, collection string, id int64, embedding []float32, payload map[string]any) error {
	values, err := qdrant.TryValueMap(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidRecord, err)
	}

	wait := true
	_, err = d.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           &wait,
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewIDNum(uint64(id)),
				Vectors: qdrant.NewVectors(embedding...),
				Payload: values,
			},
		},
	})
	return err
}

// QuerySources runs a nearest-neighbor query over the turns collection.
func (d *Driver) QuerySources(ctx context.Context, embedding []float32, topK int) ([]storage.ScoredSource, error) {
	points, err := d.query(ctx, d.sources, embedding, topK)
	if err != nil {
		return nil, fmt.Errorf("querying sources: %w", err)
	}

	results := make([]storage.ScoredSource, 0, len(points))
	for _, p := range points {
		results = append(results, storage.ScoredSource{
			Source:     sourceFromPayload(p.GetId(), p.GetPayload()),
			Similarity: float64(p.GetScore()),
		})
	}
	return storage.RankSources(results, topK), nil
}

// QueryFacts runs a nearest-neighbor query over the facts collection.
func (d *Driver) QueryFacts(ctx context.Context, embedding []float32, topK int) ([]storage.ScoredFact, error) {
	points, err := d.query(ctx, d.facts, embedding, topK)
	if err != nil {
		return nil, fmt.Errorf("querying facts: %w", err)
	}

	results := make([]storage.ScoredFact, 0, len(points))
	for _, p := range points {
		results = append(results, storage.ScoredFact{
			Fact:       factFromPayload(p.GetId(), p.GetPayload()),
			Similarity: float64(p.GetScore()),
		})
	}
	return storage.RankFacts(results, topK), nil
}

func (d *Driver) query(ctx context.Context, collection string, embedding []float32, topK int) ([]*qdrant.ScoredPoint, error) {
	if err := storage.CheckQuery(embedding, d.dimensions); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, nil
	}

	limit := uint64(topK)
	return d.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
}

// ListSources scrolls the turns collection in ID order.
func (d *Driver) ListSources(ctx context.Context, sessionID string) ([]storage.Source, error) {
	var filter *qdrant.Filter
	if sessionID != "" {
		filter = &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("session_id", sessionID)},
		}
	}

	out := []storage.Source{}
	err := d.scroll(ctx, d.sources, filter, func(p *qdrant.RetrievedPoint) {
		out = append(out, sourceFromPayload(p.GetId(), p.GetPayload()))
	})
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	return out, nil
}

// ListFacts scrolls the facts collection in ID order.
func (d *Driver) ListFacts(ctx context.Context) ([]storage.Fact, error) {
	out := []storage.Fact{}
	err := d.scroll(ctx, d.facts, nil, func(p *qdrant.RetrievedPoint) {
		out = append(out, factFromPayload(p.GetId(), p.GetPayload()))
	})
	if err != nil {
		return nil, fmt.Errorf("listing facts: %w", err)
	}
	return out, nil
}

func (d *Driver) scroll(ctx context.Context, collection string, filter *qdrant.Filter, fn func(*qdrant.RetrievedPoint)) error {
	limit := uint32(scrollPage)
	var offset *qdrant.PointId

	for {
		points, next, err := d.client.ScrollAndOffset(ctx, &qdrant.ScrollPoints{
			CollectionName: collection,
			Filter:         filter,
			Offset:         offset,
			Limit:          &limit,
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return err
		}
		for _, p := range points {
			fn(p)
		}
		if next == nil || len(points) == 0 {
			return nil
		}
		offset = next
	}
}

// Clear drops and recreates both collections.
func (d *Driver) Clear(ctx context.Context) error {
	for _, name := range []string{d.sources, d.facts} {
		if err := d.client.DeleteCollection(ctx, name); err != nil {
			return fmt.Errorf("deleting collection %s: %w", name, err)
		}
		if err := d.ensureCollection(ctx, name); err != nil {
			return err
		}
	}
	d.logger.Info("cleared qdrant memory store")
	return nil
}

// Close closes the gRPC connection.
func (d *Driver) Close() error {
	return d.client.Close()
}

func sourceFromPayload(id *qdrant.PointId, payload map[string]*qdrant.Value) storage.Source {
	src := storage.Source{
		ID:        int64(id.GetNum()),
		SessionID: payload["session_id"].GetStringValue(),
		Turn:      int(payload["turn"].GetIntegerValue()),
		Speaker:   payload["speaker"].GetStringValue(),
		Content:   payload["content"].GetStringValue(),
		CreatedAt: time.Unix(0, payload["created_at"].GetIntegerValue()).UTC(),
	}
	if v := payload["tool_calls"].GetStringValue(); v != "" {
		src.ToolCalls = json.RawMessage(v)
	}
	if v := payload["tool_results"].GetStringValue(); v != "" {
		src.ToolResults = json.RawMessage(v)
	}
	return src
}

func factFromPayload(id *qdrant.PointId, payload map[string]*qdrant.Value) storage.Fact {
	fact := storage.Fact{
		ID:         int64(id.GetNum()),
		Text:       payload["fact_text"].GetStringValue(),
		SourceIDs:  []int64{},
		Type:       payload["fact_type"].GetStringValue(),
		Domain:     payload["domain"].GetStringValue(),
		Confidence: payload["confidence"].GetDoubleValue(),
		CreatedAt:  time.Unix(0, payload["created_at"].GetIntegerValue()).UTC(),
	}
	for _, v := range payload["source_ids"].GetListValue().GetValues() {
		fact.SourceIDs = append(fact.SourceIDs, v.GetIntegerValue())
	}
	return fact
}

var _ storage.Driver = (*Driver)(nil)
