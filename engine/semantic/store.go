// Package semantic is the sole owner of all Qdrant operations: collection
// lifecycle, chunk-embedding upserts, per-document deletes, and k-NN search.
package semantic

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// VectorStore holds the Qdrant connection for one collection.
type VectorStore struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
}

// New creates a VectorStore connected to Qdrant at the given gRPC address.
func New(addr string, collection string) (*VectorStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &VectorStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// Close closes the underlying gRPC connection.
func (v *VectorStore) Close() error {
	return v.conn.Close()
}

// EnsureCollection creates the collection if it doesn't exist.
func (v *VectorStore) EnsureCollection(ctx context.Context, dims int) error {
	list, err := v.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == v.collection {
			return nil
		}
	}

	_, err = v.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: v.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", v.collection, err)
	}
	return nil
}

// Upsert stores chunk embeddings. Point IDs derive from (doc id, ordinal) so
// the write is idempotent per chunk.
func (v *VectorStore) Upsert(ctx context.Context, records []VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(records))
	for i, r := range records {
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(r.DocID, r.Ordinal)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: r.Embedding},
				},
			},
			Payload: map[string]*pb.Value{
				"content": {Kind: &pb.Value_StringValue{StringValue: r.Text}},
				"doc_id":  {Kind: &pb.Value_StringValue{StringValue: r.DocID}},
				"ordinal": {Kind: &pb.Value_IntegerValue{IntegerValue: int64(r.Ordinal)}},
				"section": {Kind: &pb.Value_StringValue{StringValue: r.Section}},
				"page":    {Kind: &pb.Value_IntegerValue{IntegerValue: int64(r.Page)}},
			},
		}
	}

	wait := true
	_, err := v.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert %d points: %w", len(records), err)
	}
	return nil
}

// DeleteByDoc removes every point belonging to a document. This is the
// vector half of ingestion rollback; deleting an absent document is a no-op,
// which keeps the rollback path idempotent.
func (v *VectorStore) DeleteByDoc(ctx context.Context, docID string) error {
	wait := true
	_, err := v.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: &pb.Filter{
					Must: []*pb.Condition{docMatch(docID)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: delete by doc %s: %w", docID, err)
	}
	return nil
}

// CountByDoc returns the number of points stored for a document. Used to
// audit the chunk/embedding sync invariant.
func (v *VectorStore) CountByDoc(ctx context.Context, docID string) (int, error) {
	exact := true
	resp, err := v.points.Count(ctx, &pb.CountPoints{
		CollectionName: v.collection,
		Exact:          &exact,
		Filter: &pb.Filter{
			Must: []*pb.Condition{docMatch(docID)},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("semantic: count by doc %s: %w", docID, err)
	}
	return int(resp.GetResult().GetCount()), nil
}

// Search performs k-NN similarity search over all chunks.
func (v *VectorStore) Search(ctx context.Context, embedding []float32, topK int) ([]SearchResult, error) {
	resp, err := v.points.Search(ctx, &pb.SearchPoints{
		CollectionName: v.collection,
		Vector:         embedding,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %w", err)
	}

	results := make([]SearchResult, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		sr := SearchResult{Score: r.GetScore()}
		for k, val := range r.GetPayload() {
			switch k {
			case "content":
				sr.Text = val.GetStringValue()
			case "doc_id":
				sr.DocID = val.GetStringValue()
			case "ordinal":
				sr.Ordinal = int(val.GetIntegerValue())
			case "section":
				sr.Section = val.GetStringValue()
			case "page":
				sr.Page = int(val.GetIntegerValue())
			}
		}
		results[i] = sr
	}
	return results, nil
}

func docMatch(docID string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: "doc_id",
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: docID},
				},
			},
		},
	}
}
