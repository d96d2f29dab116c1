package qdrantDB

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/mferrand/ragapi/internal/config"
	"github.com/mferrand/ragapi/internal/domain/ragModel"
	"github.com/mferrand/ragapi/internal/rag/vectorDB"
	"github.com/mferrand/ragapi/pkg/logger_i"
	"github.com/qdrant/go-client/qdrant"
)

type ClientHolder struct {
	qObj       *qdrant.Client
	collection string
	logger     *logger_i.Logger

	// collection-readiness flag: the exists/create round-trip runs at most
	// once per process
	readyMu sync.Mutex
	ready   bool
}

func NewClient(ctx context.Context) (*ClientHolder, error) {
	logger := logger_i.NewLogger("Qdrant")

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:     config.QdrantHost,
		Port:     config.QdrantGrpcPort,
		UseTLS:   config.QdrantUseTLS,
		PoolSize: uint(config.QdrantPoolSize),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant client: %w", err)
	}

	holder := &ClientHolder{
		qObj:       client,
		collection: config.QdrantCollection,
		logger:     logger,
	}
	go holder.closeOnDone(ctx)
	return holder, nil
}

func (db *ClientHolder) closeOnDone(ctx context.Context) {
	<-ctx.Done()
	db.logger.Info("Shutting down Qdrant")
	if err := db.qObj.Close(); err != nil {
		db.logger.Error("could not close Qdrant", "error", err)
	}
}

func (db *ClientHolder) EnsureCollection(ctx context.Context, dimension int) error {
	db.readyMu.Lock()
	defer db.readyMu.Unlock()
	if db.ready {
		return nil
	}

	exists, err := db.qObj.CollectionExists(ctx, db.collection)
	if err != nil {
		return fmt.Errorf("%w: collection check: %v", ragModel.ErrRetrieval, err)
	}
	if !exists {
		err = db.qObj.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: db.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("%w: collection create: %v", ragModel.ErrRetrieval, err)
		}
		db.logger.Info("collection created", "name", db.collection, "dimension", dimension)
	} else {
		db.logger.Info("collection already exists", "name", db.collection)
	}
	db.ready = true
	return nil
}

// Upsert writes one point per (chunk, vector) pair. Point ids are freshly
// generated uuids, never derived from content, so re-ingesting a document
// can never collide with live points.
func (db *ClientHolder) Upsert(ctx context.Context, chunks []ragModel.Chunk, vectors [][]float32, documentID string) (int, error) {
	if len(chunks) != len(vectors) {
		return 0, fmt.Errorf("mismatch: got %d chunks but %d vectors", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, chunk := range chunks {
		refs := make([]any, len(chunk.ImageRefs))
		for j, r := range chunk.ImageRefs {
			refs[j] = r
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(uuid.New().String()),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(map[string]any{
				"document_id": documentID,
				"title":       chunk.Title,
				"page":        chunk.Page,
				"content":     chunk.Content,
				"chunk_index": chunk.ChunkIndex,
				"image_refs":  refs,
			}),
		}
	}

	_, err := db.qObj.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: db.collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant upsert failed: %w", err)
	}
	return len(points), nil
}

// Search over-fetches max(topK*3, 20) candidates with vectors when
// diversity reranking is requested, then runs MMR down to topK. Without
// diversity it fetches exactly topK and skips vector transfer.
func (db *ClientHolder) Search(ctx context.Context, query vectorDB.SearchQuery) ([]ragModel.RetrievalCandidate, error) {
	loggr := db.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	fetchK := query.TopK
	if query.WantDiversity {
		fetchK = query.TopK * 3
		if fetchK < 20 {
			fetchK = 20
		}
	}

	q := &qdrant.QueryPoints{
		CollectionName: db.collection,
		Query:          qdrant.NewQuery(query.Vector...),
		Limit:          qdrant.PtrOf(uint64(fetchK)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(query.WantDiversity),
	}
	if len(query.DocumentIDs) > 0 {
		q.Filter = &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatchKeywords("document_id", query.DocumentIDs...),
			},
		}
	}
	if query.MinScore > 0 {
		q.ScoreThreshold = qdrant.PtrOf(query.MinScore)
	}

	hits, err := db.qObj.Query(ctx, q)
	if err != nil {
		loggr.Error("Error querying Qdrant", "error", err)
		return nil, fmt.Errorf("%w: %v", ragModel.ErrRetrieval, err)
	}

	candidates := make([]ragModel.RetrievalCandidate, 0, len(hits))
	for _, hit := range hits {
		candidates = append(candidates, candidateFromPoint(hit, query.WantDiversity))
	}

	if query.WantDiversity && len(candidates) > query.TopK {
		loggr.Debug("MMR rerank", "candidates", len(candidates), "topK", query.TopK)
		candidates = vectorDB.RerankMMR(candidates, query.TopK, query.MMRLambda)
	}
	if len(candidates) > query.TopK {
		candidates = candidates[:query.TopK]
	}
	return candidates, nil
}

func (db *ClientHolder) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := db.qObj.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: db.collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("document_id", documentID),
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("%w: delete by document: %v", ragModel.ErrRetrieval, err)
	}
	db.logger.Debug("deleted points", "document_id", documentID)
	return nil
}

func candidateFromPoint(hit *qdrant.ScoredPoint, withVector bool) ragModel.RetrievalCandidate {
	payload := hit.GetPayload()

	var refs []string
	if list := payload["image_refs"].GetListValue(); list != nil {
		for _, v := range list.GetValues() {
			if s := v.GetStringValue(); s != "" {
				refs = append(refs, s)
			}
		}
	}

	c := ragModel.RetrievalCandidate{
		DocumentID: payload["document_id"].GetStringValue(),
		Title:      payload["title"].GetStringValue(),
		Page:       int(payload["page"].GetIntegerValue()),
		Content:    payload["content"].GetStringValue(),
		ChunkIndex: int(payload["chunk_index"].GetIntegerValue()),
		ImageRefs:  refs,
		Score:      hit.GetScore(),
	}
	if withVector {
		if v := hit.GetVectors().GetVector(); v != nil {
			c.Vector = v.GetData()
		}
	}
	return c
}
