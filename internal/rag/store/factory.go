package store

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"

	"github.com/kart-io/pdfrag/pkg/component/milvus"
	"github.com/kart-io/pdfrag/pkg/component/postgres"
	"github.com/kart-io/pdfrag/pkg/component/qdrant"
	milvusopts "github.com/kart-io/pdfrag/pkg/options/milvus"
	postgresopts "github.com/kart-io/pdfrag/pkg/options/postgres"
	qdrantopts "github.com/kart-io/pdfrag/pkg/options/qdrant"
	"github.com/kart-io/pdfrag/pkg/options/vector"
)

// BackendOptions gathers the options of every supported backend. Only the
// entry matching Vector.Backend is used.
type BackendOptions struct {
	Vector   *vector.Options
	Qdrant   *qdrantopts.Options
	Milvus   *milvusopts.Options
	Postgres *postgresopts.Options
}

// NewBackend 根据 vector.backend 创建对应的向量库后端。
func NewBackend(ctx context.Context, o BackendOptions) (Backend, error) {
	if o.Vector == nil {
		return nil, fmt.Errorf("vector options cannot be nil")
	}

	logger.Infow("initializing vector backend", "backend", o.Vector.Backend)

	switch o.Vector.Backend {
	case vector.BackendMemory:
		return NewMemoryBackend(), nil

	case vector.BackendBolt:
		return OpenBoltBackend(o.Vector.BoltPath)

	case vector.BackendQdrant:
		client, err := qdrant.New(o.Qdrant)
		if err != nil {
			return nil, err
		}
		return NewQdrantBackend(client), nil

	case vector.BackendMilvus:
		client, err := milvus.New(ctx, o.Milvus)
		if err != nil {
			return nil, err
		}
		return NewMilvusBackend(client), nil

	case vector.BackendPGVector:
		client, err := postgres.Dial(ctx, o.Postgres)
		if err != nil {
			return nil, err
		}
		b, err := NewPGVectorBackend(ctx, client)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return b, nil

	default:
		return nil, fmt.Errorf("unsupported vector backend %q", o.Vector.Backend)
	}
}
