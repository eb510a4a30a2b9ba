package main

import (
	"context"
	"fmt"

	"github.com/ontoforge/ontoforge/internal/util"
	"github.com/ontoforge/ontoforge/pkg/ai"
	"github.com/ontoforge/ontoforge/pkg/ai/ollama"
	"github.com/ontoforge/ontoforge/pkg/ai/openai"
	"github.com/ontoforge/ontoforge/pkg/graph"
	"github.com/ontoforge/ontoforge/pkg/loader/io"
	"github.com/ontoforge/ontoforge/pkg/loader/pdf"
	"github.com/ontoforge/ontoforge/pkg/ontology"
	"github.com/ontoforge/ontoforge/pkg/store"
	storeneo4j "github.com/ontoforge/ontoforge/pkg/store/neo4j"
	storepgx "github.com/ontoforge/ontoforge/pkg/store/pgx"
)

// newAIClient builds the model client from the environment. AI_ADAPTER
// selects openai (any OpenAI-compatible endpoint) or ollama.
func newAIClient() (ai.GraphAIClient, error) {
	answerModel := util.GetEnvString("AI_ANSWER_MODEL", "gpt-4o-mini")
	if flagModel != "" {
		answerModel = flagModel
	}

	adapter := util.GetEnvString("AI_ADAPTER", "openai")
	switch adapter {
	case "openai":
		return openai.NewGraphOpenAIClient(openai.NewGraphOpenAIClientParams{
			ExtractionModel:       util.GetEnvString("AI_EXTRACTION_MODEL", "gpt-4o-mini"),
			AnswerModel:           answerModel,
			EmbeddingModel:        util.GetEnvString("AI_EMBEDDING_MODEL", "text-embedding-3-small"),
			ChatURL:               util.GetEnv("AI_CHAT_URL"),
			ChatKey:               util.GetEnv("AI_CHAT_KEY"),
			EmbeddingURL:          util.GetEnv("AI_EMBEDDING_URL"),
			EmbeddingKey:          util.GetEnv("AI_EMBEDDING_KEY"),
			MaxConcurrentRequests: int64(util.GetEnvInt("AI_MAX_CONCURRENT_REQUESTS", 8)),
		}), nil
	case "ollama":
		return ollama.NewGraphOllamaClient(ollama.NewGraphOllamaClientParams{
			ExtractionModel:       util.GetEnvString("AI_EXTRACTION_MODEL", "llama3.1"),
			AnswerModel:           answerModel,
			EmbeddingModel:        util.GetEnvString("AI_EMBEDDING_MODEL", "nomic-embed-text"),
			BaseURL:               util.GetEnvString("AI_CHAT_URL", "http://localhost:11434"),
			ApiKey:                util.GetEnv("AI_CHAT_KEY"),
			MaxConcurrentRequests: int64(util.GetEnvInt("AI_MAX_CONCURRENT_REQUESTS", 4)),
		})
	default:
		return nil, fmt.Errorf("unknown AI_ADAPTER %q", adapter)
	}
}

// newStorage connects the graph store selected by GRAPH_ADAPTER: neo4j or
// postgres.
func newStorage(ctx context.Context, aiClient ai.GraphAIClient) (store.GraphStorage, error) {
	adapter := util.GetEnvString("GRAPH_ADAPTER", "neo4j")
	switch adapter {
	case "neo4j":
		return storeneo4j.NewGraphDBStorage(ctx, storeneo4j.NewGraphDBStorageParams{
			URI:      util.GetEnvString("NEO4J_URI", "bolt://localhost:7687"),
			Username: util.GetEnvString("NEO4J_USERNAME", "neo4j"),
			Password: util.GetEnv("NEO4J_PASSWORD"),
		})
	case "postgres":
		embedClient := aiClient
		if !util.GetEnvBool("EMBEDDINGS_ENABLED", true) {
			embedClient = nil
		}
		return storepgx.NewGraphDBStorage(ctx, storepgx.NewGraphDBStorageParams{
			DSN:      util.GetEnv("DATABASE_URL"),
			AIClient: embedClient,
		})
	default:
		return nil, fmt.Errorf("unknown GRAPH_ADAPTER %q", adapter)
	}
}

func newOntologyStore() *ontology.FileStore {
	return ontology.NewFileStore(ontologyPath())
}

func newGraphClient() *graph.GraphClient {
	return graph.NewGraphClient(graph.NewGraphClientParams{
		TokenEncoder:  util.GetEnvString("TOKEN_ENCODER", "o200k_base"),
		MaxUnitTokens: util.GetEnvInt("MAX_UNIT_TOKENS", 600),
		ParallelUnits: util.GetEnvInt("PARALLEL_UNITS", 4),
		MaxRetries:    util.GetEnvInt("MAX_RETRIES", 3),
	})
}

func newBuilder() *graph.Builder {
	return graph.NewBuilder(graph.NewBuilderParams{
		Client: newGraphClient(),
		Discoverer: ontology.NewDiscoverer(ontology.NewDiscovererParams{
			TokenEncoder:    util.GetEnvString("TOKEN_ENCODER", "o200k_base"),
			MaxSampleTokens: util.GetEnvInt("MAX_SAMPLE_TOKENS", 24000),
			MaxRetries:      util.GetEnvInt("MAX_RETRIES", 3),
		}),
		OntoStore:  newOntologyStore(),
		FileLoader: pdf.NewPDFFileLoader(io.NewOSFileLoader()),
		Policy:     ontology.PolicyFromString(util.GetEnvString("MERGE_POLICY", "existing")),
	})
}

// loadOntology reads the persisted ontology and fails when no build has
// run yet.
func loadOntology() (ontology.Ontology, error) {
	onto, found, err := newOntologyStore().Load()
	if err != nil {
		return ontology.Ontology{}, err
	}
	if !found {
		return ontology.Ontology{}, fmt.Errorf("no ontology at %s, run a build first", ontologyPath())
	}
	return onto, nil
}
