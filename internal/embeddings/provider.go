package embeddings

import (
	"context"
	"os"
	"strings"
)

// Provider defines a simple embeddings provider interface.
// Implementations should be concurrency-safe.
type Provider interface {
	// Name returns the provider name (e.g., "openai", "ollama").
	Name() string
	// Dimensions returns the embedding dimensionality this provider produces.
	Dimensions() int
	// Embed returns one embedding per input string.
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// NewFromEnv constructs a provider based on environment variables, wrapped
// in a circuit breaker since every implementation here is an outbound HTTP
// call to a third-party embeddings API.
// EMBEDDINGS_PROVIDER: "openai", "ollama", "gemini", "vertexai", "localai", "voyageai", or empty for disabled.
func NewFromEnv() Provider {
	return WithBreaker(newBaseFromEnv())
}

func newBaseFromEnv() Provider {
	name := strings.ToLower(strings.TrimSpace(os.Getenv("EMBEDDINGS_PROVIDER")))
	switch name {
	case "openai":
		return newOpenAIFromEnv()
	case "ollama":
		return newOllamaFromEnv()
	case "gemini", "google-gemini", "google_genai", "google":
		return newGeminiFromEnv()
	case "vertex", "vertexai", "google-vertex":
		return newVertexFromEnv()
	case "localai", "llamacpp", "llama.cpp":
		return newLocalAIFromEnv()
	case "voyageai", "voyage":
		return newVoyageFromEnv()
	default:
		return nil
	}
}
