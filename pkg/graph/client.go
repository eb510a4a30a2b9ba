package graph

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// GraphClient drives corpus ingestion: chunking documents into units,
// extracting instances with the model and upserting them into the graph
// store. It manages token encoding, unit parallelism and retries.
//
// A GraphClient should be created using NewGraphClient.
type GraphClient struct {
	tokenEncoder  string
	maxUnitTokens int
	parallelUnits int
	maxRetries    int

	countTokens func(string) int
}

// NewGraphClientParams defines the configuration parameters for creating
// a new GraphClient.
//
// TokenEncoder specifies the encoding used for token counting.
// MaxUnitTokens bounds the size of a single text unit.
// ParallelUnits controls how many units are processed concurrently.
type NewGraphClientParams struct {
	TokenEncoder  string
	MaxUnitTokens int
	ParallelUnits int
	MaxRetries    int
}

// NewGraphClient creates and returns a new GraphClient configured with
// the provided parameters.
func NewGraphClient(params NewGraphClientParams) *GraphClient {
	encoder := params.TokenEncoder
	if encoder == "" {
		encoder = "o200k_base"
	}
	maxUnitTokens := params.MaxUnitTokens
	if maxUnitTokens <= 0 {
		maxUnitTokens = 600
	}
	parallelUnits := params.ParallelUnits
	if parallelUnits <= 0 {
		parallelUnits = 4
	}
	maxRetries := params.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &GraphClient{
		tokenEncoder:  encoder,
		maxUnitTokens: maxUnitTokens,
		parallelUnits: parallelUnits,
		maxRetries:    maxRetries,
	}
}

func (c *GraphClient) tokenCounter() (func(string) int, error) {
	if c.countTokens == nil {
		enc, err := tiktoken.GetEncoding(c.tokenEncoder)
		if err != nil {
			return nil, fmt.Errorf("failed to load token encoder %q: %w", c.tokenEncoder, err)
		}
		c.countTokens = func(text string) int {
			return len(enc.Encode(text, nil, nil))
		}
	}
	return c.countTokens, nil
}
