package anthropic

import (
	"context"

	"github.com/rotisserie/eris"
)

// BuildCachedSystemBlocks constructs system content blocks with a cache
// breakpoint. The extraction prompt is identical for every chunk of a
// paper, so caching it once and reusing it across section calls cuts
// input cost substantially.
func BuildCachedSystemBlocks(text string) []SystemBlock {
	return []SystemBlock{
		{
			Text: text,
			CacheControl: &CacheControl{
				TTL: "1h",
			},
		},
	}
}

// WarmCache sends one sequential request so that concurrent section calls
// afterwards hit a warm prompt cache. The response can be discarded.
func WarmCache(ctx context.Context, client Client, req MessageRequest) (*MessageResponse, error) {
	resp, err := client.CreateMessage(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "anthropic: warm cache")
	}
	return resp, nil
}
