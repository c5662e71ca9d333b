package agent

import "context"

// stubProvider is a zero-value-usable LLMProvider used by benchmarks and
// failover tests that only need a provider to satisfy type requirements,
// not to exercise real completion behavior.
type stubProvider struct{}

func (stubProvider) Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	ch := make(chan *CompletionChunk, 1)
	ch <- &CompletionChunk{Done: true}
	close(ch)
	return ch, nil
}

func (stubProvider) Name() string        { return "stub" }
func (stubProvider) Models() []Model     { return nil }
func (stubProvider) SupportsTools() bool { return false }
