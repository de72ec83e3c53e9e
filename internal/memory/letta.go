package memory

import "context"

// LettaService is a placeholder for the Letta agent-memory backend. It is
// selectable in config so a deployment can flip to it without a schema
// change once the client lands.
type LettaService struct{}

// NewLettaService creates the stub
func NewLettaService() *LettaService { return &LettaService{} }

func (s *LettaService) Name() string { return "letta" }

func (s *LettaService) Search(ctx context.Context, query string, opts SearchOptions) ([]Record, error) {
	return nil, ErrNotImplemented
}

func (s *LettaService) Add(ctx context.Context, rec Record) (Record, error) {
	return Record{}, ErrNotImplemented
}

func (s *LettaService) All(ctx context.Context, userID string) ([]Record, error) {
	return nil, ErrNotImplemented
}

func (s *LettaService) Update(ctx context.Context, id, content, userID string, metadata map[string]any) (Record, error) {
	return Record{}, ErrNotImplemented
}

func (s *LettaService) Delete(ctx context.Context, id, userID string) error {
	return ErrNotImplemented
}

func (s *LettaService) AddConversation(ctx context.Context, userMsg, assistantMsg, userID string, memCtx Context, metadata map[string]any) error {
	return ErrNotImplemented
}

func (s *LettaService) CoreRelationship(ctx context.Context, userID string) ([]Record, error) {
	return nil, ErrNotImplemented
}
