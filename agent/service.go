package agent

import (
	"fxrpatch/lazyinit"
	"fxrpatch/protocol"
)

// Service attaches on the first request and serves every later request with
// the same Agent. A failed attach is reported to every caller.
type Service struct {
	agent *lazyinit.Value[*Agent]
}

func NewService(attach func() (*Agent, error)) *Service {
	return &Service{agent: lazyinit.New(attach)}
}

func (s *Service) Agent() (*Agent, error) {
	return s.agent.Get()
}

// Handle answers a JSON request, attaching first if needed
func (s *Service) Handle(request []byte) []byte {
	a, err := s.agent.Get()
	if err != nil {
		return protocol.EncodeResponse(protocol.Response{Error: protocol.FromError(err)})
	}
	return a.Handle(request)
}

func (s *Service) State() lazyinit.State {
	return s.agent.State()
}
