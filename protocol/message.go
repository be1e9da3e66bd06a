package protocol

import (
	"encoding/json"
	"fmt"
)

// AgentDLLName is the module name the injector looks for in the target
const AgentDLLName = "fxr_agent"

// Request asks the agent to patch one or more FXR files
type Request struct {
	Files [][]byte `json:"files"`
}

// FileResult is the outcome for one entry of Request.Files
type FileResult struct {
	Index int    `json:"index"`
	ID    uint32 `json:"id,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// Response is what the agent returns to the caller
type Response struct {
	Results []FileResult `json:"results,omitempty"`
	// Error is set when the request could not be attempted at all
	Error *Error `json:"error,omitempty"`
}

// Failed reports whether the request or any file failed
func (r Response) Failed() bool {
	if r.Error != nil {
		return true
	}
	for _, res := range r.Results {
		if res.Error != nil {
			return true
		}
	}
	return false
}

// Err returns the first failure as an error, nil on success
func (r Response) Err() error {
	if r.Error != nil {
		return r.Error
	}
	for _, res := range r.Results {
		if res.Error != nil {
			return fmt.Errorf("file %d: %w", res.Index, res.Error)
		}
	}
	return nil
}

func EncodeRequest(req Request) ([]byte, error) {
	return json.Marshal(req)
}

func DecodeRequest(data []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, Wrap(KindInvalidInput, err, "failed to decode request")
	}
	return req, nil
}

// EncodeResponse never fails for well formed responses, the fallback keeps
// the boundary contract of always returning JSON
func EncodeResponse(resp Response) []byte {
	data, err := json.Marshal(resp)
	if err != nil {
		data, _ = json.Marshal(Response{Error: Wrap(KindInternal, err, "failed to encode response")})
	}
	return data
}

func DecodeResponse(data []byte) (Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return Response{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp, nil
}
