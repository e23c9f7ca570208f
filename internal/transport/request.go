package transport

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/agentstation/sissync/pkg/constants"
	"github.com/agentstation/sissync/pkg/errors"
	"github.com/agentstation/sissync/pkg/logging"
)

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsClientError reports a 4xx status.
func (r *Response) IsClientError() bool {
	return r.StatusCode >= 400 && r.StatusCode < 500
}

// Decode unmarshals the JSON body into target. Numbers decode as
// json.Number so large integer keys survive intact.
func (r *Response) Decode(target any) error {
	dec := json.NewDecoder(bytes.NewReader(r.Body))
	dec.UseNumber()
	if err := dec.Decode(target); err != nil {
		return errors.WrapParse("json", "response", err)
	}
	return nil
}

// Snippet returns the body truncated for error messages.
func (r *Response) Snippet() string {
	if len(r.Body) > constants.MaxErrorBodyLength {
		return string(r.Body[:constants.MaxErrorBodyLength]) + "..."
	}
	return string(r.Body)
}

func readResponse(resp *http.Response) (*Response, error) {
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.Warn().Err(err).Msg("Failed to close response body")
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WrapIO("read", "response body", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}
