package restapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// codec encodes/decodes request and response bodies, negotiated per
// request from the Accept header - grounded on spec.md §6's "HTTP/2 +
// JSON (or MessagePack via Accept negotiation)".
type codec interface {
	ContentType() string
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}

type jsonCodec struct{}

func (jsonCodec) ContentType() string             { return "application/json" }
func (jsonCodec) Encode(v any) ([]byte, error)    { return json.Marshal(v) }
func (jsonCodec) Decode(data []byte, v any) error { return json.Unmarshal(data, v) }

type msgpackCodec struct{}

func (msgpackCodec) ContentType() string          { return "application/msgpack" }
func (msgpackCodec) Encode(v any) ([]byte, error) { return msgpack.Marshal(v) }
func (msgpackCodec) Decode(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}

// negotiateCodec picks msgpackCodec only when the client's Accept
// header explicitly names it; JSON is the default for everything
// else, including "*/*" and an absent header.
func negotiateCodec(r *http.Request) codec {
	accept := r.Header.Get("Accept")
	if strings.Contains(accept, "application/msgpack") {
		return msgpackCodec{}
	}
	return jsonCodec{}
}
