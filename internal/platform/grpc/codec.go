package grpc

import (
	"encoding/json"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// JSONCodecName is the content subtype carried by JSON-encoded calls
// ("application/grpc+json").
const JSONCodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return JSONCodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// JSONCallOption selects the JSON codec for one call or, as a default call
// option, for every call on a connection.
func JSONCallOption() gogrpc.CallOption {
	return gogrpc.CallContentSubtype(JSONCodecName)
}
