// Package pb defines the wire messages and gRPC service descriptors for
// the Manager, DataService and RawData RPCs.
//
// No protoc invocation ran to produce this package: real protoc-gen-go
// output needs descriptor bytes and reflection machinery that can't be
// hand-written reliably. Instead, the three services are plain Go structs
// registered on *grpc.Server through a hand-built grpc.ServiceDesc, and a
// JSON-based codec (jsonCodec, below) replaces the default "proto" wire
// codec end to end — client and server both force it, so nothing ever
// needs a real proto.Message. The .proto files under proto/ document the
// same contract for anyone integrating from another language.
package pb

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName is the content-subtype this codec registers under.
const CodecName = "txstream-json"

// jsonCodec implements google.golang.org/grpc/encoding.Codec over
// encoding/json, standing in for the real protobuf wire codec.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// Codec returns the encoding.Codec a *grpc.Server or grpc.ClientConn should
// force in place of the default protobuf codec.
func Codec() encoding.Codec {
	return jsonCodec{}
}
