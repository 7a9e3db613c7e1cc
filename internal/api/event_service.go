package api

import (
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// WatchEvents streams bus events matching the requested namespace until the client
// goes away.
func (s *Service) WatchEvents(in *structpb.Struct, stream grpc.ServerStream) error {
	var req WatchRequest
	if err := fromStruct(in, &req); err != nil {
		return invalid(err.Error())
	}
	ch, unsub := s.deps.Bus.Subscribe(req.Namespace, 256)
	defer unsub()

	for {
		select {
		case evt := <-ch:
			payload, err := json.Marshal(evt.Payload)
			if err != nil {
				payload = nil
			}
			out, err := toStruct(Event{Kind: evt.Kind, Timestamp: evt.Timestamp, Payload: payload})
			if err != nil {
				return err
			}
			if err := stream.SendMsg(out); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}
