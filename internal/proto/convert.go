package proto

import (
	"fmt"

	"github.com/dmitrijs2005/gophsync/internal/mapping"
	"google.golang.org/protobuf/types/known/structpb"
)

// Field names of the Authenticate request.
const (
	FieldDeviceID = "device_id"
	FieldSecret   = "secret"
)

// RecordToStruct encodes a remote record as a protobuf Struct.
func RecordToStruct(r mapping.RemoteRecord) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(r)
	if err != nil {
		return nil, fmt.Errorf("encode record %s: %w", r.ID(), err)
	}
	return s, nil
}

// StructToRecord decodes a protobuf Struct. Numbers come back as float64.
func StructToRecord(s *structpb.Struct) mapping.RemoteRecord {
	if s == nil {
		return mapping.RemoteRecord{}
	}
	return mapping.RemoteRecord(s.AsMap())
}

func AuthRequest(deviceID, secret string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldDeviceID: structpb.NewStringValue(deviceID),
		FieldSecret:   structpb.NewStringValue(secret),
	}}
}

// AuthFields extracts the credentials of an Authenticate request.
func AuthFields(s *structpb.Struct) (deviceID, secret string) {
	return s.GetFields()[FieldDeviceID].GetStringValue(), s.GetFields()[FieldSecret].GetStringValue()
}
