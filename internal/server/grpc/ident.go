package grpcserver

import "google.golang.org/protobuf/types/known/structpb"

// Ident is the decoded GetIdent response.
type Ident struct {
	NodeName        string
	Status          string
	StatusCode      int32
	MetadataVersion uint64
}

func (i Ident) toStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"node_name":        i.NodeName,
		"status":           i.Status,
		"status_code":      i.StatusCode,
		"metadata_version": i.MetadataVersion,
	})
}

func identFromStruct(s *structpb.Struct) Ident {
	f := s.GetFields()
	return Ident{
		NodeName:        f["node_name"].GetStringValue(),
		Status:          f["status"].GetStringValue(),
		StatusCode:      int32(f["status_code"].GetNumberValue()),
		MetadataVersion: uint64(f["metadata_version"].GetNumberValue()),
	}
}
