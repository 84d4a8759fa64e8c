package grpc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/tablepos/pkg/errs"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// toStruct converts any JSON-shaped value into a protobuf Struct.
func toStruct(v interface{}) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// fromValue decodes a protobuf Value into dest through its JSON form.
func fromValue(v *structpb.Value, dest interface{}) error {
	if v == nil {
		return errors.New("missing field")
	}
	data, err := v.MarshalJSON()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func stringField(s *structpb.Struct, name string) string {
	if s == nil {
		return ""
	}
	return s.GetFields()[name].GetStringValue()
}

var kindCodes = map[errs.Kind]codes.Code{
	errs.KindInvalid:         codes.InvalidArgument,
	errs.KindNotFound:        codes.NotFound,
	errs.KindConflict:        codes.FailedPrecondition,
	errs.KindStock:           codes.FailedPrecondition,
	errs.KindMissingIdentity: codes.Unauthenticated,
	errs.KindFetch:           codes.Unavailable,
	errs.KindWrite:           codes.Internal,
	errs.KindUpload:          codes.Internal,
}

func toStatus(err error) error {
	kind := errs.KindOf(err)
	code, ok := kindCodes[kind]
	if !ok {
		return status.Error(codes.Internal, err.Error())
	}
	st := status.New(code, err.Error())
	if detailed, derr := st.WithDetails(structpb.NewStringValue(string(kind))); derr == nil {
		st = detailed
	}
	return st.Err()
}

// fromStatus restores the error kind carried by a server status.
func fromStatus(op string, err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return errs.Fetch(op, err)
	}
	for _, d := range st.Details() {
		if v, ok := d.(*structpb.Value); ok && v.GetStringValue() != "" {
			return errs.E(errs.Kind(v.GetStringValue()), op, errors.New(st.Message()))
		}
	}
	for kind, code := range kindCodes {
		if code == st.Code() && kind != errs.KindStock && kind != errs.KindUpload {
			return errs.E(kind, op, errors.New(st.Message()))
		}
	}
	return errs.Fetch(op, fmt.Errorf("%s: %s", st.Code(), st.Message()))
}
