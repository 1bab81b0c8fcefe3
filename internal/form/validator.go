// Package form validates admin request payloads.
package form

import (
	"strings"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ValidateStruct runs each field rule separately and folds every violation
// into a single InvalidArgument status carrying BadRequest details.
func ValidateStruct(structPtr any, rules ...*validation.FieldRules) error {
	br := &errdetails.BadRequest{}
	for _, rule := range rules {
		err := validation.ValidateStruct(structPtr, rule)
		if err == nil {
			continue
		}
		ve, ok := err.(validation.Errors)
		if !ok {
			return status.New(codes.Internal, err.Error()).Err()
		}
		for field, fe := range ve {
			br.FieldViolations = append(br.FieldViolations, &errdetails.BadRequest_FieldViolation{
				Field:       field,
				Description: formatErrMsg(fe.Error()),
			})
		}
	}
	if len(br.FieldViolations) == 0 {
		return nil
	}

	st, err := status.New(codes.InvalidArgument, violations(br)).WithDetails(br)
	if err != nil {
		return status.New(codes.Internal, err.Error()).Err()
	}
	return st.Err()
}

// Violations lists the field violations attached to a ValidateStruct error.
func Violations(err error) []*errdetails.BadRequest_FieldViolation {
	st, ok := status.FromError(err)
	if !ok {
		return nil
	}
	for _, d := range st.Details() {
		if br, ok := d.(*errdetails.BadRequest); ok {
			return br.FieldViolations
		}
	}
	return nil
}

func violations(br *errdetails.BadRequest) string {
	msgs := make([]string, 0, len(br.FieldViolations))
	for _, fv := range br.FieldViolations {
		msgs = append(msgs, fv.Field+": "+fv.Description)
	}
	return strings.Join(msgs, " ")
}

func formatErrMsg(s string) string {
	return ucfirst(strings.Trim(s, " .")) + "."
}

func ucfirst(str string) string {
	for i, v := range str {
		return string(unicode.ToUpper(v)) + str[i+1:]
	}
	return ""
}
