package validate

import (
	"errors"
	"testing"

	"ventureops/pkg/apperr"
)

type sample struct {
	Name     string `json:"name" validate:"required,max=5"`
	Priority string `json:"priority" validate:"omitempty,oneof=LOW HIGH"`
	Progress int    `json:"progress" validate:"min=0,max=100"`
}

func TestStruct(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		in     sample
		fields []string
	}{
		{name: "valid", in: sample{Name: "ok", Priority: "LOW", Progress: 10}},
		{name: "missing name", in: sample{}, fields: []string{"name"}},
		{name: "bad enum and range", in: sample{Name: "x", Priority: "MID", Progress: 101}, fields: []string{"priority", "progress"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Struct(tt.in)
			if len(tt.fields) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			var appErr *apperr.Error
			errors.As(err, &appErr)
			for _, f := range tt.fields {
				if _, ok := appErr.Details[f]; !ok {
					t.Fatalf("missing detail for %q in %v", f, appErr.Details)
				}
			}
		})
	}
}
