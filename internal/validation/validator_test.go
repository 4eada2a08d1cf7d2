package validation

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type upload struct {
	Data   []byte `form:"file" validate:"required,min=1"`
	Months []int  `form:"mes" validate:"required,min=1,unique,dive,min=1,max=12"`
	Year   int    `form:"ano" validate:"min=1900,max=9999"`
	Name   string `form:"nome" validate:"omitempty,max=200,filename"`
}

func valid() upload {
	return upload{Data: []byte("x"), Months: []int{9}, Year: 2025}
}

func TestStructAcceptsValidRequest(t *testing.T) {
	assert.NoError(t, Struct(valid()))

	u := valid()
	u.Name = "setembro 2025.xlsx"
	assert.NoError(t, Struct(u))
}

func TestStructReportsFormNames(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*upload)
		field  string
		rule   string
	}{
		{"missing months", func(u *upload) { u.Months = nil }, "mes", "required"},
		{"empty months", func(u *upload) { u.Months = []int{} }, "mes", "min"},
		{"month too high", func(u *upload) { u.Months = []int{13} }, "mes[0]", "max"},
		{"month zero", func(u *upload) { u.Months = []int{9, 0} }, "mes[1]", "min"},
		{"repeated month", func(u *upload) { u.Months = []int{9, 9} }, "mes", "unique"},
		{"year too low", func(u *upload) { u.Year = 25 }, "ano", "min"},
		{"missing upload", func(u *upload) { u.Data = nil }, "file", "required"},
		{"directory in name", func(u *upload) { u.Name = "out/x.xlsx" }, "nome", "filename"},
		{"parent in name", func(u *upload) { u.Name = ".." }, "nome", "filename"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := valid()
			tt.mutate(&u)

			err := Struct(u)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))

			var errs Errors
			require.True(t, errors.As(err, &errs))
			require.Len(t, errs, 1)
			assert.Equal(t, tt.field, errs[0].Field)
			assert.Equal(t, tt.rule, errs[0].Rule)
			assert.Contains(t, errs[0].Message, tt.field)
		})
	}
}

func TestStructCollectsEveryField(t *testing.T) {
	err := Struct(upload{})
	var errs Errors
	require.True(t, errors.As(err, &errs))
	assert.Len(t, errs, 3)
	assert.Equal(t, "3 bytes", valueText([]byte("abc")))
}

func TestIsValidationError(t *testing.T) {
	assert.False(t, IsValidationError(nil))
	assert.False(t, IsValidationError(errors.New("boom")))
	wrapped := fmt.Errorf("request: %w", Errors{{Field: "ano", Message: "ano is required"}})
	assert.True(t, IsValidationError(wrapped))
}

func TestNewValidatorRegistersFilenameRule(t *testing.T) {
	v, err := newValidator()
	require.NoError(t, err)
	assert.NoError(t, v.Var("resumo.xlsx", "filename"))
	assert.Error(t, v.Var("out/resumo.xlsx", "filename"))
}
