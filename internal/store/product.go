package store

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"time"

	catalogerrors "github.com/abgdnv/gocatalog/internal/errors"
	"github.com/go-playground/validator/v10"
)

// Product is a single catalog entry as held in memory and persisted.
type Product struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Price     float64   `json:"price"`
	Image     string    `json:"image"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProductInput carries the fields of a product to create.
// Price is a pointer so that an omitted price is told apart from a zero price.
type ProductInput struct {
	Name     string   `json:"name"     validate:"required,max=200"`
	Category string   `json:"category" validate:"required,max=100"`
	Price    *float64 `json:"price"    validate:"required,finite,gte=0"`
	Image    string   `json:"image"    validate:"required"`
	Details  string   `json:"details"`
}

// ProductPatch carries the fields to overwrite on an existing product. Nil fields are left untouched.
type ProductPatch struct {
	Name     *string  `json:"name"     validate:"omitnil,min=1,max=200"`
	Category *string  `json:"category" validate:"omitnil,min=1,max=100"`
	Price    *float64 `json:"price"    validate:"omitnil,finite,gte=0"`
	Image    *string  `json:"image"    validate:"omitnil,min=1"`
	Details  *string  `json:"details"`
}

// IsEmpty reports whether the patch supplies no field at all.
func (p ProductPatch) IsEmpty() bool {
	return p.Name == nil && p.Category == nil && p.Price == nil && p.Image == nil && p.Details == nil
}

func (in ProductInput) normalized() ProductInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	in.Image = strings.TrimSpace(in.Image)
	return in
}

func (p ProductPatch) normalized() ProductPatch {
	p.Name = trimmed(p.Name)
	p.Category = trimmed(p.Category)
	p.Image = trimmed(p.Image)
	return p
}

// apply overwrites the supplied fields of product.
func (p ProductPatch) apply(product Product) Product {
	if p.Name != nil {
		product.Name = *p.Name
	}
	if p.Category != nil {
		product.Category = *p.Category
	}
	if p.Price != nil {
		product.Price = *p.Price
	}
	if p.Image != nil {
		product.Image = *p.Image
	}
	if p.Details != nil {
		product.Details = *p.Details
	}
	return product
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

// newValidator builds the validator used for product payloads.
// Field errors are reported under their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	})
	return v
}

// toValidationError converts validator errors into the catalog's ValidationError.
func toValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}
	fields := make([]catalogerrors.FieldError, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		fields = append(fields, catalogerrors.FieldError{Field: fieldErr.Field(), Rule: fieldErr.Tag()})
	}
	return &catalogerrors.ValidationError{Fields: fields}
}
