package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"ecommerce-api/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// addItemRequest uses pointers so that missing fields are distinguishable
// from zero values.
type addItemRequest struct {
	ItemID   *string  `json:"item_id" binding:"required"`
	Name     *string  `json:"name" binding:"required"`
	Price    *float64 `json:"price" binding:"required"`
	Quantity *int     `json:"quantity" binding:"required"`
}

// addItemFieldErrors is the message for a present but unacceptable field
var addItemFieldErrors = map[string]string{
	"item_id":  "item_id must be a non-empty string",
	"name":     "name must be a non-empty string",
	"price":    "price must be a non-negative number",
	"quantity": "quantity must be a positive integer",
}

// bindErrorMessage turns a ShouldBindJSON failure on addItemRequest into a
// client-facing message.
func bindErrorMessage(err error) string {
	if errors.Is(err, io.EOF) {
		return "Request body is required"
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		return "Missing required field: " + jsonFieldName(validationErrs[0].StructField())
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		if msg, ok := addItemFieldErrors[typeErr.Field]; ok {
			return msg
		}
	}

	return "Invalid JSON body"
}

func jsonFieldName(structField string) string {
	f, ok := reflect.TypeOf(addItemRequest{}).FieldByName(structField)
	if !ok {
		return structField
	}
	return strings.Split(f.Tag.Get("json"), ",")[0]
}

func (r addItemRequest) toItem() (models.Item, string) {
	switch {
	case strings.TrimSpace(*r.ItemID) == "":
		return models.Item{}, addItemFieldErrors["item_id"]
	case strings.TrimSpace(*r.Name) == "":
		return models.Item{}, addItemFieldErrors["name"]
	case *r.Price < 0:
		return models.Item{}, addItemFieldErrors["price"]
	case *r.Quantity <= 0:
		return models.Item{}, addItemFieldErrors["quantity"]
	}
	item, err := models.NewItem(*r.ItemID, *r.Name, decimal.NewFromFloat(*r.Price), *r.Quantity)
	if err != nil {
		return models.Item{}, err.Error()
	}
	return item, ""
}

// parseCheckoutBody reads the optional checkout body. It returns the discount
// code, or a client-facing message when the body is malformed.
func parseCheckoutBody(r *http.Request) (string, string) {
	if r.Body == nil {
		return "", ""
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return "", "Invalid request body"
	}
	if strings.TrimSpace(string(raw)) == "" {
		return "", ""
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "", "Invalid request body"
	}

	for name := range fields {
		if name != "discount_code" {
			return "", fmt.Sprintf("Unexpected field: %s", name)
		}
	}

	rawCode, ok := fields["discount_code"]
	if !ok {
		return "", ""
	}

	var code string
	if err := json.Unmarshal(rawCode, &code); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return "", "discount_code must be a non-empty string"
		}
		return "", "Invalid request body"
	}
	if strings.TrimSpace(code) == "" {
		return "", "discount_code must be a non-empty string"
	}
	return code, ""
}
