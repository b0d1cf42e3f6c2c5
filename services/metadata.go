package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/kingjethro999/the-ecommerce-api/models"
	"github.com/shopspring/decimal"
)

// Gateway metadata limits.
const (
	MetadataValueLimit = 500
	maxItemParts       = 40

	metadataKeyItems      = "items"
	metadataKeyItemsParts = "items_parts"
	metadataKeyCustomer   = "customer"
)

var (
	ErrMetadataMissing   = errors.New("payment intent metadata is missing")
	ErrMetadataMalformed = errors.New("payment intent metadata is malformed")
	ErrCartTooLarge      = errors.New("cart does not fit into payment intent metadata")
)

// MetadataCodec serializes the cart and customer into payment intent
// metadata and reads them back under a strict schema.
type MetadataCodec struct {
	validate *validator.Validate
}

func NewMetadataCodec() *MetadataCodec {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return &MetadataCodec{validate: v}
}

// ValidateRequest checks an incoming checkout before anything is sent to
// the gateway.
func (m *MetadataCodec) ValidateRequest(req *models.CreateIntentRequest) error {
	if err := m.validate.Struct(req); err != nil {
		return err
	}
	return checkCartAmounts(req.Products)
}

// Encode builds the metadata map. Carts longer than one metadata value are
// split into items_0..items_{n-1} with items_parts=n.
func (m *MetadataCodec) Encode(cart models.Cart, customer models.CustomerDescriptor) (map[string]string, error) {
	itemsJSON, err := json.Marshal(cart)
	if err != nil {
		return nil, err
	}
	customerJSON, err := json.Marshal(customer)
	if err != nil {
		return nil, err
	}
	if len([]rune(string(customerJSON))) > MetadataValueLimit {
		return nil, fmt.Errorf("customer descriptor exceeds %d characters", MetadataValueLimit)
	}

	md := map[string]string{metadataKeyCustomer: string(customerJSON)}

	runes := []rune(string(itemsJSON))
	if len(runes) <= MetadataValueLimit {
		md[metadataKeyItems] = string(itemsJSON)
		return md, nil
	}

	parts := (len(runes) + MetadataValueLimit - 1) / MetadataValueLimit
	if parts > maxItemParts {
		return nil, ErrCartTooLarge
	}
	for i := 0; i < parts; i++ {
		end := (i + 1) * MetadataValueLimit
		if end > len(runes) {
			end = len(runes)
		}
		md[metadataKeyItems+"_"+strconv.Itoa(i)] = string(runes[i*MetadataValueLimit : end])
	}
	md[metadataKeyItemsParts] = strconv.Itoa(parts)
	return md, nil
}

// Decode reassembles and validates the cart and customer. Any error wraps
// ErrMetadataMissing or ErrMetadataMalformed.
func (m *MetadataCodec) Decode(md map[string]string) (models.Cart, models.CustomerDescriptor, error) {
	var customer models.CustomerDescriptor

	itemsJSON, err := joinItems(md)
	if err != nil {
		return nil, customer, err
	}
	customerJSON, ok := md[metadataKeyCustomer]
	if !ok || customerJSON == "" {
		return nil, customer, fmt.Errorf("%w: no %q key", ErrMetadataMissing, metadataKeyCustomer)
	}

	var cart models.Cart
	if err := strictUnmarshal(itemsJSON, &cart); err != nil {
		return nil, customer, fmt.Errorf("%w: items: %v", ErrMetadataMalformed, err)
	}
	if len(cart) == 0 {
		return nil, customer, fmt.Errorf("%w: items: empty cart", ErrMetadataMalformed)
	}
	for i := range cart {
		if err := m.validate.Struct(cart[i]); err != nil {
			return nil, customer, fmt.Errorf("%w: items[%d]: %v", ErrMetadataMalformed, i, err)
		}
	}
	if err := checkCartAmounts(cart); err != nil {
		return nil, customer, fmt.Errorf("%w: items: %v", ErrMetadataMalformed, err)
	}

	if err := strictUnmarshal(customerJSON, &customer); err != nil {
		return nil, customer, fmt.Errorf("%w: customer: %v", ErrMetadataMalformed, err)
	}
	if err := m.validate.Struct(customer); err != nil {
		return nil, customer, fmt.Errorf("%w: customer: %v", ErrMetadataMalformed, err)
	}

	return cart, customer, nil
}

func joinItems(md map[string]string) (string, error) {
	if v, ok := md[metadataKeyItems]; ok && v != "" {
		return v, nil
	}
	partsStr, ok := md[metadataKeyItemsParts]
	if !ok {
		return "", fmt.Errorf("%w: no %q key", ErrMetadataMissing, metadataKeyItems)
	}
	parts, err := strconv.Atoi(partsStr)
	if err != nil || parts < 1 || parts > maxItemParts {
		return "", fmt.Errorf("%w: bad %s %q", ErrMetadataMalformed, metadataKeyItemsParts, partsStr)
	}

	var buf bytes.Buffer
	for i := 0; i < parts; i++ {
		chunk, ok := md[metadataKeyItems+"_"+strconv.Itoa(i)]
		if !ok {
			return "", fmt.Errorf("%w: missing items part %d of %d", ErrMetadataMalformed, i, parts)
		}
		buf.WriteString(chunk)
	}
	return buf.String(), nil
}

// strictUnmarshal rejects unknown fields and trailing data.
func strictUnmarshal(data string, v interface{}) error {
	dec := json.NewDecoder(bytes.NewBufferString(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("unexpected trailing data")
	}
	return nil
}
