package aria

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cobranzas/backend/internal/domain/financing"
)

// record is one customer object as returned by the backend
type record map[string]any

// Key aliases, probed in order. The backend renamed fields across versions.
var (
	idKeys             = []string{"cliente_id", "clienteId", "id_cliente", "id"}
	firstNameKeys      = []string{"cliente_nombre", "clienteNombre", "nombre"}
	lastNameKeys       = []string{"cliente_apellido", "clienteApellido", "apellido"}
	identificationKeys = []string{"cliente_dnicuit", "cliente_dni", "cliente_cuit", "dni", "cuit"}
	creditKeys         = []string{"clienteScoringFinanciable", "cliente_scoring_financiable", "scoring_financiable"}
	balanceKeys        = []string{"cliente_saldo", "clienteSaldo", "saldo"}
	overdueKeys        = []string{"cliente_meses_atraso", "clienteMesesAtraso", "meses_atraso"}
)

// field is the outcome of probing a record for a set of aliases
type field struct {
	Key   string
	Value any
	Found bool
}

// probe returns the first alias present with a non-null value
func (r record) probe(keys []string) field {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			return field{Key: k, Value: v, Found: true}
		}
	}
	return field{}
}

// normalizeEnvelope turns any of the backend's response shapes into a list:
// a bare array, a single object, or {"data": ...}. null, {} and [] are empty.
func normalizeEnvelope(body []byte) ([]record, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", financing.ErrInvalidResponse, err)
	}
	return collectRecords(payload), nil
}

func collectRecords(v any) []record {
	switch t := v.(type) {
	case []any:
		out := make([]record, 0, len(t))
		for _, item := range t {
			if obj, ok := item.(map[string]any); ok && len(obj) > 0 {
				out = append(out, record(obj))
			}
		}
		return out
	case map[string]any:
		if data, ok := t["data"]; ok {
			return collectRecords(data)
		}
		if len(t) == 0 {
			return nil
		}
		return []record{record(t)}
	default:
		return nil
	}
}

// toCustomers converts records, dropping those without a usable ID
func toCustomers(records []record) []financing.Customer {
	out := make([]financing.Customer, 0, len(records))
	for _, r := range records {
		if c, ok := toCustomer(r); ok {
			out = append(out, c)
		}
	}
	return out
}

func toCustomer(r record) (financing.Customer, bool) {
	idField := r.probe(idKeys)
	if !idField.Found {
		return financing.Customer{}, false
	}
	id, ok := asInt64(idField.Value)
	if !ok || id <= 0 {
		return financing.Customer{}, false
	}

	return financing.Customer{
		ID:                 id,
		FirstName:          asString(r.probe(firstNameKeys).Value),
		LastName:           asString(r.probe(lastNameKeys).Value),
		Identification:     asString(r.probe(identificationKeys).Value),
		AvailableCredit:    asDecimal(r.probe(creditKeys).Value),
		OutstandingBalance: asDecimal(r.probe(balanceKeys).Value),
		OverdueMonths:      int(asDecimal(r.probe(overdueKeys).Value).IntPart()),
	}, true
}

// ---------------------------------------------------------------------------
// Defensive value conversion
// ---------------------------------------------------------------------------

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func asInt64(v any) (int64, bool) {
	d, ok := parseDecimal(asString(v))
	if !ok || !d.Equal(d.Truncate(0)) {
		return 0, false
	}
	return d.IntPart(), true
}

func asDecimal(v any) decimal.Decimal {
	d, _ := parseDecimal(asString(v))
	return d
}

// ParseDecimal parses a backend amount, returning zero for anything unparseable.
// Both "1234.5" and "1.234,5" are accepted.
func ParseDecimal(s string) decimal.Decimal {
	d, _ := parseDecimal(s)
	return d
}

func parseDecimal(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	if s == "" {
		return decimal.Zero, false
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
