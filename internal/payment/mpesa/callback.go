package mpesa

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrCallbackInvalid = errors.New("mpesa callback invalid")

// ResultCodeSuccess the only success code in callbacks and queries
const ResultCodeSuccess = 0

// Callback parsed stkCallback body
type Callback struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResultCode        int
	ResultDesc        string
	Metadata          CallbackMetadata
}

// CallbackMetadata items present on success; missing items stay zero
type CallbackMetadata struct {
	Amount             decimal.Decimal
	MpesaReceiptNumber string
	TransactionDate    *time.Time
	PhoneNumber        string
}

// Succeeded reports ResultCode 0
func (c *Callback) Succeeded() bool {
	return c.ResultCode == ResultCodeSuccess
}

type callbackEnvelope struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string          `json:"MerchantRequestID"`
			CheckoutRequestID string          `json:"CheckoutRequestID"`
			ResultCode        json.RawMessage `json:"ResultCode"`
			ResultDesc        string          `json:"ResultDesc"`
			CallbackMetadata  *struct {
				Item []struct {
					Name  string      `json:"Name"`
					Value interface{} `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// ParseCallback decodes the gateway's result notification
func ParseCallback(body []byte) (*Callback, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrCallbackInvalid)
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var env callbackEnvelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCallbackInvalid, err)
	}
	stk := env.Body.StkCallback
	checkoutID := strings.TrimSpace(stk.CheckoutRequestID)
	if checkoutID == "" {
		return nil, fmt.Errorf("%w: missing CheckoutRequestID", ErrCallbackInvalid)
	}
	code, err := parseResultCode(stk.ResultCode)
	if err != nil {
		return nil, err
	}

	cb := &Callback{
		MerchantRequestID: strings.TrimSpace(stk.MerchantRequestID),
		CheckoutRequestID: checkoutID,
		ResultCode:        code,
		ResultDesc:        strings.TrimSpace(stk.ResultDesc),
	}
	if stk.CallbackMetadata != nil {
		for _, item := range stk.CallbackMetadata.Item {
			switch item.Name {
			case "Amount":
				if d, err := decimal.NewFromString(valueString(item.Value)); err == nil {
					cb.Metadata.Amount = d
				}
			case "MpesaReceiptNumber":
				cb.Metadata.MpesaReceiptNumber = valueString(item.Value)
			case "TransactionDate":
				if t, err := time.ParseInLocation("20060102150405", valueString(item.Value), EAT); err == nil {
					cb.Metadata.TransactionDate = &t
				}
			case "PhoneNumber":
				cb.Metadata.PhoneNumber = valueString(item.Value)
			}
		}
	}
	return cb, nil
}

func parseResultCode(raw json.RawMessage) (int, error) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return 0, fmt.Errorf("%w: missing ResultCode", ErrCallbackInvalid)
	}
	code, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: ResultCode %q", ErrCallbackInvalid, s)
	}
	return code, nil
}

func valueString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}
