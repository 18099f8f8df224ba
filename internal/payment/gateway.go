package payment

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// GatewayConfig holds the merchant credentials and the gateway endpoints.
// MerchantSalt never leaves the server.
type GatewayConfig struct {
	MerchantKey  string
	MerchantSalt string
	ActionURL    string
	SuccessURL   string
	FailureURL   string
}

// Request is the signed form the client posts to the gateway.
type Request struct {
	Key         string
	TxnID       string
	Amount      string
	ProductInfo string
	FirstName   string
	Email       string
	Phone       string
	SuccessURL  string
	FailureURL  string
	UDF         [5]string
	Hash        string
}

// Params returns the request as gateway form fields.
func (r Request) Params() map[string]string {
	p := map[string]string{
		"key":         r.Key,
		"txnid":       r.TxnID,
		"amount":      r.Amount,
		"productinfo": r.ProductInfo,
		"firstname":   r.FirstName,
		"email":       r.Email,
		"phone":       r.Phone,
		"surl":        r.SuccessURL,
		"furl":        r.FailureURL,
		"hash":        r.Hash,
	}
	for i, v := range r.UDF {
		p[fmt.Sprintf("udf%d", i+1)] = v
	}
	return p
}

// Callback is the payload the gateway posts back to surl or furl.
type Callback struct {
	Key               string
	TxnID             string
	Amount            string
	ProductInfo       string
	FirstName         string
	Email             string
	Status            string
	UDF               [5]string
	Hash              string
	GatewayRef        string
	ErrorMessage      string
	AdditionalCharges string
}

// Succeeded reports whether the gateway declared the payment successful.
func (c Callback) Succeeded() bool {
	return strings.EqualFold(c.Status, "success")
}

// ParseCallback reads a gateway callback from posted form values.
func ParseCallback(form url.Values) (Callback, error) {
	c := Callback{
		Key:               form.Get("key"),
		TxnID:             form.Get("txnid"),
		Amount:            form.Get("amount"),
		ProductInfo:       form.Get("productinfo"),
		FirstName:         form.Get("firstname"),
		Email:             form.Get("email"),
		Status:            form.Get("status"),
		Hash:              form.Get("hash"),
		GatewayRef:        form.Get("mihpayid"),
		ErrorMessage:      form.Get("error_Message"),
		AdditionalCharges: form.Get("additionalCharges"),
	}
	for i := range c.UDF {
		c.UDF[i] = form.Get(fmt.Sprintf("udf%d", i+1))
	}
	var missing []string
	for name, v := range map[string]string{"txnid": c.TxnID, "amount": c.Amount, "status": c.Status, "hash": c.Hash} {
		if v == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return Callback{}, fmt.Errorf("callback is missing fields: %s", strings.Join(missing, ", "))
	}
	return c, nil
}

// FormatAmount renders an amount the way it is signed and sent to the gateway.
func FormatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', 2, 64)
}

// RequestHash signs an outbound request:
// sha512(key|txnid|amount|productinfo|firstname|email|udf1|udf2|udf3|udf4|udf5||||||salt).
func RequestHash(r Request, salt string) string {
	fields := []string{r.Key, r.TxnID, r.Amount, r.ProductInfo, r.FirstName, r.Email}
	fields = append(fields, r.UDF[:]...)
	fields = append(fields, "", "", "", "", "", salt)
	return sha512Hex(strings.Join(fields, "|"))
}

// ReverseHash recomputes the gateway's callback signature:
// sha512([additionalCharges|]salt|status||||||udf5|udf4|udf3|udf2|udf1|email|firstname|productinfo|amount|txnid|key).
func ReverseHash(c Callback, key, salt string) string {
	var fields []string
	if c.AdditionalCharges != "" {
		fields = append(fields, c.AdditionalCharges)
	}
	fields = append(fields, salt, c.Status, "", "", "", "", "")
	for i := len(c.UDF) - 1; i >= 0; i-- {
		fields = append(fields, c.UDF[i])
	}
	fields = append(fields, c.Email, c.FirstName, c.ProductInfo, c.Amount, c.TxnID, key)
	return sha512Hex(strings.Join(fields, "|"))
}

// VerifyCallback reports whether the callback's hash matches the one
// recomputed with the merchant salt.
func VerifyCallback(c Callback, cfg GatewayConfig) bool {
	want := ReverseHash(c, cfg.MerchantKey, cfg.MerchantSalt)
	got := strings.ToLower(strings.TrimSpace(c.Hash))
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}

func sha512Hex(s string) string {
	sum := sha512.Sum512([]byte(s))
	return hex.EncodeToString(sum[:])
}

