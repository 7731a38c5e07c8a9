// Package vnpay implements the VNPay hosted-payment protocol: a signed
// redirect URL to the pay page, signature verification of return/IPN
// callbacks, and the querydr transaction lookup.
package vnpay

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	PayURL     string `json:"pay_url" mapstructure:"pay_url"`
	QueryURL   string `json:"query_url" mapstructure:"query_url"`
	TmnCode    string `json:"tmn_code" mapstructure:"tmn_code"`
	HashSecret string `json:"hash_secret" mapstructure:"hash_secret"`

	// ReturnURL is where VNPay sends the browser back after payment.
	ReturnURL string `json:"return_url" mapstructure:"return_url"`
}

type Client struct {
	payURL     string
	queryURL   string
	tmnCode    string
	hashSecret string
	returnURL  string

	hc  *http.Client
	now func() time.Time
}

const (
	version     = "2.1.0"
	commandPay  = "pay"
	currency    = "VND"
	locale      = "vn"
	timeLayout  = "20060102150405"
	codeSuccess = "00"
)

// ict is VNPay's reference timezone (UTC+7); all vnp_*Date fields use it.
var ict = time.FixedZone("ICT", 7*60*60)

func New(cfg *Config) (*Client, error) {
	if cfg.TmnCode == "" || cfg.HashSecret == "" {
		return nil, fmt.Errorf("vnpay: tmn code and hash secret are required")
	}
	if cfg.PayURL == "" {
		return nil, fmt.Errorf("vnpay: pay url is required")
	}

	return &Client{
		payURL:     cfg.PayURL,
		queryURL:   cfg.QueryURL,
		tmnCode:    cfg.TmnCode,
		hashSecret: cfg.HashSecret,
		returnURL:  cfg.ReturnURL,
		hc: &http.Client{
			Timeout: 10 * time.Second,
		},
		now: time.Now,
	}, nil
}

// PaymentForm is one hosted-payment request.
type PaymentForm struct {
	TxnRef    string
	Amount    decimal.Decimal
	OrderInfo string
	ClientIP  string
	ExpireIn  time.Duration
}

// BuildPaymentURL constructs the signed redirect URL for the pay page.
// vnp_Amount is the amount multiplied by 100, per protocol.
func (c *Client) BuildPaymentURL(form *PaymentForm) (string, error) {
	if form.TxnRef == "" {
		return "", fmt.Errorf("vnpay: txn ref is required")
	}
	if form.Amount.Sign() <= 0 {
		return "", fmt.Errorf("vnpay: amount must be positive")
	}

	now := c.now().In(ict)
	expire := form.ExpireIn
	if expire <= 0 {
		expire = 15 * time.Minute
	}

	params := url.Values{}
	params.Set("vnp_Version", version)
	params.Set("vnp_Command", commandPay)
	params.Set("vnp_TmnCode", c.tmnCode)
	params.Set("vnp_Amount", form.Amount.Mul(decimal.NewFromInt(100)).StringFixed(0))
	params.Set("vnp_CurrCode", currency)
	params.Set("vnp_TxnRef", form.TxnRef)
	params.Set("vnp_OrderInfo", form.OrderInfo)
	params.Set("vnp_OrderType", "other")
	params.Set("vnp_Locale", locale)
	params.Set("vnp_ReturnUrl", c.returnURL)
	params.Set("vnp_IpAddr", form.ClientIP)
	params.Set("vnp_CreateDate", now.Format(timeLayout))
	params.Set("vnp_ExpireDate", now.Add(expire).Format(timeLayout))

	signature := signParams(c.hashSecret, params)
	params.Set("vnp_SecureHash", signature)

	return c.payURL + "?" + params.Encode(), nil
}

// CallbackData is the verified payload of a return/IPN callback.
type CallbackData struct {
	TxnRef        string
	TransactionNo string
	ResponseCode  string
	Amount        decimal.Decimal
	BankCode      string
}

// Succeeded reports whether VNPay marked the payment successful.
func (d *CallbackData) Succeeded() bool {
	return d.ResponseCode == codeSuccess
}

// VerifyCallback checks the callback signature and decodes the fields the
// purchase flow needs. The amount is converted back from the x100 encoding.
func (c *Client) VerifyCallback(values url.Values) (*CallbackData, error) {
	received := values.Get("vnp_SecureHash")
	if received == "" {
		return nil, fmt.Errorf("vnpay: missing secure hash")
	}

	params := url.Values{}
	for key := range values {
		if key == "vnp_SecureHash" || key == "vnp_SecureHashType" {
			continue
		}
		params.Set(key, values.Get(key))
	}

	if !signatureEqual(signParams(c.hashSecret, params), received) {
		return nil, fmt.Errorf("vnpay: secure hash mismatch")
	}

	rawAmount := values.Get("vnp_Amount")
	cents, err := strconv.ParseInt(rawAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("vnpay: invalid amount %q", rawAmount)
	}

	return &CallbackData{
		TxnRef:        values.Get("vnp_TxnRef"),
		TransactionNo: values.Get("vnp_TransactionNo"),
		ResponseCode:  values.Get("vnp_ResponseCode"),
		Amount:        decimal.NewFromInt(cents).Div(decimal.NewFromInt(100)),
		BankCode:      values.Get("vnp_BankCode"),
	}, nil
}
