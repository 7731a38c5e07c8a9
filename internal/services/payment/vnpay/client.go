package vnpay

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const commandQuery = "querydr"

type queryRequest struct {
	RequestID       string `json:"vnp_RequestId"`
	Version         string `json:"vnp_Version"`
	Command         string `json:"vnp_Command"`
	TmnCode         string `json:"vnp_TmnCode"`
	TxnRef          string `json:"vnp_TxnRef"`
	OrderInfo       string `json:"vnp_OrderInfo"`
	TransactionDate string `json:"vnp_TransactionDate"`
	CreateDate      string `json:"vnp_CreateDate"`
	IPAddr          string `json:"vnp_IpAddr"`
	SecureHash      string `json:"vnp_SecureHash"`
}

type queryResponse struct {
	ResponseCode      string `json:"vnp_ResponseCode"`
	Message           string `json:"vnp_Message"`
	TxnRef            string `json:"vnp_TxnRef"`
	Amount            string `json:"vnp_Amount"`
	TransactionNo     string `json:"vnp_TransactionNo"`
	TransactionStatus string `json:"vnp_TransactionStatus"`
	PayDate           string `json:"vnp_PayDate"`
}

// Transaction is the provider-side record returned by querydr.
type Transaction struct {
	TxnRef        string
	TransactionNo string
	Status        string
	Amount        decimal.Decimal
	PaidAt        string
}

// QueryTransaction asks VNPay for the state of one transaction. The request
// is signed over the pipe-joined field list the querydr endpoint mandates.
func (c *Client) QueryTransaction(ctx context.Context, txnRef, requestID, clientIP string) (*Transaction, error) {
	if c.queryURL == "" {
		return nil, fmt.Errorf("vnpay: query url not configured")
	}

	now := c.now().In(ict)
	createDate := now.Format(timeLayout)
	orderInfo := "Query transaction " + txnRef

	data := strings.Join([]string{
		requestID, version, commandQuery, c.tmnCode,
		txnRef, createDate, createDate, clientIP, orderInfo,
	}, "|")

	req := queryRequest{
		RequestID:       requestID,
		Version:         version,
		Command:         commandQuery,
		TmnCode:         c.tmnCode,
		TxnRef:          txnRef,
		OrderInfo:       orderInfo,
		TransactionDate: createDate,
		CreateDate:      createDate,
		IPAddr:          clientIP,
		SecureHash:      hex.EncodeToString(hmac512([]byte(c.hashSecret), []byte(data))),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.queryURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("vnpay: querydr request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vnpay: querydr status %d", resp.StatusCode)
	}

	var qr queryResponse
	if err := json.Unmarshal(respBody, &qr); err != nil {
		return nil, fmt.Errorf("vnpay: querydr decode: %w", err)
	}
	if qr.ResponseCode != codeSuccess {
		return nil, fmt.Errorf("vnpay: querydr response code %s", qr.ResponseCode)
	}

	amount := decimal.Zero
	if qr.Amount != "" {
		cents, err := strconv.ParseInt(qr.Amount, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("vnpay: querydr amount %q", qr.Amount)
		}
		amount = decimal.NewFromInt(cents).Div(decimal.NewFromInt(100))
	}

	return &Transaction{
		TxnRef:        qr.TxnRef,
		TransactionNo: qr.TransactionNo,
		Status:        qr.TransactionStatus,
		Amount:        amount,
		PaidAt:        qr.PayDate,
	}, nil
}
