package types

type Flow struct {
	FlowID               string            `json:"flowId"`
	MerchantID           string            `json:"merchantId"`
	State                string            `json:"state"`
	ResultCode           int               `json:"resultCode"`
	Amount               string            `json:"amount"`
	Currency             string            `json:"currency"`
	Memo                 string            `json:"memo"`
	MerchantRef          string            `json:"merchantRef,omitempty"`
	MerchantData         map[string]string `json:"merchantData,omitempty"`
	HeldAmount           string            `json:"heldAmount"`
	SettledAmount        string            `json:"settledAmount"`
	ReturnedAmount       string            `json:"returnedAmount"`
	FeeAmount            string            `json:"feeAmount"`
	NetAmount            string            `json:"netAmount"`
	PayerID              string            `json:"payerId,omitempty"`
	HoldID               string            `json:"holdId,omitempty"`
	OnComplete           string            `json:"onComplete,omitempty"`
	OnCancel             string            `json:"onCancel,omitempty"`
	NotifyURL            string            `json:"notifyUrl,omitempty"`
	CheckoutURL          string            `json:"checkoutUrl,omitempty"`
	ChargeTransactionID  string            `json:"chargeTransactionId,omitempty"`
	RefundTransactionIDs []string          `json:"refundTransactionIds,omitempty"`
	CreatedAt            string            `json:"createdAt"`
	HeldAt               string            `json:"heldAt,omitempty"`
	SettledAt            string            `json:"settledAt,omitempty"`
	VoidedAt             string            `json:"voidedAt,omitempty"`
	ReturnedAt           string            `json:"returnedAt,omitempty"`
	DeniedAt             string            `json:"deniedAt,omitempty"`
	ExpiredAt            string            `json:"expiredAt,omitempty"`
	ExpiresAt            string            `json:"expiresAt"`
	UpdatedAt            string            `json:"updatedAt"`
}

type ReserveFlowResponse struct {
	FlowID      string `json:"flowId"`
	CheckoutURL string `json:"checkoutUrl"`
	State       string `json:"state"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	ExpiresAt   string `json:"expiresAt"`
}

type AuthorizeFlowResponse struct {
	FlowID      string `json:"flowId"`
	State       string `json:"state"`
	HeldAmount  string `json:"heldAmount,omitempty"`
	Currency    string `json:"currency"`
	RedirectURL string `json:"redirectUrl,omitempty"`
	OnComplete  string `json:"onComplete,omitempty"`
	OnCancel    string `json:"onCancel,omitempty"`
	ExpiresAt   string `json:"expiresAt,omitempty"`
}

type ChargeFlowResponse struct {
	FlowID        string `json:"flowId"`
	State         string `json:"state"`
	SettledAmount string `json:"settledAmount"`
	NetAmount     string `json:"netAmount"`
	Fee           string `json:"fee"`
	Currency      string `json:"currency"`
	TransactionID string `json:"transactionId"`
}

type VoidFlowResponse struct {
	FlowID         string `json:"flowId"`
	State          string `json:"state"`
	ReleasedAmount string `json:"releasedAmount"`
	Currency       string `json:"currency"`
}

type RefundFlowResponse struct {
	FlowID              string `json:"flowId"`
	State               string `json:"state"`
	RefundedAmount      string `json:"refundedAmount"`
	TotalRefunded       string `json:"totalRefunded"`
	RemainingRefundable string `json:"remainingRefundable"`
	Currency            string `json:"currency"`
	TransactionID       string `json:"transactionId"`
}

type CheckoutFlowResponse struct {
	FlowID     string `json:"flowId"`
	State      string `json:"state"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
	Memo       string `json:"memo"`
	OnComplete string `json:"onComplete,omitempty"`
	OnCancel   string `json:"onCancel,omitempty"`
	ExpiresAt  string `json:"expiresAt"`
}

type ListFlowsResponse struct {
	Flows []*Flow `json:"flows"`
}

type LedgerTransaction struct {
	ID             string `json:"id"`
	AccountID      string `json:"accountId"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	Type           string `json:"type"`
	CounterpartyID string `json:"counterpartyId,omitempty"`
	FlowID         string `json:"flowId,omitempty"`
	Fee            string `json:"fee"`
	BalanceAfter   string `json:"balanceAfter"`
	Status         string `json:"status"`
	CreatedAt      string `json:"createdAt"`
}

type ListLedgerTransactionsResponse struct {
	Transactions []*LedgerTransaction `json:"transactions"`
}

type Balance struct {
	AccountID string `json:"accountId"`
	Currency  string `json:"currency"`
	Amount    string `json:"amount"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

type ListBalancesResponse struct {
	Balances []*Balance `json:"balances"`
}

type CreditAccountResponse struct {
	Balance       *Balance `json:"balance"`
	TransactionID string   `json:"transactionId"`
}

// WebhookEvent is the body posted to a merchant notifyUrl.
type WebhookEvent struct {
	EventID      string            `json:"eventId"`
	EventType    string            `json:"eventType"`
	FlowID       string            `json:"flowId"`
	MerchantRef  string            `json:"merchantRef,omitempty"`
	State        string            `json:"state"`
	ResultCode   int               `json:"resultCode"`
	Amount       string            `json:"amount"`
	Currency     string            `json:"currency"`
	Timestamp    string            `json:"timestamp"`
	MerchantData map[string]string `json:"merchantData,omitempty"`
}
