package mapper

import (
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-novapay/app/entity"
	"github.com/vibast-solutions/ms-go-novapay/app/money"
	"github.com/vibast-solutions/ms-go-novapay/app/types"
)

func FlowToResponse(item *entity.PaymentFlow) *types.Flow {
	if item == nil {
		return nil
	}

	return &types.Flow{
		FlowID:               item.ID,
		MerchantID:           item.MerchantID,
		State:                string(item.State),
		ResultCode:           item.ResultCode,
		Amount:               money.Format(item.Amount),
		Currency:             item.Currency,
		Memo:                 item.Memo,
		MerchantRef:          derefString(item.MerchantRef),
		MerchantData:         cloneMetadata(item.MerchantData),
		HeldAmount:           money.Format(item.HeldAmount),
		SettledAmount:        money.Format(item.SettledAmount),
		ReturnedAmount:       money.Format(item.ReturnedAmount),
		FeeAmount:            money.Format(item.FeeAmount),
		NetAmount:            money.Format(item.NetAmount),
		PayerID:              derefString(item.PayerID),
		HoldID:               derefString(item.HoldID),
		OnComplete:           derefString(item.OnComplete),
		OnCancel:             derefString(item.OnCancel),
		NotifyURL:            derefString(item.NotifyURL),
		ChargeTransactionID:  derefString(item.ChargeTransactionID),
		RefundTransactionIDs: append([]string(nil), item.RefundTransactionIDs...),
		CreatedAt:            formatTime(item.CreatedAt),
		HeldAt:               formatTimePtr(item.HeldAt),
		SettledAt:            formatTimePtr(item.SettledAt),
		VoidedAt:             formatTimePtr(item.VoidedAt),
		ReturnedAt:           formatTimePtr(item.ReturnedAt),
		DeniedAt:             formatTimePtr(item.DeniedAt),
		ExpiredAt:            formatTimePtr(item.ExpiredAt),
		ExpiresAt:            formatTime(item.ExpiresAt),
		UpdatedAt:            formatTime(item.UpdatedAt),
	}
}

func FlowsToResponse(items []*entity.PaymentFlow) *types.ListFlowsResponse {
	result := make([]*types.Flow, 0, len(items))
	for _, item := range items {
		result = append(result, FlowToResponse(item))
	}
	return &types.ListFlowsResponse{Flows: result}
}

func ReserveToResponse(item *entity.PaymentFlow, checkoutBaseURL string) *types.ReserveFlowResponse {
	return &types.ReserveFlowResponse{
		FlowID:      item.ID,
		CheckoutURL: CheckoutURL(checkoutBaseURL, item.ID),
		State:       string(item.State),
		Amount:      money.Format(item.Amount),
		Currency:    item.Currency,
		ExpiresAt:   formatTime(item.ExpiresAt),
	}
}

// AuthorizeToResponse sends the payer back to onComplete after a hold and to
// onCancel after a decline.
func AuthorizeToResponse(item *entity.PaymentFlow) *types.AuthorizeFlowResponse {
	resp := &types.AuthorizeFlowResponse{
		FlowID:     item.ID,
		State:      string(item.State),
		Currency:   item.Currency,
		OnComplete: derefString(item.OnComplete),
		OnCancel:   derefString(item.OnCancel),
	}

	switch item.State {
	case entity.FlowStateHeld:
		resp.HeldAmount = money.Format(item.HeldAmount)
		resp.ExpiresAt = formatTime(item.ExpiresAt)
		resp.RedirectURL = resp.OnComplete
	case entity.FlowStateDenied:
		resp.RedirectURL = resp.OnCancel
	}
	return resp
}

func ChargeToResponse(item *entity.PaymentFlow) *types.ChargeFlowResponse {
	return &types.ChargeFlowResponse{
		FlowID:        item.ID,
		State:         string(item.State),
		SettledAmount: money.Format(item.SettledAmount),
		NetAmount:     money.Format(item.NetAmount),
		Fee:           money.Format(item.FeeAmount),
		Currency:      item.Currency,
		TransactionID: derefString(item.ChargeTransactionID),
	}
}

func VoidToResponse(item *entity.PaymentFlow) *types.VoidFlowResponse {
	return &types.VoidFlowResponse{
		FlowID:         item.ID,
		State:          string(item.State),
		ReleasedAmount: money.Format(item.HeldAmount),
		Currency:       item.Currency,
	}
}

func RefundToResponse(item *entity.PaymentFlow, debit *entity.LedgerTransaction) *types.RefundFlowResponse {
	resp := &types.RefundFlowResponse{
		FlowID:              item.ID,
		State:               string(item.State),
		TotalRefunded:       money.Format(item.ReturnedAmount),
		RemainingRefundable: money.Format(item.RefundableAmount()),
		Currency:            item.Currency,
	}
	if debit != nil {
		resp.RefundedAmount = money.Format(debit.Amount.Abs())
		resp.TransactionID = debit.ID
	}
	return resp
}

func CheckoutToResponse(item *entity.PaymentFlow) *types.CheckoutFlowResponse {
	return &types.CheckoutFlowResponse{
		FlowID:     item.ID,
		State:      string(item.State),
		Amount:     money.Format(item.Amount),
		Currency:   item.Currency,
		Memo:       item.Memo,
		OnComplete: derefString(item.OnComplete),
		OnCancel:   derefString(item.OnCancel),
		ExpiresAt:  formatTime(item.ExpiresAt),
	}
}

func LedgerTransactionToResponse(item *entity.LedgerTransaction) *types.LedgerTransaction {
	if item == nil {
		return nil
	}

	return &types.LedgerTransaction{
		ID:             item.ID,
		AccountID:      item.AccountID,
		Amount:         money.Format(item.Amount),
		Currency:       item.Currency,
		Type:           string(item.Type),
		CounterpartyID: derefString(item.CounterpartyID),
		FlowID:         derefString(item.FlowID),
		Fee:            money.Format(item.Fee),
		BalanceAfter:   money.Format(item.BalanceAfter),
		Status:         item.Status,
		CreatedAt:      formatTime(item.CreatedAt),
	}
}

func LedgerTransactionsToResponse(items []*entity.LedgerTransaction) *types.ListLedgerTransactionsResponse {
	result := make([]*types.LedgerTransaction, 0, len(items))
	for _, item := range items {
		result = append(result, LedgerTransactionToResponse(item))
	}
	return &types.ListLedgerTransactionsResponse{Transactions: result}
}

func BalanceToResponse(item *entity.AccountBalance) *types.Balance {
	if item == nil {
		return nil
	}

	resp := &types.Balance{
		AccountID: item.AccountID,
		Currency:  item.Currency,
		Amount:    money.Format(item.Amount),
	}
	if !item.UpdatedAt.IsZero() {
		resp.UpdatedAt = formatTime(item.UpdatedAt)
	}
	return resp
}

func BalancesToResponse(items []*entity.AccountBalance) *types.ListBalancesResponse {
	result := make([]*types.Balance, 0, len(items))
	for _, item := range items {
		result = append(result, BalanceToResponse(item))
	}
	return &types.ListBalancesResponse{Balances: result}
}

func CreditToResponse(entry *entity.LedgerTransaction, balance *entity.AccountBalance) *types.CreditAccountResponse {
	return &types.CreditAccountResponse{
		Balance:       BalanceToResponse(balance),
		TransactionID: entry.ID,
	}
}

func CheckoutURL(baseURL, flowID string) string {
	return strings.TrimRight(baseURL, "/") + "/v1/checkout/" + flowID
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func cloneMetadata(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
