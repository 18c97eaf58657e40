package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-novapay/app/mapper"
	"github.com/vibast-solutions/ms-go-novapay/app/service"
	"github.com/vibast-solutions/ms-go-novapay/app/types"
)

var (
	merchantName string

	cardAccountID    string
	cardNumber       string
	cardExpiryMonth  int
	cardExpiryYear   int
	cardSecurityCode string
	cardHolderEmail  string

	creditCurrency  string
	creditAmount    string
	creditReference string
)

var merchantsCmd = &cobra.Command{
	Use:   "merchants",
	Short: "Manage merchants",
}

var merchantsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Onboard a merchant and print its API key and webhook secret",
	Run: func(_ *cobra.Command, _ []string) {
		app := mustBootstrap()
		defer app.close()

		creds, err := app.admin.CreateMerchant(context.Background(), merchantName)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to create merchant")
		}
		printJSON(map[string]string{
			"merchantId":    creds.Merchant.ID,
			"accountId":     creds.Merchant.AccountID,
			"apiKey":        creds.RawAPIKey,
			"webhookSecret": creds.Merchant.WebhookSecret,
		})
	},
}

var cardsCmd = &cobra.Command{
	Use:   "cards",
	Short: "Manage closed-loop cards",
}

var cardsIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a card, opening a payer account unless --account is given",
	Run: func(_ *cobra.Command, _ []string) {
		app := mustBootstrap()
		defer app.close()

		card, err := app.admin.IssueCard(context.Background(), &service.IssueCardInput{
			AccountID:    cardAccountID,
			Number:       cardNumber,
			ExpiryMonth:  cardExpiryMonth,
			ExpiryYear:   cardExpiryYear,
			SecurityCode: cardSecurityCode,
			HolderEmail:  cardHolderEmail,
		})
		if err != nil {
			logrus.WithError(err).Fatal("Failed to issue card")
		}
		printJSON(map[string]string{
			"cardId":    card.ID,
			"accountId": card.AccountID,
			"last4":     card.Last4,
		})
	},
}

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage ledger accounts",
}

var accountsCreditCmd = &cobra.Command{
	Use:   "credit <account-id>",
	Short: "Top up an account balance",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		req := &types.CreditAccountRequest{
			AccountID: strings.TrimSpace(args[0]),
			Currency:  strings.ToUpper(strings.TrimSpace(creditCurrency)),
			Amount:    json.Number(strings.TrimSpace(creditAmount)),
			Reference: strings.TrimSpace(creditReference),
		}
		if err := req.Validate(); err != nil {
			logrus.WithError(err).Fatal("Invalid credit request")
		}

		app := mustBootstrap()
		defer app.close()

		entry, balance, err := app.admin.CreditAccount(context.Background(), req)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to credit account")
		}
		printJSON(mapper.CreditToResponse(entry, balance))
	},
}

var accountsFreezeCmd = &cobra.Command{
	Use:   "freeze <account-id>",
	Short: "Freeze an account so it can neither pay nor be paid",
	Args:  cobra.ExactArgs(1),
	Run:   func(_ *cobra.Command, args []string) { setAccountFrozen(args[0], true) },
}

var accountsUnfreezeCmd = &cobra.Command{
	Use:   "unfreeze <account-id>",
	Short: "Unfreeze an account",
	Args:  cobra.ExactArgs(1),
	Run:   func(_ *cobra.Command, args []string) { setAccountFrozen(args[0], false) },
}

func init() {
	merchantsCreateCmd.Flags().StringVar(&merchantName, "name", "", "Merchant display name")
	_ = merchantsCreateCmd.MarkFlagRequired("name")

	cardsIssueCmd.Flags().StringVar(&cardAccountID, "account", "", "Existing payer account id")
	cardsIssueCmd.Flags().StringVar(&cardNumber, "number", "", "Card number")
	cardsIssueCmd.Flags().IntVar(&cardExpiryMonth, "expiry-month", 0, "Expiry month (1-12)")
	cardsIssueCmd.Flags().IntVar(&cardExpiryYear, "expiry-year", 0, "Expiry year (four digits)")
	cardsIssueCmd.Flags().StringVar(&cardSecurityCode, "security-code", "", "Card security code")
	cardsIssueCmd.Flags().StringVar(&cardHolderEmail, "email", "", "Cardholder email")
	for _, name := range []string{"number", "expiry-month", "expiry-year", "security-code", "email"} {
		_ = cardsIssueCmd.MarkFlagRequired(name)
	}

	accountsCreditCmd.Flags().StringVar(&creditCurrency, "currency", "USD", "Currency code")
	accountsCreditCmd.Flags().StringVar(&creditAmount, "amount", "", "Amount with up to two decimals")
	accountsCreditCmd.Flags().StringVar(&creditReference, "reference", "", "Free-form reference stored on the ledger row")
	_ = accountsCreditCmd.MarkFlagRequired("amount")

	rootCmd.AddCommand(merchantsCmd)
	rootCmd.AddCommand(cardsCmd)
	rootCmd.AddCommand(accountsCmd)
	merchantsCmd.AddCommand(merchantsCreateCmd)
	cardsCmd.AddCommand(cardsIssueCmd)
	accountsCmd.AddCommand(accountsCreditCmd)
	accountsCmd.AddCommand(accountsFreezeCmd)
	accountsCmd.AddCommand(accountsUnfreezeCmd)
}

func setAccountFrozen(accountID string, frozen bool) {
	app := mustBootstrap()
	defer app.close()

	account, err := app.admin.SetAccountFrozen(context.Background(), accountID, frozen)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to update account status")
	}
	printJSON(map[string]string{"accountId": account.ID, "status": string(account.Status)})
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
}
