//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"testing"
	"time"

	flowsgrpc "github.com/vibast-solutions/ms-go-novapay/app/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	defaultHTTPBase = "http://localhost:48080"
	defaultGRPCAddr = "localhost:49090"
	defaultBinary   = "../bin/novapay"

	e2eCardCVV   = "321"
	e2eCardEmail = "e2e-payer@example.com"
)

type envelope struct {
	OK         bool            `json:"ok"`
	ResultCode int             `json:"resultCode"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	FlowID     string          `json:"flowId"`
}

type fixture struct {
	merchantKey    string
	payerAccountID string
	cardNumber     string
}

// uniqueCardNumber builds a Luhn-valid 16 digit number so reruns against
// the same database do not collide on the card hash.
func uniqueCardNumber() string {
	digits := []byte(fmt.Sprintf("4%014d", time.Now().UnixNano()%1e14))
	sum := 0
	double := true
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return string(digits) + string(rune('0'+(10-sum%10)%10))
}

type httpClient struct {
	baseURL string
	client  *http.Client
}

func newHTTPClient(baseURL string) *httpClient {
	return &httpClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *httpClient) do(t *testing.T, method, path string, body any, headers map[string]string) (*http.Response, *envelope) {
	t.Helper()

	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json marshal failed: %v", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		t.Fatalf("new request failed: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", fmt.Sprintf("e2e-http-%d", time.Now().UnixNano()))
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		t.Fatalf("http request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response failed: %v", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal envelope failed: %v body=%s", err, string(raw))
	}
	return resp, &env
}

func waitForHTTP(baseURL string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	client := &http.Client{Timeout: 2 * time.Second}
	for time.Now().Before(deadline) {
		resp, err := client.Get(baseURL + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("http service not ready at %s", baseURL)
}

func waitForGRPC(addr string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("grpc service not ready at %s", addr)
}

// runCLI executes an admin command of the service binary against the same
// database the server uses and decodes its JSON output.
func runCLI(t *testing.T, out any, args ...string) {
	t.Helper()

	binary := os.Getenv("NOVAPAY_BIN")
	if binary == "" {
		binary = defaultBinary
	}
	cmd := exec.Command(binary, args...)
	cmd.Env = append(os.Environ(), "LOG_LEVEL=error")
	raw, err := cmd.Output()
	if err != nil {
		t.Fatalf("%s %v failed: %v", binary, args, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("decode %v output failed: %v output=%s", args, err, string(raw))
	}
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()

	var merchant struct {
		APIKey string `json:"apiKey"`
	}
	runCLI(t, &merchant, "merchants", "create", "--name", fmt.Sprintf("e2e-%d", time.Now().UnixNano()))

	number := uniqueCardNumber()
	var card struct {
		AccountID string `json:"accountId"`
	}
	runCLI(t, &card, "cards", "issue",
		"--number", number,
		"--expiry-month", "12",
		"--expiry-year", "2035",
		"--security-code", e2eCardCVV,
		"--email", e2eCardEmail,
	)

	return &fixture{merchantKey: merchant.APIKey, payerAccountID: card.AccountID, cardNumber: number}
}

func grpcContext(merchantKey string) context.Context {
	ctx := metadata.AppendToOutgoingContext(context.Background(),
		"x-request-id", fmt.Sprintf("e2e-grpc-%d", time.Now().UnixNano()),
		"x-api-key", callerAPIKey(),
	)
	if merchantKey != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "x-merchant-key", merchantKey)
	}
	return ctx
}

func TestNovaPayE2E(t *testing.T) {
	httpBase := os.Getenv("NOVAPAY_HTTP_URL")
	if httpBase == "" {
		httpBase = defaultHTTPBase
	}
	grpcAddr := os.Getenv("NOVAPAY_GRPC_ADDR")
	if grpcAddr == "" {
		grpcAddr = defaultGRPCAddr
	}

	if err := waitForHTTP(httpBase, 30*time.Second); err != nil {
		t.Fatalf("http not ready: %v", err)
	}
	if err := waitForGRPC(grpcAddr, 30*time.Second); err != nil {
		t.Fatalf("grpc not ready: %v", err)
	}

	client := newHTTPClient(httpBase)
	fx := setupFixture(t)
	merchant := map[string]string{"X-API-Key": fx.merchantKey}
	operator := map[string]string{"X-API-Key": callerAPIKey()}

	conn, err := grpc.NewClient(grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("grpc dial failed: %v", err)
	}
	defer conn.Close()

	t.Run("HTTPMerchantRoutesRequireKey", func(t *testing.T) {
		resp, env := client.do(t, http.MethodGet, "/v1/flows", nil, nil)
		if resp.StatusCode != http.StatusUnauthorized || env.ResultCode != 4010 {
			t.Fatalf("expected 401/4010, got %d/%d", resp.StatusCode, env.ResultCode)
		}
	})

	t.Run("HTTPInternalForbiddenInsufficientAccess", func(t *testing.T) {
		path := "/internal/accounts/" + fx.payerAccountID + "/credit"
		resp, _ := client.do(t, http.MethodPost, path, map[string]any{"currency": "USD", "amount": "1.00"}, map[string]string{"X-API-Key": noAccessAPIKey()})
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", resp.StatusCode)
		}
	})

	t.Run("HTTPScenario", func(t *testing.T) {
		path := "/internal/accounts/" + fx.payerAccountID + "/credit"
		resp, env := client.do(t, http.MethodPost, path, map[string]any{"currency": "USD", "amount": "500.00"}, operator)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("credit failed: %d %s", resp.StatusCode, env.Message)
		}

		headers := map[string]string{"X-API-Key": fx.merchantKey, "Idempotency-Key": fmt.Sprintf("e2e-%d", time.Now().UnixNano())}
		reserveBody := map[string]any{"amount": "100.00", "currency": "USD", "memo": "e2e order"}
		resp, reserved := client.do(t, http.MethodPost, "/v1/flows", reserveBody, headers)
		if resp.StatusCode != http.StatusOK || reserved.ResultCode != 1001 {
			t.Fatalf("reserve failed: %d %+v", resp.StatusCode, reserved)
		}
		_, replayed := client.do(t, http.MethodPost, "/v1/flows", reserveBody, headers)
		if replayed.FlowID != reserved.FlowID {
			t.Fatalf("expected idempotent replay of %s, got %s", reserved.FlowID, replayed.FlowID)
		}

		card := map[string]any{
			"cardNumber":      fx.cardNumber,
			"expiryMonth":     12,
			"expiryYear":      2035,
			"securityCode":    e2eCardCVV,
			"cardholderEmail": e2eCardEmail,
		}
		resp, held := client.do(t, http.MethodPost, "/v1/checkout/"+reserved.FlowID+"/authorize", card, nil)
		if resp.StatusCode != http.StatusOK || held.ResultCode != 1002 {
			t.Fatalf("authorize failed: %d %+v", resp.StatusCode, held)
		}

		resp, settled := client.do(t, http.MethodPost, "/v1/flows/"+reserved.FlowID+"/charge", nil, merchant)
		if resp.StatusCode != http.StatusOK || settled.ResultCode != 1003 {
			t.Fatalf("charge failed: %d %+v", resp.StatusCode, settled)
		}

		resp, refunded := client.do(t, http.MethodPost, "/v1/flows/"+reserved.FlowID+"/refund", map[string]any{"amount": "40.00"}, merchant)
		if resp.StatusCode != http.StatusOK || refunded.ResultCode != 1005 {
			t.Fatalf("refund failed: %d %+v", resp.StatusCode, refunded)
		}
	})

	t.Run("HTTPLookupNotFound", func(t *testing.T) {
		resp, env := client.do(t, http.MethodGet, "/v1/flows/flow_missing", nil, merchant)
		if resp.StatusCode != http.StatusNotFound || env.ResultCode != 4040 {
			t.Fatalf("expected 404/4040, got %d/%d", resp.StatusCode, env.ResultCode)
		}
	})

	t.Run("GRPCMissingRequestID", func(t *testing.T) {
		err := conn.Invoke(context.Background(), flowsgrpc.FullMethod("Health"), &structpb.Struct{}, &structpb.Struct{})
		if status.Code(err) != codes.InvalidArgument {
			t.Fatalf("expected InvalidArgument, got %v", err)
		}
	})

	t.Run("GRPCUnauthenticatedMerchant", func(t *testing.T) {
		in, _ := structpb.NewStruct(map[string]any{"flowId": "flow_missing"})
		err := conn.Invoke(grpcContext(""), flowsgrpc.FullMethod("Lookup"), in, &structpb.Struct{})
		if status.Code(err) != codes.Unauthenticated {
			t.Fatalf("expected Unauthenticated, got %v", err)
		}
	})

	t.Run("GRPCReserveAndVoid", func(t *testing.T) {
		in, _ := structpb.NewStruct(map[string]any{"amount": "15.00", "currency": "USD", "memo": "grpc order"})
		reserved := &structpb.Struct{}
		if err := conn.Invoke(grpcContext(fx.merchantKey), flowsgrpc.FullMethod("Reserve"), in, reserved); err != nil {
			t.Fatalf("reserve failed: %v", err)
		}
		flowID := reserved.GetFields()["flowId"].GetStringValue()

		in, _ = structpb.NewStruct(map[string]any{"flowId": flowID})
		err := conn.Invoke(grpcContext(fx.merchantKey), flowsgrpc.FullMethod("Void"), in, &structpb.Struct{})
		if status.Code(err) != codes.FailedPrecondition {
			t.Fatalf("expected FailedPrecondition voiding a CREATED flow, got %v", err)
		}
	})
}
