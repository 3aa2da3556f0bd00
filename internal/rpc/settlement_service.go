package rpc

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
)

// SettlementServiceName is the fully-qualified name of the SettlementService service.
const SettlementServiceName = "splitledger.v1.SettlementService"

// Procedure names of SettlementService RPCs.
const (
	SettlementServiceCreateSettlementProcedure  = "/splitledger.v1.SettlementService/CreateSettlement"
	SettlementServiceConfirmSettlementProcedure = "/splitledger.v1.SettlementService/ConfirmSettlement"
	SettlementServiceCancelSettlementProcedure  = "/splitledger.v1.SettlementService/CancelSettlement"
	SettlementServiceListSettlementsProcedure   = "/splitledger.v1.SettlementService/ListSettlements"
	SettlementServiceApplyPaymentProcedure      = "/splitledger.v1.SettlementService/ApplyPayment"
)

// SettlementServiceHandler is implemented by the settlement service.
type SettlementServiceHandler interface {
	CreateSettlement(context.Context, *connect.Request[CreateSettlementRequest]) (*connect.Response[CreateSettlementResponse], error)
	ConfirmSettlement(context.Context, *connect.Request[ConfirmSettlementRequest]) (*connect.Response[ConfirmSettlementResponse], error)
	CancelSettlement(context.Context, *connect.Request[CancelSettlementRequest]) (*connect.Response[CancelSettlementResponse], error)
	ListSettlements(context.Context, *connect.Request[ListSettlementsRequest]) (*connect.Response[ListSettlementsResponse], error)
	ApplyPayment(context.Context, *connect.Request[ApplyPaymentRequest]) (*connect.Response[ApplyPaymentResponse], error)
}

// NewSettlementServiceHandler builds an HTTP handler from the service
// implementation.
func NewSettlementServiceHandler(svc SettlementServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append(handlerCodecs(), opts...)
	createSettlement := connect.NewUnaryHandler(SettlementServiceCreateSettlementProcedure, svc.CreateSettlement, opts...)
	confirmSettlement := connect.NewUnaryHandler(SettlementServiceConfirmSettlementProcedure, svc.ConfirmSettlement, opts...)
	cancelSettlement := connect.NewUnaryHandler(SettlementServiceCancelSettlementProcedure, svc.CancelSettlement, opts...)
	listSettlements := connect.NewUnaryHandler(SettlementServiceListSettlementsProcedure, svc.ListSettlements, opts...)
	applyPayment := connect.NewUnaryHandler(SettlementServiceApplyPaymentProcedure, svc.ApplyPayment, opts...)

	return "/" + SettlementServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case SettlementServiceCreateSettlementProcedure:
			createSettlement.ServeHTTP(w, r)
		case SettlementServiceConfirmSettlementProcedure:
			confirmSettlement.ServeHTTP(w, r)
		case SettlementServiceCancelSettlementProcedure:
			cancelSettlement.ServeHTTP(w, r)
		case SettlementServiceListSettlementsProcedure:
			listSettlements.ServeHTTP(w, r)
		case SettlementServiceApplyPaymentProcedure:
			applyPayment.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// SettlementServiceClient is a client for the SettlementService service.
type SettlementServiceClient interface {
	CreateSettlement(context.Context, *connect.Request[CreateSettlementRequest]) (*connect.Response[CreateSettlementResponse], error)
	ConfirmSettlement(context.Context, *connect.Request[ConfirmSettlementRequest]) (*connect.Response[ConfirmSettlementResponse], error)
	CancelSettlement(context.Context, *connect.Request[CancelSettlementRequest]) (*connect.Response[CancelSettlementResponse], error)
	ListSettlements(context.Context, *connect.Request[ListSettlementsRequest]) (*connect.Response[ListSettlementsResponse], error)
	ApplyPayment(context.Context, *connect.Request[ApplyPaymentRequest]) (*connect.Response[ApplyPaymentResponse], error)
}

type settlementServiceClient struct {
	createSettlement  *connect.Client[CreateSettlementRequest, CreateSettlementResponse]
	confirmSettlement *connect.Client[ConfirmSettlementRequest, ConfirmSettlementResponse]
	cancelSettlement  *connect.Client[CancelSettlementRequest, CancelSettlementResponse]
	listSettlements   *connect.Client[ListSettlementsRequest, ListSettlementsResponse]
	applyPayment      *connect.Client[ApplyPaymentRequest, ApplyPaymentResponse]
}

// NewSettlementServiceClient constructs a client for the SettlementService service.
func NewSettlementServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) SettlementServiceClient {
	opts = append([]connect.ClientOption{clientCodec()}, opts...)
	return &settlementServiceClient{
		createSettlement:  connect.NewClient[CreateSettlementRequest, CreateSettlementResponse](httpClient, baseURL+SettlementServiceCreateSettlementProcedure, opts...),
		confirmSettlement: connect.NewClient[ConfirmSettlementRequest, ConfirmSettlementResponse](httpClient, baseURL+SettlementServiceConfirmSettlementProcedure, opts...),
		cancelSettlement:  connect.NewClient[CancelSettlementRequest, CancelSettlementResponse](httpClient, baseURL+SettlementServiceCancelSettlementProcedure, opts...),
		listSettlements:   connect.NewClient[ListSettlementsRequest, ListSettlementsResponse](httpClient, baseURL+SettlementServiceListSettlementsProcedure, opts...),
		applyPayment:      connect.NewClient[ApplyPaymentRequest, ApplyPaymentResponse](httpClient, baseURL+SettlementServiceApplyPaymentProcedure, opts...),
	}
}

func (c *settlementServiceClient) CreateSettlement(ctx context.Context, req *connect.Request[CreateSettlementRequest]) (*connect.Response[CreateSettlementResponse], error) {
	return c.createSettlement.CallUnary(ctx, req)
}

func (c *settlementServiceClient) ConfirmSettlement(ctx context.Context, req *connect.Request[ConfirmSettlementRequest]) (*connect.Response[ConfirmSettlementResponse], error) {
	return c.confirmSettlement.CallUnary(ctx, req)
}

func (c *settlementServiceClient) CancelSettlement(ctx context.Context, req *connect.Request[CancelSettlementRequest]) (*connect.Response[CancelSettlementResponse], error) {
	return c.cancelSettlement.CallUnary(ctx, req)
}

func (c *settlementServiceClient) ListSettlements(ctx context.Context, req *connect.Request[ListSettlementsRequest]) (*connect.Response[ListSettlementsResponse], error) {
	return c.listSettlements.CallUnary(ctx, req)
}

func (c *settlementServiceClient) ApplyPayment(ctx context.Context, req *connect.Request[ApplyPaymentRequest]) (*connect.Response[ApplyPaymentResponse], error) {
	return c.applyPayment.CallUnary(ctx, req)
}
