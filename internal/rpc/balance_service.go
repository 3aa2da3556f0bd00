package rpc

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
)

// BalanceServiceName is the fully-qualified name of the BalanceService service.
const BalanceServiceName = "splitledger.v1.BalanceService"

// BalanceServiceGetBalanceReportProcedure is the path of BalanceService.GetBalanceReport.
const BalanceServiceGetBalanceReportProcedure = "/splitledger.v1.BalanceService/GetBalanceReport"

// BalanceServiceHandler is implemented by the balance service.
type BalanceServiceHandler interface {
	GetBalanceReport(context.Context, *connect.Request[GetBalanceReportRequest]) (*connect.Response[GetBalanceReportResponse], error)
}

// NewBalanceServiceHandler builds an HTTP handler from the service
// implementation.
func NewBalanceServiceHandler(svc BalanceServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append(handlerCodecs(), opts...)
	getBalanceReport := connect.NewUnaryHandler(BalanceServiceGetBalanceReportProcedure, svc.GetBalanceReport, opts...)

	return "/" + BalanceServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case BalanceServiceGetBalanceReportProcedure:
			getBalanceReport.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// BalanceServiceClient is a client for the BalanceService service.
type BalanceServiceClient interface {
	GetBalanceReport(context.Context, *connect.Request[GetBalanceReportRequest]) (*connect.Response[GetBalanceReportResponse], error)
}

type balanceServiceClient struct {
	getBalanceReport *connect.Client[GetBalanceReportRequest, GetBalanceReportResponse]
}

// NewBalanceServiceClient constructs a client for the BalanceService service.
func NewBalanceServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) BalanceServiceClient {
	opts = append([]connect.ClientOption{clientCodec()}, opts...)
	return &balanceServiceClient{
		getBalanceReport: connect.NewClient[GetBalanceReportRequest, GetBalanceReportResponse](httpClient, baseURL+BalanceServiceGetBalanceReportProcedure, opts...),
	}
}

func (c *balanceServiceClient) GetBalanceReport(ctx context.Context, req *connect.Request[GetBalanceReportRequest]) (*connect.Response[GetBalanceReportResponse], error) {
	return c.getBalanceReport.CallUnary(ctx, req)
}
